/*
Package plan defines the compensation-plan configuration.

PURPOSE:
  Read-only configuration consumed by the engines: binary matching tiers,
  star-rank slabs, VIP salary slabs and the salary retention factor.
  Defaults are compiled in; an optional YAML file overrides them.

TIER RULES:
  - Each binary tier has its own pair value, per-closing cap (always one
    pair) and rolling daily cap.
  - A higher tier's eligible plan-type set is a superset of the lower
    tiers' types.
  - Slabs must be strictly ascending by number and threshold; Validate
    enforces this at load time.
*/
package plan

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// TYPES
// =============================================================================

// BinaryTier configures binary matching for one plan tier.
type BinaryTier struct {
	Plan          commission.PlanType
	Rank          int // self-purchase rank required to qualify
	PairValue     decimal.Decimal
	DailyCap      decimal.Decimal
	EligibleTypes []commission.PlanType
}

// StarSlab maps a cumulative matched-volume threshold to a one-time reward.
type StarSlab struct {
	RankNo    int
	Threshold decimal.Decimal
	Reward    decimal.Decimal
}

// VIPSlab maps a periodic repurchase matched-volume threshold to a salary.
type VIPSlab struct {
	VIPNo     int
	Threshold decimal.Decimal
	Salary    decimal.Decimal
}

// Plan is the full compensation configuration.
type Plan struct {
	Tiers     []BinaryTier
	StarSlabs []StarSlab
	VIPSlabs  []VIPSlab

	// SalaryRetention is the fraction of a gross installment credited to
	// the wallet (0.80 = 20% deduction).
	SalaryRetention decimal.Decimal

	// SalaryMonthsTotal is the number of installments per qualification.
	SalaryMonthsTotal int

	// StarPlanTypes is the inclusive plan-type set for star-rank volume.
	StarPlanTypes []commission.PlanType
}

// =============================================================================
// DEFAULTS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("plan: bad default decimal " + s)
	}
	return d
}

// Default returns the compiled-in compensation plan.
func Default() *Plan {
	return &Plan{
		Tiers: []BinaryTier{
			{
				Plan:          commission.PlanSilver,
				Rank:          1,
				PairValue:     dec("3000"),
				DailyCap:      dec("6000"),
				EligibleTypes: []commission.PlanType{commission.PlanSilver},
			},
			{
				Plan:          commission.PlanGold,
				Rank:          2,
				PairValue:     dec("6000"),
				DailyCap:      dec("12000"),
				EligibleTypes: []commission.PlanType{commission.PlanSilver, commission.PlanGold},
			},
			{
				Plan:          commission.PlanDiamond,
				Rank:          3,
				PairValue:     dec("9000"),
				DailyCap:      dec("18000"),
				EligibleTypes: []commission.PlanType{commission.PlanSilver, commission.PlanGold, commission.PlanDiamond},
			},
		},
		StarSlabs: []StarSlab{
			{RankNo: 1, Threshold: dec("50000"), Reward: dec("1000")},
			{RankNo: 2, Threshold: dec("100000"), Reward: dec("2500")},
			{RankNo: 3, Threshold: dec("250000"), Reward: dec("5000")},
			{RankNo: 4, Threshold: dec("500000"), Reward: dec("10000")},
			{RankNo: 5, Threshold: dec("1000000"), Reward: dec("25000")},
		},
		VIPSlabs: []VIPSlab{
			{VIPNo: 1, Threshold: dec("10000"), Salary: dec("1000")},
			{VIPNo: 2, Threshold: dec("25000"), Salary: dec("2500")},
			{VIPNo: 3, Threshold: dec("50000"), Salary: dec("5000")},
			{VIPNo: 4, Threshold: dec("100000"), Salary: dec("10000")},
		},
		SalaryRetention:   dec("0.80"),
		SalaryMonthsTotal: 3,
		StarPlanTypes: []commission.PlanType{
			commission.PlanSilver, commission.PlanGold,
			commission.PlanDiamond, commission.PlanRepurchase,
		},
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks slab ordering and tier sanity.
func (p *Plan) Validate() error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("plan: no binary tiers configured")
	}
	for _, t := range p.Tiers {
		if !t.PairValue.IsPositive() {
			return fmt.Errorf("plan: tier %s: pair value must be positive", t.Plan)
		}
		if t.DailyCap.LessThan(t.PairValue) {
			return fmt.Errorf("plan: tier %s: daily cap below pair value", t.Plan)
		}
		if len(t.EligibleTypes) == 0 {
			return fmt.Errorf("plan: tier %s: no eligible plan types", t.Plan)
		}
	}
	for i := 1; i < len(p.StarSlabs); i++ {
		prev, cur := p.StarSlabs[i-1], p.StarSlabs[i]
		if cur.RankNo <= prev.RankNo || !cur.Threshold.GreaterThan(prev.Threshold) {
			return fmt.Errorf("plan: star slabs must ascend by rank and threshold (rank %d)", cur.RankNo)
		}
	}
	for i := 1; i < len(p.VIPSlabs); i++ {
		prev, cur := p.VIPSlabs[i-1], p.VIPSlabs[i]
		if cur.VIPNo <= prev.VIPNo || !cur.Threshold.GreaterThan(prev.Threshold) {
			return fmt.Errorf("plan: vip slabs must ascend by number and threshold (vip %d)", cur.VIPNo)
		}
	}
	if !p.SalaryRetention.IsPositive() || p.SalaryRetention.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("plan: salary retention must be in (0, 1]")
	}
	if p.SalaryMonthsTotal <= 0 {
		return fmt.Errorf("plan: salary months total must be positive")
	}
	return nil
}

// TierFor returns the binary tier for a plan type, or nil.
func (p *Plan) TierFor(pt commission.PlanType) *BinaryTier {
	for i := range p.Tiers {
		if p.Tiers[i].Plan == pt {
			return &p.Tiers[i]
		}
	}
	return nil
}

// HighestVIPSlab returns the highest slab whose threshold is <= matched,
// or nil when no slab qualifies.
func (p *Plan) HighestVIPSlab(matched decimal.Decimal) *VIPSlab {
	var best *VIPSlab
	for i := range p.VIPSlabs {
		if p.VIPSlabs[i].Threshold.LessThanOrEqual(matched) {
			best = &p.VIPSlabs[i]
		}
	}
	return best
}

// =============================================================================
// YAML OVERRIDE
// =============================================================================

type yamlTier struct {
	Plan          string   `yaml:"plan"`
	Rank          int      `yaml:"rank"`
	PairValue     string   `yaml:"pair_value"`
	DailyCap      string   `yaml:"daily_cap"`
	EligibleTypes []string `yaml:"eligible_types"`
}

type yamlSlab struct {
	No        int    `yaml:"no"`
	Threshold string `yaml:"threshold"`
	Amount    string `yaml:"amount"`
}

type yamlPlan struct {
	Tiers             []yamlTier `yaml:"tiers"`
	StarSlabs         []yamlSlab `yaml:"star_slabs"`
	VIPSlabs          []yamlSlab `yaml:"vip_slabs"`
	SalaryRetention   string     `yaml:"salary_retention"`
	SalaryMonthsTotal int        `yaml:"salary_months_total"`
}

// LoadFile reads a YAML plan override. Sections absent from the file keep
// their defaults.
func LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}

	var y yamlPlan
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("plan: parse %s: %w", path, err)
	}

	p := Default()
	if len(y.Tiers) > 0 {
		p.Tiers = nil
		for _, t := range y.Tiers {
			pair, err := decimal.NewFromString(t.PairValue)
			if err != nil {
				return nil, fmt.Errorf("plan: tier %s: bad pair_value: %w", t.Plan, err)
			}
			daily, err := decimal.NewFromString(t.DailyCap)
			if err != nil {
				return nil, fmt.Errorf("plan: tier %s: bad daily_cap: %w", t.Plan, err)
			}
			types := make([]commission.PlanType, 0, len(t.EligibleTypes))
			for _, et := range t.EligibleTypes {
				types = append(types, commission.PlanType(et))
			}
			p.Tiers = append(p.Tiers, BinaryTier{
				Plan:          commission.PlanType(t.Plan),
				Rank:          t.Rank,
				PairValue:     pair,
				DailyCap:      daily,
				EligibleTypes: types,
			})
		}
	}
	if len(y.StarSlabs) > 0 {
		p.StarSlabs = nil
		for _, s := range y.StarSlabs {
			slab, err := parseSlab(s)
			if err != nil {
				return nil, err
			}
			p.StarSlabs = append(p.StarSlabs, StarSlab{RankNo: s.No, Threshold: slab[0], Reward: slab[1]})
		}
	}
	if len(y.VIPSlabs) > 0 {
		p.VIPSlabs = nil
		for _, s := range y.VIPSlabs {
			slab, err := parseSlab(s)
			if err != nil {
				return nil, err
			}
			p.VIPSlabs = append(p.VIPSlabs, VIPSlab{VIPNo: s.No, Threshold: slab[0], Salary: slab[1]})
		}
	}
	if y.SalaryRetention != "" {
		r, err := decimal.NewFromString(y.SalaryRetention)
		if err != nil {
			return nil, fmt.Errorf("plan: bad salary_retention: %w", err)
		}
		p.SalaryRetention = r
	}
	if y.SalaryMonthsTotal > 0 {
		p.SalaryMonthsTotal = y.SalaryMonthsTotal
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseSlab(s yamlSlab) ([2]decimal.Decimal, error) {
	threshold, err := decimal.NewFromString(s.Threshold)
	if err != nil {
		return [2]decimal.Decimal{}, fmt.Errorf("plan: slab %d: bad threshold: %w", s.No, err)
	}
	amount, err := decimal.NewFromString(s.Amount)
	if err != nil {
		return [2]decimal.Decimal{}, fmt.Errorf("plan: slab %d: bad amount: %w", s.No, err)
	}
	return [2]decimal.Decimal{threshold, amount}, nil
}
