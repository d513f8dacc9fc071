package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/sqlite"
	"github.com/warp/commission-engine/wallet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, out any) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// =============================================================================
// ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, srv.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestGetWallet_KnownUser(t *testing.T) {
	// GIVEN: a user with a credited wallet
	// WHEN: fetching the wallet endpoint
	// THEN: the balance is rendered as a fixed two-decimal string

	srv, store := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, commission.UserNode{ID: "u", CreatedAt: time.Now().UTC()}))
	wallets := wallet.NewManager(store)
	require.NoError(t, wallets.Credit(ctx, wallet.Credit{
		ToUserID: "u",
		Amount:   decimal.RequireFromString("1234.5"),
		Type:     commission.LedgerTypeBinary,
		At:       time.Now().UTC(),
	}))

	var body api.WalletDTO
	status := getJSON(t, srv.URL+"/api/users/u/wallet", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1234.50", body.Amount)
	assert.Equal(t, commission.AccountEarning, body.AccountType)
}

func TestGetWallet_UnknownUser404(t *testing.T) {
	srv, _ := newTestServer(t)
	status := getJSON(t, srv.URL+"/api/users/ghost/wallet", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListPayouts_EmptyIsArray(t *testing.T) {
	// GIVEN: a user with no payouts
	// WHEN: listing payouts
	// THEN: the response is an empty JSON array, not null

	srv, store := newTestServer(t)
	require.NoError(t, store.SaveUser(context.Background(), commission.UserNode{ID: "u", CreatedAt: time.Now().UTC()}))

	var body []api.PayoutDTO
	status := getJSON(t, srv.URL+"/api/users/u/payouts", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body)
	assert.Empty(t, body)
}

func TestListQualifications_IncludesInstallments(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveUser(ctx, commission.UserNode{ID: "u", CreatedAt: now}))
	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		q := commission.SalaryQualification{
			ID: "q1", SponsorID: "u", PeriodMarker: "2025-06",
			Mode: commission.ModeMonthly, VIPNo: 1,
			SalaryAmount: decimal.RequireFromString("1000"),
			MonthsTotal:  3, Status: commission.QualificationActive,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := tx.InsertQualification(ctx, q); err != nil {
			return err
		}
		return tx.InsertInstallment(ctx, commission.SalaryInstallment{
			ID: "i1", QualificationID: "q1", DueDate: "2025-07-01",
			Amount: decimal.RequireFromString("1000"),
		})
	}))

	var body []api.QualificationDTO
	status := getJSON(t, srv.URL+"/api/users/u/qualifications", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body, 1)
	assert.Equal(t, "2025-06", body[0].PeriodMarker)
	require.Len(t, body[0].Installments, 1)
	assert.Equal(t, "1000.00", body[0].Installments[0].Amount)
	assert.Nil(t, body[0].Installments[0].PaidAt)
}
