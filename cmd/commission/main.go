/*
main.go - Commission engine entry point

PURPOSE:
  Single binary exposing the batch commands, the read-only income API
  and the built-in cron scheduler.

SUBCOMMANDS:
  binary-match <closing:1|2> [--date=YYYY-MM-DD]
      Run pair matching for one closing slot. Exits non-zero on an
      invalid closing argument.

  star-compute [--date=YYYY-MM-DD] [--dry]
      Evaluate cumulative star ranks; --dry reports without writing.

  repurchase-qualify [--month=YYYY-MM | --mode=weekly --date=YYYY-MM-DD] [--dry]
      Book salary qualifications for one period.

  repurchase-pay [--period=monthly|weekly] [--month=YYYY-MM] [--date=YYYY-MM-DD]
      Settle installments due in one period.

  serve
      Start the read-only HTTP API.

  schedule
      Run the API plus the cron scheduler in one process.

EXIT CODES:
  0  success (including runs with per-subject failures; those are logged)
  1  fatal infrastructure error (store, timezone, plan file)
  2  invalid arguments

CONFIGURATION (environment, .env honored):
  COMMISSION_DB      sqlite path (default commission.db)
  COMMISSION_TZ      closing/period timezone (default Asia/Kolkata)
  COMMISSION_PORT    API port (default 8080)
  COMMISSION_PLAN    optional YAML plan override

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Cron cadence
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/binary"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/config"
	"github.com/warp/commission-engine/plan"
	"github.com/warp/commission-engine/salary"
	"github.com/warp/commission-engine/starrank"
	"github.com/warp/commission-engine/store/sqlite"
	"github.com/warp/commission-engine/wallet"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	cfg := config.Load()

	loc, err := cfg.Location()
	if err != nil {
		log.Printf("[Main] %v", err)
		return exitFatal
	}

	p := plan.Default()
	if cfg.PlanFile != "" {
		p, err = plan.LoadFile(cfg.PlanFile)
		if err != nil {
			log.Printf("[Main] load plan: %v", err)
			return exitFatal
		}
	}
	if err := p.Validate(); err != nil {
		log.Printf("[Main] invalid plan: %v", err)
		return exitFatal
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Printf("[Main] open store: %v", err)
		return exitFatal
	}
	defer store.Close()

	wallets := wallet.NewManager(store)
	a := &app{
		cfg:    cfg,
		loc:    loc,
		store:  store,
		binary: binary.NewEngine(store, wallets, p, loc),
		stars:  starrank.NewEngine(store, wallets, p),
		salary: salary.NewEngine(store, wallets, p, loc),
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "binary-match":
		return a.binaryMatch(rest)
	case "star-compute":
		return a.starCompute(rest)
	case "repurchase-qualify":
		return a.repurchaseQualify(rest)
	case "repurchase-pay":
		return a.repurchasePay(rest)
	case "serve":
		return a.serve(false)
	case "schedule":
		return a.serve(true)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		return exitUsage
	}
}

type app struct {
	cfg    config.Config
	loc    *time.Location
	store  *sqlite.Store
	binary *binary.Engine
	stars  *starrank.Engine
	salary *salary.Engine
}

// =============================================================================
// BATCH COMMANDS
// =============================================================================

func (a *app) binaryMatch(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "binary-match requires a closing number (1 or 2)")
		return exitUsage
	}
	closingNo := 0
	if _, err := fmt.Sscanf(args[0], "%d", &closingNo); err != nil || (closingNo != 1 && closingNo != 2) {
		fmt.Fprintf(os.Stderr, "invalid closing %q (want 1 or 2)\n", args[0])
		return exitUsage
	}

	fs := flag.NewFlagSet("binary-match", flag.ContinueOnError)
	dateStr := fs.String("date", "", "closing date YYYY-MM-DD (default today)")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	date, ok := a.parseDate(*dateStr)
	if !ok {
		return exitUsage
	}

	if _, err := a.binary.Run(context.Background(), date, closingNo); err != nil {
		log.Printf("[Main] binary-match: %v", err)
		return exitFatal
	}
	return exitOK
}

func (a *app) starCompute(args []string) int {
	fs := flag.NewFlagSet("star-compute", flag.ContinueOnError)
	dateStr := fs.String("date", "", "evaluate volume up to end of this day (default now)")
	dry := fs.Bool("dry", false, "report crossings without writing")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	asOf := time.Now().UTC()
	if *dateStr != "" {
		date, ok := a.parseDate(*dateStr)
		if !ok {
			return exitUsage
		}
		asOf = commission.DayWindow(date, a.loc).To
	}

	if _, err := a.stars.Run(context.Background(), asOf, *dry); err != nil {
		log.Printf("[Main] star-compute: %v", err)
		return exitFatal
	}
	return exitOK
}

func (a *app) repurchaseQualify(args []string) int {
	fs := flag.NewFlagSet("repurchase-qualify", flag.ContinueOnError)
	month := fs.String("month", "", "monthly period YYYY-MM")
	mode := fs.String("mode", "monthly", "monthly or weekly")
	dateStr := fs.String("date", "", "any date inside the weekly period")
	dry := fs.Bool("dry", false, "report without writing")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	periodMode, date, ok := a.resolvePeriod(*mode, *month, *dateStr)
	if !ok {
		return exitUsage
	}

	if _, err := a.salary.Qualify(context.Background(), date, periodMode, *dry); err != nil {
		log.Printf("[Main] repurchase-qualify: %v", err)
		return exitFatal
	}
	return exitOK
}

func (a *app) repurchasePay(args []string) int {
	fs := flag.NewFlagSet("repurchase-pay", flag.ContinueOnError)
	period := fs.String("period", "monthly", "monthly or weekly")
	month := fs.String("month", "", "monthly due period YYYY-MM")
	dateStr := fs.String("date", "", "any date inside the weekly due period")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	periodMode, date, ok := a.resolvePeriod(*period, *month, *dateStr)
	if !ok {
		return exitUsage
	}

	if _, err := a.salary.Pay(context.Background(), date, periodMode); err != nil {
		log.Printf("[Main] repurchase-pay: %v", err)
		return exitFatal
	}
	return exitOK
}

// =============================================================================
// SERVER
// =============================================================================

func (a *app) serve(withScheduler bool) int {
	handler := api.NewHandler(a.store)
	router := api.NewRouter(handler)

	if withScheduler {
		sched := api.NewScheduler(a.binary, a.stars, a.salary, commission.ModeMonthly, a.loc)
		if err := sched.Start(); err != nil {
			log.Printf("[Main] start scheduler: %v", err)
			return exitFatal
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:    ":" + a.cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Main] listening on :%s", a.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("[Main] server: %v", err)
		return exitFatal
	case sig := <-sigCh:
		log.Printf("[Main] received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Main] shutdown: %v", err)
		return exitFatal
	}
	return exitOK
}

// =============================================================================
// ARGUMENT HELPERS
// =============================================================================

func (a *app) parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Now().In(a.loc), true
	}
	t, err := time.ParseInLocation("2006-01-02", s, a.loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid date %q (want YYYY-MM-DD)\n", s)
		return time.Time{}, false
	}
	return t, true
}

// resolvePeriod turns the mode/month/date flag combination into a period
// mode plus a date inside the period.
func (a *app) resolvePeriod(mode, month, dateStr string) (commission.PeriodMode, time.Time, bool) {
	switch commission.PeriodMode(mode) {
	case commission.ModeMonthly:
		if month != "" {
			t, err := time.ParseInLocation("2006-01", month, a.loc)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid month %q (want YYYY-MM)\n", month)
				return "", time.Time{}, false
			}
			return commission.ModeMonthly, t, true
		}
		date, ok := a.parseDate(dateStr)
		return commission.ModeMonthly, date, ok
	case commission.ModeWeekly:
		date, ok := a.parseDate(dateStr)
		return commission.ModeWeekly, date, ok
	default:
		fmt.Fprintf(os.Stderr, "invalid period mode %q (want monthly or weekly)\n", mode)
		return "", time.Time{}, false
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: commission <command> [flags]

commands:
  binary-match <closing:1|2> [--date=YYYY-MM-DD]
  star-compute [--date=YYYY-MM-DD] [--dry]
  repurchase-qualify [--month=YYYY-MM | --mode=weekly --date=YYYY-MM-DD] [--dry]
  repurchase-pay [--period=monthly|weekly] [--month=YYYY-MM] [--date=YYYY-MM-DD]
  serve
  schedule`)
}
