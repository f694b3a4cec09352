package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"talok/internal/adapters/observability"
	"talok/internal/app"
	"talok/internal/domain"
	"talok/internal/shared"
	"talok/internal/storage/sqlstore"
)

// invoicer issues the monthly invoice of every active lease, then flags
// overdue invoices as late. Safe to re-run: generation is idempotent per
// lease and month.
func main() {
	periodFlag := flag.String("period", "", "month to invoice as YYYY-MM (default: current month)")
	flag.Parse()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "invoicer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	period := time.Now().UTC()
	if *periodFlag != "" {
		p, err := time.Parse("2006-01", *periodFlag)
		if err != nil {
			log.Fatal().Err(err).Str("period", *periodFlag).Msg("period must be YYYY-MM")
		}
		period = p
	}

	log.Info().
		Str("period", period.Format("2006-01")).
		Int("workers", cfg.InvoiceWorkers).
		Msg("invoicer starting")

	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DB_DRIVER")
	}
	db, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	log.Info().Msg("db ping ok")

	store := sqlstore.New(db, dialect,
		sqlstore.WithMaxFallbackRetries(cfg.FallbackRetries),
		sqlstore.WithFallbackObserver(observability.ObserveFallback),
	)
	svc := app.NewInvoiceService(store, store, app.WithDBTimeout(cfg.DBTimeout))

	leases, err := svc.ActiveLeases(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list active leases failed")
	}

	var created, existing, failed atomic.Int64
	run(ctx, cfg.InvoiceWorkers, leases, func(l domain.Lease) {
		inv, isNew, err := svc.GenerateFor(ctx, l, period)
		switch {
		case err != nil:
			failed.Add(1)
			observability.ObserveInvoice("error")
			log.Warn().Str("lease", l.ID.String()).Err(err).Msg("invoice generation failed")
		case isNew:
			created.Add(1)
			observability.ObserveInvoice("created")
		default:
			existing.Add(1)
			observability.ObserveInvoice("existing")
			log.Debug().Str("lease", l.ID.String()).Str("invoice", inv.ID.String()).Msg("invoice already issued")
		}
	})

	late, err := svc.MarkLate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("mark late failed")
	}

	log.Info().
		Int("leases", len(leases)).
		Int64("created", created.Load()).
		Int64("existing", existing.Load()).
		Int64("failed", failed.Load()).
		Int("late", late).
		Msg("invoicing completed")
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

// run calls fn for every lease with at most workers in flight.
func run(ctx context.Context, workers int, leases []domain.Lease, fn func(domain.Lease)) {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for _, l := range leases {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("stopping: context cancelled")
			break
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("stopping: context cancelled")
			break
		}

		wg.Add(1)
		go func(l domain.Lease) {
			defer wg.Done()
			defer sem.Release(1)
			fn(l)
		}(l)
	}

	wg.Wait()
}
