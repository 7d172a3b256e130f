package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oppbot/internal/catalog"
	"github.com/alanyoungcy/oppbot/internal/decision"
	"github.com/alanyoungcy/oppbot/internal/dispatch"
	"github.com/alanyoungcy/oppbot/internal/domain"
	"github.com/alanyoungcy/oppbot/internal/executor"
	"github.com/alanyoungcy/oppbot/internal/feed"
	"github.com/alanyoungcy/oppbot/internal/flashloan"
	"github.com/alanyoungcy/oppbot/internal/notify"
	"github.com/alanyoungcy/oppbot/internal/predictor"
	"github.com/alanyoungcy/oppbot/internal/server"
	"github.com/alanyoungcy/oppbot/internal/server/handler"
	"github.com/alanyoungcy/oppbot/internal/server/ws"
	"github.com/alanyoungcy/oppbot/internal/wallet"
)

// catalogSnapshotInterval is how often live strategy counters are flushed
// back to the strategy store.
const catalogSnapshotInterval = 30 * time.Second

// FullMode runs the whole pipeline: scanner generators, decision gate,
// dispatch workers, paper execution, flash-loan monitor, retraining,
// notifications, archival, and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	// Surface wallet misconfiguration at startup rather than on the first
	// withdrawal attempt. Funds only move through the withdrawal utility.
	if a.cfg.Wallet.PrivateKey != "" || a.cfg.Wallet.EncryptedKeyPath != "" {
		if addr, err := a.walletAddress(); err != nil {
			a.logger.WarnContext(ctx, "wallet key unusable, withdrawals disabled",
				slog.String("error", err.Error()),
			)
		} else {
			a.logger.InfoContext(ctx, "wallet key loaded", slog.String("address", addr))
		}
	}

	cat := a.buildCatalog(ctx, deps)

	decider := decision.NewEngine(a.logger,
		decision.WithCostUnitPrice(a.cfg.Decision.CostUnitPrice),
	)

	exec := executor.NewPaper(executor.PaperConfig{
		SlippageRate: a.cfg.Executor.SlippageRate,
		Latency:      a.cfg.Executor.Latency.Duration,
		DedupTTL:     a.cfg.Executor.DedupTTL.Duration,
	}, a.logger)
	g.Go(func() error {
		if err := exec.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("full mode: executor: %w", err)
		}
		return nil
	})

	engine := dispatch.New(a.dispatchConfig(), cat, decider, exec, a.logger)
	engine.SetSignalBus(deps.SignalBus)
	engine.SetLockManager(deps.LockManager)
	if deps.OutcomeStore != nil {
		engine.SetOutcomeStore(deps.OutcomeStore)
	}

	// Opportunity generation from cross-venue discrepancies.
	scanner := feed.NewScanner(deps.Oracle, feed.ScannerConfig{
		MinSpreadPct: a.cfg.Scan.MinSpreadPct,
		Notional:     a.cfg.Scan.Notional,
		TTL:          a.cfg.Scan.TTL.Duration,
	}, a.logger)
	engine.SetGenerator(scanner)

	// Leveraged candidates from the same oracle.
	if a.cfg.FlashLoan.Enabled {
		engine.SetFlashLoanBuilder(flashloan.NewBuilder(a.flashLoanConfig(), deps.Oracle, a.logger))
	}

	// Baseline predictor gates executions and retrains from stored outcomes.
	resolve := func(strategyID string) (domain.Category, bool) {
		rec, err := cat.Get(strategyID)
		if err != nil {
			return "", false
		}
		return rec.Category, true
	}
	engine.SetPredictor(predictor.NewBaseline(deps.OutcomeStore, resolve, a.logger))

	engine.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		engine.Stop()
		return nil
	})

	// Flush live counters back to the strategy store.
	if deps.StrategyStore != nil {
		g.Go(func() error {
			a.runCatalogSnapshots(ctx, cat, deps.StrategyStore)
			return nil
		})
	}

	// Fan dispatcher events out to Telegram/Discord.
	relay := notify.NewRelay(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("full mode: notify relay: %w", err)
		}
		return nil
	})

	// Cold-storage archival of settled outcomes.
	if deps.Archiver != nil {
		retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
		interval := a.cfg.Archive.Interval.Duration
		g.Go(func() error {
			deps.Archiver.Run(ctx, interval, retention)
			return nil
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, cat, engine)
	}

	return g.Wait()
}

// MonitorMode runs a read-only live view: the event relay, the WebSocket
// hub, and the HTTP server. No opportunities are executed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	cat := a.buildCatalog(ctx, deps)

	relay := notify.NewRelay(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("monitor mode: notify relay: %w", err)
		}
		return nil
	})

	// HTTP server is always started in monitor mode.
	a.startHTTPServer(ctx, g, deps, cat, nil)

	return g.Wait()
}

// ServerMode serves the API over stored state without running the pipeline
// or the relay.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	cat := a.buildCatalog(ctx, deps)
	a.startHTTPServer(ctx, g, deps, cat, nil)

	return g.Wait()
}

// buildCatalog restores the strategy catalog from the store when one is
// wired and seeds the default strategies on first run.
func (a *App) buildCatalog(ctx context.Context, deps *Dependencies) *catalog.Catalog {
	cat := catalog.New(a.logger)

	if deps.StrategyStore != nil {
		recs, err := deps.StrategyStore.List(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "catalog restore failed, starting empty",
				slog.String("error", err.Error()),
			)
		} else {
			cat.Restore(recs)
		}
	}

	if len(cat.List()) == 0 {
		a.seedCatalog(cat)
	}
	return cat
}

// seedCatalog registers the built-in strategies so a fresh deployment has
// something to dispatch against.
func (a *App) seedCatalog(cat *catalog.Catalog) {
	seeds := []domain.StrategySpec{
		{
			Name:      "cross-venue-arb",
			Category:  domain.CategoryArbitrage,
			RiskTier:  domain.RiskTierLow,
			Priority:  10,
			MinProfit: 0.05,
			Enabled:   true,
		},
		{
			Name:      "leveraged-arb",
			Category:  domain.CategoryFlashLoan,
			RiskTier:  domain.RiskTierHigh,
			Priority:  8,
			MinProfit: a.cfg.FlashLoan.MinProfit,
			Enabled:   a.cfg.FlashLoan.Enabled,
		},
		{
			Name:      "spread-maker",
			Category:  domain.CategoryMarketMaking,
			RiskTier:  domain.RiskTierMedium,
			Priority:  5,
			MinProfit: 0.02,
			Enabled:   true,
		},
	}
	for _, spec := range seeds {
		if _, err := cat.Register(spec); err != nil {
			a.logger.Warn("seed strategy rejected",
				slog.String("name", spec.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	a.logger.Info("seeded default strategies", slog.Int("count", len(seeds)))
}

// runCatalogSnapshots periodically flushes catalog records to the store and
// takes a final snapshot on shutdown so counters survive restarts.
func (a *App) runCatalogSnapshots(ctx context.Context, cat *catalog.Catalog, store domain.StrategyStore) {
	ticker := time.NewTicker(catalogSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.snapshotCatalog(flushCtx, cat, store)
			cancel()
			return
		case <-ticker.C:
			a.snapshotCatalog(ctx, cat, store)
		}
	}
}

func (a *App) snapshotCatalog(ctx context.Context, cat *catalog.Catalog, store domain.StrategyStore) {
	for _, rec := range cat.List() {
		if err := store.Upsert(ctx, rec); err != nil {
			a.logger.Warn("catalog snapshot failed",
				slog.String("strategy_id", rec.ID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// walletAddress loads the configured signing key and derives its address.
func (a *App) walletAddress() (string, error) {
	hexKey, err := wallet.LoadKey(wallet.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return "", err
	}
	priv, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return "", fmt.Errorf("app: parse wallet key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(priv.PublicKey).Hex(), nil
}

// dispatchConfig maps the config section onto dispatcher defaults.
func (a *App) dispatchConfig() dispatch.Config {
	dcfg := dispatch.DefaultConfig()
	if a.cfg.Dispatch.Workers > 0 {
		dcfg.Workers = a.cfg.Dispatch.Workers
	}
	if a.cfg.Dispatch.ConfidenceThreshold > 0 {
		dcfg.ConfidenceThreshold = a.cfg.Dispatch.ConfidenceThreshold
	}
	if d := a.cfg.Dispatch.CycleInterval.Duration; d > 0 {
		dcfg.CycleInterval = d
	}
	if d := a.cfg.Dispatch.GeneratorInterval.Duration; d > 0 {
		dcfg.GeneratorInterval = d
	}
	if d := a.cfg.Dispatch.ScanInterval.Duration; d > 0 {
		dcfg.ScanInterval = d
	}
	if d := a.cfg.Dispatch.TrainInterval.Duration; d > 0 {
		dcfg.TrainInterval = d
	}
	if a.cfg.Dispatch.TrainMinSamples > 0 {
		dcfg.TrainMinSamples = a.cfg.Dispatch.TrainMinSamples
	}
	return dcfg
}

// flashLoanConfig maps the config section onto builder defaults.
func (a *App) flashLoanConfig() flashloan.Config {
	fcfg := flashloan.DefaultConfig()
	fcfg.Enabled = a.cfg.FlashLoan.Enabled
	if a.cfg.FlashLoan.LoanAmount > 0 {
		fcfg.LoanAmount = a.cfg.FlashLoan.LoanAmount
	}
	if a.cfg.FlashLoan.LoanAsset != "" {
		fcfg.LoanAsset = a.cfg.FlashLoan.LoanAsset
	}
	if a.cfg.FlashLoan.FeeRate > 0 {
		fcfg.FeeRate = a.cfg.FlashLoan.FeeRate
	}
	if a.cfg.FlashLoan.GasCost > 0 {
		fcfg.GasCost = a.cfg.FlashLoan.GasCost
	}
	if a.cfg.FlashLoan.SlippageRate > 0 {
		fcfg.SlippageRate = a.cfg.FlashLoan.SlippageRate
		fcfg.StepSlippage = a.cfg.FlashLoan.SlippageRate
	}
	if a.cfg.FlashLoan.MinSpreadPct > 0 {
		fcfg.MinSpreadPct = a.cfg.FlashLoan.MinSpreadPct
	}
	if a.cfg.FlashLoan.MinProfit > 0 {
		fcfg.MinProfit = a.cfg.FlashLoan.MinProfit
	}
	if a.cfg.FlashLoan.MinConfidence > 0 {
		fcfg.MinConfidence = a.cfg.FlashLoan.MinConfidence
	}
	if a.cfg.FlashLoan.MaxRisk > 0 {
		fcfg.MaxRisk = a.cfg.FlashLoan.MaxRisk
	}
	if d := a.cfg.FlashLoan.TTL.Duration; d > 0 {
		fcfg.TTL = d
	}
	if a.cfg.Decision.CostUnitPrice > 0 {
		fcfg.CostUnitPrice = a.cfg.Decision.CostUnitPrice
	}
	return fcfg
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. metrics is nil in modes without a running dispatcher.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	cat *catalog.Catalog,
	metrics *dispatch.Engine,
) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	var metricsSource handler.MetricsSource
	if metrics != nil {
		metricsSource = metrics
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Status:     handler.NewStatusHandler(metricsSource, cat, a.cfg.Mode, startedAt, a.logger),
		Strategies: handler.NewStrategyHandler(cat, a.logger),
		Outcomes:   handler.NewOutcomeHandler(deps.OutcomeStore, a.logger),
		Events:     handler.NewEventsHandler(deps.SignalBus, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
