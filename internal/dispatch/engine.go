// Package dispatch owns the opportunity queue and the concurrent execution
// pipeline: gate, select, execute, record, feed back.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oppbot/internal/catalog"
	"github.com/alanyoungcy/oppbot/internal/decision"
	"github.com/alanyoungcy/oppbot/internal/domain"
	"github.com/alanyoungcy/oppbot/internal/flashloan"
)

const (
	defaultQueueCapacity = 1 << 20
	defaultBatchSize     = 1000
	maxWorkers           = 32
)

// Config holds the dispatcher's tuning knobs.
type Config struct {
	Workers             int
	BatchSize           int
	QueueCapacity       int
	ConfidenceThreshold float64
	CycleInterval       time.Duration // idle pause when the queue is empty
	GeneratorInterval   time.Duration
	ScanInterval        time.Duration // flash-loan scan cadence
	TrainInterval       time.Duration
	TrainMinSamples     int
}

// DefaultConfig sizes the worker pool to a small multiple of the available
// cores, capped so a large host does not oversubscribe the executor.
func DefaultConfig() Config {
	workers := 4 * runtime.GOMAXPROCS(0)
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return Config{
		Workers:             workers,
		BatchSize:           defaultBatchSize,
		QueueCapacity:       defaultQueueCapacity,
		ConfidenceThreshold: 0.7,
		CycleInterval:       50 * time.Millisecond,
		GeneratorInterval:   time.Second,
		ScanInterval:        5 * time.Second,
		TrainInterval:       30 * time.Second,
		TrainMinSamples:     100,
	}
}

// Generator is a strategy's market-analysis hook. The dispatcher runs one
// generation loop per enabled strategy, feeding whatever the hook finds
// into the queue.
type Generator interface {
	Analyze(ctx context.Context, rec domain.StrategyRecord) ([]domain.Opportunity, error)
}

// Engine is the dispatch pipeline. Construct with New, attach optional
// collaborators with the Set methods before Start.
type Engine struct {
	cfg     Config
	catalog *catalog.Catalog
	decider *decision.Engine
	exec    domain.ExecutionClient
	logger  *slog.Logger

	builder   *flashloan.Builder
	predictor domain.Predictor
	generator Generator
	bus       domain.SignalBus
	outcomes  domain.OutcomeStore
	locks     domain.LockManager

	queue      *queue
	throughput *throughput

	mu                sync.Mutex
	running           bool
	cancel            context.CancelFunc
	group             *errgroup.Group
	samplesSinceTrain int
}

// New creates a dispatch Engine over the required collaborators.
func New(cfg Config, cat *catalog.Catalog, decider *decision.Engine, exec domain.ExecutionClient, logger *slog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 50 * time.Millisecond
	}
	return &Engine{
		cfg:        cfg,
		catalog:    cat,
		decider:    decider,
		exec:       exec,
		logger:     logger.With(slog.String("component", "dispatch")),
		queue:      newQueue(cfg.QueueCapacity),
		throughput: newThroughput(time.Now),
	}
}

// SetFlashLoanBuilder enables the periodic flash-loan scan task.
func (e *Engine) SetFlashLoanBuilder(b *flashloan.Builder) { e.builder = b }

// SetPredictor routes the pre-execution confidence gate through the
// external predictive oracle and enables the retraining trigger.
func (e *Engine) SetPredictor(p domain.Predictor) { e.predictor = p }

// SetGenerator installs the per-strategy opportunity generation hook.
func (e *Engine) SetGenerator(g Generator) { e.generator = g }

// SetSignalBus publishes trade events to the given bus.
func (e *Engine) SetSignalBus(b domain.SignalBus) { e.bus = b }

// SetOutcomeStore persists settled outcomes.
func (e *Engine) SetOutcomeStore(s domain.OutcomeStore) { e.outcomes = s }

// SetLockManager keeps the flash-loan scan single-runner across processes.
func (e *Engine) SetLockManager(l domain.LockManager) { e.locks = l }

// Enqueue adds an opportunity to the queue. A full queue drops the
// opportunity silently; the drop is visible in Metrics. Malformed
// opportunities are rejected up front and never queued.
func (e *Engine) Enqueue(opp domain.Opportunity) error {
	if err := opp.Validate(); err != nil {
		return fmt.Errorf("dispatch: enqueue: %w", err)
	}
	if !e.queue.push(opp) {
		e.logger.Debug("queue full, opportunity dropped",
			slog.String("opportunity_id", opp.ID),
			slog.String("category", string(opp.Category)),
		)
	}
	return nil
}

// Start spins up the cycle runners, the per-strategy generators, the
// retraining trigger, and the flash-loan monitor. It is a no-op when the
// engine is already running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	e.cancel = cancel
	e.group = g
	e.running = true

	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			e.runCycles(gctx)
			return nil
		})
	}

	if e.generator != nil {
		for _, rec := range e.catalog.Enabled() {
			rec := rec
			g.Go(func() error {
				e.runGenerator(gctx, rec)
				return nil
			})
		}
	}

	if e.predictor != nil {
		g.Go(func() error {
			e.runTrainer(gctx)
			return nil
		})
	}

	if e.builder != nil && e.exec != nil {
		g.Go(func() error {
			e.runFlashLoanMonitor(gctx)
			return nil
		})
	}

	e.logger.Info("dispatch engine started",
		slog.Int("workers", e.cfg.Workers),
		slog.Int("batch_size", e.cfg.BatchSize),
		slog.Float64("confidence_threshold", e.cfg.ConfidenceThreshold),
	)
}

// Stop cancels scheduling and waits for workers to finish their current
// batch. Executions already dispatched run to completion and their outcomes
// are recorded. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	group := e.group
	e.running = false
	e.mu.Unlock()

	cancel()
	_ = group.Wait()
	e.logger.Info("dispatch engine stopped")
}

// Metrics returns a snapshot of dispatcher state. Reads are eventually
// consistent with concurrent cycles.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	trades, successes := e.throughput.totals()
	m := Metrics{
		Running:            running,
		TotalTrades:        trades,
		DecisionsPerSecond: e.throughput.dps(),
		QueueDepth:         e.queue.len(),
		Workers:            e.cfg.Workers,
		Dropped:            e.queue.droppedCount(),
	}
	if trades > 0 {
		m.SuccessRate = float64(successes) / float64(trades)
	}
	return m
}

// runCycles is one cycle-runner: drain a batch, dispatch it concurrently,
// yield, repeat.
func (e *Engine) runCycles(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch := e.queue.popBatch(e.cfg.BatchSize)
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.CycleInterval):
			}
			continue
		}

		// Each item is an independent unit of work; results may settle in
		// any order within the batch.
		var wg sync.WaitGroup
		for _, opp := range batch {
			wg.Add(1)
			go func(opp domain.Opportunity) {
				defer wg.Done()
				e.process(ctx, opp)
			}(opp)
		}
		wg.Wait()
	}
}

// process runs a single opportunity through gate → select → execute →
// record. Capability failures become failed outcomes; nothing here may
// abort the run loop.
func (e *Engine) process(ctx context.Context, opp domain.Opportunity) {
	now := time.Now()
	if opp.Expired(now) {
		e.logger.Debug("opportunity expired before dispatch",
			slog.String("opportunity_id", opp.ID),
		)
		return
	}

	estimate, verdictReject := e.confidenceEstimate(ctx, opp)
	if verdictReject || estimate < e.cfg.ConfidenceThreshold {
		e.recordRejection(opp, fmt.Sprintf("confidence %.2f below threshold %.2f", estimate, e.cfg.ConfidenceThreshold))
		return
	}

	rec, err := e.catalog.SelectForOpportunity(opp)
	if err != nil {
		e.recordRejection(opp, "no enabled strategy for category")
		return
	}

	out := e.execute(ctx, rec, opp)
	e.record(rec.ID, opp, out)
}

// confidenceEstimate consults the predictor when one is attached, falling
// back to the decision engine on predictor failure. The boolean reports a
// hard reject from the decision engine's own verdict.
func (e *Engine) confidenceEstimate(ctx context.Context, opp domain.Opportunity) (float64, bool) {
	if e.predictor != nil {
		p, err := e.predictor.Predict(ctx, opp)
		if err == nil {
			return p, false
		}
		e.logger.Warn("predictor failed, falling back to decision engine",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
	d := e.decider.Evaluate(opp, nil)
	return d.Confidence, !d.Accept
}

// execute invokes the external execution capability. Errors are converted
// into failed outcomes, never propagated. The call survives Stop so an
// in-flight execution can settle and be recorded.
func (e *Engine) execute(ctx context.Context, rec domain.StrategyRecord, opp domain.Opportunity) domain.ExecutionOutcome {
	execCtx := context.WithoutCancel(ctx)
	if rec.Params.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, rec.Params.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := e.exec.Execute(execCtx, rec.ID, opp)
	if err != nil {
		out = domain.ExecutionOutcome{
			Success:       false,
			FailureReason: err.Error(),
			Duration:      time.Since(start),
		}
	}
	if out.Duration == 0 {
		out.Duration = time.Since(start)
	}
	return out
}

// record feeds a settled outcome back into the catalog, the decision
// engine, the outcome store, and the event stream.
func (e *Engine) record(strategyID string, opp domain.Opportunity, out domain.ExecutionOutcome) {
	out.OpportunityID = opp.ID
	out.StrategyID = strategyID
	if out.SettledAt.IsZero() {
		out.SettledAt = time.Now()
	}

	if err := e.catalog.RecordOutcome(strategyID, out); err != nil {
		e.logger.Warn("record outcome failed",
			slog.String("strategy_id", strategyID),
			slog.String("error", err.Error()),
		)
	}
	e.decider.UpdatePerformance(opp.Category, out.Success, out.Profit)

	e.mu.Lock()
	e.samplesSinceTrain++
	e.mu.Unlock()

	e.throughput.recordDecision(out.Success)

	if e.outcomes != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.outcomes.Create(storeCtx, out); err != nil {
			e.logger.Warn("outcome persist failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	e.publishTradeEvent(opp, out)

	e.logger.Info("opportunity settled",
		slog.String("opportunity_id", opp.ID),
		slog.String("strategy_id", strategyID),
		slog.String("category", string(opp.Category)),
		slog.Bool("success", out.Success),
		slog.Float64("profit", out.Profit),
		slog.Duration("duration", out.Duration),
	)
}

// recordRejection counts a gate rejection in the throughput metrics without
// touching strategy statistics.
func (e *Engine) recordRejection(opp domain.Opportunity, reason string) {
	e.throughput.recordDecision(false)
	e.logger.Debug("opportunity rejected",
		slog.String("opportunity_id", opp.ID),
		slog.String("category", string(opp.Category)),
		slog.String("reason", reason),
	)
}

func (e *Engine) publishTradeEvent(opp domain.Opportunity, out domain.ExecutionOutcome) {
	if e.bus == nil {
		return
	}
	ev := domain.TradeExecutedEvent{
		Event:       domain.EventTradeExecuted,
		Opportunity: opp.ID,
		Category:    opp.Category,
		StrategyID:  out.StrategyID,
		Success:     out.Success,
		Profit:      out.Profit,
		ProfitUSD:   out.ProfitUSD,
		DurationMs:  out.Duration.Milliseconds(),
		Reason:      out.FailureReason,
		TxRef:       out.TxRef,
		SettledAt:   out.SettledAt,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.bus.Publish(pubCtx, domain.EventTradeExecuted, payload); err != nil {
		e.logger.Warn("event publish failed", slog.String("error", err.Error()))
	}
	// Durable copy for consumers that poll instead of subscribing.
	if err := e.bus.StreamAppend(pubCtx, domain.StreamTrades, payload); err != nil {
		e.logger.Warn("event stream append failed", slog.String("error", err.Error()))
	}

	if opp.Category == domain.CategoryFlashLoan && out.Success {
		fl := domain.FlashLoanEvent{
			Event:     domain.EventFlashLoanSuccess,
			NetProfit: out.Profit,
			BuyVenue:  opp.Metadata["buy_venue"],
			SellVenue: opp.Metadata["sell_venue"],
			TxRef:     out.TxRef,
			SettledAt: out.SettledAt,
		}
		if len(opp.Assets) > 1 {
			fl.Asset = opp.Assets[1]
		}
		if payload, err := json.Marshal(fl); err == nil {
			_ = e.bus.Publish(pubCtx, domain.EventFlashLoanSuccess, payload)
		}
	}
}

// runGenerator calls one strategy's analysis hook on a fixed cadence and
// queues whatever it finds.
func (e *Engine) runGenerator(ctx context.Context, rec domain.StrategyRecord) {
	interval := e.cfg.GeneratorInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opps, err := e.generator.Analyze(ctx, rec)
			if err != nil {
				e.logger.Warn("generator analyze failed",
					slog.String("strategy_id", rec.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			for _, opp := range opps {
				_ = e.Enqueue(opp)
			}
		}
	}
}

// runTrainer triggers predictor retraining once enough fresh samples have
// accumulated and no training is already in progress.
func (e *Engine) runTrainer(ctx context.Context) {
	interval := e.cfg.TrainInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			samples := e.samplesSinceTrain
			e.mu.Unlock()
			if samples < e.cfg.TrainMinSamples || e.predictor.IsTraining() {
				continue
			}
			e.mu.Lock()
			e.samplesSinceTrain = 0
			e.mu.Unlock()
			if err := e.predictor.Train(ctx); err != nil {
				e.logger.Warn("predictor training failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runFlashLoanMonitor periodically scans for viable flash-loan candidates
// and queues them. When a lock manager is attached the scan is
// single-runner across processes.
func (e *Engine) runFlashLoanMonitor(ctx context.Context) {
	interval := e.cfg.ScanInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scanFlashLoans(ctx)
		}
	}
}

func (e *Engine) scanFlashLoans(ctx context.Context) {
	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, "flashloan_scan", e.cfg.ScanInterval)
		if err != nil {
			return
		}
		defer unlock()
	}

	opps, err := e.builder.Scan(ctx)
	if err != nil {
		e.logger.Warn("flash loan scan failed", slog.String("error", err.Error()))
		return
	}
	for _, fl := range opps {
		_ = e.Enqueue(fl.Opportunity)
	}
	if len(opps) > 0 {
		e.logger.Debug("flash loan candidates queued", slog.Int("count", len(opps)))
	}
}
