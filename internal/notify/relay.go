package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// Relay bridges dispatcher events from the signal bus to the notifier, so
// operators see settled trades and flash-loan wins without watching logs.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay.
func NewRelay(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run subscribes to the event channels and forwards messages until the
// context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	trades, err := r.bus.Subscribe(ctx, domain.EventTradeExecuted)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.EventTradeExecuted, err)
	}
	flashloans, err := r.bus.Subscribe(ctx, domain.EventFlashLoanSuccess)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.EventFlashLoanSuccess, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case payload, ok := <-trades:
				if !ok {
					return nil
				}
				r.forwardTrade(ctx, payload)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case payload, ok := <-flashloans:
				if !ok {
					return nil
				}
				r.forwardFlashLoan(ctx, payload)
			}
		}
	})

	return g.Wait()
}

func (r *Relay) forwardTrade(ctx context.Context, payload []byte) {
	var ev domain.TradeExecutedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn("bad trade event payload", slog.String("error", err.Error()))
		return
	}

	status := "FAILED"
	if ev.Success {
		status = "OK"
	}
	title := fmt.Sprintf("Trade %s: %s", status, ev.Category)
	msg := fmt.Sprintf("strategy=%s profit=%.4f ($%.2f) duration=%dms",
		ev.StrategyID, ev.Profit, ev.ProfitUSD, ev.DurationMs)
	if ev.Reason != "" {
		msg += " reason=" + ev.Reason
	}

	if err := r.notifier.Notify(ctx, domain.EventTradeExecuted, title, msg); err != nil {
		r.logger.Warn("trade notification failed", slog.String("error", err.Error()))
	}
}

func (r *Relay) forwardFlashLoan(ctx context.Context, payload []byte) {
	var ev domain.FlashLoanEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn("bad flashloan event payload", slog.String("error", err.Error()))
		return
	}

	title := "Flash loan settled"
	msg := fmt.Sprintf("asset=%s net=%.4f buy=%s sell=%s",
		ev.Asset, ev.NetProfit, ev.BuyVenue, ev.SellVenue)

	if err := r.notifier.Notify(ctx, domain.EventFlashLoanSuccess, title, msg); err != nil {
		r.logger.Warn("flashloan notification failed", slog.String("error", err.Error()))
	}
}
