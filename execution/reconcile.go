package execution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/events"
	"github.com/bmerold/predictions-market-maker/metrics"
)

// Reconciler periodically compares the engine's view of resting orders
// against the venue's. A divergence means lost acks or fills, so the
// market is halted until an operator intervenes.
type Reconciler struct {
	engine   *Engine
	adapter  Adapter
	bus      *events.Bus
	log      *zap.Logger
	interval time.Duration
	markets  func() []string
}

func NewReconciler(engine *Engine, adapter Adapter, bus *events.Bus, log *zap.Logger, interval time.Duration, markets func() []string) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{engine: engine, adapter: adapter, bus: bus, log: log, interval: interval, markets: markets}
}

// Run 周期性核对，直到 ctx 结束
func (r *Reconciler) Run(ctx context.Context) {
	if !r.adapter.Capabilities().QueryOpenOrds {
		r.log.Info("adapter cannot list open orders, reconciliation disabled",
			zap.String("adapter", r.adapter.Name()))
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, m := range r.markets() {
				r.Check(ctx, m)
			}
		}
	}
}

// Check 核对单个市场，发现不一致则停市撤单
func (r *Reconciler) Check(ctx context.Context, marketID string) bool {
	venue, err := r.adapter.OpenOrders(ctx, marketID)
	if err != nil {
		r.log.Warn("reconcile query failed", zap.String("market", marketID), zap.Error(err))
		return true
	}

	local := r.engine.Resting(marketID)
	localIDs := make(map[string]bool, len(local))
	for _, o := range local {
		// pending orders have no exchange id yet and cannot be compared
		if o.ID != "" {
			localIDs[o.ID] = true
		} else {
			return true
		}
	}

	venueIDs := make(map[string]bool, len(venue))
	for _, o := range venue {
		venueIDs[o.ID] = true
	}

	mismatch := len(localIDs) != len(venueIDs)
	if !mismatch {
		for id := range localIDs {
			if !venueIDs[id] {
				mismatch = true
				break
			}
		}
	}
	if !mismatch {
		return true
	}

	r.log.Error("order state mismatch, halting market",
		zap.String("market", marketID),
		zap.Int("local", len(localIDs)), zap.Int("venue", len(venueIDs)))
	metrics.ReconcileMismatches.WithLabelValues(marketID).Inc()
	r.bus.Publish(events.KindReconcileError, marketID, time.Now(), map[string]any{
		"local_orders": len(localIDs), "venue_orders": len(venueIDs),
	})
	r.engine.Halt(ctx, marketID)
	return false
}
