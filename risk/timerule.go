package risk

import (
	"fmt"
	"time"

	"github.com/bmerold/predictions-market-maker/order"
)

// SettlementCutoffRule blocks unconditionally inside the pre-settlement
// window; execution risk near settlement is not worth the edge.
type SettlementCutoffRule struct {
	cutoff time.Duration
}

func NewSettlementCutoffRule(cutoff time.Duration) *SettlementCutoffRule {
	return &SettlementCutoffRule{cutoff: cutoff}
}

func (r *SettlementCutoffRule) Name() string { return "settlement_cutoff" }

func (r *SettlementCutoffRule) Evaluate(_ order.QuoteSet, ctx Context) Decision {
	remaining := time.Duration(ctx.TimeToSettlement * float64(time.Hour))
	if remaining <= r.cutoff {
		return Blocked(fmt.Sprintf("within settlement cutoff (%s remaining, cutoff %s)",
			remaining.Round(time.Second), r.cutoff))
	}
	return Allowed()
}
