package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RuleSpec configures one rule in the chain. Params are rule-specific;
// durations are expressed in seconds.
type RuleSpec struct {
	Name     string             `yaml:"name"`
	Enabled  bool               `yaml:"enabled"`
	Critical bool               `yaml:"critical"`
	Params   map[string]float64 `yaml:"params"`
}

func (s RuleSpec) f(key string, def float64) float64 {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return def
}

func (s RuleSpec) dec(key string, def string) decimal.Decimal {
	if v, ok := s.Params[key]; ok {
		return decimal.NewFromFloat(v)
	}
	return decimal.RequireFromString(def)
}

func (s RuleSpec) dur(key string, def time.Duration) time.Duration {
	if v, ok := s.Params[key]; ok {
		return time.Duration(v * float64(time.Second))
	}
	return def
}

var ruleBuilders = map[string]func(RuleSpec) Rule{
	"max_inventory": func(s RuleSpec) Rule {
		return NewMaxInventoryRule(int64(s.f("max_inventory", 100)))
	},
	"max_order_size": func(s RuleSpec) Rule {
		return NewMaxOrderSizeRule(int64(s.f("max_size", 100)))
	},
	"max_notional": func(s RuleSpec) Rule {
		return NewMaxNotionalRule(s.dec("max_notional", "1000"))
	},
	"hourly_loss_limit": func(s RuleSpec) Rule {
		return NewHourlyLossRule(s.dec("max_loss", "50"))
	},
	"daily_loss_limit": func(s RuleSpec) Rule {
		return NewDailyLossRule(s.dec("max_loss", "200"))
	},
	"settlement_cutoff": func(s RuleSpec) Rule {
		return NewSettlementCutoffRule(s.dur("cutoff_seconds", 30*time.Minute))
	},
	"stale_data": func(s RuleSpec) Rule {
		return NewStaleDataRule(
			s.dur("soft_age_seconds", 5*time.Second),
			s.dur("hard_age_seconds", 30*time.Second),
			int64(s.f("widen_ticks", 1)))
	},
	"volatility_guard": func(s RuleSpec) Rule {
		return NewVolatilityGuardRule(s.dec("threshold", "0.2"), s.dec("shrink", "0.5"))
	},
	"abnormal_spread": func(s RuleSpec) Rule {
		return NewAbnormalSpreadRule(s.dec("max_spread", "0.1"), int64(s.f("widen_ticks", 2)))
	},
}

// BuildRules instantiates the chain in the given order.
func BuildRules(specs []RuleSpec) ([]ConfiguredRule, error) {
	out := make([]ConfiguredRule, 0, len(specs))
	for _, spec := range specs {
		build, ok := ruleBuilders[spec.Name]
		if !ok {
			return nil, fmt.Errorf("unknown risk rule %q", spec.Name)
		}
		out = append(out, ConfiguredRule{
			Rule:     build(spec),
			Critical: spec.Critical,
			Enabled:  spec.Enabled,
		})
	}
	return out, nil
}
