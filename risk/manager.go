package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/metrics"
	"github.com/bmerold/predictions-market-maker/order"
)

var ErrCriticalRule = errors.New("critical rule requires override to disable")

// ConfiguredRule 链中的一条规则及其开关状态
type ConfiguredRule struct {
	Rule     Rule
	Critical bool
	Enabled  bool
}

// Manager runs the ordered rule chain. Order is explicit and significant:
// a BLOCK halts the chain and rejects the whole set, a MODIFY replaces the
// quotes passed to subsequent rules, ALLOW passes them unchanged. Any rule
// may set the kill-switch flag; the manager trips the switch after logging
// the reason, regardless of the decision's action.
type Manager struct {
	mu    sync.RWMutex
	rules []ConfiguredRule
	kill  *KillSwitch
	log   *zap.Logger
}

func NewManager(rules []ConfiguredRule, kill *KillSwitch, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{rules: rules, kill: kill, log: log}
}

func (m *Manager) KillSwitch() *KillSwitch { return m.kill }

// Evaluate 依次执行规则链
func (m *Manager) Evaluate(quotes order.QuoteSet, ctx Context) Decision {
	if m.kill.Active() {
		reason, _ := m.kill.Reason()
		d := Blocked(fmt.Sprintf("kill switch active: %s", reason))
		metrics.RiskDecisions.WithLabelValues(ctx.MarketID, string(d.Action)).Inc()
		return d
	}

	m.mu.RLock()
	chain := make([]ConfiguredRule, len(m.rules))
	copy(chain, m.rules)
	m.mu.RUnlock()

	current := quotes
	modified := false
	var reasons []string

	for _, cr := range chain {
		if !cr.Enabled {
			continue
		}
		d := cr.Rule.Evaluate(current, ctx)

		if d.TripKillSwitch {
			m.log.Error("risk rule tripped kill switch",
				zap.String("market", ctx.MarketID),
				zap.String("rule", cr.Rule.Name()),
				zap.String("reason", d.Reason))
			m.kill.Trip(fmt.Sprintf("%s: %s", cr.Rule.Name(), d.Reason), ctx.Snapshot.Timestamp)
		}

		switch d.Action {
		case Block:
			m.log.Warn("quotes blocked",
				zap.String("market", ctx.MarketID),
				zap.String("rule", cr.Rule.Name()),
				zap.String("reason", d.Reason))
			metrics.RiskDecisions.WithLabelValues(ctx.MarketID, string(Block)).Inc()
			return d
		case Modify:
			if d.Quotes != nil {
				current = *d.Quotes
				modified = true
				reasons = append(reasons, fmt.Sprintf("%s: %s", cr.Rule.Name(), d.Reason))
			}
		}
	}

	if modified {
		metrics.RiskDecisions.WithLabelValues(ctx.MarketID, string(Modify)).Inc()
		return Modified(joinReasons(reasons), current)
	}
	metrics.RiskDecisions.WithLabelValues(ctx.MarketID, string(Allow)).Inc()
	return Allowed()
}

// SetEnabled enables or disables a named rule. Rules marked critical can
// only be disabled with the explicit override flag.
func (m *Manager) SetEnabled(name string, enabled, override bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].Rule.Name() != name {
			continue
		}
		if !enabled && m.rules[i].Critical && !override {
			return fmt.Errorf("%w: %s", ErrCriticalRule, name)
		}
		m.rules[i].Enabled = enabled
		return nil
	}
	return fmt.Errorf("unknown risk rule %q", name)
}

// UpdateRule rebuilds a named rule with new parameters. The rule keeps
// its position in the chain and its enabled/critical flags.
func (m *Manager) UpdateRule(spec RuleSpec) error {
	build, ok := ruleBuilders[spec.Name]
	if !ok {
		return fmt.Errorf("unknown risk rule %q", spec.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].Rule.Name() != spec.Name {
			continue
		}
		m.rules[i].Rule = build(spec)
		return nil
	}
	return fmt.Errorf("rule %q not in the active chain", spec.Name)
}

// ReplaceRules swaps the whole chain (reconfiguration apply step).
func (m *Manager) ReplaceRules(rules []ConfiguredRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

// Rules 返回链的只读拷贝
func (m *Manager) Rules() []ConfiguredRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ConfiguredRule, len(m.rules))
	copy(out, m.rules)
	return out
}

// TripKillSwitch 人工触发
func (m *Manager) TripKillSwitch(reason string) {
	m.kill.Trip(reason, time.Now().UTC())
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
