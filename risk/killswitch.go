package risk

import (
	"sync"
	"time"

	"github.com/bmerold/predictions-market-maker/metrics"
)

// KillSwitch 全局急停。触发后所有后续周期直接 BLOCK，
// 只能由人工显式复位，永不自动清除。
type KillSwitch struct {
	mu        sync.RWMutex
	active    bool
	reason    string
	trippedAt time.Time
}

func NewKillSwitch() *KillSwitch { return &KillSwitch{} }

// Trip activates the switch. A second trip keeps the original reason.
func (k *KillSwitch) Trip(reason string, at time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active {
		return
	}
	k.active = true
	k.reason = reason
	k.trippedAt = at
	metrics.KillSwitchActive.Set(1)
}

// Reset 人工复位
func (k *KillSwitch) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = false
	k.reason = ""
	k.trippedAt = time.Time{}
	metrics.KillSwitchActive.Set(0)
}

func (k *KillSwitch) Active() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// Reason returns why and when the switch tripped.
func (k *KillSwitch) Reason() (string, time.Time) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.reason, k.trippedAt
}
