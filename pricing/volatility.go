package pricing

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// EWMAVolatility 指数加权方差估计
//
//	σ²_t = α·(Δmid)² + (1−α)·σ²_{t−1}
type EWMAVolatility struct {
	mu         sync.RWMutex
	alpha      float64
	minSamples int
	variance   float64
	lastMid    float64
	hasLast    bool
	samples    int
}

// NewEWMAVolatility creates an estimator; alpha defaults to 0.94 and the
// readiness threshold to 2 observations.
func NewEWMAVolatility(p Params) *EWMAVolatility {
	alpha := p.Float("alpha", 0.94)
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.94
	}
	minSamples := p.Int("min_samples", 2)
	if minSamples < 1 {
		minSamples = 1
	}
	return &EWMAVolatility{alpha: alpha, minSamples: minSamples}
}

func (e *EWMAVolatility) Update(mid decimal.Decimal, _ time.Time) {
	m, _ := mid.Float64()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples++
	if e.hasLast {
		d := m - e.lastMid
		e.variance = e.alpha*d*d + (1-e.alpha)*e.variance
	}
	e.lastMid = m
	e.hasLast = true
}

func (e *EWMAVolatility) Value() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return decimal.NewFromFloat(math.Sqrt(e.variance))
}

func (e *EWMAVolatility) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.samples >= e.minSamples
}

type ewmaState struct {
	Variance float64 `json:"variance"`
	LastMid  float64 `json:"last_mid"`
	HasLast  bool    `json:"has_last"`
	Samples  int     `json:"samples"`
}

func (e *EWMAVolatility) ExportState() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(ewmaState{Variance: e.variance, LastMid: e.lastMid, HasLast: e.hasLast, Samples: e.samples})
}

func (e *EWMAVolatility) ImportState(raw []byte) error {
	var st ewmaState
	if err := json.Unmarshal(raw, &st); err != nil {
		// incompatible snapshot: keep defaults
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variance = st.Variance
	e.lastMid = st.LastMid
	e.hasLast = st.HasLast
	e.samples = st.Samples
	return nil
}

// FixedVolatility 固定波动率，用于测试或外部估计
type FixedVolatility struct {
	value decimal.Decimal
}

func NewFixedVolatility(p Params) *FixedVolatility {
	return &FixedVolatility{value: p.Decimal("value", "0.05")}
}

func (f *FixedVolatility) Update(decimal.Decimal, time.Time) {}

func (f *FixedVolatility) Value() decimal.Decimal { return f.value }

func (f *FixedVolatility) Ready() bool { return true }
