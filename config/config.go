// Package config loads and validates the YAML configuration document.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bmerold/predictions-market-maker/logs"
	"github.com/bmerold/predictions-market-maker/pricing"
	"github.com/bmerold/predictions-market-maker/risk"
)

// ComponentSpec 定价组件的类型标签与参数
type ComponentSpec struct {
	Type   string         `yaml:"type"`
	Params pricing.Params `yaml:"params"`
}

// StrategyConfig 定价组件装配
type StrategyConfig struct {
	DefaultVolatility float64       `yaml:"default_volatility"`
	Volatility        ComponentSpec `yaml:"volatility"`
	Reservation       ComponentSpec `yaml:"reservation"`
	Skew              ComponentSpec `yaml:"skew"`
	Spread            ComponentSpec `yaml:"spread"`
	Sizer             ComponentSpec `yaml:"sizer"`
}

// MarketConfig 单个市场的做市参数
type MarketConfig struct {
	ID           string    `yaml:"id"`
	BaseSize     int64     `yaml:"base_size"`
	MaxInventory int64     `yaml:"max_inventory"`
	Settlement   time.Time `yaml:"settlement"`
}

// ExecutionConfig 执行层参数
type ExecutionConfig struct {
	Mode              string  `yaml:"mode"` // paper 或 live
	RateLimit         float64 `yaml:"rate_limit"`
	Burst             int     `yaml:"burst"`
	PriceThreshold    float64 `yaml:"price_threshold"`
	SizeThreshold     int64   `yaml:"size_threshold"`
	CancelRetries     int     `yaml:"cancel_retries"`
	ReconcileInterval int     `yaml:"reconcile_interval_seconds"`
}

// ServerConfig 对外监听地址
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	ControlAddr string `yaml:"control_addr"`
}

// FeedConfig 上游行情来源
type FeedConfig struct {
	URL string `yaml:"url"`
}

// Config 完整配置文档
type Config struct {
	Logging   logs.Config     `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Feed      FeedConfig      `yaml:"feed"`
	Execution ExecutionConfig `yaml:"execution"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Risk      []risk.RuleSpec `yaml:"risk_rules"`
	Markets   []MarketConfig  `yaml:"markets"`

	// CycleIntervalMs 决策周期间隔
	CycleIntervalMs int `yaml:"cycle_interval_ms"`
	// ReloadBudgetMs 热更新时间预算，超时回滚
	ReloadBudgetMs int `yaml:"reload_budget_ms"`
	// FeeRate 按成交额收取的费率
	FeeRate float64 `yaml:"fee_rate"`
	// ComplementTolerance YES/NO 互补校验容差
	ComplementTolerance float64 `yaml:"complement_tolerance"`
}

// Load 读取并校验配置文件，环境变量可以覆盖部分字段
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Logging: logs.Config{Level: "info", Format: "json", Outputs: []string{"stdout"}},
		Server: ServerConfig{
			MetricsAddr: ":9090",
			ControlAddr: ":8080",
		},
		Execution: ExecutionConfig{
			Mode:              "paper",
			RateLimit:         10,
			Burst:             10,
			PriceThreshold:    0.01,
			CancelRetries:     3,
			ReconcileInterval: 30,
		},
		Strategy: StrategyConfig{
			DefaultVolatility: 0.05,
			Volatility:        ComponentSpec{Type: "ewma", Params: pricing.Params{"alpha": 0.94, "min_samples": 10}},
			Reservation:       ComponentSpec{Type: "avellaneda_stoikov", Params: pricing.Params{"gamma": 0.5}},
			Skew:              ComponentSpec{Type: "linear", Params: pricing.Params{"intensity": 0.02}},
			Spread:            ComponentSpec{Type: "fixed", Params: pricing.Params{"base_spread": 0.04, "min_half_spread": 0.01}},
			Sizer:             ComponentSpec{Type: "asymmetric", Params: pricing.Params{}},
		},
		CycleIntervalMs:     1000,
		ReloadBudgetMs:      1000,
		ComplementTolerance: 0.01,
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MM_MODE"); v != "" {
		c.Execution.Mode = v
	}
	if v := os.Getenv("MM_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("MM_CONTROL_ADDR"); v != "" {
		c.Server.ControlAddr = v
	}
	if v := os.Getenv("MM_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
}

// Validate 配置合法性检查
func (c *Config) Validate() error {
	if c.Execution.Mode != "paper" && c.Execution.Mode != "live" {
		return fmt.Errorf("execution.mode must be paper or live, got %q", c.Execution.Mode)
	}
	if c.Execution.RateLimit <= 0 {
		return fmt.Errorf("execution.rate_limit must be positive")
	}
	if c.CycleIntervalMs <= 0 {
		return fmt.Errorf("cycle_interval_ms must be positive")
	}
	if c.ReloadBudgetMs <= 0 {
		return fmt.Errorf("reload_budget_ms must be positive")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if m.ID == "" {
			return fmt.Errorf("markets[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("markets[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if m.BaseSize <= 0 {
			return fmt.Errorf("market %s: base_size must be positive", m.ID)
		}
		if m.MaxInventory <= 0 {
			return fmt.Errorf("market %s: max_inventory must be positive", m.ID)
		}
	}
	if c.Strategy.DefaultVolatility <= 0 {
		return fmt.Errorf("strategy.default_volatility must be positive")
	}
	if c.FeeRate < 0 {
		return fmt.Errorf("fee_rate cannot be negative")
	}
	return nil
}
