// Command runner starts the market making core: market data in, quotes
// through risk, orders out, with control and event endpoints exposed.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bmerold/predictions-market-maker/config"
	"github.com/bmerold/predictions-market-maker/engine"
	"github.com/bmerold/predictions-market-maker/events"
	"github.com/bmerold/predictions-market-maker/execution"
	"github.com/bmerold/predictions-market-maker/feed"
	"github.com/bmerold/predictions-market-maker/logs"
	"github.com/bmerold/predictions-market-maker/market"
	"github.com/bmerold/predictions-market-maker/metrics"
	"github.com/bmerold/predictions-market-maker/reconfig"
	"github.com/bmerold/predictions-market-maker/risk"
	"github.com/bmerold/predictions-market-maker/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logs.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("runner exited", zap.Error(err))
	}
}

func run(cfg *config.Config, configPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartMetricsServer(cfg.Server.MetricsAddr)

	bus := events.NewBus(logger.Named("events"))
	st := store.New(decimal.NewFromFloat(cfg.FeeRate))

	rules, err := risk.BuildRules(cfg.Risk)
	if err != nil {
		return fmt.Errorf("build risk rules: %w", err)
	}
	riskM := risk.NewManager(rules, risk.NewKillSwitch(), logger.Named("risk"))

	adapter, err := buildAdapter(cfg, logger)
	if err != nil {
		return err
	}

	// the limiter outlives the signal context so a drain shutdown can
	// still flush queued cancels
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	limiter := execution.NewLimiter(cfg.Execution.RateLimit, cfg.Execution.Burst)
	limiter.Start(limiterCtx)

	differ := execution.NewDiffer(decimal.NewFromFloat(cfg.Execution.PriceThreshold), cfg.Execution.SizeThreshold)
	exec := execution.NewEngine(adapter, differ, limiter, st, bus, logger.Named("exec"))

	coord := reconfig.NewCoordinator(time.Duration(cfg.ReloadBudgetMs)*time.Millisecond, bus, logger.Named("reconfig"))
	core, err := engine.NewCore(cfg, st, riskM, exec, limiter, coord, bus, logger.Named("engine"))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	reconciler := execution.NewReconciler(exec, adapter, bus, logger.Named("reconcile"),
		time.Duration(cfg.Execution.ReconcileInterval)*time.Second, core.MarketIDs)
	go reconciler.Run(ctx)
	go core.RunSnapshots(ctx, 10*time.Second)
	go core.RunCycles(ctx, time.Duration(cfg.CycleIntervalMs)*time.Millisecond)

	// hot reload on file change
	if err := config.Watch(ctx, configPath, logger.Named("config"), func(next *config.Config) {
		if err := core.ReloadConfig(ctx, next); err != nil {
			logger.Warn("config reload failed", zap.Error(err))
		}
	}); err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
	}

	// control + event stream endpoints
	mux := http.NewServeMux()
	mux.Handle("/", core.Handler())
	mux.Handle("/events", events.NewStreamHandler(bus, logger.Named("stream")))
	ctrl := &http.Server{Addr: cfg.Server.ControlAddr, Handler: mux}
	go func() {
		if err := ctrl.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control server failed", zap.Error(err))
		}
	}()

	if cfg.Feed.URL != "" {
		client := feed.NewClient(cfg.Feed.URL, logger.Named("feed"), func(snap market.Snapshot) {
			core.OnSnapshot(ctx, snap)
		})
		go client.Run(ctx)
	} else {
		logger.Warn("no feed url configured, waiting for snapshots via control plane only")
	}

	bus.Publish(events.KindSessionStart, "", time.Now(), map[string]any{
		"mode": cfg.Execution.Mode, "markets": len(cfg.Markets),
	})
	daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdog(ctx)

	logger.Info("market maker started",
		zap.String("mode", cfg.Execution.Mode),
		zap.Int("markets", len(cfg.Markets)),
		zap.String("control", cfg.Server.ControlAddr))

	<-ctx.Done()
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := core.Shutdown(shutdownCtx, engine.ShutdownDrain); err != nil {
		logger.Warn("drain shutdown failed, cancelling everything", zap.Error(err))
		_ = core.Shutdown(shutdownCtx, engine.ShutdownImmediate)
	}
	bus.Publish(events.KindSessionEnd, "", time.Now(), nil)
	return ctrl.Shutdown(shutdownCtx)
}

// buildAdapter 按运行模式选择执行适配器
func buildAdapter(cfg *config.Config, logger *zap.Logger) (execution.Adapter, error) {
	switch cfg.Execution.Mode {
	case "paper":
		return execution.NewPaperAdapter(), nil
	case "live":
		inner, err := execution.NewLiveAdapter(logger.Named("venue"))
		if err != nil {
			return nil, err
		}
		return execution.NewRetryingAdapter(inner, cfg.Execution.CancelRetries, 100*time.Millisecond, logger.Named("venue")), nil
	default:
		return nil, fmt.Errorf("unknown execution mode %q", cfg.Execution.Mode)
	}
}

// watchdog feeds the systemd watchdog when one is configured.
func watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
