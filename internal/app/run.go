package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Bool("dry-run", a.cfg.DryRun),
		zap.String("strategy-id", a.cfg.StrategyID),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("stream-url", a.cfg.StreamURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server first so probes answer during startup
	a.wg.Add(1)
	go a.runHTTPServer()

	// Reconcile pending bets from a previous run before any trading starts
	summary, err := a.redemptionEngine.CheckAndRedeemAll(a.ctx)
	if err != nil {
		a.logger.Warn("startup-reconciliation-failed", zap.Error(err))
	} else if summary.Checked > 0 {
		a.logger.Info("startup-reconciliation-complete",
			zap.Int("checked", summary.Checked),
			zap.Int("resolved", summary.Resolved),
			zap.Int("redeemed", summary.Redeemed),
			zap.Int("failed", summary.Failed))
	}

	err = a.streamManager.Start()
	if err != nil {
		return fmt.Errorf("start price stream: %w", err)
	}

	err = a.priceFeed.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start price feed: %w", err)
	}

	a.wg.Add(1)
	go a.runDiscoveryService()

	a.wg.Add(1)
	go a.runSessionManager()

	a.wg.Add(1)
	go a.runRedemptionEngine()

	if a.walletTracker != nil {
		a.wg.Add(1)
		go a.runWalletTracker()
	}

	a.wg.Add(1)
	go a.monitorComponents()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscoveryService() {
	defer a.wg.Done()
	err := a.discoveryService.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-service-error", zap.Error(err))
	}
}

func (a *App) runSessionManager() {
	defer a.wg.Done()
	a.sessionManager.Run(a.ctx, a.discoveryService.NewMarketsChan())
}

func (a *App) runRedemptionEngine() {
	defer a.wg.Done()
	a.redemptionEngine.Run(a.ctx)
}

func (a *App) runWalletTracker() {
	defer a.wg.Done()
	err := a.walletTracker.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("wallet-tracker-error", zap.Error(err))
	}
}

// monitorComponents refreshes per-component health status.
func (a *App) monitorComponents() {
	defer a.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			detail := ""
			if a.priceFeed.Degraded() {
				detail = "degraded, REST fallback active"
			}
			a.healthChecker.SetComponent("price-feed", a.priceFeed.Healthy(), detail)
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
