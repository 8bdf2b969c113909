// Package app wires the trading system together: price feed, market
// discovery, session manager, redemption engine, and the HTTP surface.
package app

import (
	"context"
	"sync"

	"github.com/mselser95/polymarket-updown/internal/discovery"
	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/pricefeed"
	"github.com/mselser95/polymarket-updown/internal/redemption"
	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/healthprobe"
	"github.com/mselser95/polymarket-updown/pkg/httpserver"
	"github.com/mselser95/polymarket-updown/pkg/stream"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg              *config.Config
	logger           *zap.Logger
	healthChecker    *healthprobe.HealthChecker
	httpServer       *httpserver.Server
	store            ledger.Store
	streamManager    *stream.Manager
	priceFeed        *pricefeed.Feed
	discoveryService *discovery.Service
	sessionManager   *session.Manager
	redemptionEngine *redemption.Engine
	walletTracker    *wallet.Tracker
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}
