// Package pricefeed tracks live spot prices for the configured assets. It
// consumes the WebSocket trade stream, keeps a rolling price history per
// asset, fans ticks out to subscribers, and polls the REST ticker endpoint
// whenever the stream goes stale or degraded.
package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/stream"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

const (
	historyWindow     = 30 * time.Minute
	staleCheckPeriod  = 5 * time.Second
	subscriberBufSize = 256
)

// Config holds price feed configuration.
type Config struct {
	Assets         []types.Asset
	RESTURL        string
	RESTTimeout    time.Duration
	StaleThreshold time.Duration
	Logger         *zap.Logger
}

// assetState is the per-asset tracking state.
type assetState struct {
	latest     types.PricePoint
	lastUpdate time.Time
	history    []types.PricePoint
}

// Feed consumes the trade stream and tracks per-asset price state.
type Feed struct {
	stream      *stream.Manager
	rest        *RESTClient
	logger      *zap.Logger
	assets      []types.Asset
	staleAfter  time.Duration
	mu          sync.RWMutex
	state       map[types.Asset]*assetState
	subscribers map[int]chan types.PriceTick
	nextSubID   int
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

// New creates a price feed on top of the given stream manager.
func New(mgr *stream.Manager, cfg Config) *Feed {
	state := make(map[types.Asset]*assetState, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		state[asset] = &assetState{}
	}

	return &Feed{
		stream:      mgr,
		rest:        NewRESTClient(cfg.RESTURL, cfg.RESTTimeout),
		logger:      cfg.Logger,
		assets:      cfg.Assets,
		staleAfter:  cfg.StaleThreshold,
		state:       state,
		subscribers: make(map[int]chan types.PriceTick),
	}
}

// Start subscribes to the stream and starts the consume and stale-check loops.
func (f *Feed) Start(ctx context.Context) error {
	err := f.stream.Subscribe(ctx, f.assets)
	if err != nil {
		return fmt.Errorf("subscribe assets: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(2)
	go f.consumeLoop(loopCtx)
	go f.staleCheckLoop(loopCtx)

	f.logger.Info("price-feed-started",
		zap.Int("assets", len(f.assets)),
		zap.Duration("stale-threshold", f.staleAfter))

	return nil
}

// Stop stops the feed loops and closes subscriber channels.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()

	f.mu.Lock()
	for id, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, id)
	}
	f.mu.Unlock()

	SubscriberCount.Set(0)

	f.logger.Info("price-feed-stopped")
}

// Subscribe returns a channel of price ticks and a cancel function. Slow
// subscribers lose ticks rather than blocking the feed.
func (f *Feed) Subscribe() (<-chan types.PriceTick, func()) {
	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	ch := make(chan types.PriceTick, subscriberBufSize)
	f.subscribers[id] = ch
	count := len(f.subscribers)
	f.mu.Unlock()

	SubscriberCount.Set(float64(count))

	cancel := func() {
		f.mu.Lock()
		if existing, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			close(existing)
		}
		count := len(f.subscribers)
		f.mu.Unlock()
		SubscriberCount.Set(float64(count))
	}

	return ch, cancel
}

// Latest returns the most recent price point for the asset.
func (f *Feed) Latest(asset types.Asset) (types.PricePoint, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	st, ok := f.state[asset]
	if !ok || st.lastUpdate.IsZero() {
		return types.PricePoint{}, false
	}

	return st.latest, true
}

// PctChange returns the percent price change for the asset over the window
// ending now. It returns false when not enough history is retained.
func (f *Feed) PctChange(asset types.Asset, window time.Duration) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	st, ok := f.state[asset]
	if !ok || st.lastUpdate.IsZero() || len(st.history) == 0 {
		return 0, false
	}

	cutoff := st.latest.Time.Add(-window)

	// Oldest point at or after the cutoff.
	var base *types.PricePoint
	for i := range st.history {
		if !st.history[i].Time.Before(cutoff) {
			base = &st.history[i]
			break
		}
	}

	if base == nil || base.Price == 0 {
		return 0, false
	}

	return (st.latest.Price - base.Price) / base.Price * 100, true
}

// Stale reports whether the asset's price is older than the stale threshold.
func (f *Feed) Stale(asset types.Asset, now time.Time) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	st, ok := f.state[asset]
	if !ok || st.lastUpdate.IsZero() {
		return true
	}

	return now.Sub(st.lastUpdate) > f.staleAfter
}

// Degraded reports whether the underlying stream has exhausted its
// reconnect budget. REST polling still refreshes prices in that state, but
// trading logic treats the feed as having no signal.
func (f *Feed) Degraded() bool {
	return f.stream.Degraded()
}

// Healthy reports whether every tracked asset has fresh data.
func (f *Feed) Healthy() bool {
	now := time.Now()
	for _, asset := range f.assets {
		if f.Stale(asset, now) {
			return false
		}
	}
	return true
}

func (f *Feed) consumeLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-f.stream.TickChan():
			if !ok {
				return
			}
			f.record(tick, "stream")
		}
	}
}

// staleCheckLoop polls the REST endpoint for any asset whose stream data
// has gone stale.
func (f *Feed) staleCheckLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(staleCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, asset := range f.assets {
				if !f.Stale(asset, now) {
					continue
				}
				f.pollREST(ctx, asset)
			}
		}
	}
}

func (f *Feed) pollREST(ctx context.Context, asset types.Asset) {
	price, err := f.rest.FetchPrice(ctx, asset)
	if err != nil {
		RESTFallbackTotal.WithLabelValues(string(asset), "error").Inc()
		f.logger.Warn("rest-price-poll-failed",
			zap.String("asset", string(asset)),
			zap.Error(err))
		return
	}

	RESTFallbackTotal.WithLabelValues(string(asset), "success").Inc()
	f.logger.Debug("rest-price-poll",
		zap.String("asset", string(asset)),
		zap.Float64("price", price))

	f.record(types.PriceTick{Asset: asset, Price: price, Time: time.Now()}, "rest")
}

// record updates per-asset state and fans the tick out to subscribers.
func (f *Feed) record(tick types.PriceTick, source string) {
	f.mu.Lock()

	st, ok := f.state[tick.Asset]
	if !ok {
		f.mu.Unlock()
		return
	}

	point := types.PricePoint{Price: tick.Price, Time: tick.Time}
	st.latest = point
	st.lastUpdate = time.Now()
	st.history = append(st.history, point)

	// Prune history older than the retention window.
	cutoff := tick.Time.Add(-historyWindow)
	pruned := 0
	for pruned < len(st.history) && st.history[pruned].Time.Before(cutoff) {
		pruned++
	}
	if pruned > 0 {
		st.history = append(st.history[:0], st.history[pruned:]...)
	}

	historyLen := len(st.history)

	subs := make([]chan types.PriceTick, 0, len(f.subscribers))
	for _, ch := range f.subscribers {
		subs = append(subs, ch)
	}

	f.mu.Unlock()

	CurrentPrice.WithLabelValues(string(tick.Asset)).Set(tick.Price)
	TicksProcessedTotal.WithLabelValues(string(tick.Asset), source).Inc()
	HistorySize.WithLabelValues(string(tick.Asset)).Set(float64(historyLen))

	for _, ch := range subs {
		select {
		case ch <- tick:
		default:
		}
	}
}
