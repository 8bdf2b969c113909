// Package stream maintains the WebSocket connection to the exchange trade
// feed and fans incoming price ticks out to consumers. When the connection
// cannot be re-established within the configured attempt budget the manager
// enters degraded mode so callers can fall back to REST polling.
package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Config holds price stream manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	ReconnectMaxAttempts  int
	TickBufferSize        int
	Logger                *zap.Logger
}

// Manager manages a single WebSocket connection to the trade feed.
type Manager struct {
	url             string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          Config
	tickChan        chan types.PriceTick
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	subscribed      map[string]types.Asset // stream symbol -> asset
	requestID       atomic.Int64
	connected       atomic.Bool
	degraded        atomic.Bool
	connectionStart atomic.Int64
}

// tradeEvent is the wire format of a trade message. EventTime and TradeID
// are not consumed but must be declared: without an exact `E` (or `t`) tag
// those keys would match the case-insensitive `e`/`T` fields and fail to
// unmarshal.
type tradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// New creates a new price stream manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
		MaxAttempts:       cfg.ReconnectMaxAttempts,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		tickChan:     make(chan types.PriceTick, cfg.TickBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]types.Asset),
	}
}

// Start connects to the trade feed and starts the background loops.
func (m *Manager) Start() error {
	m.logger.Info("price-stream-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.connected.Store(true)
	m.connectionStart.Store(time.Now().Unix())
	ActiveConnections.Set(1)

	m.logger.Info("price-stream-connected")

	return nil
}

// Subscribe subscribes to the trade channels for the given assets.
func (m *Manager) Subscribe(ctx context.Context, assets []types.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	m.mu.Lock()

	newStreams := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbol := asset.StreamSymbol()
		if _, ok := m.subscribed[symbol]; !ok {
			m.subscribed[symbol] = asset
			newStreams = append(newStreams, strings.ToLower(symbol)+"@trade")
		}
	}

	if len(newStreams) == 0 {
		m.mu.Unlock()
		m.logger.Debug("all-assets-already-subscribed")
		return nil
	}

	conn := m.conn
	m.mu.Unlock()

	subscribeMsg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": newStreams,
		"id":     m.requestID.Add(1),
	}

	err := conn.WriteJSON(subscribeMsg)
	if err != nil {
		m.mu.Lock()
		for _, asset := range assets {
			delete(m.subscribed, asset.StreamSymbol())
		}
		m.mu.Unlock()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	m.logger.Info("subscribed-to-trade-streams",
		zap.Strings("streams", newStreams))

	return nil
}

// readLoop reads trade messages from the WebSocket.
func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error", zap.Error(err))

			startTime := m.connectionStart.Load()
			if startTime > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
			}

			m.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		tick, ok := m.parseTick(message)
		if !ok {
			continue
		}

		TicksReceivedTotal.WithLabelValues(tick.Asset.StreamSymbol()).Inc()

		select {
		case m.tickChan <- tick:
		default:
			m.logger.Warn("tick-channel-full",
				zap.String("symbol", tick.Asset.StreamSymbol()))
			TicksDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

// parseTick decodes a trade event into a PriceTick. Control messages and
// events for unsubscribed symbols are skipped.
func (m *Manager) parseTick(message []byte) (types.PriceTick, bool) {
	var event tradeEvent
	err := json.Unmarshal(message, &event)
	if err != nil || event.EventType != "trade" {
		m.logger.Debug("stream-control-message", zap.Int("bytes", len(message)))
		return types.PriceTick{}, false
	}

	m.mu.RLock()
	asset, ok := m.subscribed[event.Symbol]
	m.mu.RUnlock()

	if !ok {
		return types.PriceTick{}, false
	}

	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil || price <= 0 {
		m.logger.Debug("invalid-trade-price",
			zap.String("symbol", event.Symbol),
			zap.String("price", event.Price))
		return types.PriceTick{}, false
	}

	return types.PriceTick{
		Asset: asset,
		Price: price,
		Time:  time.UnixMilli(event.TradeTime),
	}, true
}

// pingLoop sends periodic PING messages.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop handles reconnection when the connection drops. Once the
// attempt budget is exhausted the manager flips into degraded mode and keeps
// retrying from the initial backoff; a later success clears the flag.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect")

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			if err == ErrMaxAttemptsExceeded {
				if m.degraded.CompareAndSwap(false, true) {
					DegradedMode.Set(1)
					m.logger.Error("entering-degraded-mode")
				}
				m.reconnectMgr.Reset()
				continue
			}
			m.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		if m.degraded.CompareAndSwap(true, false) {
			DegradedMode.Set(0)
			m.logger.Info("exiting-degraded-mode")
		}

		err = m.resubscribeAll()
		if err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.logger.Info("reconnection-complete-restarting-read-loop")

		m.wg.Add(1)
		go m.readLoop()
	}
}

// resubscribeAll resubscribes to all previously subscribed streams.
func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	streams := make([]string, 0, len(m.subscribed))
	for symbol := range m.subscribed {
		streams = append(streams, strings.ToLower(symbol)+"@trade")
	}
	conn := m.conn
	m.mu.RUnlock()

	if len(streams) == 0 {
		return nil
	}

	subscribeMsg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     m.requestID.Add(1),
	}

	err := conn.WriteJSON(subscribeMsg)
	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-to-all-streams", zap.Int("count", len(streams)))

	return nil
}

// TickChan returns the channel for receiving price ticks.
func (m *Manager) TickChan() <-chan types.PriceTick {
	return m.tickChan
}

// Connected reports whether the WebSocket is currently connected.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Degraded reports whether the stream has exhausted its reconnect budget.
func (m *Manager) Degraded() bool {
	return m.degraded.Load()
}

// Close gracefully closes the stream manager.
func (m *Manager) Close() error {
	m.logger.Info("closing-price-stream")

	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	close(m.tickChan)

	ActiveConnections.Set(0)

	m.logger.Info("price-stream-closed")

	return nil
}
