package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrNoHealthyEndpoint is returned when every endpoint in the pool fails.
var ErrNoHealthyEndpoint = errors.New("no healthy RPC endpoint available")

// dialFunc dials an RPC endpoint. Overridable in tests.
type dialFunc func(ctx context.Context, url string) (*ethclient.Client, error)

// EndpointPool selects a working Polygon RPC endpoint from an ordered
// preference list. Selection happens fresh on every Acquire call so a
// previously failing endpoint gets another chance on the next bet.
type EndpointPool struct {
	endpoints []string
	dial      dialFunc
	logger    *zap.Logger
}

// NewEndpointPool creates a pool over the given ordered endpoint URLs.
func NewEndpointPool(endpoints []string, logger *zap.Logger) (*EndpointPool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("endpoints cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	pool := &EndpointPool{
		endpoints: endpoints,
		dial:      ethclient.DialContext,
		logger:    logger,
	}

	return pool, nil
}

// Acquire dials endpoints in preference order and returns the first one that
// answers a chain ID probe. The caller owns the returned client and must
// Close it. Returns ErrNoHealthyEndpoint when all endpoints fail.
func (p *EndpointPool) Acquire(ctx context.Context) (client *ethclient.Client, endpoint string, err error) {
	var lastErr error

	for _, url := range p.endpoints {
		c, dialErr := p.dial(ctx, url)
		if dialErr != nil {
			EndpointDialsTotal.WithLabelValues(url, "dial_error").Inc()
			p.logger.Warn("rpc-endpoint-dial-failed",
				zap.String("endpoint", url),
				zap.Error(dialErr))
			lastErr = dialErr
			continue
		}

		_, probeErr := c.ChainID(ctx)
		if probeErr != nil {
			EndpointDialsTotal.WithLabelValues(url, "probe_error").Inc()
			p.logger.Warn("rpc-endpoint-probe-failed",
				zap.String("endpoint", url),
				zap.Error(probeErr))
			c.Close()
			lastErr = probeErr
			continue
		}

		EndpointDialsTotal.WithLabelValues(url, "ok").Inc()
		return c, url, nil
	}

	if lastErr != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrNoHealthyEndpoint, lastErr)
	}

	return nil, "", ErrNoHealthyEndpoint
}

// Endpoints returns the configured endpoint URLs in preference order.
func (p *EndpointPool) Endpoints() []string {
	out := make([]string, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}
