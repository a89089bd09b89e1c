package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamConfig configures the streaming price client.
type StreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// QuoteTTL is how long streamed quotes stay fresh in the cache.
	QuoteTTL time.Duration
}

// DefaultStreamConfig returns default streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		QuoteTTL:          10 * time.Second,
	}
}

// Stream keeps a WebSocket subscription to a price feed and writes incoming
// quotes into a Cache, so the monitor's reads stay cache-local between ticks.
type Stream struct {
	endpoint string
	config   StreamConfig
	cache    Cache
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// pairs stores active subscriptions for resubscription after reconnect
	pairs   map[string]streamPair
	pairsMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	nowFunc func() time.Time
}

type streamPair struct {
	token   string
	vsToken string
}

// streamMessage is one frame on the price feed.
type streamMessage struct {
	Type    string  `json:"type"`
	Token   string  `json:"token"`
	VsToken string  `json:"vsToken"`
	Price   float64 `json:"price"`
}

// NewStream connects to the price feed and starts the reader and ping loops.
func NewStream(ctx context.Context, endpoint string, cache Cache, config *StreamConfig, logger *zap.Logger) (*Stream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stream{
		endpoint: endpoint,
		config:   cfg,
		cache:    cache,
		logger:   logger,
		pairs:    make(map[string]streamPair),
		done:     make(chan struct{}),
		nowFunc:  time.Now,
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the WebSocket connection.
func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.config.WriteTimeout}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial price feed %s: %w", s.endpoint, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// Subscribe starts streaming prices for a token pair.
func (s *Stream) Subscribe(token, vsToken string) error {
	key := quoteKey(token, vsToken)

	s.pairsMu.Lock()
	s.pairs[key] = streamPair{token: token, vsToken: vsToken}
	s.pairsMu.Unlock()

	return s.writeJSON(map[string]string{
		"op":      "subscribe",
		"token":   token,
		"vsToken": vsToken,
	})
}

// Close stops the loops and closes the connection.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Stream) writeJSON(v interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("price feed not connected")
	}
	s.conn.SetWriteDeadline(s.nowFunc().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(v)
}

// readLoop consumes feed messages and refreshes the cache, reconnecting with
// backoff on read failure.
func (s *Stream) readLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			s.reconnect()
			continue
		}

		conn.SetReadDeadline(s.nowFunc().Add(s.config.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn("price feed read failed", zap.Error(err))
			s.reconnect()
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("malformed feed message", zap.Error(err))
			continue
		}
		if msg.Type != "price" || msg.Token == "" {
			continue
		}

		quote := &Quote{
			Token:     msg.Token,
			VsToken:   msg.VsToken,
			Price:     msg.Price,
			FetchedAt: s.nowFunc(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		if err := s.cache.Set(ctx, quoteKey(msg.Token, msg.VsToken), quote, s.config.QuoteTTL); err != nil {
			s.logger.Warn("cache streamed quote failed",
				zap.String("token", msg.Token), zap.Error(err))
		}
		cancel()
	}
}

// reconnect re-establishes the connection with exponential backoff and
// replays active subscriptions.
func (s *Stream) reconnect() {
	delay := s.config.ReconnectDelay

	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		err := s.connect(ctx)
		cancel()
		if err == nil {
			s.resubscribe()
			return
		}

		s.logger.Warn("price feed reconnect failed", zap.Error(err))
		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

func (s *Stream) resubscribe() {
	s.pairsMu.RLock()
	pairs := make([]streamPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		pairs = append(pairs, p)
	}
	s.pairsMu.RUnlock()

	for _, p := range pairs {
		if err := s.writeJSON(map[string]string{
			"op":      "subscribe",
			"token":   p.token,
			"vsToken": p.vsToken,
		}); err != nil {
			s.logger.Warn("resubscribe failed", zap.String("token", p.token), zap.Error(err))
		}
	}
}

// pingLoop keeps the connection alive.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				continue
			}
			deadline := s.nowFunc().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}
