/**
 * @description
 * WebSocket client for the Binance combined miniTicker stream.
 * Manages the persistent connection, subscriptions, and keep-alive logic, and
 * republishes live spot prices onto the Redis bus for the API tier to stream
 * to browsers.
 *
 * Key features:
 * - Automatic reconnection with exponential backoff.
 * - Thread-safe writing and resubscription after reconnect.
 * - Loss here degrades freshness only; the 30s REST poll remains the floor.
 *
 * @dependencies
 * - github.com/gorilla/websocket
 * - github.com/redis/go-redis/v9
 * - internal/realtime: price update channel name
 */

package pricestream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/pricepulse-project/backend/internal/config"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/realtime"
)

const (
	WriteWait         = 10 * time.Second
	PongWait          = 60 * time.Second
	PingPeriod        = (PongWait * 9) / 10
	MaxConnectRetries = 5
)

// streamMessage is the combined-stream envelope
type streamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// miniTicker is the slice of the miniTicker payload we care about
type miniTicker struct {
	Symbol    string `json:"s"` // e.g. "BTCUSDT"
	LastPrice string `json:"c"`
}

// PriceUpdate is the payload republished to the bus
type PriceUpdate struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Client maintains the upstream price stream
type Client struct {
	baseURL string
	redis   *redis.Client

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	// symbols holds the token symbols (BTC, ETH, ...) to track
	symbols []string
	subMu   sync.Mutex
}

func NewClient(cfg *config.Config, rdb *redis.Client, symbols []string) *Client {
	return &Client{
		baseURL: cfg.Market.BinanceWSURL,
		redis:   rdb,
		symbols: symbols,
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop
func (c *Client) Connect(ctx context.Context) error {
	return c.connectWithRetry(ctx)
}

func (c *Client) connectWithRetry(ctx context.Context) error {
	var err error
	backoff := 1 * time.Second

	for i := 0; i < MaxConnectRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("client closed")
		default:
		}

		endpoint := c.streamURL()
		logger.Info("Connecting to price stream: %s (Attempt %d)", endpoint, i+1)
		var conn *websocket.Conn
		conn, _, err = websocket.DefaultDialer.Dial(endpoint, nil)
		if err == nil {
			logger.Info("✅ Connected to price stream")
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()

			go c.readLoop(ctx)
			go c.pingLoop(ctx)
			return nil
		}

		logger.Error("Failed to connect to price stream: %v. Retrying in %v...", err, backoff)
		time.Sleep(backoff)
		backoff *= 2
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", MaxConnectRetries, err)
}

// streamURL builds the combined-stream URL from the tracked symbols
func (c *Client) streamURL() string {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	streams := make([]string, 0, len(c.symbols))
	for _, s := range c.symbols {
		streams = append(streams, strings.ToLower(s)+"usdt@miniTicker")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	return u.String()
}

// Close gracefully closes the connection
func (c *Client) Close() error {
	close(c.done)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
			// Connection dropped; reconnect with a fresh backoff cycle
			if err := c.connectWithRetry(ctx); err != nil {
				logger.Error("Price stream reconnect failed: %v", err)
			}
		}
	}()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			logger.Error("Price stream read error: %v", err)
			return
		}
		c.handleMessage(ctx, payload)
	}
}

func (c *Client) handleMessage(ctx context.Context, payload []byte) {
	var msg streamMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}

	var tick miniTicker
	if err := json.Unmarshal(msg.Data, &tick); err != nil || tick.Symbol == "" {
		return
	}

	price, err := strconv.ParseFloat(tick.LastPrice, 64)
	if err != nil {
		return
	}

	update := PriceUpdate{
		Symbol: strings.TrimSuffix(tick.Symbol, "USDT"),
		Price:  price,
	}
	out, err := json.Marshal(update)
	if err != nil {
		return
	}
	if err := c.redis.Publish(ctx, realtime.PriceUpdateChannel, out).Err(); err != nil {
		logger.Error("Failed to publish price update: %v", err)
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
