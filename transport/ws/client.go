// Package ws is the real-time channel: it turns websocket frames into domain
// events and sends read acknowledgements back.
package ws

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const readLimit = 1 << 20

var _ contract.ReadAcker = (*Client)(nil)

type Config struct {
	URL         string
	Token       string
	LocalUserID string
	// AckInterval is the minimum delay between two read acknowledgements.
	AckInterval time.Duration
	BufferSize  int
}

// Client owns one websocket connection at a time. Run dials and reads until
// the connection drops; the supervisor restarts it to reconnect. The events
// channel outlives connections.
type Client struct {
	log     *slog.Logger
	config  Config
	decoder Decoder
	metrics *observability.Metrics
	limiter *rate.Limiter
	events  chan event.DomainEvent

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(log *slog.Logger, config Config, metrics *observability.Metrics) *Client {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	limit := rate.Inf
	if config.AckInterval > 0 {
		limit = rate.Every(config.AckInterval)
	}
	return &Client{
		log:     log,
		config:  config,
		decoder: NewDecoder(config.LocalUserID),
		metrics: metrics,
		limiter: rate.NewLimiter(limit, 1),
		events:  make(chan event.DomainEvent, config.BufferSize),
	}
}

// Events is consumed by the realtime worker.
func (c *Client) Events() <-chan event.DomainEvent {
	return c.events
}

// Run returns nil when ctx is canceled and an error when the connection fails.
func (c *Client) Run(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, dialURL(c.config.URL), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.config.Token}},
	})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.log.Info("Realtime channel connected", "url", c.config.URL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.metrics.Malformed.Inc()
			c.log.Warn("Dropping unreadable frame", "error", err)
			continue
		}
		evt, err := c.decoder.Decode(env)
		if err != nil {
			c.metrics.Malformed.Inc()
			c.log.Warn("Dropping malformed event", "type", env.Type, "error", err)
			continue
		}
		if evt == nil {
			c.log.Debug("Ignoring event", "type", env.Type)
			continue
		}
		select {
		case c.events <- evt:
		case <-ctx.Done():
			return nil
		}
	}
}

// AckRead tells the server the local user read key. Acks are spaced by the
// configured interval.
func (c *Client) AckRead(ctx context.Context, key domain.ConversationKey) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.ErrNotConnected
	}
	payload, err := json.Marshal(ackPayload{ConversationID: string(key)})
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, Envelope{Type: TypeMessageRead, Payload: payload})
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func dialURL(u string) string {
	u = strings.Replace(u, "https://", "wss://", 1)
	return strings.Replace(u, "http://", "ws://", 1)
}
