// Package connector implements C3: one WebSocket session per (exchange,
// market), producing decoded trades into a bounded TradeQueue and exposing
// the lifecycle spec'd in §4.3 (CLOSED → CONNECTING → SUBSCRIBING → OPEN →
// (RECONNECTING) → CLOSED/STOPPED).
//
// The reconnect loop (exponential backoff, 2s initial doubling to a 20s cap,
// context-cancellable dial/read) is grounded on the teacher's
// marketdata/wssim ingest client; message framing and the trades/
// subscriptionResponse channel split are grounded on the original
// Hyperliquid exchange worker.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/ringbuf"
)

// Protocol decodes one exchange's wire format. Concrete exchanges (see
// hyperliquid.go, binance.go) implement this and nothing else.
type Protocol interface {
	// WSURL returns the WebSocket endpoint to dial for this market.
	WSURL(market model.Market) string

	// SubscribeFrame returns the JSON-encodable subscribe request to send
	// immediately after the socket opens, or nil if the exchange requires
	// no post-connect subscribe step (e.g. stream is selected via the URL).
	SubscribeFrame(market model.Market) any

	// ParseFrame decodes one inbound text frame. ack is true for frames
	// that only confirm the subscription and carry no trades.
	ParseFrame(raw []byte) (trades []model.Trade, ack bool, err error)

	// PingInterval / PongTimeout configure the connector's own keepalive
	// (ping loop and read deadline), matching the exchange's documented cadence.
	PingInterval() time.Duration
	PongTimeout() time.Duration
}

const (
	initialReconnectDelay = 2 * time.Second
	maxReconnectDelay     = 20 * time.Second
)

// Connector is the concrete C3 implementation, parameterised by a Protocol.
type Connector struct {
	exchange model.Exchange
	market   model.Market
	proto    Protocol
	queue    *ringbuf.TradeQueue
	metrics  *metrics.Metrics
	log      *slog.Logger

	state        atomic.Int32
	lastUpdateMs atomic.Int64
	resetCh      chan struct{}
	closeOnce    chan struct{}
}

// New constructs a Connector for (exchange, market) bound to queue. The
// queue is owned by the caller (typically the supervisor) and survives
// resets — only the socket is torn down and rebuilt.
func New(exchange model.Exchange, market model.Market, proto Protocol, queue *ringbuf.TradeQueue, m *metrics.Metrics, log *slog.Logger) *Connector {
	c := &Connector{
		exchange: exchange,
		market:   market,
		proto:    proto,
		queue:    queue,
		metrics:  m,
		log:      log.With(slog.String("exchange", string(exchange)), slog.String("market", string(market))),
		resetCh:  make(chan struct{}, 1),
	}
	c.state.Store(int32(StateClosed))
	return c
}

// State returns the current lifecycle state.
func (c *Connector) State() State { return State(c.state.Load()) }

func (c *Connector) setState(s State) { c.state.Store(int32(s)) }

// LastUpdateMillis returns the Unix-millis timestamp of the most recent
// inbound frame (including pings/pongs).
func (c *Connector) LastUpdateMillis() int64 { return c.lastUpdateMs.Load() }

// Reset forces a reconnect cycle without fully stopping: the current socket
// is closed and the run loop's own reconnect machinery takes over.
func (c *Connector) Reset() {
	select {
	case c.resetCh <- struct{}{}:
	default:
	}
}

// Close stops the connector permanently. Start returns once the current
// connection (if any) has unwound.
func (c *Connector) Close() error {
	c.setState(StateStopped)
	if c.closeOnce != nil {
		select {
		case <-c.closeOnce:
		default:
			close(c.closeOnce)
		}
	}
	return nil
}

// Start connects and streams trades into the queue until ctx is cancelled or
// Close is called. Returns only on terminal shutdown.
func (c *Connector) Start(ctx context.Context) error {
	c.closeOnce = make(chan struct{})
	delay := initialReconnectDelay

	for {
		if c.State() == StateStopped {
			return nil
		}
		select {
		case <-ctx.Done():
			c.setState(StateStopped)
			return nil
		default:
		}

		c.setState(StateConnecting)
		gotFrame, err := c.runOnce(ctx)
		if err == nil {
			c.setState(StateStopped)
			return nil
		}
		if gotFrame {
			// The session reached OPEN and carried traffic: backoff starts
			// over from the floor (§4.3).
			delay = initialReconnectDelay
		}

		c.setState(StateReconnecting)
		if c.metrics != nil {
			c.metrics.Reconnects.WithLabelValues(string(c.exchange), string(c.market)).Inc()
		}
		c.log.Warn("connector disconnected, reconnecting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			c.setState(StateStopped)
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runOnce performs a single dial/subscribe/read cycle. A nil error means
// the caller should stop entirely (ctx cancelled or Close called); any
// other error triggers the caller's backoff-and-retry. gotFrame reports
// whether the session received at least one inbound message after OPEN, so
// the caller can reset the backoff to its floor.
func (c *Connector) runOnce(ctx context.Context) (gotFrame bool, err error) {
	wsURL := c.proto.WSURL(c.market)
	if _, err := url.Parse(wsURL); err != nil {
		return false, fmt.Errorf("connector: invalid ws url: %w", err)
	}

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	conn.SetPingHandler(func(appData string) error {
		c.lastUpdateMs.Store(model.NowMillis())
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	pongTimeout := c.proto.PongTimeout()
	if pongTimeout > 0 {
		// A pong is due within pongTimeout of each ping, so the read
		// deadline spans one ping interval plus the pong timeout.
		readWait := c.proto.PingInterval() + pongTimeout
		conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetPongHandler(func(string) error {
			c.lastUpdateMs.Store(model.NowMillis())
			conn.SetReadDeadline(time.Now().Add(readWait))
			return nil
		})
	}

	c.setState(StateSubscribing)
	if frame := c.proto.SubscribeFrame(c.market); frame != nil {
		if err := conn.WriteJSON(frame); err != nil {
			return false, fmt.Errorf("connector: subscribe: %w", err)
		}
	}
	c.setState(StateOpen)
	c.lastUpdateMs.Store(model.NowMillis())
	c.log.Info("connector open")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.closeOnce:
		case <-c.resetCh:
		case <-done:
			return
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	pingInterval := c.proto.PingInterval()
	var stopPing chan struct{}
	if pingInterval > 0 {
		stopPing = make(chan struct{})
		go c.pingLoop(conn, pingInterval, stopPing)
		defer close(stopPing)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return gotFrame, nil
			case <-c.closeOnce:
				return gotFrame, nil
			default:
			}
			return gotFrame, err
		}

		gotFrame = true
		c.lastUpdateMs.Store(model.NowMillis())

		trades, ack, err := c.proto.ParseFrame(raw)
		if err != nil {
			c.log.Warn("malformed frame, skipping", "error", err)
			continue
		}
		if ack {
			continue
		}
		for _, tr := range trades {
			c.queue.Push(tr)
		}
	}
}

func (c *Connector) pingLoop(conn *websocket.Conn, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

