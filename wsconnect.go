package gqlduplex

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duograph/gqlduplex/gqlws"
)

// beginConnectLocked moves to Connecting under a fresh generation and
// dials in the background. Callers hold c.mu.
func (c *WSClient) beginConnectLocked() {
	c.gen++
	c.status = gqlws.StatusConnecting
	c.lastKA = time.Time{}
	go c.dial(c.gen)
}

// dial opens the transport for generation gen. The outcome goes through
// handleOpen or handleDialFailure, which decide whether gen still
// matters.
func (c *WSClient) dial(gen uint64) {
	header := make(http.Header)
	for k, v := range c.Headers {
		header.Set(k, v)
	}
	header.Set("Sec-WebSocket-Protocol", c.Protocol.String())

	conn, httpResp, err := c.Dialer.Dial(c.endpoint, header)
	if err != nil {
		var savedBody []byte
		if httpResp != nil && httpResp.Body != nil {
			savedBody, _ = io.ReadAll(httpResp.Body)
		}
		c.handleDialFailure(gen, &DetailError{
			OriginError: err,
			Response:    httpResp,
			Content:     string(savedBody),
		})
		return
	}
	c.handleOpen(gen, conn)
}

func (c *WSClient) handleDialFailure(gen uint64, derr *DetailError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.status != gqlws.StatusConnecting {
		return
	}
	c.logger().Warn("websocket dial failed", "endpoint", c.endpoint, "error", derr.Error())
	if c.NotReconnect || c.reconnectBackoff.Attempt() >= float64(c.ReconnectAttempts) {
		c.status = gqlws.StatusClosed
		return
	}
	c.scheduleReconnectLocked()
}

// handleOpen wires a freshly dialed conn in, provided gen is still
// current; a stale dial (the client was closed or moved on while the
// handshake was in flight) closes its conn and changes nothing.
//
// The init, resume and flush writes all happen in one critical section:
// every other send observes the open state only after the replay is
// done, which keeps the init -> resubscribe -> queued-frames order.
func (c *WSClient) handleOpen(gen uint64, conn *websocket.Conn) {
	c.mu.Lock()
	if gen != c.gen || c.status != gqlws.StatusConnecting {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.status = gqlws.StatusOpen
	c.reconnectBackoff.Reset()
	c.lastKA = time.Time{}

	if !c.NoConnectionInit {
		raw, _ := c.Protocol.Init(c.InitPayload).Marshal()
		_ = c.writeRawLocked(raw)
	}
	for _, sub := range c.registry.ordered() {
		if sub.active || (c.NoResubscribe && sub.started) {
			continue
		}
		raw, _ := c.Protocol.Start(sub.id, sub.req).Marshal()
		_ = c.writeRawLocked(raw)
		sub.active = true
		sub.started = true
	}
	for _, raw := range c.queue.drainAll() {
		_ = c.writeRawLocked(raw)
	}
	c.mu.Unlock()

	c.logger().Info("websocket connected", "endpoint", c.endpoint)
	c.sink().Dispatch(Event{Type: EventConnected})

	go c.readLoop(gen, conn)
	if c.KeepAliveTimeout > 0 {
		go c.keepAliveLoop(gen)
	}
}

// readLoop owns the receive side of one connection. It exits on the
// first read error, which is also how write failures and the keep-alive
// watchdog surface.
func (c *WSClient) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		msg := gqlws.ResponseMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleMessage(gen, msg)
	}
}

func (c *WSClient) handleMessage(gen uint64, msg gqlws.ResponseMessage) {
	c.logger().Debug("recv", "type", msg.Type, "id", msg.ID)
	switch msg.Type {
	case gqlws.MsgTypeData, gqlws.MsgTypeNext:
		c.routeData(gen, msg)
	case gqlws.MsgTypeComplete:
		c.routeComplete(gen, msg)
	case gqlws.MsgTypeError:
		c.logger().Warn("graphql operation error frame", "id", msg.ID, "payload", string(msg.Payload))
	case gqlws.MsgTypeConnectionError:
		c.logger().Warn("graphql connection error frame", "payload", string(msg.Payload))
	case gqlws.MsgTypeConnectionAck:
		c.logger().Debug("connection acknowledged")
	case gqlws.MsgTypeConnectionKeepAlive:
		c.mu.Lock()
		if gen == c.gen {
			c.lastKA = time.Now()
		}
		c.mu.Unlock()
	case gqlws.MsgTypePing:
		c.pong(gen, msg.Payload)
	case gqlws.MsgTypePong:
	default:
		c.logger().Debug("ignoring unknown frame type", "type", msg.Type)
	}
}

// routeData hands a data frame to its subscription handler. Frames read
// off a superseded connection, unknown ids and inactive ids are benign
// races with close, unsubscribe or reconnect and are dropped quietly.
func (c *WSClient) routeData(gen uint64, msg gqlws.ResponseMessage) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	sub, ok := c.registry.get(msg.ID)
	if !ok || !sub.active {
		c.mu.Unlock()
		c.logger().Debug("data frame for unknown subscription", "id", msg.ID)
		return
	}
	handler := sub.handler
	c.mu.Unlock()

	resp := rawResponse{}
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		c.logger().Warn("undecodable data payload", "id", msg.ID, "error", err)
		return
	}
	var errs GraphQLErrors
	if len(resp.Errors) > 0 {
		errs = resp.Errors
	}
	if handler != nil {
		if stopErr := handler(resp.Data, errs, false); stopErr != nil {
			_ = c.Unsubscribe(msg.ID)
		}
	}
	c.sink().Dispatch(Event{Type: EventSubscriptionData, ID: msg.ID, Payload: msg.Payload})
}

// routeComplete removes the subscription before its handler sees the
// completion signal, so nothing can be dispatched for the id afterwards.
// A frame read off a superseded connection must not touch the registry:
// the entry it names may just have been resumed on the replacement.
func (c *WSClient) routeComplete(gen uint64, msg gqlws.ResponseMessage) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	sub, ok := c.registry.remove(msg.ID)
	c.mu.Unlock()
	if !ok {
		c.logger().Debug("complete frame for unknown subscription", "id", msg.ID)
		return
	}
	if sub.handler != nil {
		_ = sub.handler(nil, nil, true)
	}
	c.sink().Dispatch(Event{Type: EventSubscriptionComplete, ID: msg.ID})
}

// pong answers a server ping; only the modern protocol sends them.
func (c *WSClient) pong(gen uint64, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || !c.status.Connected() {
		return
	}
	msg := gqlws.Message{Type: gqlws.MsgTypePong}
	if len(payload) > 0 {
		msg.Payload = payload
	}
	raw, _ := msg.Marshal()
	_ = c.writeRawLocked(raw)
}

// handleClose runs when a read loop exits. Only the current generation
// transitions the state; a stale loop, whose conn was already replaced
// or explicitly closed, returns quietly.
func (c *WSClient) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.logger().Info("websocket disconnected", "endpoint", c.endpoint, "error", err)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.registry.deactivateAll()
	if c.NotReconnect {
		c.status = gqlws.StatusClosed
	} else {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.sink().Dispatch(Event{Type: EventDisconnected})
}

// scheduleReconnectLocked arms the single deferred connect. At most one
// timer exists at a time; whether it still applies is re-checked when it
// fires. Callers hold c.mu.
func (c *WSClient) scheduleReconnectLocked() {
	c.stopReconnectTimerLocked()
	delay := c.reconnectBackoff.Duration()
	c.status = gqlws.StatusReconnecting
	gen := c.gen
	c.logger().Info("websocket reconnect scheduled", "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.reconnectFired(gen)
	})
}

// reconnectFired runs when the deferred connect elapses. A client that
// moved on since the timer was armed, through a manual connect or an
// explicit close, turns it into a no-op.
func (c *WSClient) reconnectFired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.status != gqlws.StatusReconnecting {
		return
	}
	c.logger().Info("websocket reconnecting", "endpoint", c.endpoint)
	c.beginConnectLocked()
}

// keepAliveLoop force-closes a connection whose server went silent after
// having sent keep-alive frames. The failing read loop then drives the
// regular close-and-reconnect transition. Servers that never send ka
// frames never trip it.
func (c *WSClient) keepAliveLoop(gen uint64) {
	ticker := time.NewTicker(c.KeepAliveTimeout / 2)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		if gen != c.gen || !c.status.Connected() {
			c.mu.Unlock()
			return
		}
		if !c.lastKA.IsZero() && time.Since(c.lastKA) > c.KeepAliveTimeout {
			c.logger().Warn("keep-alive timeout, dropping connection", "silence", time.Since(c.lastKA))
			_ = c.conn.Close()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

type rawResponse struct {
	Errors GraphQLErrors   `json:"errors,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}
