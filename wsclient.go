package gqlduplex

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/duograph/gqlduplex/gqlws"
	"github.com/duograph/gqlduplex/internal/id"
)

// WSClient maintains one long-lived graphql websocket connection. It
// tracks subscriptions across disconnects, queues frames sent while the
// connection is down and replays both once the transport comes back.
//
// All state lives behind one mutex; transport callbacks carry the
// generation they were created under and are discarded once the client
// has moved on to a newer connection.
type WSClient struct {
	*WSOption

	endpoint string

	mu             sync.Mutex
	conn           *websocket.Conn
	status         gqlws.Status
	gen            uint64
	registry       *subscriptionRegistry
	queue          outgoingQueue
	reconnectTimer *time.Timer
	lastKA         time.Time

	reconnectBackoff *backoff.Backoff
}

// NewWSClient only take the first WSOption if given
func NewWSClient(endpoint string, opt ...WSOption) *WSClient {
	client := &WSClient{
		WSOption: &WSOption{},
		registry: newSubscriptionRegistry(),
	}
	if len(opt) > 0 {
		client.WSOption = &opt[0]
	}
	client.endpoint = endpoint
	if client.Dialer == nil {
		client.Dialer = websocket.DefaultDialer
	}
	if client.Protocol == "" {
		client.Protocol = gqlws.ProtocolGraphQLWS
	}
	if client.InitPayload == nil {
		client.InitPayload = map[string]interface{}{}
	}
	if client.ReconnectTimeout == 0 {
		client.ReconnectTimeout = 5 * time.Second
	}
	if client.ReconnectAttempts == 0 {
		client.ReconnectAttempts = math.MaxInt32
	}
	if client.KeepAliveTimeout == 0 {
		client.KeepAliveTimeout = 30 * time.Second
	}
	maxDelay := 30 * time.Second
	if client.ReconnectTimeout > maxDelay {
		maxDelay = client.ReconnectTimeout
	}
	client.reconnectBackoff = &backoff.Backoff{
		Factor: 1.5,
		Min:    client.ReconnectTimeout,
		Max:    maxDelay,
	}
	return client
}

// Connect opens the websocket explicitly. It is only valid while no
// connection is open or being established; a scheduled reconnect is
// cancelled and replaced by this attempt. The dial runs in the
// background, Connect never blocks on the network.
func (c *WSClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case gqlws.StatusConnecting, gqlws.StatusOpen:
		return ErrAlreadyConnected
	case gqlws.StatusReconnecting:
		c.stopReconnectTimerLocked()
	}
	c.beginConnectLocked()
	return nil
}

// Subscribe registers a subscription and starts it as soon as the
// connection allows: immediately when open, on the connect handshake
// otherwise. From a fresh client it triggers the first connect. The
// handler runs on the read loop; returning a non-nil error cancels the
// subscription client-side.
func (c *WSClient) Subscribe(req Request, handler SubscriptionHandler) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == gqlws.StatusClosed {
		return "", errors.Wrap(ErrClosed, "subscribe")
	}

	opID := id.Operation()
	if err := c.registry.add(opID, req, handler); err != nil {
		return "", err
	}

	switch c.status {
	case gqlws.StatusOpen:
		if err := c.sendFrameLocked(c.Protocol.Start(opID, req)); err != nil {
			c.registry.remove(opID)
			return "", err
		}
		sub, _ := c.registry.get(opID)
		sub.active = true
		sub.started = true
	case gqlws.StatusInitial:
		c.beginConnectLocked()
	}
	return opID, nil
}

// Unsubscribe stops tracking id. The stop frame goes out only while the
// connection is open; a disconnected client just drops the entry.
func (c *WSClient) Unsubscribe(opID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribeLocked(opID)
}

func (c *WSClient) unsubscribeLocked(opID string) error {
	sub, ok := c.registry.remove(opID)
	if !ok {
		return nil
	}
	if c.status.Connected() && sub.active {
		return c.sendFrameLocked(c.Protocol.Stop(opID))
	}
	return nil
}

func (c *WSClient) UnsubscribeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, sub := range c.registry.ordered() {
		if err := c.unsubscribeLocked(sub.id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PruneInactive drops subscriptions that are not active on the current
// connection and returns how many were dropped. It is the explicit
// remedy for entries piling up across reconnects with resume disabled.
func (c *WSClient) PruneInactive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.pruneInactive()
}

// Ping sends a ping frame. Only meaningful with
// gqlws.ProtocolGraphQLTransportWS; legacy servers ignore or reject it.
func (c *WSClient) Ping(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendFrameLocked(gqlws.Message{Type: gqlws.MsgTypePing, Payload: payload})
}

// Status reports the current lifecycle state.
func (c *WSClient) Status() gqlws.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close disconnects unconditionally and stays down: no reconnect is
// scheduled and a pending one is cancelled. Tracked subscriptions are
// kept, deactivated, so a later Connect can resume them. Call
// UnsubscribeAll first to tear everything down instead.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.status == gqlws.StatusClosed {
		c.mu.Unlock()
		return nil
	}
	c.logger().Debug("closing websocket client")
	c.stopReconnectTimerLocked()
	c.gen++
	conn := c.conn
	if conn != nil && c.status.Connected() && c.Protocol != gqlws.ProtocolGraphQLTransportWS {
		raw, _ := gqlws.Message{Type: gqlws.MsgTypeConnectionTerminate}.Marshal()
		_ = c.writeRawLocked(raw)
	}
	c.conn = nil
	c.status = gqlws.StatusClosed
	c.registry.deactivateAll()
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
		c.sink().Dispatch(Event{Type: EventDisconnected})
	}
	return err
}

// sendFrameLocked marshals the frame and either writes it out or queues
// it, depending on the connection state. Callers hold c.mu.
func (c *WSClient) sendFrameLocked(msg gqlws.Message) error {
	raw, err := msg.Marshal()
	if err != nil {
		return errors.Wrap(err, "json encode websocket frame")
	}
	switch c.status {
	case gqlws.StatusInitial:
		c.queue.enqueue(raw)
		c.beginConnectLocked()
		return nil
	case gqlws.StatusConnecting, gqlws.StatusReconnecting:
		c.queue.enqueue(raw)
		return nil
	case gqlws.StatusOpen:
		return c.writeRawLocked(raw)
	default:
		return errors.Wrap(ErrClosed, "message not sent")
	}
}

func (c *WSClient) writeRawLocked(raw []byte) error {
	c.logger().Debug("send", "frame", string(raw))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(raw)
	return err
}

func (c *WSClient) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *WSClient) UnderlyingConn() *websocket.Conn {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *WSClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return nopLogger()
}

func (c *WSClient) sink() EventSink {
	if c.Sink != nil {
		return c.Sink
	}
	return NopSink{}
}
