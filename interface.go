package gqlduplex

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duograph/gqlduplex/gqlws"
)

// Option can be changed at any time after NewClient
type Option struct {
	// Endpoint means server URL
	Endpoint string

	// WebSocketEndpoint is the subscription URL. When empty it is derived
	// from Endpoint by swapping the http scheme for the ws one.
	WebSocketEndpoint string

	// HTTPClient specify http client, when it's nil, the client will use http.DefaultClient
	// HTTPClient should not change to nil after init
	HTTPClient *http.Client

	// Headers appended to http request every time at the beginning
	Headers map[string]string

	// CloseBody will close http request body immediately for reusing of http client
	CloseBody bool

	// Client will add Header "Authorization: Bearer <Token>" for every request when BearerAuth is not empty
	BearerAuth string

	// Logger receives request/response traces. Nil discards them.
	Logger *slog.Logger

	// Sink observes callback events. Nil discards them.
	Sink EventSink

	// NotCheckHTTPStatusCode200 disable http response status code for some irregular GraphQL Servers
	NotCheckHTTPStatusCode200 bool

	// WebSocketOption configures the websocket client created on first use.
	WebSocketOption WSOption
}

// WSOption can be changed at any time before the first connect
type WSOption struct {
	// Dialer specify websocket dialer, when it's nil, the client will use websocket.DefaultDialer
	Dialer *websocket.Dialer

	// Headers appended to the websocket handshake request
	Headers map[string]string

	// Protocol selects the wire protocol spoken after the handshake.
	// Empty means gqlws.ProtocolGraphQLWS.
	Protocol gqlws.Protocol

	// InitPayload is sent as the connection_init payload right after the
	// transport opens. Nil means an empty object. Set NoConnectionInit to
	// suppress the frame entirely.
	InitPayload      interface{}
	NoConnectionInit bool

	// NoResubscribe keeps the client from replaying tracked
	// subscriptions after a reconnect. Subscriptions issued while the
	// connection was down are still started once it opens.
	NoResubscribe bool

	// NotReconnect disables automatic reconnection after a transport
	// close or a failed dial.
	NotReconnect bool

	// ReconnectTimeout is the delay before the first reconnect attempt.
	// Consecutive failed dials grow it with a backoff. Defaults to 5s.
	ReconnectTimeout time.Duration

	// ReconnectAttempts limits consecutive failed dials before the
	// client gives up and stays closed. Defaults to unlimited.
	ReconnectAttempts int

	// KeepAliveTimeout force-closes the connection when the server has
	// been sending keep-alive frames and then stays silent for this
	// long, so the normal reconnect path takes over. Defaults to 30s, a
	// negative value disables the watchdog.
	KeepAliveTimeout time.Duration

	// Logger receives lifecycle and frame traces. Nil discards them.
	Logger *slog.Logger

	// Sink observes dispatched events. Nil discards them.
	Sink EventSink
}

type Client struct {
	*Option

	wsMu sync.Mutex
	ws   *WSClient
}

type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName,omitempty"`
}

// SubscriptionHandler receives every routed frame for one subscription.
// completed is true exactly once, for the final invocation. Returning a
// non-nil error cancels the subscription client-side.
type SubscriptionHandler func(data json.RawMessage, errors GraphQLErrors, completed bool) error

// Callback receives the outcome of one http operation: the raw decoded
// body on success, a normalized error body otherwise. It is invoked
// exactly once.
type Callback func(payload map[string]interface{})

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func nopLogger() *slog.Logger {
	return discardLogger
}
