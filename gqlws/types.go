package gqlws

const (
	// Client -> Server
	MsgTypeConnectionInit      = "connection_init"
	MsgTypeConnectionTerminate = "connection_terminate"
	MsgTypeStart               = "start"
	MsgTypeStop                = "stop"

	// Server -> Client
	MsgTypeConnectionAck       = "connection_ack"
	MsgTypeConnectionError     = "connection_error"
	MsgTypeConnectionKeepAlive = "ka"
	MsgTypeData                = "data"
	MsgTypeError               = "error"
	MsgTypeComplete            = "complete"

	// graphql-transport-ws only. MsgTypeComplete is shared: the newer
	// protocol also uses it client -> server in place of MsgTypeStop.
	MsgTypeSubscribe = "subscribe"
	MsgTypeNext      = "next"
	MsgTypePing      = "ping"
	MsgTypePong      = "pong"
)

// Protocol is a websocket subprotocol name as sent in the
// Sec-WebSocket-Protocol handshake header. The zero value is treated as
// ProtocolGraphQLWS everywhere.
type Protocol string

const (
	// ProtocolGraphQLWS is the original subscriptions-transport-ws wire
	// protocol (start/stop/data frames). Most servers still speak it.
	ProtocolGraphQLWS Protocol = "graphql-ws"

	// ProtocolGraphQLTransportWS is the newer graphql-ws wire protocol
	// (subscribe/complete/next frames).
	ProtocolGraphQLTransportWS Protocol = "graphql-transport-ws"
)

func (p Protocol) String() string {
	if p == "" {
		return string(ProtocolGraphQLWS)
	}
	return string(p)
}

// StartType returns the frame type that begins an operation.
func (p Protocol) StartType() string {
	if p == ProtocolGraphQLTransportWS {
		return MsgTypeSubscribe
	}
	return MsgTypeStart
}

// StopType returns the frame type that cancels an operation.
func (p Protocol) StopType() string {
	if p == ProtocolGraphQLTransportWS {
		return MsgTypeComplete
	}
	return MsgTypeStop
}

// Start builds the operation-start frame for the protocol.
func (p Protocol) Start(id string, payload interface{}) Message {
	return Message{Type: p.StartType(), ID: id, Payload: payload}
}

// Stop builds the operation-cancel frame for the protocol.
func (p Protocol) Stop(id string) Message {
	return Message{Type: p.StopType(), ID: id}
}

// Init builds the connection_init frame. Both protocols use the same type.
func (p Protocol) Init(payload interface{}) Message {
	return Message{Type: MsgTypeConnectionInit, Payload: payload}
}
