package gqlduplex

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned for send-side operations after the websocket
	// client was explicitly closed. A later Connect clears it.
	ErrClosed = errors.New("graphql websocket client is closed")

	// ErrAlreadyConnected is returned by Connect while a connection is
	// open or being established.
	ErrAlreadyConnected = errors.New("graphql websocket client is already connected")

	// ErrDuplicateSubscription is returned when an operation id is
	// already tracked.
	ErrDuplicateSubscription = errors.New("subscription id is already in use")
)

type GraphQLErrors []GraphQLError

// Path element's type should be either string or int, according to the samples of http://spec.graphql.org/draft/#sec-Errors
type GraphQLError struct {
	Message    string                 `json:"message,omitempty"`
	Locations  []GraphQLErrorLocation `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

type GraphQLErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// DetailError wraps a websocket dial failure together with whatever http
// response the server sent back during the handshake.
type DetailError struct {
	OriginError error
	Content     string
	Response    *http.Response
}

// HTTPError is returned by Do when the server replies with a status code
// other than 200 and status checking is enabled.
type HTTPError struct {
	Response  *http.Response
	SavedBody string
}

// JsonError is returned by Do when the response body is not valid JSON.
type JsonError struct {
	OriginError error
	Json        string
}

func jsonifyError(e interface{}) string {
	if e == nil {
		return "null"
	}
	j, err := json.Marshal(e)
	if err != nil {
		return err.Error()
	}
	return string(j)
}

func (e GraphQLErrors) Error() string {
	return jsonifyError(e)
}

func (e *GraphQLError) Error() string {
	return jsonifyError(e)
}

func (e *DetailError) Error() string {
	if e == nil || e.OriginError == nil {
		return "<nil>"
	}
	return e.OriginError.Error()
}

func (e *DetailError) Unwrap() error { return e.OriginError }

func (e *HTTPError) Error() string {
	if e == nil || e.Response == nil {
		return "<nil>"
	}
	return fmt.Sprintf("graphql server replied with http status %s", e.Response.Status)
}

func (e *JsonError) Error() string {
	if e == nil || e.OriginError == nil {
		return "<nil>"
	}
	return e.OriginError.Error()
}

func (e *JsonError) Unwrap() error { return e.OriginError }
