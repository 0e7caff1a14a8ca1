package gqlduplex

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewClient only take the first Option if given
func NewClient(endpoint string, opt ...Option) *Client {
	client := &Client{
		Option: &Option{},
	}
	if len(opt) > 0 {
		client.Option = &opt[0]
	}
	if client.HTTPClient == nil {
		client.HTTPClient = http.DefaultClient
	}
	client.Endpoint = endpoint
	return client
}

// Do runs one operation synchronously and decodes its data into res.
// Failures come back typed: *HTTPError for a non-200 reply, *JsonError
// for an undecodable body, GraphQLErrors when the server returned
// application errors.
func (c *Client) Do(ctx context.Context, res interface{}, req Request) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	httpResp, body, err := c.post(ctx, req)
	if err != nil {
		return err
	}

	if !c.NotCheckHTTPStatusCode200 && httpResp.StatusCode != http.StatusOK {
		return &HTTPError{
			Response:  httpResp,
			SavedBody: string(body),
		}
	}

	resp := response{
		Data: res,
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return &JsonError{
			OriginError: err,
			Json:        string(body),
		}
	}
	if len(resp.Errors) > 0 {
		return GraphQLErrors(resp.Errors)
	}
	return nil
}

// Execute runs one operation asynchronously and invokes callback exactly
// once: with the raw decoded body when the server returned a GraphQL
// response on a 2xx status, with a normalized error body for every other
// outcome. Errors never escape to the caller. The returned id correlates
// the call with its callback event on the sink.
func (c *Client) Execute(ctx context.Context, req Request, callback Callback) string {
	callID := uuid.NewString()
	go func() {
		payload := c.execute(ctx, req)
		if callback != nil {
			callback(payload)
		}
		c.sink().Dispatch(Event{Type: EventCallbackFired, ID: callID, Payload: payload})
	}()
	return callID
}

func (c *Client) execute(ctx context.Context, req Request) map[string]interface{} {
	httpResp, body, err := c.post(ctx, req)
	switch {
	case err != nil && httpResp == nil:
		c.logger().Error("graphql http call failed", "error", err)
		return Normalize(nil, 0)
	case err != nil:
		c.logger().Error("graphql http call failed", "status", httpResp.StatusCode, "error", err)
		return Normalize(nil, httpResp.StatusCode)
	}

	if httpResp.StatusCode/100 == 2 {
		if payload, ok := decodeGraphQLBody(body); ok {
			return payload
		}
	}
	return Normalize(body, httpResp.StatusCode)
}

// post sends one request and hands back the response with its body fully
// read and closed. httpResp is non-nil whenever the server replied, even
// if reading the body failed afterwards.
func (c *Client) post(ctx context.Context, req Request) (httpResp *http.Response, body []byte, err error) {
	reqJson, err := json.Marshal(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "json encode graphql request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqJson))
	if err != nil {
		return nil, nil, err
	}

	httpReq.Close = c.CloseBody
	for k, v := range c.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Accept", "application/json; charset=utf-8")
	if c.BearerAuth != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.BearerAuth)
	}

	c.logger().Debug("graphql request",
		"method", httpReq.Method,
		"url", httpReq.URL.String(),
		"body", string(reqJson),
	)

	httpResp, err = c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer httpResp.Body.Close()

	body, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp, nil, errors.Wrap(err, "read graphql response body")
	}

	c.logger().Debug("graphql response",
		"url", httpReq.URL.String(),
		"status", httpResp.Status,
		"body", string(body),
	)
	return httpResp, body, nil
}

// decodeGraphQLBody decodes body as an object and reports whether it
// looks like a GraphQL response, meaning it carries a data or errors key.
func decodeGraphQLBody(body []byte) (map[string]interface{}, bool) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	_, hasData := fields["data"]
	_, hasErrors := fields["errors"]
	if !hasData && !hasErrors {
		return nil, false
	}
	return decodeObject(body), true
}

// WS returns the websocket client, created on first use from
// WebSocketEndpoint and WebSocketOption. The websocket side inherits
// the client's Logger and Sink unless WebSocketOption overrides them.
func (c *Client) WS() *WSClient {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		wsOpt := c.WebSocketOption
		if wsOpt.Logger == nil {
			wsOpt.Logger = c.Logger
		}
		if wsOpt.Sink == nil {
			wsOpt.Sink = c.Sink
		}
		c.ws = NewWSClient(c.websocketEndpoint(), wsOpt)
	}
	return c.ws
}

func (c *Client) websocketEndpoint() string {
	if c.WebSocketEndpoint != "" {
		return c.WebSocketEndpoint
	}
	switch {
	case strings.HasPrefix(c.Endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(c.Endpoint, "https://")
	case strings.HasPrefix(c.Endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(c.Endpoint, "http://")
	}
	return c.Endpoint
}

// Subscribe starts a graphql subscription over the websocket transport.
func (c *Client) Subscribe(req Request, handler SubscriptionHandler) (string, error) {
	return c.WS().Subscribe(req, handler)
}

func (c *Client) Unsubscribe(id string) error {
	return c.WS().Unsubscribe(id)
}

func (c *Client) UnsubscribeAll() error {
	return c.WS().UnsubscribeAll()
}

// CloseWebsocket shuts down the websocket transport if it was ever
// opened. The http side of the client keeps working.
func (c *Client) CloseWebsocket() error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return nopLogger()
}

func (c *Client) sink() EventSink {
	if c.Sink != nil {
		return c.Sink
	}
	return NopSink{}
}

type response struct {
	Errors []GraphQLError `json:"errors,omitempty"`
	Data   interface{}    `json:"data,omitempty"`
}
