package gqlduplex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPServer(t *testing.T, status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func awaitCallback(t *testing.T, ch <-chan map[string]interface{}) map[string]interface{} {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(3 * time.Second):
		t.Fatal("callback never fired")
		return nil
	}
}

func TestDoDecodesData(t *testing.T) {
	srv := newHTTPServer(t, http.StatusOK, `{"data":{"hello":"world"}}`)
	client := NewClient(srv.URL)

	var data struct {
		Hello string `json:"hello"`
	}
	require.NoError(t, client.Do(context.Background(), &data, Request{Query: "query { hello }"}))
	assert.Equal(t, "world", data.Hello)
}

func TestDoReturnsGraphQLErrors(t *testing.T) {
	srv := newHTTPServer(t, http.StatusOK, `{"errors":[{"message":"bad query","locations":[{"line":1,"column":3}]}]}`)
	client := NewClient(srv.URL)

	err := client.Do(context.Background(), nil, Request{Query: "query {"})

	gqlErrs := GraphQLErrors{}
	require.True(t, errors.As(err, &gqlErrs))
	require.Len(t, gqlErrs, 1)
	assert.Equal(t, "bad query", gqlErrs[0].Message)
	assert.Equal(t, 1, gqlErrs[0].Locations[0].Line)
	assert.Equal(t, 3, gqlErrs[0].Locations[0].Column)
}

func TestDoReturnsHTTPError(t *testing.T) {
	srv := newHTTPServer(t, http.StatusBadGateway, `upstream exploded`)
	client := NewClient(srv.URL)

	err := client.Do(context.Background(), nil, Request{Query: "query { hello }"})

	httpErr := &HTTPError{}
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.Response.StatusCode)
	assert.Equal(t, "upstream exploded", httpErr.SavedBody)
}

func TestDoReturnsJsonError(t *testing.T) {
	srv := newHTTPServer(t, http.StatusOK, `<html>definitely not json</html>`)
	client := NewClient(srv.URL)

	err := client.Do(context.Background(), nil, Request{Query: "query { hello }"})

	jsonErr := &JsonError{}
	require.True(t, errors.As(err, &jsonErr))
	assert.Contains(t, jsonErr.Json, "definitely not json")
}

func TestDoSendsHeadersAndBody(t *testing.T) {
	var gotHeader http.Header
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody = map[string]interface{}{}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, Option{
		Headers:    map[string]string{"X-Tenant": "acme"},
		BearerAuth: "tok123",
	})
	require.NoError(t, client.Do(context.Background(), nil, Request{
		Query:         "query Hello { hello }",
		Variables:     map[string]interface{}{"a": float64(1)},
		OperationName: "Hello",
	}))

	assert.Equal(t, "acme", gotHeader.Get("X-Tenant"))
	assert.Equal(t, "Bearer tok123", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json; charset=utf-8", gotHeader.Get("Content-Type"))
	assert.Equal(t, map[string]interface{}{
		"query":         "query Hello { hello }",
		"variables":     map[string]interface{}{"a": float64(1)},
		"operationName": "Hello",
	}, gotBody)
}

func TestExecuteDeliversRawBodyOnSuccess(t *testing.T) {
	srv := newHTTPServer(t, http.StatusOK, `{"data":{"hello":"world"}}`)
	sink := &recordingSink{}
	client := NewClient(srv.URL, Option{Sink: sink})

	ch := make(chan map[string]interface{}, 1)
	callID := client.Execute(context.Background(), Request{Query: "query { hello }"}, func(payload map[string]interface{}) {
		ch <- payload
	})
	require.NotEmpty(t, callID)

	payload := awaitCallback(t, ch)
	assert.Equal(t, map[string]interface{}{
		"data": map[string]interface{}{"hello": "world"},
	}, payload)

	require.Eventually(t, func() bool {
		return len(sink.byType(EventCallbackFired)) == 1
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, callID, sink.byType(EventCallbackFired)[0].ID)
}

func TestExecuteCallsBackExactlyOnce(t *testing.T) {
	srv := newHTTPServer(t, http.StatusOK, `{"data":{}}`)
	client := NewClient(srv.URL)

	var calls int32
	done := make(chan struct{}, 1)
	client.Execute(context.Background(), Request{Query: "query { hello }"}, func(map[string]interface{}) {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
	})

	<-done
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteNormalizesNullBodyOn500(t *testing.T) {
	srv := newHTTPServer(t, http.StatusInternalServerError, `null`)
	client := NewClient(srv.URL)

	ch := make(chan map[string]interface{}, 1)
	client.Execute(context.Background(), Request{Query: "query { hello }"}, func(payload map[string]interface{}) {
		ch <- payload
	})

	assert.Equal(t, map[string]interface{}{
		"errors": []interface{}{
			map[string]interface{}{
				"message":    "The HTTP call failed.",
				"extensions": map[string]interface{}{"status": 500},
			},
		},
	}, awaitCallback(t, ch))
}

func TestExecuteAttachesStatusToServerErrors(t *testing.T) {
	srv := newHTTPServer(t, http.StatusBadGateway, `{"errors":[{"message":"upstream down"}]}`)
	client := NewClient(srv.URL)

	ch := make(chan map[string]interface{}, 1)
	client.Execute(context.Background(), Request{Query: "query { hello }"}, func(payload map[string]interface{}) {
		ch <- payload
	})

	payload := awaitCallback(t, ch)
	errs, ok := payload["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, map[string]interface{}{
		"message":    "upstream down",
		"extensions": map[string]interface{}{"status": 502},
	}, errs[0])
}

func TestExecuteNormalizesNonGraphQLMapping(t *testing.T) {
	srv := newHTTPServer(t, http.StatusServiceUnavailable, `{"reason":"maintenance"}`)
	client := NewClient(srv.URL)

	ch := make(chan map[string]interface{}, 1)
	client.Execute(context.Background(), Request{Query: "query { hello }"}, func(payload map[string]interface{}) {
		ch <- payload
	})

	payload := awaitCallback(t, ch)
	assert.Equal(t, "maintenance", payload["reason"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{
			"message":    "The HTTP call failed.",
			"extensions": map[string]interface{}{"status": 503},
		},
	}, payload["errors"])
}

func TestExecuteNormalizes200WithoutGraphQLShape(t *testing.T) {
	srv := newHTTPServer(t, http.StatusOK, `{"ok":true}`)
	client := NewClient(srv.URL)

	ch := make(chan map[string]interface{}, 1)
	client.Execute(context.Background(), Request{Query: "query { hello }"}, func(payload map[string]interface{}) {
		ch <- payload
	})

	payload := awaitCallback(t, ch)
	assert.Equal(t, true, payload["ok"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{
			"message":    "The HTTP call failed.",
			"extensions": map[string]interface{}{"status": 200},
		},
	}, payload["errors"])
}

func TestExecuteNormalizesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL)

	ch := make(chan map[string]interface{}, 1)
	client.Execute(context.Background(), Request{Query: "query { hello }"}, func(payload map[string]interface{}) {
		ch <- payload
	})

	assert.Equal(t, map[string]interface{}{
		"errors": []interface{}{
			map[string]interface{}{
				"message":    "The HTTP call failed.",
				"extensions": map[string]interface{}{},
			},
		},
	}, awaitCallback(t, ch))
}

func TestWebsocketEndpointDerivation(t *testing.T) {
	client := NewClient("https://api.example.com/graphql")
	assert.Equal(t, "wss://api.example.com/graphql", client.websocketEndpoint())

	client = NewClient("http://api.example.com/graphql")
	assert.Equal(t, "ws://api.example.com/graphql", client.websocketEndpoint())

	client = NewClient("http://api.example.com/graphql", Option{
		WebSocketEndpoint: "wss://stream.example.com/graphql",
	})
	assert.Equal(t, "wss://stream.example.com/graphql", client.websocketEndpoint())
}
