package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/duograph/gqlduplex"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	client := gqlduplex.NewClient(`https://countries.trevorblades.com/`, gqlduplex.Option{
		Logger: logger,
	})
	singleRequest(client)
	executeWithCallback(client)

	client.Endpoint = `https://graphql.anilist.co/`
	client.NotCheckHTTPStatusCode200 = true
	handleGraphqlError(client)

	client = gqlduplex.NewClient(`http://127.0.0.1:8080/v1/graphql`, gqlduplex.Option{
		Logger: logger,
		Sink:   lifecycleSink(),
	})
	subscribe(client)
}

func lifecycleSink() gqlduplex.EventSink {
	sink := gqlduplex.NewEmitterSink()
	sink.On(gqlduplex.EventConnected, func(ev gqlduplex.Event) {
		fmt.Println("websocket connected")
	})
	sink.On(gqlduplex.EventDisconnected, func(ev gqlduplex.Event) {
		fmt.Println("websocket disconnected")
	})
	sink.On(gqlduplex.EventSubscriptionData, func(ev gqlduplex.Event) {
		fmt.Println("data for subscription", ev.ID)
	})
	return sink
}

func singleRequest(client *gqlduplex.Client) {

	fmt.Println("-----graphql single request----")
	data := struct {
		Country struct {
			Code      string
			Name      string
			Languages []struct {
				Code   string
				Name   string
				Native string
				Rtl    bool
			}
		}
	}{}
	err := client.Do(context.Background(), &data, gqlduplex.Request{
		Query: `
query($code:ID!){
  country(code:$code){
    code
    name
    languages {
      code
      name
      native
      rtl
    }
  }
}
`,
		Variables: map[string]interface{}{
			"code": "CA",
		},
	})

	httpErr := &gqlduplex.HTTPError{}
	gqlErr := gqlduplex.GraphQLErrors{}
	switch {
	case err == nil:
	case errors.As(err, &httpErr):
		fmt.Println("http error:", httpErr.Response.StatusCode, "\n", httpErr.SavedBody)
		return
	case errors.As(err, &gqlErr):
		fmt.Println("graphql server error:", gqlErr.Error())
		return
	default:
		fmt.Println("graphql client error:", err.Error())
		return
	}

	j, _ := json.Marshal(data)
	fmt.Println("graphql request result:\n", string(j))

}

func executeWithCallback(client *gqlduplex.Client) {

	fmt.Println("-----graphql callback request----")
	done := make(chan struct{})

	id := client.Execute(context.Background(), gqlduplex.Request{
		Query: `
query($code:ID!){
  language(code:$code){
    code
    name
    native
    rtl
  }
}
`,
		Variables: map[string]interface{}{
			"code": "fr",
		},
	}, func(payload map[string]interface{}) {
		j, _ := json.Marshal(payload)
		fmt.Println("callback payload:\n", string(j))
		close(done)
	})

	fmt.Printf("call id: %s\n", id)
	<-done
}

func handleGraphqlError(client *gqlduplex.Client) {

	fmt.Println("-----handle graphql error----")
	data := struct {
		User struct {
			GetValue struct {
				ID   string
				Name string
			}
		}
	}{}
	req := gqlduplex.Request{
		Query: `
query{
  User(name:""){
    id
    name
  }
}
`,
		Variables: map[string]interface{}{},
	}

	err := client.Do(context.Background(), &data, req)

	httpErr := &gqlduplex.HTTPError{}
	gqlErr := gqlduplex.GraphQLErrors{}
	switch {
	case err == nil:
	case errors.As(err, &httpErr):
		fmt.Println("http error:", httpErr.Response.StatusCode, "\n", httpErr.SavedBody)
		return
	case errors.As(err, &gqlErr):
		gqlOneErr := gqlErr[0]
		fmt.Println("graphql server error:",
			gqlOneErr.Message,
			"on line",
			gqlOneErr.Locations[0].Line,
			"column",
			gqlOneErr.Locations[0].Column,
		)
		return
	default:
		fmt.Println("graphql client error:", err.Error())
		return
	}

	j, _ := json.Marshal(data)
	fmt.Println("graphql request result:\n", string(j))
}

func subscribe(client *gqlduplex.Client) {
	fmt.Println("-----graphql subscribe----")
	req := gqlduplex.Request{
		Query: `
subscription MyQuery {
  user( where: {id: {_eq: "b00f0f1c-afcd-4455-ab64-d093658ecfc5"}}) {
    username
    id
  }
}
`,
		Variables: map[string]interface{}{},
	}

	user := struct {
		User []struct {
			ID       string
			Username string
		}
	}{}

	recved := make(chan struct{})

	id, err := client.Subscribe(req, func(data json.RawMessage, errors gqlduplex.GraphQLErrors, completed bool) error {
		if completed {
			fmt.Println("server send completed")
			return nil
		}
		if errors != nil {
			fmt.Println(errors)
			return errors
		}
		if err := json.Unmarshal(data, &user); err != nil {
			fmt.Println(err)
			return err
		}
		recved <- struct{}{}
		return nil
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("subscription id: %s\n", id)

	<-recved
	if err := client.Unsubscribe(id); err != nil {
		fmt.Println(err)
	}
	if err := client.CloseWebsocket(); err != nil {
		fmt.Println(err)
	}
	fmt.Println(user)
}
