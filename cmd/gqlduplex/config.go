package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/duograph/gqlduplex"
	"github.com/duograph/gqlduplex/gqlws"
)

// fileConfig mirrors the yaml layout of a gqlduplex config file.
// Durations are written as Go duration strings ("5s", "1m30s").
type fileConfig struct {
	Endpoint    string                 `yaml:"endpoint"`
	WSEndpoint  string                 `yaml:"wsEndpoint,omitempty"`
	Bearer      string                 `yaml:"bearer,omitempty"`
	Headers     map[string]string      `yaml:"headers,omitempty"`
	InitPayload map[string]interface{} `yaml:"initPayload,omitempty"`

	Protocol          string `yaml:"protocol,omitempty"`
	ReconnectTimeout  string `yaml:"reconnectTimeout,omitempty"`
	ReconnectAttempts int    `yaml:"reconnectAttempts,omitempty"`
	KeepAliveTimeout  string `yaml:"keepAliveTimeout,omitempty"`
	NoResubscribe     bool   `yaml:"noResubscribe,omitempty"`
	NoReconnect       bool   `yaml:"noReconnect,omitempty"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// clientOption translates the file layout into the library's options.
func (c *fileConfig) clientOption() (gqlduplex.Option, error) {
	opt := gqlduplex.Option{
		WebSocketEndpoint: c.WSEndpoint,
		BearerAuth:        c.Bearer,
		Headers:           c.Headers,
		WebSocketOption: gqlduplex.WSOption{
			Headers:           c.Headers,
			NoResubscribe:     c.NoResubscribe,
			NotReconnect:      c.NoReconnect,
			ReconnectAttempts: c.ReconnectAttempts,
		},
	}
	if len(c.InitPayload) > 0 {
		opt.WebSocketOption.InitPayload = c.InitPayload
	}

	switch c.Protocol {
	case "", string(gqlws.ProtocolGraphQLWS):
	case string(gqlws.ProtocolGraphQLTransportWS):
		opt.WebSocketOption.Protocol = gqlws.ProtocolGraphQLTransportWS
	default:
		return opt, errors.Errorf("unknown protocol %q, want %q or %q",
			c.Protocol, gqlws.ProtocolGraphQLWS, gqlws.ProtocolGraphQLTransportWS)
	}

	if c.ReconnectTimeout != "" {
		d, err := time.ParseDuration(c.ReconnectTimeout)
		if err != nil {
			return opt, errors.Wrap(err, "reconnectTimeout")
		}
		opt.WebSocketOption.ReconnectTimeout = d
	}
	if c.KeepAliveTimeout != "" {
		d, err := time.ParseDuration(c.KeepAliveTimeout)
		if err != nil {
			return opt, errors.Wrap(err, "keepAliveTimeout")
		}
		opt.WebSocketOption.KeepAliveTimeout = d
	}
	return opt, nil
}

// newClient builds a client from the config file (if any) with the
// persistent flags layered on top.
func newClient() (*gqlduplex.Client, error) {
	cfg := &fileConfig{}
	if flagConfig != "" {
		loaded, err := loadConfigFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagEndpoint != "" {
		cfg.Endpoint = flagEndpoint
	}
	if flagBearer != "" {
		cfg.Bearer = flagBearer
	}
	for _, h := range flagHeaders {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, errors.Errorf("invalid header %q, want key:value", h)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("no endpoint, pass --endpoint or set it in the config file")
	}

	opt, err := cfg.clientOption()
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		opt.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return gqlduplex.NewClient(cfg.Endpoint, opt), nil
}
