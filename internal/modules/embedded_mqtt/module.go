package embeddedmqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// Config configures the embedded MQTT broker. The broker lets a single
// player host run self-contained, without an external mosquitto.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
	TLSCA          string
	TLSCert        string
	TLSKey         string
}

func (c Config) tlsEnabled() bool {
	return c.TLSCA != "" || c.TLSCert != "" || c.TLSKey != ""
}

// Module runs an embedded MQTT broker.
type Module struct {
	log       *zap.Logger
	server    *mqtt.Server
	tlsConfig *tls.Config
	config    Config
}

// NewModule creates a new embedded broker module. Auth and TLS config
// problems surface here rather than at serve time.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}

	server := mqtt.New(&mqtt.Options{InlineClient: true, Logger: brokerLogger(log)})
	hook, hookOpts, err := authHook(cfg)
	if err != nil {
		return nil, err
	}
	if err := server.AddHook(hook, hookOpts); err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if cfg.tlsEnabled() {
		tlsConfig, err = loadTLSConfig(cfg.TLSCA, cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, err
		}
	}

	return &Module{log: log, server: server, tlsConfig: tlsConfig, config: cfg}, nil
}

// Run serves the broker until the context ends.
func (m *Module) Run(ctx context.Context) error {
	tcp := listeners.NewTCP(listeners.Config{
		ID:        "tome-embedded",
		Address:   m.config.Listen,
		TLSConfig: m.tlsConfig,
	})
	if err := m.server.AddListener(tcp); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- m.server.Serve()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		m.server.Close()
		return nil
	}
}

// authHook selects the broker auth strategy: open access, a single
// credential pair, or a refusal to start without either.
func authHook(cfg Config) (mqtt.Hook, any, error) {
	if cfg.AllowAnonymous {
		return new(auth.AllowHook), nil, nil
	}
	if cfg.Username == "" {
		return nil, nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}
	ledger := &auth.Ledger{
		Auth: auth.AuthRules{{
			Username: auth.RString(cfg.Username),
			Password: auth.RString(cfg.Password),
			Allow:    true,
		}},
		ACL: auth.ACLRules{{
			Username: auth.RString(cfg.Username),
			Filters:  auth.Filters{auth.RString("#"): auth.ReadWrite},
		}},
	}
	return new(auth.Hook), &auth.Options{Ledger: ledger}, nil
}

func brokerLogger(logger *zap.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return slog.New(&brokerLogHandler{logger: logger})
}

// brokerLogHandler routes mochi's slog output through the daemon
// logger.
type brokerLogHandler struct {
	logger *zap.Logger
	attrs  []slog.Attr
}

func (h *brokerLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *brokerLogHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		fields = append(fields, attrField(attr))
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, attrField(attr))
		return true
	})

	// Clients dropping their connection log as errors upstream.
	if connectionClosed(record) {
		h.logger.Debug("embedded mqtt connection closed", fields...)
		return nil
	}

	switch {
	case record.Level >= slog.LevelError:
		h.logger.Error(record.Message, fields...)
	case record.Level >= slog.LevelWarn:
		h.logger.Warn(record.Message, fields...)
	case record.Level >= slog.LevelInfo:
		h.logger.Info(record.Message, fields...)
	default:
		h.logger.Debug(record.Message, fields...)
	}
	return nil
}

func (h *brokerLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &brokerLogHandler{logger: h.logger, attrs: next}
}

func (h *brokerLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

func connectionClosed(record slog.Record) bool {
	closed := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key != "error" {
			return true
		}
		msg := ""
		switch attr.Value.Kind() {
		case slog.KindString:
			msg = attr.Value.String()
		case slog.KindAny:
			if v, ok := attr.Value.Any().(error); ok {
				msg = v.Error()
			}
		}
		if msg == "EOF" || strings.Contains(msg, "read connection: EOF") {
			closed = true
			return false
		}
		return true
	})
	return closed
}

func attrField(attr slog.Attr) zap.Field {
	switch attr.Value.Kind() {
	case slog.KindString:
		return zap.String(attr.Key, attr.Value.String())
	case slog.KindInt64:
		return zap.Int64(attr.Key, attr.Value.Int64())
	case slog.KindBool:
		return zap.Bool(attr.Key, attr.Value.Bool())
	default:
		return zap.Any(attr.Key, attr.Value.Any())
	}
}

func loadTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	config := &tls.Config{}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
	}
	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}
	return config, nil
}

// BrokerURL returns the client URL for a broker listen address.
func BrokerURL(listen string, tlsEnabled bool) string {
	scheme := "mqtt"
	if tlsEnabled {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s", scheme, listen)
}
