package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tome-audio/tome/internal/adapters/mqttserver"
	"github.com/tome-audio/tome/internal/library"
	embeddedmqtt "github.com/tome-audio/tome/internal/modules/embedded_mqtt"
	feedlibrary "github.com/tome-audio/tome/internal/modules/feed_library"
	"github.com/tome-audio/tome/internal/modules/session"
	"github.com/tome-audio/tome/internal/player"
	"github.com/tome-audio/tome/internal/prefs"
	"github.com/tome-audio/tome/internal/tomed"
	"github.com/tome-audio/tome/pkg/tome"
)

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		libraryPath string
		logLevel    string
		logFormat   string
		logOutput   string
		logSource   bool
		logUTC      bool
		logColor    bool
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := tomed.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&libraryPath, "library", "", "book library path override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logSource, "log-source", false, "include source file in logs")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&logColor, "log-color", false, "enable colored log output (text only)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := tomed.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := applyOverrides(&cfg, broker, identity, topicBase, libraryPath, logLevel, logFormat, logOutput, logSource, logUTC, logColor); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger := tomed.NewLogger(tomed.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
		Color:     cfg.Server.LogColor,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	if cfg.Server.Broker == "" && !(moduleOnly == "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled) {
		logger.Error("broker is required")
		os.Exit(1)
	}
	logger.Info("tomed starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("library", cfg.Server.LibraryPath),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttserver.Client
	if moduleOnly != "embedded_mqtt" {
		var err error
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("tomed-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLSCA:     cfg.Server.TLS.CA,
			TLSCert:   cfg.Server.TLS.Cert,
			TLSKey:    cfg.Server.TLS.Key,
			Timeout:   2 * time.Second,
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
	}

	modules, err := buildModules(cfg, client, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := tomed.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *tomed.Config, broker, identity, topicBase, libraryPath, logLevel, logFormat, logOutput string, logSource, logUTC, logColor bool) error {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if identity != "" {
		cfg.Server.Identity = identity
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if libraryPath != "" {
		cfg.Server.LibraryPath = libraryPath
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if logSource {
		cfg.Server.LogSource = true
	}
	if logUTC {
		cfg.Server.LogUTC = true
	}
	if logColor {
		cfg.Server.LogColor = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = tome.BaseTopic
	}
	if cfg.Server.LibraryPath == "" {
		path, err := tomed.DefaultLibraryPath()
		if err != nil {
			return err
		}
		cfg.Server.LibraryPath = path
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
	return nil
}

func buildModules(cfg tomed.Config, client *mqttserver.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]tomed.ModuleRunner, error) {
	modules := []tomed.ModuleRunner{}

	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
				Listen:         cfg.Modules.EmbeddedMQTT.Listen,
				AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
				Username:       cfg.Modules.EmbeddedMQTT.Username,
				Password:       cfg.Modules.EmbeddedMQTT.Password,
				TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
				TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
				TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, tomed.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
		}
	}

	var books *library.Store
	if cfg.Modules.Session.Enabled || cfg.Modules.FeedLibrary.Enabled {
		var err error
		books, err = library.NewStore(cfg.Server.LibraryPath)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Modules.Session.Enabled {
		if moduleOnly == "" || moduleOnly == "session" {
			driver, err := player.NewGstDriver(cfg.Modules.Session.Pipeline)
			if err != nil {
				return nil, err
			}
			store, err := newPrefsStore(cfg.Modules.Session.PrefsPath)
			if err != nil {
				return nil, err
			}
			mod, err := session.NewModule(
				logger.With(zap.String("module", "session")),
				client,
				player.NewEngine(driver),
				books,
				store,
				session.Config{
					NodeID:    cfg.Modules.Session.NodeID,
					TopicBase: cfg.Server.TopicBase,
					Name:      cfg.Modules.Session.Name,
					Strict:    cfg.Modules.Session.Strict,
				},
			)
			if err != nil {
				return nil, err
			}
			modules = append(modules, tomed.ModuleRunner{Name: "session", Run: mod.Run})
		}
	}

	if cfg.Modules.FeedLibrary.Enabled {
		if moduleOnly == "" || moduleOnly == "feed_library" {
			mod, err := feedlibrary.NewModule(
				logger.With(zap.String("module", "feed_library")),
				client,
				books,
				feedlibrary.Config{
					NodeID:          cfg.Modules.FeedLibrary.NodeID,
					TopicBase:       cfg.Server.TopicBase,
					Feeds:           cfg.Modules.FeedLibrary.Feeds,
					RefreshInterval: time.Duration(cfg.Modules.FeedLibrary.RefreshMS) * time.Millisecond,
					Timeout:         time.Duration(cfg.Modules.FeedLibrary.TimeoutMS) * time.Millisecond,
				},
			)
			if err != nil {
				return nil, err
			}
			modules = append(modules, tomed.ModuleRunner{Name: "feed_library", Run: mod.Run})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func newPrefsStore(path string) (*prefs.Store, error) {
	if path != "" {
		return prefs.NewStoreAt(path)
	}
	return prefs.NewStore()
}

func enabledModules(cfg tomed.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.Session.Enabled {
		out = append(out, "session")
	}
	if cfg.Modules.FeedLibrary.Enabled {
		out = append(out, "feed_library")
	}
	return out
}

func printResolvedConfig(cfg tomed.Config) {
	fmt.Fprintf(os.Stdout,
		"broker=%s identity=%s topic_base=%s library=%s log_level=%s log_format=%s log_output=%s\n",
		cfg.Server.Broker,
		cfg.Server.Identity,
		cfg.Server.TopicBase,
		cfg.Server.LibraryPath,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
	)
}

func embeddedBrokerURL(cfg tomed.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func startEmbeddedBroker(ctx context.Context, cfg tomed.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	})
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
