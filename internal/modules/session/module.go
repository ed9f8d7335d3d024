package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/tome-audio/tome/internal/adapters/mqttserver"
	"github.com/tome-audio/tome/internal/library"
	"github.com/tome-audio/tome/internal/player"
	"github.com/tome-audio/tome/internal/prefs"
	sessioncore "github.com/tome-audio/tome/internal/session"
	"github.com/tome-audio/tome/pkg/tome"
)

// Config configures the player session module.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
	Strict    bool
}

// Module binds the command dispatcher to MQTT: it decodes inbound
// envelopes, serializes dispatch, and publishes replies plus retained
// presence and player state.
type Module struct {
	log        *zap.Logger
	client     *mqttserver.Client
	engine     *player.Engine
	dispatcher *sessioncore.Dispatcher
	companions *companionTracker
	config     Config
	cmdTopic   string
}

// NewModule initializes the session module.
func NewModule(log *zap.Logger, client *mqttserver.Client, engine *player.Engine, books *library.Store, store *prefs.Store, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("session node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = tome.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Tome Player"
	}

	companions := &companionTracker{}
	dispatcher := sessioncore.NewDispatcher(log, engine, books, store, companions, sessioncore.Config{Strict: cfg.Strict})

	return &Module{
		log:        log,
		client:     client,
		engine:     engine,
		dispatcher: dispatcher,
		companions: companions,
		config:     cfg,
		cmdTopic:   tome.TopicCommands(cfg.TopicBase, cfg.NodeID),
	}, nil
}

// Run starts the session module.
func (m *Module) Run(ctx context.Context) error {
	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(ctx, msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	presenceTopic := tome.TopicPresence(m.config.TopicBase, "+")
	if err := m.client.Subscribe(presenceTopic, 1, m.companions.handlePresence); err != nil {
		return err
	}
	defer m.client.Unsubscribe(presenceTopic)

	if err := m.publishPresence(); err != nil {
		return err
	}
	m.publishState()

	<-ctx.Done()
	return nil
}

func (m *Module) publishPresence() error {
	presence := tome.Presence{
		NodeID: m.config.NodeID,
		Kind:   "player",
		Name:   m.config.Name,
		Caps: map[string]any{
			"transport": true,
			"actions":   true,
			"search":    true,
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(tome.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) publishState() {
	payload, err := json.Marshal(m.engine.Snapshot())
	if err != nil {
		m.log.Error("marshal state", zap.Error(err))
		return
	}
	topic := tome.TopicState(m.config.TopicBase, m.config.NodeID)
	if err := m.client.Publish(topic, 1, true, payload); err != nil {
		m.log.Error("publish state", zap.Error(err))
	}
}

func (m *Module) handleMessage(ctx context.Context, msg paho.Message) {
	var cmd tome.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}

	reply := m.dispatch(ctx, cmd)
	m.publishState()

	if cmd.ReplyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(cmd.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

func (m *Module) dispatch(ctx context.Context, cmd tome.CommandEnvelope) tome.ReplyEnvelope {
	reply := tome.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: time.Now().Unix()}

	if err := tome.ValidateCommandEnvelope(cmd); err != nil {
		return errorReply(cmd, "INVALID", err.Error())
	}
	if !tome.KnownCommandType(cmd.Type) {
		return errorReply(cmd, "UNSUPPORTED", "unsupported command")
	}

	decoded, err := sessioncore.CommandFromEnvelope(cmd)
	if err != nil {
		return errorReply(cmd, "INVALID", err.Error())
	}
	if err := m.dispatcher.HandleCommand(ctx, decoded); err != nil {
		return errorReply(cmd, "INVALID", err.Error())
	}
	return reply
}

func errorReply(cmd tome.CommandEnvelope, code string, message string) tome.ReplyEnvelope {
	return tome.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err:  &tome.ReplyError{Code: code, Message: message},
	}
}
