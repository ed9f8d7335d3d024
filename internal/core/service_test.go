package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tome-audio/tome/pkg/tome"
)

type fixedClock struct{}

func (fixedClock) NowUnix() int64 { return 1700000000 }

type fixedIDGen struct{}

func (fixedIDGen) NewID() string { return "id-1" }

func newTestService(broker *fakeBroker) Service {
	resolver := Resolver{Presence: broker, Config: Config{}}
	return Service{
		Broker:   broker,
		Resolver: resolver,
		Clock:    fixedClock{},
		IDGen:    fixedIDGen{},
		Config:   Config{Identity: "tester@host"},
	}
}

func singlePlayerBroker() *fakeBroker {
	return &fakeBroker{presence: []tome.Presence{
		{NodeID: "tome:player:den", Kind: "player", Name: "Den Player"},
	}}
}

func TestToggleSendsAction(t *testing.T) {
	broker := singlePlayerBroker()
	service := newTestService(broker)

	if err := service.Toggle(context.Background(), ""); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(broker.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(broker.commands))
	}
	published := broker.commands[0]
	if published.nodeID != "tome:player:den" {
		t.Fatalf("node = %q", published.nodeID)
	}
	if published.cmd.Type != tome.CmdAction {
		t.Fatalf("type = %q", published.cmd.Type)
	}
	var body tome.ActionBody
	if err := json.Unmarshal(published.cmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Name != tome.ActionPlayPauseToggle {
		t.Fatalf("action = %q", body.Name)
	}
	if published.cmd.From != "tester@host" || published.cmd.ID != "id-1" || published.cmd.TS != 1700000000 {
		t.Fatalf("envelope not decorated: %+v", published.cmd)
	}
}

func TestSeekRelativeUsesRetainedState(t *testing.T) {
	broker := singlePlayerBroker()
	broker.state = tome.PlayerState{PositionMS: 60000}
	service := newTestService(broker)

	if err := service.Seek(context.Background(), "", "-30s"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	var body tome.SeekBody
	if err := json.Unmarshal(broker.commands[0].cmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.PositionMS != 30000 {
		t.Fatalf("position = %d", body.PositionMS)
	}
}

func TestSeekRelativeClampsToZero(t *testing.T) {
	broker := singlePlayerBroker()
	broker.state = tome.PlayerState{PositionMS: 5000}
	service := newTestService(broker)

	if err := service.Seek(context.Background(), "", "-1m"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	var body tome.SeekBody
	if err := json.Unmarshal(broker.commands[0].cmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.PositionMS != 0 {
		t.Fatalf("position = %d", body.PositionMS)
	}
}

func TestSeekAbsoluteMS(t *testing.T) {
	broker := singlePlayerBroker()
	service := newTestService(broker)

	if err := service.Seek(context.Background(), "", "90000"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	var body tome.SeekBody
	if err := json.Unmarshal(broker.commands[0].cmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.PositionMS != 90000 {
		t.Fatalf("position = %d", body.PositionMS)
	}
}

func TestSetSpeedRejectsNonPositive(t *testing.T) {
	service := newTestService(singlePlayerBroker())

	err := service.SetSpeed(context.Background(), "", 0)
	cliErr, ok := err.(*CLIError)
	if !ok || cliErr.Code != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestSearchCarriesExtras(t *testing.T) {
	broker := singlePlayerBroker()
	service := newTestService(broker)

	if err := service.Search(context.Background(), "", "the iron harbour", "The Iron Harbour", "A. Narrator"); err != nil {
		t.Fatalf("search: %v", err)
	}
	var body tome.PlayFromSearchBody
	if err := json.Unmarshal(broker.commands[0].cmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Extras["title"] != "The Iron Harbour" || body.Extras["author"] != "A. Narrator" {
		t.Fatalf("extras = %+v", body.Extras)
	}
}

func TestPublishMapsReplyError(t *testing.T) {
	broker := singlePlayerBroker()
	broker.replies = []tome.ReplyEnvelope{{
		Type: "error",
		Err:  &tome.ReplyError{Code: "UNSUPPORTED", Message: "unsupported command"},
	}}
	service := newTestService(broker)

	err := service.Play(context.Background(), "")
	cliErr, ok := err.(*CLIError)
	if !ok || cliErr.Code != ExitUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}
