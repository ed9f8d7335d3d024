package tome

import "testing"

func TestValidateCommandEnvelope(t *testing.T) {
	cmd, err := NewCommand(CmdSeek, SeekBody{PositionMS: 1000})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error for missing envelope fields")
	}

	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCommandEnvelopeMissingFields(t *testing.T) {
	cmd := CommandEnvelope{}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error")
	}
}

func TestKnownCommandType(t *testing.T) {
	if !KnownCommandType(CmdAction) {
		t.Fatalf("expected action to be known")
	}
	if KnownCommandType("queue.set") {
		t.Fatalf("expected unknown type")
	}
}

func TestTopics(t *testing.T) {
	if got := TopicCommands("tome/v1", "tome:player:main"); got != "tome/v1/node/tome:player:main/cmd" {
		t.Fatalf("unexpected topic: %s", got)
	}
	if got := TopicReply("tome/v1", "ctl-1"); got != "tome/v1/reply/ctl-1" {
		t.Fatalf("unexpected topic: %s", got)
	}
}
