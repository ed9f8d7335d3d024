package embeddedmqtt

import (
	"testing"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"go.uber.org/zap"
)

func TestNewModuleAllowAnonymous(t *testing.T) {
	mod, err := NewModule(zap.NewNop(), Config{AllowAnonymous: true})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	if mod.server == nil {
		t.Fatalf("expected broker server")
	}
	if mod.config.Listen != "127.0.0.1:1883" {
		t.Fatalf("listen default = %q", mod.config.Listen)
	}
}

func TestNewModuleRequiresAuthConfig(t *testing.T) {
	if _, err := NewModule(zap.NewNop(), Config{}); err == nil {
		t.Fatalf("expected error without anonymous or credentials")
	}
}

func TestNewModuleCredentialAuth(t *testing.T) {
	mod, err := NewModule(zap.NewNop(), Config{Username: "tome", Password: "secret"})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	if mod.server == nil {
		t.Fatalf("expected broker server")
	}
}

func TestInlinePublishSubscribe(t *testing.T) {
	mod, err := NewModule(zap.NewNop(), Config{AllowAnonymous: true})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}

	received := make(chan packets.Packet, 1)
	handler := func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		received <- pk
	}
	if err := mod.server.Subscribe("tome/v1/#", 1, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := mod.server.Publish("tome/v1/node/p1/state", []byte(`{"status":"paused"}`), true, 0); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case pk := <-received:
		if string(pk.Payload) != `{"status":"paused"}` {
			t.Fatalf("unexpected payload %q", pk.Payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestBrokerURL(t *testing.T) {
	if BrokerURL("127.0.0.1:1883", false) != "mqtt://127.0.0.1:1883" {
		t.Fatalf("expected mqtt scheme")
	}
	if BrokerURL("127.0.0.1:8883", true) != "mqtts://127.0.0.1:8883" {
		t.Fatalf("expected mqtts scheme")
	}
}
