package main

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tome-audio/tome/internal/tomed"
)

func TestBuildModulesModuleOnlyFilter(t *testing.T) {
	tmp := t.TempDir()
	cfg := tomed.Config{}
	cfg.Server.LibraryPath = filepath.Join(tmp, "library")
	cfg.Modules.FeedLibrary.Enabled = true
	cfg.Modules.FeedLibrary.NodeID = "tome:library:feed"
	cfg.Modules.FeedLibrary.Feeds = []string{"http://example.test/feed.xml"}

	modules, err := buildModules(cfg, nil, zap.NewNop(), "feed_library", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(modules))
	}

	if _, err := buildModules(cfg, nil, zap.NewNop(), "session", false); err == nil {
		t.Fatalf("expected error for filtered module")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := tomed.Config{}
	cfg.Modules.EmbeddedMQTT.Enabled = true

	if err := applyOverrides(&cfg, "", "den", "", "/tmp/books", "debug", "", "", false, false, false); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	if cfg.Server.Identity != "den" {
		t.Fatalf("identity = %q", cfg.Server.Identity)
	}
	if cfg.Server.TopicBase != "tome/v1" {
		t.Fatalf("topic base = %q", cfg.Server.TopicBase)
	}
	if cfg.Server.Broker != "mqtt://127.0.0.1:1883" {
		t.Fatalf("broker = %q", cfg.Server.Broker)
	}
}
