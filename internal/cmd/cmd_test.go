package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"lawgpt/internal/config"
	"lawgpt/internal/index"
)

func TestSetupLogging(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	if err := setupLogging(config.LoggingConfig{Level: "warn", Format: "json"}); err != nil {
		t.Fatal(err)
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", zerolog.GlobalLevel())
	}
	if err := setupLogging(config.LoggingConfig{Level: "loud", Format: "console"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestBuildApp_MissingIndex(t *testing.T) {
	c := config.Default()
	c.Index.Path = filepath.Join(t.TempDir(), "vectorstore")

	_, err := buildApp(context.Background(), c)
	if !errors.Is(err, index.ErrNotFound) {
		t.Fatalf("expected index.ErrNotFound, got %v", err)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "ingest", "ask"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
	if f := ingestCmd.Flags().Lookup("quick"); f == nil {
		t.Error("ingest is missing --quick")
	}
}
