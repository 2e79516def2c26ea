package main

import (
	"bytes"
	"strings"
	"testing"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("FEATURE_STRIPE_PAYMENTS", "false")
	t.Setenv("DATABASE_URL", "")
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	setEnv(t)
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "--env-dir", t.TempDir()})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	setEnv(t)
	t.Setenv("JWT_SECRET", "short")
	root := newRootCmd()
	root.SetArgs([]string{"serve", "--env-dir", t.TempDir()})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}
