package app

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"no args", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate down", []string{"migrate", "down"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"cart", []string{"cart", "list"}, CommandCart},
		{"extra args", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v): %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownIsError(t *testing.T) {
	_, err := ParseCommand([]string{"crat"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"crat"`) || !strings.Contains(err.Error(), "cart, healthcheck, migrate, serve, worker") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_UnknownCommandDoesNotStartServer(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if err := Run(&strings.Builder{}, []string{"srve"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command error", err)
	}
}
