package server

import (
	"io"
	"strings"
	"testing"
)

func runRootCmd(t *testing.T, args ...string) error {
	t.Helper()

	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	return rootCmd.Execute()
}

func TestMigrateRequiresPostgresStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "error")

	for _, sub := range []string{"up", "down", "version"} {
		err := runRootCmd(t, "migrate", sub)
		if err == nil || !strings.Contains(err.Error(), "migrations only apply to the postgres store") {
			t.Fatalf("migrate %s: unexpected error: %v", sub, err)
		}
	}
}

func TestMigrateStepsRejectsInvalidCount(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")

	for _, arg := range []string{"0", "x", "1.5"} {
		err := runRootCmd(t, "migrate", "steps", arg)
		if err == nil || !strings.Contains(err.Error(), "steps must be a non-zero integer") {
			t.Fatalf("migrate steps %s: unexpected error: %v", arg, err)
		}
	}
}

func TestMigrateStepsAcceptsNegativeCount(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	// Reaching the store check means -1 was taken as the step count.
	err := runRootCmd(t, "migrate", "steps", "-1")
	if err == nil || !strings.Contains(err.Error(), "migrations only apply to the postgres store") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseSteps(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "2", want: 2},
		{raw: "-1", want: -1},
		{raw: "0", wantErr: true},
		{raw: "up", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseSteps(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseSteps(%q): unexpected error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("parseSteps(%q): got %d want %d", tt.raw, got, tt.want)
		}
	}
}
