package kingdom

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("kingdom", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.KingdomID != "default" {
		t.Fatalf("expected default kingdom id, got %q", cfg.KingdomID)
	}
	if cfg.App.TieRule != "fail" {
		t.Fatalf("expected default tie rule, got %q", cfg.App.TieRule)
	}
	if cfg.Roll != nil || cfg.Seed != nil {
		t.Fatalf("expected no roll or seed, got %+v", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("KINGDOM_ID", "env-kingdom")
	fs := flag.NewFlagSet("kingdom", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-check", "claim-hex", "-roll", "18", "-natural", "12", "-seed", "7",
		"-answer", "hex=h1", "-answer", "confirm=cancel", "-dc", "16",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.KingdomID != "env-kingdom" {
		t.Fatalf("expected env kingdom id, got %q", cfg.KingdomID)
	}
	if cfg.Roll == nil || *cfg.Roll != 18 || cfg.Natural == nil || *cfg.Natural != 12 {
		t.Fatalf("unexpected roll flags %+v", cfg)
	}
	if cfg.Seed == nil || *cfg.Seed != 7 {
		t.Fatalf("unexpected seed %v", cfg.Seed)
	}
	if len(cfg.Answers) != 2 || cfg.Difficulty != 16 {
		t.Fatalf("unexpected answers or dc %+v", cfg)
	}
}

func TestParseConfigRejectsNaturalWithoutRoll(t *testing.T) {
	fs := flag.NewFlagSet("kingdom", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-natural", "20"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunInitAndCheck(t *testing.T) {
	t.Setenv("KINGDOM_OTEL_ENDPOINT", "")
	dbPath := filepath.Join(t.TempDir(), "kingdom.db")
	fs := flag.NewFlagSet("kingdom", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-db", dbPath, "-kingdom", "k1", "-init",
		"-check", "collect-taxes", "-skill", "trade", "-roll", "20", "-natural", "10",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Log.Format = "json"
	cfg.Log.Level = "error"

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	report := out.String()
	for _, want := range []string{"collect-taxes", ": ok", "applied gold +2", "gold      12"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
}

func TestRunRequiresCheck(t *testing.T) {
	t.Setenv("KINGDOM_OTEL_ENDPOINT", "")
	cfg := Config{KingdomID: "k1"}
	cfg.App.DBPath = filepath.Join(t.TempDir(), "kingdom.db")
	cfg.Log.Level = "error"
	if err := Run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected missing check error")
	}
}
