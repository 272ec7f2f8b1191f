// Package kingdom parses kingdom command flags and runs one catalog check
// against a stored kingdom.
package kingdom

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	entrypoint "github.com/louisbranch/kingdom/internal/platform/cmd"
	"github.com/louisbranch/kingdom/internal/platform/logging"
	"github.com/louisbranch/kingdom/internal/services/kingdom/app"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Config holds kingdom command configuration.
type Config struct {
	App       app.Config
	Log       logging.Config
	KingdomID string `env:"KINGDOM_ID" envDefault:"default"`

	Check      string
	Skill      string
	Difficulty int
	Modifier   int
	Roll       *int
	Natural    *int
	Seed       *int64
	Answers    []string
	Init       bool
	List       bool
	Preview    bool
	JSON       bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.App.DBPath, "db", cfg.App.DBPath, "SQLite database path")
	fs.StringVar(&cfg.App.CatalogDir, "catalog", cfg.App.CatalogDir, "Directory of check definitions layered over the built-in catalog")
	fs.StringVar(&cfg.App.TieRule, "tie", cfg.App.TieRule, "Tie rule when the total equals the DC: fail or succeed")
	fs.StringVar(&cfg.KingdomID, "kingdom", cfg.KingdomID, "Kingdom id")
	fs.StringVar(&cfg.Check, "check", "", "Check definition id to run")
	fs.StringVar(&cfg.Skill, "skill", "", "Skill used for the attempt")
	fs.IntVar(&cfg.Difficulty, "dc", 0, "DC; defaults to the kingdom control DC")
	fs.IntVar(&cfg.Modifier, "modifier", 0, "Bonus added to the d20")
	fs.Func("roll", "Pre-rolled total; skips the d20", func(value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Roll = &parsed
		return nil
	})
	fs.Func("natural", "Natural die face of a pre-rolled total", func(value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Natural = &parsed
		return nil
	})
	fs.Func("seed", "Seed for the check's random source", func(value string) error {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Seed = &parsed
		return nil
	})
	fs.Func("answer", "Step answer as step=value; repeatable; the value cancel cancels the step", func(value string) error {
		cfg.Answers = append(cfg.Answers, value)
		return nil
	})
	fs.BoolVar(&cfg.Init, "init", false, "Found the kingdom with the starting treasury when it does not exist")
	fs.BoolVar(&cfg.List, "list", false, "List the catalog and exit")
	fs.BoolVar(&cfg.Preview, "preview", false, "Preview the check without changing the kingdom")
	fs.BoolVar(&cfg.JSON, "json", false, "Print the result as JSON")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Natural != nil && cfg.Roll == nil {
		return Config{}, fmt.Errorf("-natural requires -roll")
	}
	return cfg, nil
}

// Run executes the configured check and writes a report to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	logger, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceKingdom, entrypoint.RunOptions{Logger: &logger}, func(ctx context.Context) error {
		service, err := app.New(ctx, cfg.App, logger)
		if err != nil {
			return err
		}
		defer service.Close()

		if cfg.List {
			return listChecks(service, out)
		}
		if cfg.Init {
			if err := service.FoundKingdom(ctx, cfg.KingdomID, ""); err != nil {
				return err
			}
		}
		if strings.TrimSpace(cfg.Check) == "" {
			if cfg.Init {
				return printKingdom(ctx, service, cfg.KingdomID, out)
			}
			return fmt.Errorf("-check is required")
		}

		answers, err := interaction.ParseScripted(cfg.Answers)
		if err != nil {
			return err
		}
		req := app.Request{
			KingdomID:    cfg.KingdomID,
			DefinitionID: cfg.Check,
			Skill:        cfg.Skill,
			Difficulty:   cfg.Difficulty,
			Bonus:        cfg.Modifier,
			Seed:         cfg.Seed,
			Prompter:     answers,
		}
		if cfg.Roll != nil {
			roll := check.Roll{Total: *cfg.Roll, Difficulty: cfg.Difficulty}
			if cfg.Natural != nil {
				roll.Natural = *cfg.Natural
			}
			req.Roll = &roll
		}

		var result engine.Result
		if cfg.Preview {
			result, err = service.Preview(ctx, req)
		} else {
			result, err = service.Run(ctx, req)
		}
		if err != nil {
			return err
		}
		if cfg.JSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		}
		printResult(result, out)
		return printKingdom(ctx, service, cfg.KingdomID, out)
	})
}

func listChecks(service *app.Service, out io.Writer) error {
	defs, err := service.Checks("")
	if err != nil {
		return err
	}
	for _, def := range defs {
		fmt.Fprintf(out, "%-20s %-9s %s [%s]\n", def.ID, def.Category, def.Name, strings.Join(def.Skills, ", "))
	}
	return nil
}

func printResult(result engine.Result, out io.Writer) {
	printer := message.NewPrinter(language.English)
	printer.Fprintf(out, "check %s (%s): %s\n", result.CheckID, result.DefinitionID, result.Verdict)
	if result.Roll.Difficulty != 0 {
		printer.Fprintf(out, "roll %d vs DC %d", result.Roll.Total, result.Roll.Difficulty)
		if result.Roll.Natural != 0 {
			printer.Fprintf(out, " (natural %d)", result.Roll.Natural)
		}
		fmt.Fprintln(out)
	}
	if result.Outcome != "" {
		for _, line := range result.Preview.Lines(printer) {
			fmt.Fprintln(out, line)
		}
	}
	for _, delta := range result.Batch.Applied {
		printer.Fprintf(out, "applied %s %+d\n", delta.Resource, delta.Amount)
	}
	for _, shortfall := range result.Batch.Shortfalls {
		printer.Fprintf(out, "shortfall %s %d\n", shortfall.Resource, shortfall.Unpaid)
	}
	for _, description := range result.Committed {
		fmt.Fprintf(out, "committed %s\n", description)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "warning %s\n", warning)
	}
	if result.Message != "" {
		fmt.Fprintln(out, result.Message)
	}
	if result.Error != "" {
		fmt.Fprintf(out, "error: %s\n", result.Error)
	}
}

func printKingdom(ctx context.Context, service *app.Service, kingdomID string, out io.Writer) error {
	snapshot, err := service.Kingdom(ctx, kingdomID)
	if err != nil {
		return err
	}
	printer := message.NewPrinter(language.English)
	printer.Fprintf(out, "kingdom %s (level %d, control DC %d)\n", snapshot.Name, snapshot.Level, snapshot.ControlDC)
	names := make([]string, 0, len(snapshot.Resources))
	for name := range snapshot.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printer.Fprintf(out, "  %-9s %d\n", name, snapshot.Resources[name])
	}
	return nil
}
