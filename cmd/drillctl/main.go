// Command drillctl is a thin terminal driver wiring Clock, Timer, the
// session engine, the Persistence Adapter, the Controller, the Export
// Codec, and the Statistics Aggregator into one runnable entry point. It
// is the harness, not a product: every feature described here is already
// implemented by the packages it calls.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/drillforge/core/buildinfo"
	"github.com/drillforge/core/clock"
	"github.com/drillforge/core/controller"
	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/export"
	"github.com/drillforge/core/logger"
	"github.com/drillforge/core/persistence"
	"github.com/drillforge/core/preset"
	"github.com/drillforge/core/problem"
	"github.com/drillforge/core/stats"
)

func main() {
	dataDir := flag.String("data-dir", envOr("DRILLFORGE_DATA_DIR", "./.drillforge"), "base directory for persisted sessions and audio")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()
	logger.SetVerbose(*verbose)
	buildinfo.LogStartup()

	store, err := persistence.NewFileStore(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open data dir: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	problems, err := problem.NewRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load problem catalog: %v\n", err)
		os.Exit(1)
	}
	presets := preset.NewRegistry()
	ctrl := controller.New(clock.NewReal(), presets, problems, store)

	ctx := context.Background()
	if snap, found, err := ctrl.Restore(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "restore: %v\n", err)
	} else if found {
		fmt.Printf("restored session %s in phase %s\n", snap.SessionID, snap.State.Phase)
	}

	repl(ctx, ctrl, store)

	if err := ctrl.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "close: %v\n", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// repl reads one command per line from stdin. It exists to give the core
// at least one real caller exercising every intent; it is not meant to be
// a pleasant interface.
func repl(ctx context.Context, ctrl *controller.Controller, store persistence.Store) {
	fmt.Println("drillforge practice session driver. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		cmd := fields[0]
		var arg string
		if len(fields) > 1 {
			arg = fields[1]
		}

		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := dispatchCommand(ctx, ctrl, store, cmd, arg); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatchCommand(ctx context.Context, ctrl *controller.Controller, store persistence.Store, cmd, arg string) error {
	switch cmd {
	case "help":
		printHelp()
		return nil
	case "start":
		presetName := preset.Standard
		if arg != "" {
			presetName = arg
		}
		snap, err := ctrl.StartSession(ctx, presetName)
		return report(snap, err)
	case "invariants":
		return report(ctrl.UpdateInvariants(ctx, arg))
	case "code":
		return report(ctrl.UpdateCode(ctx, arg))
	case "coding":
		return report(ctrl.StartCoding(ctx))
	case "nudge":
		return report(ctrl.RequestNudge(ctx))
	case "submit":
		return report(ctrl.SubmitSolution(ctx))
	case "endsilent":
		return report(ctrl.EndSilent(ctx))
	case "continue":
		return report(ctrl.ContinuePastSummary(ctx))
	case "reflect":
		return report(ctrl.SubmitReflection(ctx, eventlog.ReflectionResponses{
			ClearApproach: "yes", ProlongedStall: "no", RecoveredFromStall: "n/a",
			TimePressure: "comfortable", WouldChangeApproach: "no",
		}))
	case "abandon":
		return report(ctrl.AbandonSession(ctx))
	case "pause":
		return report(ctrl.PauseSession(ctx))
	case "resume":
		return report(ctrl.ResumeFromPause(ctx))
	case "status":
		snap := ctrl.Snapshot()
		return report(snap, nil)
	case "stats":
		summary, err := stats.GetStats(ctx, store)
		if err != nil {
			return err
		}
		fmt.Printf("total=%d completed=%d avgNudges=%d\n", summary.Total, summary.Completed, summary.AvgNudges)
		return nil
	case "export":
		return runExport(ctx, ctrl, store, arg)
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
		return nil
	}
}

func runExport(ctx context.Context, ctrl *controller.Controller, store persistence.Store, outDir string) error {
	snap := ctrl.Snapshot()
	if !snap.HasSession {
		return fmt.Errorf("no active session to export")
	}
	rec, err := store.GetSession(ctx, snap.SessionID)
	if err != nil {
		return fmt.Errorf("load session for export: %w", err)
	}
	var audio *persistence.AudioRecord
	if a, err := store.GetAudio(ctx, snap.SessionID); err == nil {
		audio = a
	}
	archive, err := export.Export(rec, audio)
	if err != nil {
		return fmt.Errorf("build export archive: %w", err)
	}
	if outDir == "" {
		outDir = "."
	}
	path := filepath.Join(outDir, archive.Filename)
	if err := os.WriteFile(path, archive.Bytes, 0o644); err != nil {
		return fmt.Errorf("write export archive: %w", err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func report(snap controller.Snapshot, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("phase=%s status=%s nudgesUsed=%d/%d remainingMs=%d\n",
		snap.State.Phase, snap.State.Status, snap.State.NudgesUsed, snap.State.NudgesAllowed, snap.RemainingMs)
	return nil
}

func printHelp() {
	fmt.Println(`commands:
  start [preset]      start a session (preset: standard|high_pressure|no_assistance)
  invariants <text>   record preparation notes
  coding              advance PREP to CODING
  code <text>         record a code edit
  nudge               request a nudge
  submit              submit solution early, skip SILENT
  endsilent           end the silent coding phase
  continue            advance SUMMARY to REFLECTION
  reflect             submit a canned reflection
  abandon             abandon the session
  pause / resume      freeze/unfreeze the active timer
  status              print the current snapshot
  stats               print aggregate statistics
  export [dir]        export the active session to a tar.gz archive
  quit                exit`)
}
