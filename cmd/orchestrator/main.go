// Command orchestrator is the CLI over the orchestration core: one
// subcommand per core operation (start, next, checkpoint, approve, reject,
// abort, resume, jump, replay, rollback, status, log, metrics), plus
// init, hygiene, doctor, and docs. The CLI carries no orchestration logic
// of its own; each subcommand resolves the project root, loads its
// workflow config, and calls into internal/orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/doctor"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/docs"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/orchestrator"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/scaffold"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/ux"
	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:        "orc",
		Usage:       "Multi-phase workflow orchestrator",
		Description: "Run 'orc docs' for documentation on profiles, phases, checkpoints, and commands.",
		Commands: []*cli.Command{
			initCmd(),
			startCmd(),
			nextCmd(),
			checkpointCmd(),
			approveCmd(),
			rejectCmd(),
			abortCmd(),
			resumeCmd(),
			jumpCmd(),
			replayCmd(),
			rollbackCmd(),
			statusCmd(),
			logCmd(),
			metricsCmd(),
			hygieneCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Scaffold a new .orc/ directory in the current project",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(dir)
		},
	}
}

func startCmd() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a new run of a profile",
		ArgsUsage: "<profile>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "intake", Usage: "Path to an intake document"},
			&cli.StringFlag{Name: "from", Usage: "Start at this declared phase instead of the first"},
			&cli.StringFlag{Name: "project-name", Usage: "Project name recorded in run metadata"},
			&cli.StringFlag{Name: "client-slug", Usage: "Client slug recorded in run metadata"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			profileName := cmd.Args().First()
			if profileName == "" {
				return fmt.Errorf("profile argument is required")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}

			meta := runstate.RunMetadata{
				ProjectName: cmd.String("project-name"),
				ClientSlug:  cmd.String("client-slug"),
			}
			if intakePath := cmd.String("intake"); intakePath != "" {
				data, err := os.ReadFile(intakePath)
				if err != nil {
					return fmt.Errorf("reading intake document: %w", err)
				}
				meta.IntakeText = string(data)
			}

			rs, err := o.Start(ctx, profileName, meta, cmd.String("from"))
			if err != nil {
				return err
			}
			fmt.Printf("started run %s%s%s at phase %q\n", ux.Bold, rs.RunID, ux.Reset, rs.CurrentPhase)
			return nil
		},
	}
}

func nextCmd() *cli.Command {
	return &cli.Command{
		Name:      "next",
		Usage:     "Dispatch the run's current phase",
		ArgsUsage: "<runID>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "parallel", Usage: "Force parallel dispatch for this phase"},
			&cli.IntFlag{Name: "max-workers", Usage: "Override the worker-pool cap (never above the configured max)"},
			&cli.IntFlag{Name: "timeout", Usage: "Override the per-agent timeout in seconds"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			if runID == "" {
				return fmt.Errorf("runID argument is required")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}

			opts := runstate.RunOptions{MaxWorkers: int(cmd.Int("max-workers"))}
			if cmd.IsSet("parallel") {
				v := cmd.Bool("parallel")
				opts.ForceParallel = &v
			}
			if s := cmd.Int("timeout"); s > 0 {
				opts.Timeout = time.Duration(s) * time.Second
			}

			profile, total, idx := profileFor(o, rs)
			ux.PhaseHeader(idx, total, rs.CurrentPhase)
			outcome, err := o.Next(ctx, rs, opts)
			if err != nil {
				return err
			}
			ux.PhaseOutcome(outcome)
			if rs.Status == runstate.StatusAwaitingConsensus {
				ux.ConsensusRequested(runID, rs.ConsensusPhase, filepath.Join("consensus", "REQUEST.md"))
			}
			if rs.Status == runstate.StatusCompleted {
				ux.Success(runID, len(profile.Phases))
			}
			return nil
		},
	}
}

func checkpointCmd() *cli.Command {
	return &cli.Command{
		Name:      "checkpoint",
		Usage:     "Re-validate the current phase's artifacts without re-dispatching agents",
		ArgsUsage: "<runID>",
		Flags:     []cli.Flag{&cli.BoolFlag{Name: "force", Usage: "Advance over a Partial or Fail verdict"}},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			if runID == "" {
				return fmt.Errorf("runID argument is required")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			outcome, err := o.Checkpoint(ctx, rs, cmd.Bool("force"))
			if err != nil {
				return err
			}
			ux.PhaseOutcome(outcome)
			return nil
		},
	}
}

func approveCmd() *cli.Command {
	return &cli.Command{
		Name:      "approve",
		Usage:     "Approve the run's gated phase and advance",
		ArgsUsage: "<runID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			if err := o.Approve(ctx, rs); err != nil {
				return err
			}
			fmt.Printf("%sapproved%s phase, run now %s\n", ux.Green, ux.Reset, rs.Status)
			return nil
		},
	}
}

func rejectCmd() *cli.Command {
	return &cli.Command{
		Name:      "reject",
		Usage:     "Reject the run's gated phase with a reason",
		ArgsUsage: "<runID> <reason>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			runID := args.Get(0)
			reason := args.Get(1)
			if runID == "" || reason == "" {
				return fmt.Errorf("usage: orc reject <runID> <reason>")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			if err := o.Reject(ctx, rs, reason); err != nil {
				return err
			}
			fmt.Printf("%srejected%s — run now needs_revision\n", ux.Yellow, ux.Reset)
			return nil
		},
	}
}

func abortCmd() *cli.Command {
	return &cli.Command{
		Name:      "abort",
		Usage:     "Abort the run, preserving all artifacts and logs",
		ArgsUsage: "<runID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			if err := o.Abort(ctx, rs); err != nil {
				return err
			}
			ux.Aborted(runID)
			return nil
		},
	}
}

func resumeCmd() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume an aborted or needs-revision run",
		ArgsUsage: "<runID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			if err := o.Resume(ctx, rs); err != nil {
				return err
			}
			fmt.Printf("resumed at phase %q\n", rs.CurrentPhase)
			return nil
		},
	}
}

func jumpCmd() *cli.Command {
	return &cli.Command{
		Name:      "jump",
		Usage:     "Admin-only: set the run's cursor to any declared phase, unchecked",
		ArgsUsage: "<runID> <phase>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			runID, phase := args.Get(0), args.Get(1)
			if runID == "" || phase == "" {
				return fmt.Errorf("usage: orc jump <runID> <phase>")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			if err := o.Jump(ctx, rs, phase); err != nil {
				return err
			}
			fmt.Printf("%sjumped%s to phase %q\n", ux.Yellow, ux.Reset, phase)
			return nil
		},
	}
}

func replayCmd() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Re-dispatch a named phase without moving the cursor",
		ArgsUsage: "<runID> <phase>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			runID, phase := args.Get(0), args.Get(1)
			if runID == "" || phase == "" {
				return fmt.Errorf("usage: orc replay <runID> <phase>")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			outcome, err := o.Replay(ctx, rs, phase, runstate.RunOptions{})
			if err != nil {
				return err
			}
			ux.PhaseOutcome(outcome)
			return nil
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:      "rollback",
		Usage:     "Non-destructively reset the cursor to an earlier phase",
		ArgsUsage: "<runID> <phase>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			runID, phase := args.Get(0), args.Get(1)
			if runID == "" || phase == "" {
				return fmt.Errorf("usage: orc rollback <runID> <phase>")
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			if err := o.Rollback(ctx, rs, phase); err != nil {
				return err
			}
			fmt.Printf("%srolled back%s to phase %q; completed phases: %v\n", ux.Yellow, ux.Reset, rs.CurrentPhase, rs.CompletedPhases)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Print a run's status snapshot",
		ArgsUsage: "<runID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			profile, ok := o.Registry.Profile(rs.Profile)
			if !ok {
				return fmt.Errorf("unknown profile %q", rs.Profile)
			}
			ux.RenderStatus(profile, rs)
			return nil
		},
	}
}

func logCmd() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Tail a run's append-only log",
		ArgsUsage: "<runID> [lines]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			runID := args.Get(0)
			if runID == "" {
				return fmt.Errorf("runID argument is required")
			}
			n := 0
			if lines := args.Get(1); lines != "" {
				parsed, err := strconv.Atoi(lines)
				if err != nil {
					return fmt.Errorf("invalid lines count %q: %w", lines, err)
				}
				n = parsed
			}
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			records, err := o.Log(runID, n)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("[%s] %-24s %s\n", r.Timestamp.Format(time.RFC3339), r.Tag, r.Message)
			}
			return nil
		},
	}
}

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:      "metrics",
		Usage:     "Print a run's metrics document",
		ArgsUsage: "<runID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			doc, err := o.Metrics(runID)
			if err != nil {
				return err
			}
			for name, pm := range doc.Phases {
				fmt.Printf("phase %-16s attempts=%d duration=%s\n", name, pm.AttemptCount, pm.Duration)
			}
			for key, am := range doc.Agents {
				fmt.Printf("agent  %-16s retries=%d lastExit=%d\n", key, am.RetryCount, am.LastExit)
			}
			if doc.Hygiene != nil {
				fmt.Printf("hygiene score=%.1f grade=%s\n", doc.Hygiene.Score, doc.Hygiene.Grade)
			}
			return nil
		},
	}
}

func hygieneCmd() *cli.Command {
	return &cli.Command{
		Name:  "hygiene",
		Usage: "Scan the project for repo hygiene and compute a cleanliness score",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "Clear stale notebook outputs if within safety caps"},
			&cli.StringFlag{Name: "config", Usage: "Path to a hygiene config document"},
			&cli.StringFlag{Name: "run", Usage: "Run ID to record the score snapshot against"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			o.HygieneConfigPath = cmd.String("config")
			runID := cmd.String("run")
			if runID == "" {
				runID = "adhoc"
			}
			report, safety, err := o.RunHygiene(runID)
			if err != nil {
				return err
			}
			fmt.Printf("cleanliness score: %s%.1f (%s)%s\n", ux.Bold, report.Score.Score, report.Score.Grade, ux.Reset)
			fmt.Printf("  orphans=%d largeFiles=%d deadCode=%d notebooks=%d secrets=%d\n",
				len(report.Orphans), len(report.LargeFiles), len(report.DeadCode), len(report.Notebooks), len(report.Secrets))
			if cmd.Bool("apply") {
				if !safety.IsSafe {
					fmt.Printf("%sAPPLY BLOCKED%s: %s\n", ux.Red, ux.Reset, strings.Join(safety.Reasons, "; "))
					return nil
				}
				cleared, err := o.ApplyHygiene(report, safety)
				if err != nil {
					return err
				}
				fmt.Printf("cleared notebook outputs: %v\n", cleared)
			}
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose a stalled or failed run",
		ArgsUsage: "<runID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			o, err := newOrchestrator()
			if err != nil {
				return err
			}
			rs, err := o.Load(runID)
			if err != nil {
				return err
			}
			report, err := doctor.Diagnose(o.Store, rs)
			if err != nil {
				return err
			}
			fmt.Print(doctor.Render(report))
			return nil
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "List or show documentation topics",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				return nil
			}
			topic, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Println(topic.Content)
			return nil
		},
	}
}

// newOrchestrator resolves the project root upward from the working
// directory, loads its workflow document, and wires an Orchestrator
// rooted at .orc/runs.
func newOrchestrator() (*orchestrator.Orchestrator, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(projectRoot, ".orc", "workflow.yaml")
	reg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	runsRoot := filepath.Join(projectRoot, ".orc", "runs")
	return orchestrator.New(projectRoot, runsRoot, reg), nil
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		configPath := filepath.Join(dir, ".orc", "workflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .orc/workflow.yaml found (searched from cwd to root)")
		}
		dir = parent
	}
}

func profileFor(o *orchestrator.Orchestrator, rs *runstate.RunState) (*config.Profile, int, int) {
	profile, ok := o.Registry.Profile(rs.Profile)
	if !ok {
		return &config.Profile{}, 0, 0
	}
	return profile, len(profile.Phases), profile.PhaseIndex(rs.CurrentPhase)
}
