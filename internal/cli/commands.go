package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/refsync/refsync/internal/config"
	"github.com/refsync/refsync/internal/progress"
	"github.com/refsync/refsync/internal/snapshot"
	"github.com/refsync/refsync/internal/sync"
	"github.com/refsync/refsync/internal/ui"
	"github.com/refsync/refsync/internal/ui/tui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or initialize the configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					data, err := yaml.Marshal(cfg)
					if err != nil {
						return err
					}
					fmt.Print(string(data))
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "Write a default config file",
				Action: func(_ context.Context, _ *cli.Command) error {
					if config.Exists() {
						return fmt.Errorf("config file already exists at %s", config.FilePath())
					}
					if err := config.Default().Save(); err != nil {
						return err
					}
					fmt.Println(ui.StatusSuccess("wrote " + config.FilePath()))
					return nil
				},
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			if config.Exists() {
				fmt.Printf("config file: %s\n", config.FilePath())
			} else {
				fmt.Printf("no config file; defaults in effect (would be %s)\n", config.FilePath())
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Synchronize the local library with a remote replica",
		UsageText: "refsync sync [options]",
		Description: `Synchronize records and PDFs between the local library and a remote
   replica. The remote can be any mounted path, including network volumes,
   and is created on first contact.

   Examples:
     refsync sync --remote /mnt/nas/library
     refsync sync --auto
     refsync sync --tui`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "local",
				Usage: "Local replica root (default: from config)",
			},
			&cli.StringFlag{
				Name:    "remote",
				Aliases: []string{"r"},
				Usage:   "Remote replica root (default: from config)",
			},
			&cli.BoolFlag{
				Name:    "auto",
				Aliases: []string{"a"},
				Usage:   "Resolve every conflict by keeping both versions, without prompting",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Resolve conflicts in the interactive conflict browser",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Preview changes without modifying either replica",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress bar",
			},
			&cli.BoolFlag{
				Name:  "no-backup",
				Usage: "Skip pre-overwrite copies into the replica vaults",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			localRoot, remoteRoot, err := resolveRoots(cmd, cfg)
			if err != nil {
				return err
			}

			if cmd.Bool("dry-run") {
				return printPlan(os.Stdout, localRoot, remoteRoot)
			}

			auto := cmd.Bool("auto") || cfg.Sync.Auto
			useTui := cmd.Bool("tui") || cfg.Sync.Tui

			opts := sync.Options{
				LocalRoot:  localRoot,
				RemoteRoot: remoteRoot,
				AutoMode:   auto,
				Backups:    !cmd.Bool("no-backup"),
			}
			if !auto {
				if useTui {
					opts.Resolver = tui.NewConflictResolver()
				} else {
					opts.Resolver = NewPromptResolver()
				}
			}
			// A live bar would fight the prompt and the TUI for the
			// terminal, so it only runs unattended syncs.
			if auto && !cmd.Bool("no-progress") && cfg.Output.Progress != "never" {
				bar := progress.ForSync(cfg.Output.Progress == "always")
				opts.Progress = progress.StageBar(bar)
			}

			engine, err := sync.NewEngine(opts)
			if err != nil {
				return err
			}
			result, err := engine.Run(ctx)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			fmt.Print(result.Summary())
			if result.HasErrors() {
				fmt.Println(ui.StatusWarning("some items could not be synchronized"))
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show pending divergence between the replicas",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "local",
				Usage: "Local replica root (default: from config)",
			},
			&cli.StringFlag{
				Name:    "remote",
				Aliases: []string{"r"},
				Usage:   "Remote replica root (default: from config)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			localRoot, remoteRoot, err := resolveRoots(cmd, cfg)
			if err != nil {
				return err
			}
			return printPlan(os.Stdout, localRoot, remoteRoot)
		},
	}
}

// resolveRoots determines the replica roots from flags and config.
func resolveRoots(cmd *cli.Command, cfg *config.Config) (string, string, error) {
	localRoot := cmd.String("local")
	if localRoot == "" {
		localRoot = cfg.LocalRoot()
	}
	remoteRoot := cmd.String("remote")
	if remoteRoot == "" {
		remoteRoot = cfg.RemoteRoot()
	}
	if localRoot == "" {
		return "", "", errors.New("no local replica root; set --local or replicas.local in the config")
	}
	if remoteRoot == "" {
		return "", "", errors.New("no remote replica root; set --remote or replicas.remote in the config")
	}
	return localRoot, remoteRoot, nil
}

// printPlan diffs the replicas without mutating either and prints what a
// sync run would do.
func printPlan(w io.Writer, localRoot, remoteRoot string) error {
	localSnap, localWarns, err := snapshot.Read(localRoot)
	if err != nil {
		return fmt.Errorf("local replica: %w", err)
	}
	remoteSnap, remoteWarns, err := snapshot.Read(remoteRoot)
	if err != nil {
		return fmt.Errorf("remote replica: %w", err)
	}
	for _, warn := range append(localWarns, remoteWarns...) {
		fmt.Fprintln(w, ui.StatusWarning(warn))
	}

	report := sync.Diff(localSnap, remoteSnap, sync.LoadBaseline(localRoot))

	if !report.HasWork() {
		fmt.Fprintln(w, ui.StatusSuccess("replicas are identical"))
		return nil
	}

	for _, item := range report.LocalOnly {
		fmt.Fprintf(w, "  %s %s %s (%s)\n", ui.Local("→"), item.Kind, item.Key, sync.LocalToRemote)
	}
	for _, item := range report.RemoteOnly {
		fmt.Fprintf(w, "  %s %s %s (%s)\n", ui.Remote("←"), item.Kind, item.Key, sync.RemoteToLocal)
	}
	for _, au := range report.AutoUpdates {
		fmt.Fprintf(w, "  ~ %s %s (%s)\n", au.Kind, au.Key, au.Direction)
	}
	for _, key := range report.AssocMerges {
		fmt.Fprintf(w, "  + record %s (merge tags/collections)\n", key)
	}
	for _, conflict := range report.Conflicts {
		fmt.Fprintf(w, "  %s %s\n", ui.Error("!"), conflict.Summary())
	}

	fmt.Fprintf(w, "\n%d identical, %d conflict(s), %d pending change(s)\n",
		report.Identical,
		len(report.Conflicts),
		len(report.LocalOnly)+len(report.RemoteOnly)+len(report.AutoUpdates)+len(report.AssocMerges))
	return nil
}
