package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"repo-watcher/internal/config"
	"repo-watcher/internal/github"
	"repo-watcher/internal/logger"
	"repo-watcher/internal/notifier"
	"repo-watcher/internal/watcher"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "repo-watcher",
		Short: "Announce new GitHub commits, pull requests and branches on Discord",
		Long: `repo-watcher polls a GitHub repository and posts a Discord embed for every
new top commit, new top pull request and newly created branch.

The repository, token and webhook come from the configuration file or from
REPO_WATCHER_REPOSITORY, REPO_WATCHER_GITHUB_TOKEN and
REPO_WATCHER_DISCORD_WEBHOOK_URL.`,
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := start(cmd.Context(), configPath, once)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&once, "once", false, "run a single polling cycle and exit")
	return cmd
}

// start loads configuration, verifies GitHub access and runs until interrupted
func start(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(cfg)

	slog.Info("Repository watcher started",
		"version", version,
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level)

	client, err := github.NewClient(cfg)
	if err != nil {
		return err
	}
	if err := client.TestConnection(ctx); err != nil {
		slog.Error("GitHub connection test failed", "status", github.StatusText(err), "error", err)
		return err
	}

	slog.Info("GitHub connection test succeeded")
	slog.Info("Loaded configuration",
		"repository", cfg.GitHub.Repository,
		"interval", cfg.Watch.Interval,
		"seed_on_start", cfg.Watch.SeedOnStart,
		"branch_baseline", cfg.Watch.BranchBaseline,
		"email_recipients", cfg.Notifiers.SMTP.To,
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			slog.Info("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg, client, once); err != nil {
		slog.Error("Application error", "error", err)
		return err
	}

	slog.Info("Shutdown complete.")
	return nil
}

// run wires the notifiers and drives the watcher
func run(ctx context.Context, cfg *config.Config, source watcher.Source, once bool) error {
	w := watcher.New(source, buildNotifiers(cfg), watcher.Options{
		Interval:       cfg.Watch.Interval,
		SeedOnStart:    cfg.Watch.SeedOnStart,
		BranchBaseline: cfg.Watch.BranchBaseline,
	})

	if once {
		if cfg.Watch.SeedOnStart {
			w.Seed(ctx)
		}
		w.CheckForChanges(ctx)
		return nil
	}
	return w.Run(ctx)
}

// buildNotifiers returns Discord first, then e-mail when SMTP is configured
func buildNotifiers(cfg *config.Config) []notifier.Notifier {
	notifiers := []notifier.Notifier{
		notifier.NewDiscordNotifier(cfg),
	}
	if cfg.SMTPEnabled() {
		notifiers = append(notifiers, notifier.NewEmailNotifier(cfg))
	}
	return notifiers
}
