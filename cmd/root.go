package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/events"
	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/history"
	"github.com/joescharf/kanban/internal/lock"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/store"
	"github.com/joescharf/kanban/internal/syncer"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore *store.FileStore

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Git-backed kanban board",
	Long: `kanban keeps boards and tickets as plain files inside a git repository
and syncs them with the upstream branch: commit, rebase, push.

Tickets live under tickets/<board>/ as Markdown with YAML frontmatter;
board configuration lives in .kanban/config.json.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kanban/config.yaml)")
	rootCmd.PersistentFlags().String("repo", "", "Workspace repository (default: current directory)")
	_ = viper.BindPFlag("repo_root", rootCmd.PersistentFlags().Lookup("repo"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "kanban"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KANBAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults() {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".config", "kanban")
	cwd, _ := os.Getwd()

	viper.SetDefault("repo_root", cwd)
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "kanban.db"))
	viper.SetDefault("prefs_path", filepath.Join(stateDir, "prefs.json"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("git.binary", git.DefaultBinary)
	viper.SetDefault("git.max_output", git.DefaultMaxOutput)
	viper.SetDefault("git.network_timeout", git.DefaultNetworkTimeout)
	viper.SetDefault("git.local_timeout", git.DefaultLocalTimeout)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// rootRun handles `kanban` with no subcommand: board summary when the
// workspace is initialized, help otherwise.
func rootRun(cmd *cobra.Command) error {
	if _, err := os.Stat(filepath.Join(repoRoot(), store.KanbanDir, store.ConfigFile)); err != nil {
		return cmd.Help()
	}
	return boardListRun()
}

// repoRoot returns the absolute workspace directory.
func repoRoot() string {
	root := viper.GetString("repo_root")
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}

// getStore returns the shared store, initializing the workspace on first call.
func getStore() (*store.FileStore, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	s := store.NewFileStore(repoRoot())
	if _, err := s.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("init workspace: %w", err)
	}
	dataStore = s
	return dataStore, nil
}

// workspaceStore returns a store over the workspace without initializing
// it. Status and sync only need the tracked roots and must not create files.
func workspaceStore() *store.FileStore {
	if dataStore != nil {
		return dataStore
	}
	return store.NewFileStore(repoRoot())
}

// newRunner builds a git runner for the workspace from config.
func newRunner() *git.ExecRunner {
	r := git.NewRunner(repoRoot())
	r.Binary = viper.GetString("git.binary")
	r.MaxOutput = viper.GetInt("git.max_output")
	r.NetworkTimeout = viper.GetDuration("git.network_timeout")
	r.LocalTimeout = viper.GetDuration("git.local_timeout")
	return r
}

// newCoordinator returns a sync coordinator over the store's tracked roots.
func newCoordinator(s *store.FileStore) (*git.Coordinator, *git.RealClient) {
	gc := git.NewClient(newRunner())
	return git.NewCoordinator(gc, git.Roots(s.TrackedRoots())), gc
}

// syncDeps holds what newSyncService opened; Close releases it.
type syncDeps struct {
	service *syncer.Service
	history *history.Store
}

func (d *syncDeps) Close() {
	if d.history != nil {
		_ = d.history.Close()
	}
}

// newSyncService wires the coordinator with the cross-process lock, the
// history log (best-effort) and an optional event bus.
func newSyncService(ctx context.Context, s *store.FileStore, bus *events.Bus) *syncDeps {
	coord, gc := newCoordinator(s)
	deps := &syncDeps{}

	var opts []syncer.Option
	if gitDir, err := gc.GitDir(ctx); err == nil {
		if !filepath.IsAbs(gitDir) {
			gitDir = filepath.Join(repoRoot(), gitDir)
		}
		opts = append(opts, syncer.WithLock(lock.ForGitDir(gitDir)))
	}
	if viper.GetBool("history.enabled") {
		h, err := openHistory(ctx)
		if err != nil {
			slog.Warn("sync history unavailable", "error", err)
		} else {
			deps.history = h
			opts = append(opts, syncer.WithHistory(h))
		}
	}
	if bus != nil {
		opts = append(opts, syncer.WithEvents(bus))
	}

	deps.service = syncer.New(coord, opts...)
	return deps
}

// openHistory opens and migrates the sync history database.
func openHistory(ctx context.Context) (*history.Store, error) {
	h, err := history.Open(viper.GetString("db_path"))
	if err != nil {
		return nil, err
	}
	if err := h.Migrate(ctx); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return h, nil
}
