package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"archscan/internal/architecture"
	"archscan/internal/config"
	"archscan/internal/crawler"
	archerrors "archscan/internal/errors"
	"archscan/internal/ledger"
	"archscan/internal/paths"
	"archscan/internal/slogutil"
)

// session bundles what every command needs: the repo root, its config and a
// logger that honours -v/-q.
type session struct {
	repoRoot string
	cfg      *config.Config
	logs     *slogutil.LoggerFactory
	logger   *slog.Logger
}

func (s *session) Close() error { return s.logs.Close() }

// getRepoRoot returns --root or the working directory.
func getRepoRoot() (string, error) {
	if rootFlag != "" {
		return filepath.Abs(rootFlag)
	}
	return os.Getwd()
}

func cliLevel(cmd *cobra.Command) *slog.Level {
	flags := cmd.Flags()
	if !flags.Changed("verbose") && !flags.Changed("quiet") {
		return nil
	}
	level := slogutil.LevelFromVerbosity(verboseFlag, quietFlag)
	return &level
}

func openSession(cmd *cobra.Command) (*session, error) {
	repoRoot, err := getRepoRoot()
	if err != nil {
		return nil, archerrors.New(archerrors.InternalError, "failed to get current directory", err)
	}
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "failed to load configuration", err)
	}

	logs := slogutil.NewLoggerFactory(repoRoot, cfg, cliLevel(cmd))
	logs.SetConsole(cmd.ErrOrStderr())
	return &session{
		repoRoot: repoRoot,
		cfg:      cfg,
		logs:     logs,
		logger:   logs.ScanLogger(),
	}, nil
}

// newContext is cancelled on SIGINT or SIGTERM so a scan stops cleanly and
// reports what it completed.
func newContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// scan runs a full scan with progress logging at debug level.
func (s *session) scan(ctx context.Context) (*architecture.ArchitectureMap, error) {
	scanner, err := architecture.NewScanner(s.cfg,
		architecture.WithLogger(s.logger),
		architecture.WithProgress(func(p crawler.Progress) {
			if p.Done%250 == 0 {
				s.logger.Debug("Crawl progress", "done", p.Done, "discovered", p.Discovered)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return scanner.Scan(ctx)
}

func (s *session) openLedger() (*ledger.Store, error) {
	path := s.cfg.Ledger.Path
	if path == "" {
		path = paths.LedgerPath(s.repoRoot)
	} else {
		path = s.cfg.ResolvePath(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, archerrors.New(archerrors.LedgerError, "create ledger directory", err)
	}
	return ledger.Open(path, s.logger)
}

// recordPlans appends the map's plans to the ledger when it is enabled.
func (s *session) recordPlans(ctx context.Context, m *architecture.ArchitectureMap) (int, error) {
	if !s.cfg.Ledger.Enabled || len(m.Plans()) == 0 {
		return 0, nil
	}
	store, err := s.openLedger()
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.RecordPlans(ctx, m.ScanID, m.Root, m.GeneratedAt, m.Plans())
}

// componentArg turns a command line path into a component id. Absolute
// paths, including ones reached through a symlink, are made root-relative.
func componentArg(root, arg string) string {
	if filepath.IsAbs(arg) {
		if rel, err := paths.CanonicalizePath(arg, root); err == nil {
			return paths.ComponentID(rel)
		}
	}
	return paths.ComponentID(arg)
}
