package architecture

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"archscan/internal/catalog"
	"archscan/internal/config"
	"archscan/internal/coverage"
	"archscan/internal/crawler"
	archerrors "archscan/internal/errors"
	"archscan/internal/legacy"
	"archscan/internal/model"
	"archscan/internal/origin"
	"archscan/internal/paths"
	"archscan/internal/policy"
	"archscan/internal/resolve"
	"archscan/internal/risk"
	"archscan/internal/slogutil"
	"archscan/internal/surface"
	"archscan/internal/usage"
)

// Scanner runs the full analysis pipeline over one root directory.
type Scanner struct {
	cfg      *config.Config
	policy   *policy.Policy
	routes   *catalog.RoutingTable
	catalog  *catalog.Catalog
	risks    *risk.Table
	logger   *slog.Logger
	clock    func() time.Time
	progress func(crawler.Progress)
	readFile func(string) ([]byte, error)
	noAST    bool
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the scan logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithClock overrides the scan timestamp source
func WithClock(clock func() time.Time) Option {
	return func(s *Scanner) { s.clock = clock }
}

// WithProgress reports crawl progress. The callback runs on worker goroutines.
func WithProgress(fn func(crawler.Progress)) Option {
	return func(s *Scanner) { s.progress = fn }
}

// WithPolicy replaces the policy otherwise loaded from the config.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Scanner) { s.policy = p }
}

// WithReadFile overrides how component content is read.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(s *Scanner) { s.readFile = fn }
}

// WithoutAST forces the regex surface extractor
func WithoutAST() Option {
	return func(s *Scanner) { s.noAST = true }
}

// NewScanner validates cfg and loads the policy, routing table and backend
// catalog it references. Every failure is a configuration error.
func NewScanner(cfg *config.Config, opts ...Option) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "invalid configuration", err)
	}

	s := &Scanner{
		cfg:   cfg,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slogutil.NewDiscardLogger()
	}

	if s.policy == nil {
		p, err := policy.Load(cfg.ResolvePath(cfg.PolicyFile))
		if err != nil {
			return nil, archerrors.New(archerrors.ConfigurationError, "cannot load policy", err)
		}
		s.policy = p
	} else if err := s.policy.Validate(); err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "invalid policy", err)
	}

	table, err := risk.NewTable(s.policy.Risk)
	if err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "invalid risk table", err)
	}
	s.risks = table

	routes, err := catalog.LoadRoutes(cfg.ResolvePath(cfg.RoutingTableFile))
	if err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "cannot load routing table", err)
	}
	s.routes = routes

	backends, err := catalog.LoadCatalog(cfg.ResolvePath(cfg.BackendCatalogFile))
	if err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "cannot load backend catalog", err)
	}
	s.catalog = backends

	s.logger.Debug("Scanner configured",
		"root", cfg.RootDirectory,
		"routes", routes.Len(),
		"strict", s.policy.Legacy.StrictEligibility,
	)
	return s, nil
}

// Policy returns the effective policy
func (s *Scanner) Policy() *policy.Policy { return s.policy }

// Scan runs every stage in order. When ctx is cancelled it returns the
// partial map built so far together with a CANCELLED error; a partial map
// never carries risk levels, plans or a roadmap.
func (s *Scanner) Scan(ctx context.Context) (*ArchitectureMap, error) {
	start := s.clock()
	root := s.cfg.RootDirectory
	m := &ArchitectureMap{
		ScanID:      uuid.NewString(),
		GeneratedAt: start.UTC(),
		Root:        root,
		Origins:     map[string]model.ComponentOrigin{},
	}
	logger := s.logger.With("scan", m.ScanID)
	logger.Info("Scan started", "root", root)

	extractor := surface.NewExtractor(logger)
	if s.noAST {
		extractor.DisableAST()
	}

	// A backup directory equal to the root is refused later by legacy
	// detection; skipping it here would hide the whole tree.
	skip := []string{paths.StateDir(root)}
	if bd := s.cfg.ResolvePath(s.cfg.BackupTargetDirectory); bd != "" && filepath.Clean(bd) != filepath.Clean(root) {
		skip = append(skip, bd)
	}
	exclude := append(append([]string{}, s.cfg.ExcludeGlobs...), s.cfg.TestGlobs...)

	// Sources
	sources, err := s.crawl(ctx, crawler.Options{
		Root:           root,
		Include:        s.cfg.IncludeGlobs,
		Exclude:        exclude,
		MaxFileSize:    s.cfg.MaxFileSizeBytes,
		MaxConcurrency: s.cfg.MaxConcurrency,
		SkipDirs:       skip,
		Progress:       s.progress,
		ReadFile:       s.readFile,
	}, extractor, logger)
	if sources != nil {
		m.Components = sources.Components
		m.Warnings = append(m.Warnings, sources.Warnings...)
	}
	if err != nil {
		return s.partial(m, err, logger)
	}

	// Tests
	tests, err := s.crawl(ctx, crawler.Options{
		Root:           root,
		Include:        s.cfg.TestGlobs,
		Exclude:        s.cfg.ExcludeGlobs,
		MaxFileSize:    s.cfg.MaxFileSizeBytes,
		MaxConcurrency: s.cfg.MaxConcurrency,
		SkipDirs:       skip,
		ReadFile:       s.readFile,
	}, extractor, logger)
	if tests != nil {
		m.Tests = tests.Components
		m.Warnings = append(m.Warnings, tests.Warnings...)
	}
	if err != nil {
		return s.partial(m, err, logger)
	}

	detector := origin.NewDetector(s.policy.Origin, origin.ReferenceTime(m.Components))
	origins, err := detector.DetectAll(ctx, m.Components, s.cfg.MaxConcurrency)
	if err != nil {
		return s.partial(m, err, logger)
	}
	m.Origins = origins

	resolver, err := resolve.New(m.Components, s.cfg.PathAliases)
	if err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "invalid path aliases", err)
	}

	entries := append(append([]string{}, s.cfg.EntryPoints...), ManifestEntryPoints(root, m.Components)...)
	an, err := usage.NewAnalyzer(resolver, logger).Analyze(ctx, m.Components, entries)
	if err != nil {
		return s.partial(m, err, logger)
	}
	if err := an.CheckInvariants(); err != nil {
		return nil, err
	}
	m.Usage = an
	m.Warnings = append(m.Warnings, an.Warnings()...)

	cov, err := coverage.NewAnalyzer(resolver, s.cfg.MaxConcurrency, logger).Analyze(ctx, m.Components, m.Tests)
	if err != nil {
		return s.partial(m, err, logger)
	}
	m.Coverage = cov

	scanned, err := s.catalog.ScanAll(ctx, m.Components, s.cfg.MaxConcurrency, s.readComponent)
	if err != nil {
		return s.partial(m, err, logger)
	}
	m.Warnings = append(m.Warnings, scanned.Warnings...)
	backends := scanned.Backends
	m.Backends = backends

	// Risk is all or nothing; a cancelled scan never reaches this point.
	if err := ctx.Err(); err != nil {
		return s.partial(m, err, logger)
	}
	m.Risks = make(map[string]risk.Decision, m.Components.Len())
	for id := range m.Components.All() {
		o := m.Origins[id]
		m.Risks[id] = s.risks.Evaluate(risk.Inputs{
			Origin:        o.Origin,
			Confidence:    o.Confidence,
			Reachable:     an.IsReachable(id),
			ActiveBackend: catalog.HasActive(backends[id]),
			Covered:       cov.IsCovered(id),
		})
	}

	report, err := legacy.NewDetector(legacy.Options{
		Policy:    s.policy,
		Root:      root,
		BackupDir: s.cfg.BackupTargetDirectory,
		ScanTime:  start,
	}, logger).Detect(legacy.Inputs{
		Components: m.Components,
		Origins:    m.Origins,
		Usage:      an,
		Coverage:   cov,
		Backends:   backends,
		Routes:     s.routes,
		Risks:      m.RiskLevels(),
		Changed:    scanned.Changed,
	})
	if err != nil {
		return nil, err
	}
	m.Legacy = report

	roadmap, err := PlanCleanup(m, s.policy.Roadmap)
	if err != nil {
		return nil, err
	}
	m.Roadmap = roadmap
	m.Warnings = sortWarnings(m.Warnings)

	logger.Info("Scan complete",
		"components", m.Components.Len(),
		"tests", m.Tests.Len(),
		"edges", len(an.Edges()),
		"eligible", len(report.Plans),
		"warnings", len(m.Warnings),
		"duration", time.Since(start).String(),
	)
	return m, nil
}

func (s *Scanner) crawl(ctx context.Context, opts crawler.Options, extractor *surface.Extractor, logger *slog.Logger) (*crawler.Result, error) {
	c, err := crawler.New(opts, extractor, logger)
	if err != nil {
		return nil, archerrors.New(archerrors.ConfigurationError, "invalid crawl options", err)
	}
	return c.Crawl(ctx)
}

func (s *Scanner) readComponent(c *model.ComponentInfo) ([]byte, error) {
	if s.readFile != nil {
		return s.readFile(c.Path)
	}
	return catalog.ReadComponent(c)
}

// partial finishes a cancelled scan. Layers completed before cancellation
// are kept; origins are filled in synchronously for whatever components were
// read. Errors other than cancellation are returned as-is.
func (s *Scanner) partial(m *ArchitectureMap, err error, logger *slog.Logger) (*ArchitectureMap, error) {
	if !archerrors.IsCancelled(err) && !isContextErr(err) {
		return nil, err
	}
	m.Partial = true
	m.Risks = nil
	m.Legacy = nil
	m.Roadmap = nil
	if m.Components == nil {
		m.Components = model.NewComponentMap()
	}
	if m.Tests == nil {
		m.Tests = model.NewComponentMap()
	}
	if len(m.Origins) != m.Components.Len() {
		detector := origin.NewDetector(s.policy.Origin, origin.ReferenceTime(m.Components))
		m.Origins = make(map[string]model.ComponentOrigin, m.Components.Len())
		for id, c := range m.Components.All() {
			m.Origins[id] = detector.Detect(c)
		}
	}
	m.Warnings = sortWarnings(m.Warnings)

	logger.Warn("Scan cancelled", "components", m.Components.Len())
	if archerrors.IsCancelled(err) {
		return m, err
	}
	return m, archerrors.New(archerrors.Cancelled, "scan cancelled", err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
