package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"rez-core/internal/core"
	"rez-core/internal/ports"
	"rez-core/internal/types"
)

// ResolveRequest is one pipeline invocation: resolve requirements
// against the configured repository roots and materialize a context.
type ResolveRequest struct {
	Requirements []string
	Roots        []string
	Options      types.PipelineOptions
}

// ResolveResult carries the resolved set, its context, the rendered
// shell script, and the combined report.
type ResolveResult struct {
	Resolved core.ResolvedSet
	Context  *core.Context
	Script   string
	Report   types.PipelineReport
}

// Resolve runs the full pipeline: ensure the repositories are scanned,
// solve, fingerprint, and build the context through the cache.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	start := s.Clock()
	opts := req.Options.Normalize()
	if len(req.Requirements) == 0 {
		return ResolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one requirement is required")
	}
	// Malformed user requirements propagate immediately, unlike package
	// level parse errors which land in the scan report.
	reqs, err := core.ParseRequirements(req.Requirements)
	if err != nil {
		return ResolveResult{}, err
	}

	repo, err := s.scanRoots(ctx, req.Roots, opts.Scan)
	if err != nil {
		return ResolveResult{}, err
	}

	solver := core.NewSolver(repo, opts.Solve)
	solution, err := solver.Solve(ctx, reqs)
	result := ResolveResult{
		Report: types.PipelineReport{Scan: repo.Report()},
	}
	if solution != nil {
		result.Report.Solve = solution.Report
	}
	if err != nil {
		return result, err
	}

	resolved := solution.Set()
	for _, entry := range resolved.Entries {
		assert.NotEmpty(ctx, entry.Package.Name, "resolved entry must carry a package name")
		assert.NotEmpty(ctx, entry.Package.Version.String(), "resolved entry must carry a version")
	}
	result.Resolved = resolved
	fingerprint := core.FingerprintResolvedSet(resolved)
	result.Report.Fingerprint = fingerprint

	built, reused, err := s.contextFor(resolved, fingerprint)
	if err != nil {
		return result, err
	}
	result.Context = built
	result.Report.ContextReuse = reused

	script, err := core.Render(built.Ops, opts.Shell)
	if err != nil {
		return result, err
	}
	result.Script = script
	result.Report.Elapsed = s.Clock().Sub(start)
	log.Ctx(ctx).Debug().
		Uint64("fingerprint", fingerprint).
		Bool("context_reuse", reused).
		Int("packages", len(resolved.Entries)).
		Msg("resolve pipeline complete")
	return result, nil
}

// contextFor consults the cache by fingerprint before interpreting.
func (s *Service) contextFor(resolved core.ResolvedSet, fingerprint uint64) (*core.Context, bool, error) {
	key := fmt.Sprintf("context:%016x", fingerprint)
	if s.Cache != nil {
		if value, ok := s.Cache.Get(key); ok {
			if cached, ok := value.(*core.Context); ok {
				return cached, true, nil
			}
		}
	}
	built, err := core.BuildContext(resolved, s.Clock)
	if err != nil {
		return nil, false, err
	}
	if s.Cache != nil {
		var size int64
		for _, op := range built.Ops {
			size += int64(len(op.Name) + len(op.Value) + len(op.Target) + len(op.Message) + len(op.Path) + 16)
		}
		s.Cache.Put(key, built, size)
	}
	return built, false, nil
}

// scanRoots runs the scanner, reusing the previous repository while no
// root directory mtime changed.
func (s *Service) scanRoots(ctx context.Context, roots []string, opts types.ScanOptions) (ports.RepositoryPort, error) {
	if len(roots) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one repository root is required")
	}
	sig := rootSignature(roots)
	key := fmt.Sprintf("repo:%016x", sig)
	if s.Cache != nil {
		if value, ok := s.Cache.Get(key); ok {
			if repo, ok := value.(ports.RepositoryPort); ok {
				return repo, nil
			}
		}
	}
	repo, err := s.Scanner.Scan(ctx, roots, opts)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Put(key, repo, int64(repo.Report().Packages)*256)
	}
	return repo, nil
}

// rootSignature digests the root paths with the mtime of each root and
// of its package name directories, so touching a repository
// invalidates the memoized scan.
func rootSignature(roots []string) uint64 {
	d := xxhash.New()
	for _, root := range roots {
		_, _ = d.WriteString(root)
		_, _ = d.WriteString("\x00")
		if info, err := os.Stat(root); err == nil {
			_, _ = d.WriteString(fmt.Sprintf("%d", info.ModTime().UnixNano()))
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			_, _ = d.WriteString(entry.Name())
			_, _ = d.WriteString(fmt.Sprintf("%d", info.ModTime().UnixNano()))
			// Version directories are one level down; their names are
			// digested so adding or removing a version changes the signature.
			sub, err := os.ReadDir(filepath.Join(root, entry.Name()))
			if err != nil {
				continue
			}
			for _, versionEntry := range sub {
				_, _ = d.WriteString(versionEntry.Name())
			}
		}
	}
	return d.Sum64()
}

// Scan exposes the scanner surface directly.
func (s *Service) Scan(ctx context.Context, roots []string, opts types.ScanOptions) (types.ScanReport, error) {
	repo, err := s.Scanner.Scan(ctx, roots, opts)
	if err != nil {
		return types.ScanReport{}, err
	}
	return repo.Report(), nil
}

// BuildContext materializes a resolved set for one shell.
func (s *Service) BuildContext(resolved core.ResolvedSet, shell types.Shell) (*core.Context, string, error) {
	built, _, err := s.contextFor(resolved, core.FingerprintResolvedSet(resolved))
	if err != nil {
		return nil, "", err
	}
	script, err := core.Render(built.Ops, shell)
	if err != nil {
		return nil, "", err
	}
	return built, script, nil
}

// ParseVersion exposes the version parser.
func (s *Service) ParseVersion(input string) (core.Version, error) {
	return core.ParseVersion(input)
}
