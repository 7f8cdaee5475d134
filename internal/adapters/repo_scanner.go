package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"rez-core/internal/core"
	"rez-core/internal/ports"
	"rez-core/internal/types"
)

// Repository is an immutable scanned package universe. Versions of a
// name are held newest-first; across roots, earlier-configured roots
// mask later ones at the same (name, version).
type Repository struct {
	packages map[string][]*core.Package
	names    []string
	report   types.ScanReport
}

// PackageVersions returns the usable versions of name, newest first.
func (r *Repository) PackageVersions(name string) []*core.Package {
	return r.packages[name]
}

// PackageNames returns every known package name in ascending order.
func (r *Repository) PackageNames() []string { return r.names }

// Report returns the scan report of the producing scan.
func (r *Repository) Report() types.ScanReport { return r.report }

// Packages returns every package in (name ascending, version
// descending) emission order.
func (r *Repository) Packages() []*core.Package {
	var out []*core.Package
	for _, name := range r.names {
		out = append(out, r.packages[name]...)
	}
	return out
}

// Scanner discovers packages under repository roots with bounded
// concurrency, consulting the cache by (path, mtime, size) so repeated
// scans parse only what changed.
type Scanner struct {
	cache ports.CachePort
}

// NewScanner creates a scanner backed by the shared cache. cache may
// be nil, which disables definition caching.
func NewScanner(cache ports.CachePort) *Scanner {
	return &Scanner{cache: cache}
}

// versionDir is one enumerated (root, name, version) tuple awaiting
// the parse phase.
type versionDir struct {
	rootIdx int
	name    string
	version string
	dir     string
}

// Scan walks the roots in two phases: concurrent enumeration, then
// concurrent parsing behind a semaphore. A parse failure skips the one
// package; an unreadable root is fatal for that root only.
func (s *Scanner) Scan(ctx context.Context, roots []string, opts types.ScanOptions) (ports.RepositoryPort, error) {
	opts = opts.Normalize()
	report := types.ScanReport{}

	enumStart := time.Now()
	dirs, rootReports, enumErrs := s.enumerate(ctx, roots, opts)
	report.EnumElapsed = time.Since(enumStart)
	report.Errors = append(report.Errors, enumErrs...)
	if ctx.Err() != nil {
		return nil, cancelledError()
	}

	parseStart := time.Now()
	result, err := s.parseAll(ctx, dirs, opts, &report, rootReports)
	if err != nil {
		return nil, err
	}
	report.ParseElapsed = time.Since(parseStart)
	report.Roots = rootReports

	repo := buildRepository(result, report)
	log.Ctx(ctx).Debug().
		Int("packages", repo.report.Packages).
		Int("peak_concurrency", repo.report.PeakConcurrency).
		Int("cache_hits", repo.report.CacheHits).
		Msg("repository scan complete")
	return repo, nil
}

func cancelledError() error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("cancelled: scan interrupted")
}

// enumerate collects (name, version-dir) tuples from each root. Roots
// are walked concurrently; fanout and recursion depth are bounded.
func (s *Scanner) enumerate(ctx context.Context, roots []string, opts types.ScanOptions) ([]versionDir, []types.RootReport, []types.ScanError) {
	rootReports := make([]types.RootReport, len(roots))
	perRoot := make([][]versionDir, len(roots))
	var mu sync.Mutex
	var scanErrs []types.ScanError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, root := range roots {
		rootReports[i] = types.RootReport{Root: root}
		g.Go(func() error {
			dirs, err := enumerateRoot(gctx, i, root, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				scanErrs = append(scanErrs, types.ScanError{Path: root, Message: err.Error()})
				return nil
			}
			perRoot[i] = dirs
			return nil
		})
	}
	_ = g.Wait()

	var out []versionDir
	for _, dirs := range perRoot {
		out = append(out, dirs...)
	}
	return out, rootReports, scanErrs
}

// enumerateRoot reads the two-level <name>/<version> layout of one
// root. An I/O error at the root level is fatal for the root.
func enumerateRoot(ctx context.Context, rootIdx int, root string, opts types.ScanOptions) ([]versionDir, error) {
	if opts.MaxDepth < 2 {
		return nil, nil
	}
	nameEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	if len(nameEntries) > opts.MaxFanout {
		nameEntries = nameEntries[:opts.MaxFanout]
	}
	var out []versionDir
	for _, nameEntry := range nameEntries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !nameEntry.IsDir() {
			continue
		}
		nameDir := filepath.Join(root, nameEntry.Name())
		versionEntries, err := os.ReadDir(nameDir)
		if err != nil {
			// A vanished or unreadable name directory is not fatal for
			// the root.
			continue
		}
		if len(versionEntries) > opts.MaxFanout {
			versionEntries = versionEntries[:opts.MaxFanout]
		}
		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() {
				continue
			}
			out = append(out, versionDir{
				rootIdx: rootIdx,
				name:    nameEntry.Name(),
				version: versionEntry.Name(),
				dir:     filepath.Join(nameDir, versionEntry.Name()),
			})
		}
	}
	return out, nil
}

// parsedPackage pairs a parsed package with its origin for masking.
type parsedPackage struct {
	rootIdx int
	pkg     *core.Package
}

// parseAll runs the parse phase behind a weighted semaphore and
// records peak observed concurrency.
func (s *Scanner) parseAll(ctx context.Context, dirs []versionDir, opts types.ScanOptions, report *types.ScanReport, rootReports []types.RootReport) ([]parsedPackage, error) {
	sem := semaphore.NewWeighted(int64(opts.Workers))
	var (
		mu     sync.Mutex
		parsed []parsedPackage
		active atomic.Int64
		peak   atomic.Int64
		mmaps  atomic.Int64
		hits   atomic.Int64
		misses atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, vd := range dirs {
		if gctx.Err() != nil {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			cur := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			pkg, fromCache, usedMmap, err := s.loadPackage(vd, opts)
			if usedMmap {
				mmaps.Add(1)
			}
			if fromCache {
				hits.Add(1)
			} else {
				misses.Add(1)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, types.ScanError{Path: vd.dir, Message: err.Error()})
				rootReports[vd.rootIdx].Failed++
				return nil
			}
			parsed = append(parsed, parsedPackage{rootIdx: vd.rootIdx, pkg: pkg})
			rootReports[vd.rootIdx].Packages++
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, cancelledError()
	}
	report.PeakConcurrency = int(peak.Load())
	report.MmapReads = int(mmaps.Load())
	report.CacheHits = int(hits.Load())
	report.CacheMisses = int(misses.Load())
	return parsed, nil
}

// loadPackage probes the definition file names in order, consults the
// cache by (path, mtime, size), and parses on a miss. Files at or
// above the mmap threshold are memory-mapped for the read.
func (s *Scanner) loadPackage(vd versionDir, opts types.ScanOptions) (pkg *core.Package, fromCache bool, usedMmap bool, err error) {
	var defPath string
	var info os.FileInfo
	for _, filename := range DefinitionFileNames {
		candidate := filepath.Join(vd.dir, filename)
		fi, statErr := os.Stat(candidate)
		if statErr == nil && !fi.IsDir() {
			defPath, info = candidate, fi
			break
		}
	}
	if defPath == "" {
		return nil, false, false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("not_found: no package definition in %s (probed %s)",
				vd.dir, strings.Join(DefinitionFileNames, ", ")))
	}

	abs, err := filepath.Abs(defPath)
	if err != nil {
		abs = defPath
	}
	cacheKey := fmt.Sprintf("pkgdef:%s|%d|%d", abs, info.ModTime().UnixNano(), info.Size())
	if s.cache != nil {
		if value, ok := s.cache.Get(cacheKey); ok {
			if cached, ok := value.(*core.Package); ok {
				return cached, true, false, nil
			}
		}
	}

	data, usedMmap, err := readDefinition(defPath, info.Size(), opts.MmapThreshold)
	if err != nil {
		return nil, false, usedMmap, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("io_error: failed to read package definition").
			WithCause(err)
	}
	def, err := DecodePackageDef(filepath.Base(defPath), data)
	if err != nil {
		return nil, false, usedMmap, err
	}
	pkg = core.NewPackage(def, defPath, data)
	if diags := pkg.Validate(vd.name, vd.version); !core.Usable(diags) {
		return nil, false, usedMmap, validationError(defPath, diags)
	}
	if s.cache != nil {
		s.cache.Put(cacheKey, pkg, info.Size())
	}
	return pkg, false, usedMmap, nil
}

func validationError(path string, diags []types.Diagnostic) error {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Level == types.DiagnosticError {
			msgs = append(msgs, d.Field+": "+d.Message)
		}
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("validation_error: %s: %s", path, strings.Join(msgs, "; ")))
}

// readDefinition reads the definition bytes, memory-mapping files at
// or above the threshold. The returned slice is always an owned copy;
// the mapping is released before returning.
func readDefinition(path string, size int64, mmapThreshold int64) ([]byte, bool, error) {
	if size < mmapThreshold {
		data, err := os.ReadFile(path)
		return data, false, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Fall back to a plain read when mapping is unavailable.
		data, rerr := os.ReadFile(path)
		return data, false, rerr
	}
	defer mapped.Unmap()
	data := make([]byte, len(mapped))
	copy(data, mapped)
	return data, true, nil
}

// buildRepository applies root masking and emission ordering.
func buildRepository(parsed []parsedPackage, report types.ScanReport) *Repository {
	type key struct {
		name    string
		version string
	}
	chosen := map[key]parsedPackage{}
	for _, pp := range parsed {
		k := key{name: pp.pkg.Name, version: pp.pkg.Version.String()}
		if cur, ok := chosen[k]; ok && cur.rootIdx <= pp.rootIdx {
			continue
		}
		chosen[k] = pp
	}
	packages := map[string][]*core.Package{}
	for k, pp := range chosen {
		packages[k.name] = append(packages[k.name], pp.pkg)
	}
	names := make([]string, 0, len(packages))
	total := 0
	for name, versions := range packages {
		sort.Slice(versions, func(i, j int) bool {
			return versions[j].Version.LessThan(versions[i].Version)
		})
		names = append(names, name)
		total += len(versions)
	}
	sort.Strings(names)
	report.Packages = total
	return &Repository{packages: packages, names: names, report: report}
}
