package integration

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"rez-core/internal/app"
	"rez-core/internal/types"
	"rez-core/tests/testutil"
)

func newTestService(t *testing.T) *app.Service {
	t.Helper()
	service := app.NewService(types.CacheOptions{MaintenanceInterval: time.Hour})
	t.Cleanup(service.Close)
	return service
}

func resolvedLabels(result app.ResolveResult) []string {
	var labels []string
	for _, entry := range result.Resolved.Entries {
		labels = append(labels, entry.Package.QualifiedName())
	}
	return labels
}

func TestPipelineSimpleResolve(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "python", Version: "3.9.0"},
		testutil.PackageSpec{Name: "python", Version: "3.10.0"},
	)
	service := newTestService(t)
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"python>=3.9"},
		Roots:        []string{root},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"python-3.10.0"}, resolvedLabels(result))
	require.LessOrEqual(t, result.Report.Solve.Iterations, 2)
}

func TestPipelineDiamond(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "python", Version: "3.9.0"},
		testutil.PackageSpec{Name: "libA", Version: "1.0.0", Requires: []string{"python>=3.9"}},
		testutil.PackageSpec{Name: "libB", Version: "2.0.0", Requires: []string{"python>=3.9"}},
		testutil.PackageSpec{Name: "app", Version: "1.0.0", Requires: []string{"libA", "libB"}},
	)
	service := newTestService(t)
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"app"},
		Roots:        []string{root},
	})
	require.NoError(t, err)
	want := []string{"python-3.9.0", "libA-1.0.0", "libB-2.0.0", "app-1.0.0"}
	if diff := cmp.Diff(want, resolvedLabels(result)); diff != "" {
		t.Fatalf("unexpected resolve (-want +got):\n%s", diff)
	}
}

func TestPipelineConflict(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "pkg", Version: "1.0.0", Requires: []string{"foo>=2"}},
		testutil.PackageSpec{Name: "pkg", Version: "2.0.0", Requires: []string{"foo<2"}},
		testutil.PackageSpec{Name: "foo", Version: "1.5.0"},
		testutil.PackageSpec{Name: "foo", Version: "2.5.0"},
	)
	service := newTestService(t)
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"pkg-1.0.0", "foo-1.5.0"},
		Roots:        []string{root},
	})
	require.Error(t, err)
	require.Equal(t, types.SolveUnsolvable, result.Report.Solve.Status)
	found := false
	for _, conflict := range result.Report.Solve.Conflicts {
		if conflict.Kind == types.ConflictVersion && conflict.Package == "foo" {
			found = true
		}
	}
	require.True(t, found)
}

func TestPipelineCycle(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "a", Version: "1.0.0", Requires: []string{"b"}},
		testutil.PackageSpec{Name: "b", Version: "1.0.0", Requires: []string{"a"}},
	)
	service := newTestService(t)
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"a"},
		Roots:        []string{root},
	})
	require.Error(t, err)
	require.Equal(t, types.SolveUnsolvable, result.Report.Solve.Status)
	require.LessOrEqual(t, result.Report.Solve.Iterations, 4)
}

func TestPipelineVariantSelection(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "python", Version: "3.10.0"},
		testutil.PackageSpec{Name: "tool", Version: "1.0.0", Variants: [][]string{{"python-3.9"}, {"python-3.10"}}},
	)
	service := newTestService(t)
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"tool"},
		Roots:        []string{root},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"python-3.10.0", "tool-1.0.0"}, resolvedLabels(result))
	entry, ok := result.Resolved.Lookup("tool")
	require.True(t, ok)
	require.Equal(t, 1, entry.Variant)
}

func TestPipelineFingerprintReuseAndChange(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "python", Version: "3.9.0"},
		testutil.PackageSpec{Name: "python", Version: "3.10.0"},
	)
	service := newTestService(t)
	request := app.ResolveRequest{
		Requirements: []string{"python>=3.9"},
		Roots:        []string{root},
	}

	first, err := service.Resolve(t.Context(), request)
	require.NoError(t, err)
	second, err := service.Resolve(t.Context(), request)
	require.NoError(t, err)
	require.Equal(t, first.Report.Fingerprint, second.Report.Fingerprint)
	require.True(t, second.Report.ContextReuse)
	require.Equal(t, first.Script, second.Script)

	// Adding a newer python changes the resolve and its fingerprint.
	testutil.WriteRepo(t, root, testutil.PackageSpec{Name: "python", Version: "3.11.0"})
	third, err := service.Resolve(t.Context(), request)
	require.NoError(t, err)
	require.NotEqual(t, first.Report.Fingerprint, third.Report.Fingerprint)
	require.Equal(t, []string{"python-3.11.0"}, resolvedLabels(third))
}

func TestPipelineRendersEnvironment(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{
			Name:    "maya_tools",
			Version: "1.2.0",
			Tools:   []string{"mayatool"},
			Commands: []map[string]string{
				{"op": "setenv", "name": "MAYA_TOOLS_ROOT", "value": "/opt/maya_tools"},
				{"op": "prependenv", "name": "PATH", "value": "${MAYA_TOOLS_ROOT}/bin"},
				{"op": "info", "message": "maya tools loaded"},
			},
		},
	)
	service := newTestService(t)
	result, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"maya_tools"},
		Roots:        []string{root},
		Options:      types.PipelineOptions{Shell: types.ShellBash},
	})
	require.NoError(t, err)
	require.Contains(t, result.Script, `export MAYA_TOOLS_ROOT="/opt/maya_tools"`)
	require.Contains(t, result.Script, `export PATH="/opt/maya_tools/bin:${PATH}"`)
	require.Contains(t, result.Script, "# maya tools loaded")
	require.Equal(t, "/opt/maya_tools/bin", result.Context.Env["PATH"])
	require.Equal(t, "maya_tools", result.Resolved.Tools()["mayatool"])
}

func TestPipelineBadRequirementPropagates(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root, testutil.PackageSpec{Name: "python", Version: "3.9.0"})
	service := newTestService(t)
	_, err := service.Resolve(t.Context(), app.ResolveRequest{
		Requirements: []string{"9bad"},
		Roots:        []string{root},
	})
	require.Error(t, err)
}

func TestPipelineScanSurface(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRepo(t, root,
		testutil.PackageSpec{Name: "python", Version: "3.9.0"},
		testutil.PackageSpec{Name: "maya", Version: "2024.1"},
	)
	service := newTestService(t)
	report, err := service.Scan(t.Context(), []string{root}, types.ScanOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, report.Packages)
	require.Len(t, report.Roots, 1)
}
