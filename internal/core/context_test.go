package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rez-core/internal/types"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func contextFixture(t *testing.T, commands ...[]types.CommandDef) ResolvedSet {
	t.Helper()
	var rs ResolvedSet
	for i, cmds := range commands {
		def := types.PackageDef{
			Name:     string(rune('a' + i)),
			Version:  "1.0.0",
			Commands: cmds,
		}
		pkg := NewPackage(def, "", nil)
		require.True(t, Usable(pkg.Validate("", "")))
		rs.Entries = append(rs.Entries, ResolvedEntry{Package: pkg, Variant: -1})
	}
	return rs
}

func TestBuildContextExpandsAtInterpretationTime(t *testing.T) {
	rs := contextFixture(t,
		[]types.CommandDef{
			{Op: types.OpSetenv, Name: "ROOT", Value: "/opt/a"},
			{Op: types.OpSetenv, Name: "BIN", Value: "${ROOT}/bin"},
		},
	)
	built, err := BuildContext(rs, fixedClock)
	require.NoError(t, err)
	require.Equal(t, "/opt/a/bin", built.Env["BIN"])
	// The op list carries the expanded value, not the reference.
	require.Equal(t, "/opt/a/bin", built.Ops[1].Value)
}

func TestBuildContextPrependCounts(t *testing.T) {
	cmds := []types.CommandDef{}
	for i := 0; i < 3; i++ {
		cmds = append(cmds, types.CommandDef{Op: types.OpPrependenv, Name: "PATH", Value: "/opt/x/bin"})
	}
	rs := contextFixture(t, cmds)
	built, err := BuildContext(rs, fixedClock)
	require.NoError(t, err)
	value, count := built.EnvValue("PATH")
	require.Equal(t, 3, count)
	require.Equal(t, "/opt/x/bin:/opt/x/bin:/opt/x/bin", value)
}

func TestBuildContextPrependAppendOrder(t *testing.T) {
	rs := contextFixture(t,
		[]types.CommandDef{
			{Op: types.OpSetenv, Name: "PATH", Value: "/base"},
			{Op: types.OpPrependenv, Name: "PATH", Value: "/front"},
			{Op: types.OpAppendenv, Name: "PATH", Value: "/back"},
		},
	)
	built, err := BuildContext(rs, fixedClock)
	require.NoError(t, err)
	require.Equal(t, "/front:/base:/back", built.Env["PATH"])
}

func TestBuildContextUnsetRemoves(t *testing.T) {
	rs := contextFixture(t,
		[]types.CommandDef{
			{Op: types.OpSetenv, Name: "TEMP_FLAG", Value: "1"},
			{Op: types.OpUnsetenv, Name: "TEMP_FLAG"},
		},
	)
	built, err := BuildContext(rs, fixedClock)
	require.NoError(t, err)
	_, ok := built.Env["TEMP_FLAG"]
	require.False(t, ok)
}

func TestFingerprintStability(t *testing.T) {
	rs1 := contextFixture(t, []types.CommandDef{{Op: types.OpSetenv, Name: "X", Value: "1"}})
	rs2 := contextFixture(t, []types.CommandDef{{Op: types.OpSetenv, Name: "X", Value: "1"}})
	require.Equal(t, FingerprintResolvedSet(rs1), FingerprintResolvedSet(rs2))

	// A different version changes the fingerprint.
	other := rs2
	other.Entries = append([]ResolvedEntry{}, rs2.Entries...)
	pkg := NewPackage(types.PackageDef{Name: "a", Version: "2.0.0"}, "", nil)
	other.Entries[0] = ResolvedEntry{Package: pkg, Variant: -1}
	require.NotEqual(t, FingerprintResolvedSet(rs1), FingerprintResolvedSet(other))

	// A different variant selection changes the fingerprint.
	variant := rs2
	variant.Entries = append([]ResolvedEntry{}, rs2.Entries...)
	variant.Entries[0].Variant = 1
	require.NotEqual(t, FingerprintResolvedSet(rs1), FingerprintResolvedSet(variant))
}

func TestFingerprintEqualityImpliesIdenticalOutput(t *testing.T) {
	build := func() string {
		rs := contextFixture(t,
			[]types.CommandDef{
				{Op: types.OpSetenv, Name: "ROOT", Value: "/opt/a"},
				{Op: types.OpPrependenv, Name: "PATH", Value: "${ROOT}/bin"},
				{Op: types.OpAlias, Name: "run", Target: "${ROOT}/bin/run"},
			},
		)
		built, err := BuildContext(rs, fixedClock)
		require.NoError(t, err)
		script, err := Render(built.Ops, types.ShellBash)
		require.NoError(t, err)
		return script
	}
	require.Equal(t, build(), build())
}
