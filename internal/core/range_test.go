package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRangeContains(t *testing.T) {
	cases := []struct {
		expr    string
		version string
		want    bool
	}{
		{"", "1.0", true},
		{">=1.2", "1.2", true},
		{">=1.2", "1.1", false},
		{">1.2", "1.2", false},
		{">1.2", "1.2.1", true},
		{"<=2", "2", true},
		{"<2", "2", false},
		{"<2", "1.99", true},
		{"==1.5", "1.5", true},
		{"==1.5", "1.5.0", false},
		{"=1.5", "1.5", true},
		{"!=1.5", "1.5", false},
		{"!=1.5", "1.6", true},
		{">=1,<2", "1.5", true},
		{">=1,<2", "2.0", false},
		{">=2020,<2025", "2023.1", true},
		{"1.2", "1.2", true},
		{"1.2", "1.2.9", true},
		{"1.2", "1.3", false},
		{"1.2", "1.19", false},
		{"1.2+", "1.3", true},
		{"1.2+", "1.1", false},
		{"<1|>=2", "0.9", true},
		{"<1|>=2", "1.5", false},
		{"<1|>=2", "2.0", true},
	}
	for _, tc := range cases {
		r, err := ParseRange(tc.expr)
		require.NoError(t, err, tc.expr)
		got := r.Contains(MustParseVersion(tc.version))
		require.Equal(t, tc.want, got, "%q contains %q", tc.expr, tc.version)
	}
}

func TestParseRangeErrors(t *testing.T) {
	for _, expr := range []string{">=", ">=,<2", "abc def", ">=1..2", ","} {
		_, err := ParseRange(expr)
		require.Error(t, err, expr)
	}
}

func TestRangeIntersectProperties(t *testing.T) {
	exprs := []string{"", ">=1,<3", ">=2", "<1.5", "==2.0", "!=2.0", "1.2", "<1|>=2"}
	ranges := make([]VersionRange, len(exprs))
	for i, expr := range exprs {
		ranges[i] = MustParseRange(expr)
	}
	empty := EmptyRange()
	probes := []Version{
		MustParseVersion("0.5"), MustParseVersion("1.0"), MustParseVersion("1.2.5"),
		MustParseVersion("1.5"), MustParseVersion("2.0"), MustParseVersion("2.5"),
		MustParseVersion("3.0"),
	}
	sameMembers := func(a, b VersionRange) {
		t.Helper()
		for _, v := range probes {
			require.Equal(t, a.Contains(v), b.Contains(v), "probe %s", v)
		}
	}
	for _, a := range ranges {
		// r ∩ r = r
		require.True(t, a.Intersect(a).Equal(a), "idempotence of %s", a)
		// r ∩ ∅ = ∅
		require.True(t, a.Intersect(empty).IsEmpty())
		for _, b := range ranges {
			// Commutativity.
			sameMembers(a.Intersect(b), b.Intersect(a))
			for _, c := range ranges {
				// Associativity.
				sameMembers(a.Intersect(b).Intersect(c), a.Intersect(b.Intersect(c)))
			}
		}
	}
}

func TestRangeContainsMatchesSingletonIntersect(t *testing.T) {
	exprs := []string{">=1,<3", "!=2.0", "1.2", "<1|>=2", ""}
	probes := []string{"0.5", "1.2", "1.2.5", "2.0", "2.5"}
	for _, expr := range exprs {
		r := MustParseRange(expr)
		for _, probe := range probes {
			v := MustParseVersion(probe)
			viaIntersect := !r.Intersect(ExactVersion(v)).IsEmpty()
			require.Equal(t, r.Contains(v), viaIntersect, "%q vs %q", expr, probe)
		}
	}
}

func TestRangeUnionMerges(t *testing.T) {
	a := MustParseRange(">=1,<2")
	b := MustParseRange(">=1.5,<3")
	merged := a.Union(b)
	require.True(t, merged.Contains(MustParseVersion("1.0")))
	require.True(t, merged.Contains(MustParseVersion("2.5")))
	require.False(t, merged.Contains(MustParseVersion("3.0")))
	// Overlapping spans collapse to one interval.
	require.Equal(t, ">=1,<3", merged.String())
}

func TestRangeEmptyAndUniversalDistinct(t *testing.T) {
	empty := MustParseRange(">=2,<1")
	require.True(t, empty.IsEmpty())
	universal := MustParseRange("")
	require.True(t, universal.IsUniversal())
	require.False(t, universal.IsEmpty())
	require.False(t, empty.Equal(universal))
}

func TestRangeString(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{">=1.2", ">=1.2"},
		{">=1,<2", ">=1,<2"},
		{"==1.5", "==1.5"},
		{"<1|>=2", "<1|>=2"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MustParseRange(tc.expr).String())
	}
}
