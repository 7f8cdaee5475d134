package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequirementForms(t *testing.T) {
	cases := []struct {
		input    string
		name     string
		weak     bool
		conflict bool
		inRange  []string
		outRange []string
	}{
		{"python", "python", false, false, []string{"1", "3.9.0"}, nil},
		{"python-3.9", "python", false, false, []string{"3.9", "3.9.12"}, []string{"3.10", "3.8"}},
		{"python-3.9+", "python", false, false, []string{"3.9", "4.0"}, []string{"3.8.9"}},
		{"maya>=2020,<2025", "maya", false, false, []string{"2023.1"}, []string{"2025", "2019"}},
		{"foo==1.2.3", "foo", false, false, []string{"1.2.3"}, []string{"1.2.4"}},
		{"!legacy", "legacy", false, true, []string{"1", "99"}, nil},
		{"!foo-2", "foo", false, true, []string{"2.5"}, []string{"1.9"}},
		{"~numpy-1.20", "numpy", true, false, []string{"1.20.1"}, []string{"1.21"}},
	}
	for _, tc := range cases {
		req, err := ParseRequirement(tc.input)
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.name, req.Name, tc.input)
		require.Equal(t, tc.weak, req.Weak, tc.input)
		require.Equal(t, tc.conflict, req.Conflict, tc.input)
		for _, v := range tc.inRange {
			require.True(t, req.Range.Contains(MustParseVersion(v)), "%s should contain %s", tc.input, v)
		}
		for _, v := range tc.outRange {
			require.False(t, req.Range.Contains(MustParseVersion(v)), "%s should exclude %s", tc.input, v)
		}
	}
}

func TestParseRequirementErrors(t *testing.T) {
	for _, input := range []string{"", "9abc", "foo bar", "foo-", "!~foo", "~!foo", "foo-=="} {
		_, err := ParseRequirement(input)
		require.Error(t, err, input)
	}
}

func TestRequirementSatisfied(t *testing.T) {
	hard := MustParseRequirement("python-3.9")
	require.True(t, hard.Satisfied(MustParseVersion("3.9.5")))
	require.False(t, hard.Satisfied(MustParseVersion("3.10.0")))

	conflict := MustParseRequirement("!python-3.9")
	require.False(t, conflict.Satisfied(MustParseVersion("3.9.5")))
	require.True(t, conflict.Satisfied(MustParseVersion("3.10.0")))
}

func TestRequirementString(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"python", "python"},
		{"maya>=2020,<2025", "maya>=2020,<2025"},
		{"!legacy", "!legacy"},
		{"~numpy>=1.20", "~numpy>=1.20"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MustParseRequirement(tc.input).String())
	}
}
