package adapters

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"rez-core/internal/types"
)

func TestDecodeYAMLDef(t *testing.T) {
	data := []byte(`name: maya_tools
version: "1.2.0"
description: Pipeline tools for Maya
authors:
  - pipeline team
uuid: 0b51a4e2-5a5e-4f5e-9d64-1f4c8c6cf001
timestamp: 1700000000
requires:
  - "python-3.9+"
  - "maya>=2020,<2025"
build_requires:
  - "cmake"
variants:
  - ["python-3.9"]
  - ["python-3.10"]
tools:
  - mayatool
commands:
  - {op: setenv, name: MAYA_TOOLS_ROOT, value: /opt/maya_tools}
  - {op: prependenv, name: PATH, value: "${MAYA_TOOLS_ROOT}/bin"}
custom_field: kept
`)
	def, err := DecodePackageDef("package.yaml", data)
	require.NoError(t, err)
	require.Equal(t, "maya_tools", def.Name)
	require.Equal(t, "1.2.0", def.Version)
	require.Equal(t, int64(1700000000), def.Timestamp)
	require.Equal(t, []string{"python-3.9+", "maya>=2020,<2025"}, def.Requires)
	require.Equal(t, []string{"cmake"}, def.BuildRequires)
	require.Len(t, def.Variants, 2)
	require.Equal(t, types.OpPrependenv, def.Commands[1].Op)
	// Unknown fields are preserved but ignored.
	require.Equal(t, "kept", def.Extra["custom_field"])
}

func TestDecodePythonDef(t *testing.T) {
	data := []byte(`# -*- coding: utf-8 -*-

name = "maya_tools"
version = "1.2.0"
description = """Pipeline tools for Maya"""
authors = ["pipeline team", "tools team"]
timestamp = 1700000000

requires = [
    "python-3.9+",
    "maya>=2020,<2025",
]

variants = [
    ["python-3.9"],
    ["python-3.10"],
]

tools = ["mayatool"]

commands = [
    {"op": "setenv", "name": "MAYA_TOOLS_ROOT", "value": "/opt/maya_tools"},
    {"op": "prependenv", "name": "PATH", "value": "${MAYA_TOOLS_ROOT}/bin"},
]

custom_field = True
`)
	def, err := DecodePackageDef("package.py", data)
	require.NoError(t, err)
	require.Equal(t, "maya_tools", def.Name)
	require.Equal(t, "1.2.0", def.Version)
	require.Equal(t, "Pipeline tools for Maya", def.Description)
	require.Equal(t, []string{"pipeline team", "tools team"}, def.Authors)
	require.Equal(t, int64(1700000000), def.Timestamp)
	if diff := cmp.Diff([]string{"python-3.9+", "maya>=2020,<2025"}, def.Requires); diff != "" {
		t.Fatalf("unexpected requires (-want +got):\n%s", diff)
	}
	require.Equal(t, [][]string{{"python-3.9"}, {"python-3.10"}}, def.Variants)
	require.Len(t, def.Commands, 2)
	require.Equal(t, types.OpSetenv, def.Commands[0].Op)
	require.Equal(t, "${MAYA_TOOLS_ROOT}/bin", def.Commands[1].Value)
	require.Equal(t, true, def.Extra["custom_field"])
}

func TestDecodePythonDefRejectsDynamicCode(t *testing.T) {
	data := []byte(`name = "pkg"
version = compute_version()
`)
	_, err := DecodePackageDef("package.py", data)
	require.Error(t, err)
}

func TestDecodePythonDefErrors(t *testing.T) {
	cases := [][]byte{
		[]byte(`name "pkg"`),                // missing '='
		[]byte(`name = "unterminated`),      // bad string
		[]byte(`requires = ["a", "b"`),      // unterminated list
		[]byte(`commands = [{"op":}]`),      // dict missing value
		[]byte(`requires = [1, 2]`),         // wrong element type
		[]byte(`variants = ["not-a-list"]`), // wrong nesting
	}
	for _, data := range cases {
		_, err := DecodePackageDef("package.py", data)
		require.Error(t, err, string(data))
	}
}

func TestDecodeUnknownExtension(t *testing.T) {
	_, err := DecodePackageDef("package.toml", nil)
	require.Error(t, err)
}
