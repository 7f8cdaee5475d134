package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rez-core/internal/types"
)

var renderOps = []EnvOp{
	{Op: types.OpInfo, Message: "environment for maya_tools-1.2.0"},
	{Op: types.OpSetenv, Name: "MAYA_TOOLS_ROOT", Value: "/opt/maya_tools"},
	{Op: types.OpPrependenv, Name: "PATH", Value: "/opt/maya_tools/bin", Separator: ":"},
	{Op: types.OpAppendenv, Name: "PYTHONPATH", Value: "/opt/maya_tools/python", Separator: ":"},
	{Op: types.OpAlias, Name: "mt", Target: "maya_tools"},
	{Op: types.OpSource, Path: "/opt/maya_tools/setup.sh"},
	{Op: types.OpUnsetenv, Name: "MAYA_DISABLE_BUNDLED"},
}

func TestRenderBash(t *testing.T) {
	script, err := Render(renderOps, types.ShellBash)
	require.NoError(t, err)
	require.Contains(t, script, "# environment for maya_tools-1.2.0\n")
	require.Contains(t, script, `export MAYA_TOOLS_ROOT="/opt/maya_tools"`)
	require.Contains(t, script, `export PATH="/opt/maya_tools/bin:${PATH}"`)
	require.Contains(t, script, `export PYTHONPATH="${PYTHONPATH}:/opt/maya_tools/python"`)
	require.Contains(t, script, `alias mt="maya_tools"`)
	require.Contains(t, script, `source "/opt/maya_tools/setup.sh"`)
	require.Contains(t, script, "unset MAYA_DISABLE_BUNDLED\n")
}

func TestRenderCmd(t *testing.T) {
	script, err := Render(renderOps, types.ShellCmd)
	require.NoError(t, err)
	require.Contains(t, script, "rem environment for maya_tools-1.2.0\n")
	require.Contains(t, script, "set MAYA_TOOLS_ROOT=/opt/maya_tools\n")
	require.Contains(t, script, "set PATH=/opt/maya_tools/bin:%PATH%\n")
	require.Contains(t, script, "doskey mt=maya_tools\n")
	require.Contains(t, script, "set MAYA_DISABLE_BUNDLED=\n")
}

func TestRenderPowershell(t *testing.T) {
	script, err := Render(renderOps, types.ShellPowershell)
	require.NoError(t, err)
	require.Contains(t, script, `$env:MAYA_TOOLS_ROOT = "/opt/maya_tools"`)
	require.Contains(t, script, "Set-Alias mt maya_tools\n")
	require.Contains(t, script, "Remove-Item Env:MAYA_DISABLE_BUNDLED")
}

func TestRenderUnknownShell(t *testing.T) {
	_, err := Render(renderOps, types.Shell("fish"))
	require.Error(t, err)
}

// Rendering is a pure function of (ops, shell).
func TestRenderIdempotent(t *testing.T) {
	for _, shell := range []types.Shell{types.ShellBash, types.ShellCmd, types.ShellPowershell} {
		first, err := Render(renderOps, shell)
		require.NoError(t, err)
		second, err := Render(renderOps, shell)
		require.NoError(t, err)
		require.Equal(t, first, second, shell)
	}
}

func TestBashQuoting(t *testing.T) {
	script, err := Render([]EnvOp{
		{Op: types.OpSetenv, Name: "MSG", Value: `say "hi" $USER`},
	}, types.ShellBash)
	require.NoError(t, err)
	require.Equal(t, "export MSG=\"say \\\"hi\\\" \\$USER\"\n", script)
}

func TestPathSeparator(t *testing.T) {
	require.Equal(t, ":", PathSeparator(types.ShellBash))
	require.Equal(t, ";", PathSeparator(types.ShellCmd))
	require.Equal(t, ";", PathSeparator(types.ShellPowershell))
}
