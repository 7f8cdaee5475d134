// Package testutil provides shared fixture helpers used across unit
// and integration test packages.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// PackageSpec describes one fixture package to materialize on disk.
type PackageSpec struct {
	Name     string
	Version  string
	Requires []string
	Variants [][]string
	Tools    []string
	Commands []map[string]string
}

// WriteRepo materializes packages under root in the canonical
// <root>/<name>/<version>/package.yaml layout.
func WriteRepo(t *testing.T, root string, specs ...PackageSpec) {
	t.Helper()
	for _, spec := range specs {
		dir := filepath.Join(root, spec.Name, spec.Version)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, "package.yaml"),
			[]byte(RenderPackageYAML(spec)),
			0o644,
		))
	}
}

// RenderPackageYAML renders a minimal package.yaml for a spec.
func RenderPackageYAML(spec PackageSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", spec.Name)
	fmt.Fprintf(&b, "version: %q\n", spec.Version)
	if len(spec.Requires) > 0 {
		b.WriteString("requires:\n")
		for _, req := range spec.Requires {
			fmt.Fprintf(&b, "  - %q\n", req)
		}
	}
	if len(spec.Variants) > 0 {
		b.WriteString("variants:\n")
		for _, variant := range spec.Variants {
			b.WriteString("  - [")
			for i, req := range variant {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%q", req)
			}
			b.WriteString("]\n")
		}
	}
	if len(spec.Tools) > 0 {
		b.WriteString("tools:\n")
		for _, tool := range spec.Tools {
			fmt.Fprintf(&b, "  - %s\n", tool)
		}
	}
	if len(spec.Commands) > 0 {
		b.WriteString("commands:\n")
		for _, cmd := range spec.Commands {
			b.WriteString("  - {")
			first := true
			for _, key := range []string{"op", "name", "value", "separator", "target", "message", "path"} {
				value, ok := cmd[key]
				if !ok {
					continue
				}
				if !first {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s: %q", key, value)
				first = false
			}
			b.WriteString("}\n")
		}
	}
	return b.String()
}
