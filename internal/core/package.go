package core

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"rez-core/internal/shared"
	"rez-core/internal/types"
)

// Package is a fully parsed package definition. (name, version,
// variant index) is globally unique across a repository. Packages are
// immutable once constructed and shared freely.
type Package struct {
	Name        string
	Version     Version
	Description string
	Authors     []string
	UUID        string
	Timestamp   time.Time

	Requires             []Requirement
	BuildRequires        []Requirement
	PrivateBuildRequires []Requirement

	// Variants holds one additional requirement list per declared build
	// configuration.
	Variants [][]Requirement

	Tools    []string
	Commands []types.CommandDef

	// ContentHash digests the raw definition file bytes.
	ContentHash uint64

	// Path is the definition file this package was parsed from.
	Path string

	diagnostics []types.Diagnostic
}

// NewPackage builds a Package from a decoded definition. Requirement
// and version parse failures become error diagnostics rather than hard
// failures so one bad field does not hide the rest of the report; the
// caller decides usability via Usable.
func NewPackage(def types.PackageDef, path string, raw []byte) *Package {
	pkg := &Package{
		Name:        def.Name,
		Description: def.Description,
		Authors:     def.Authors,
		UUID:        def.UUID,
		Tools:       def.Tools,
		Commands:    def.Commands,
		ContentHash: xxhash.Sum64(raw),
		Path:        path,
	}
	if def.Timestamp > 0 {
		pkg.Timestamp = time.Unix(def.Timestamp, 0).UTC()
	}
	if !shared.ValidPackageName(def.Name) {
		pkg.fail("name", fmt.Sprintf("invalid package name %q", def.Name))
	}
	version, err := ParseVersion(def.Version)
	if err != nil {
		pkg.fail("version", err.Error())
	} else {
		pkg.Version = version
	}
	pkg.Requires = pkg.parseRequirementList("requires", def.Requires)
	pkg.BuildRequires = pkg.parseRequirementList("build_requires", def.BuildRequires)
	pkg.PrivateBuildRequires = pkg.parseRequirementList("private_build_requires", def.PrivateBuildRequires)
	for i, variant := range def.Variants {
		field := fmt.Sprintf("variants[%d]", i)
		reqs := pkg.parseRequirementList(field, variant)
		seen := map[string]struct{}{}
		for _, req := range reqs {
			if _, dup := seen[req.Name]; dup {
				pkg.fail(field, fmt.Sprintf("duplicate requirement name %q", req.Name))
			}
			seen[req.Name] = struct{}{}
		}
		pkg.Variants = append(pkg.Variants, reqs)
	}
	for _, cmd := range def.Commands {
		if !validCommandOp(cmd.Op) {
			pkg.fail("commands", fmt.Sprintf("unknown operation %q", cmd.Op))
		}
	}
	return pkg
}

func (p *Package) parseRequirementList(field string, inputs []string) []Requirement {
	out := make([]Requirement, 0, len(inputs))
	for _, input := range inputs {
		req, err := ParseRequirement(input)
		if err != nil {
			p.fail(field, err.Error())
			continue
		}
		out = append(out, req)
	}
	return out
}

func (p *Package) fail(field string, message string) {
	p.diagnostics = append(p.diagnostics, types.Diagnostic{
		Level:   types.DiagnosticError,
		Field:   field,
		Message: message,
	})
}

func validCommandOp(op types.CommandOp) bool {
	switch op {
	case types.OpSetenv, types.OpUnsetenv, types.OpPrependenv,
		types.OpAppendenv, types.OpAlias, types.OpInfo, types.OpSource:
		return true
	}
	return false
}

// Validate cross-checks the package against its owning directory and
// returns all diagnostics gathered since construction. dirName and
// dirVersion are the <name>/<version> path elements the definition was
// found under.
func (p *Package) Validate(dirName, dirVersion string) []types.Diagnostic {
	diags := make([]types.Diagnostic, len(p.diagnostics))
	copy(diags, p.diagnostics)
	if dirName != "" && p.Name != dirName {
		diags = append(diags, types.Diagnostic{
			Level:   types.DiagnosticError,
			Field:   "name",
			Message: fmt.Sprintf("package name %q disagrees with directory %q", p.Name, dirName),
		})
	}
	if dirVersion != "" && !p.Version.IsZero() && p.Version.String() != dirVersion {
		diags = append(diags, types.Diagnostic{
			Level:   types.DiagnosticError,
			Field:   "version",
			Message: fmt.Sprintf("package version %q disagrees with directory %q", p.Version, dirVersion),
		})
	}
	if p.UUID == "" {
		diags = append(diags, types.Diagnostic{
			Level:   types.DiagnosticWarning,
			Field:   "uuid",
			Message: "package has no uuid",
		})
	}
	return diags
}

// Usable reports whether the diagnostics carry no errors.
func Usable(diags []types.Diagnostic) bool {
	for _, d := range diags {
		if d.Level == types.DiagnosticError {
			return false
		}
	}
	return true
}

// VariantRequires returns the package requirements plus the selected
// variant's additional requirements. Variant -1 selects no variant.
func (p *Package) VariantRequires(variant int) []Requirement {
	if variant < 0 || variant >= len(p.Variants) {
		return p.Requires
	}
	out := make([]Requirement, 0, len(p.Requires)+len(p.Variants[variant]))
	out = append(out, p.Requires...)
	out = append(out, p.Variants[variant]...)
	return out
}

// QualifiedName renders "name-version".
func (p *Package) QualifiedName() string {
	return p.Name + "-" + p.Version.String()
}

// ResolvedEntry is one (package, variant) selection. Variant is -1 for
// packages without variants.
type ResolvedEntry struct {
	Package *Package
	Variant int
}

// Requires returns the effective requirement list of the entry.
func (e ResolvedEntry) Requires() []Requirement {
	return e.Package.VariantRequires(e.Variant)
}

// ResolvedSet is a closed, conflict-free selection of entries in
// topological dependency order with ties broken by name.
type ResolvedSet struct {
	Entries []ResolvedEntry
}

// Names lists the entry names in resolved order.
func (rs ResolvedSet) Names() []string {
	out := make([]string, len(rs.Entries))
	for i, e := range rs.Entries {
		out[i] = e.Package.Name
	}
	return out
}

// Lookup finds the entry for a package name.
func (rs ResolvedSet) Lookup(name string) (ResolvedEntry, bool) {
	for _, e := range rs.Entries {
		if e.Package.Name == name {
			return e, true
		}
	}
	return ResolvedEntry{}, false
}

// Tools maps every tool name to the package that provides it.
func (rs ResolvedSet) Tools() map[string]string {
	out := map[string]string{}
	for _, e := range rs.Entries {
		for _, tool := range e.Package.Tools {
			out[tool] = e.Package.Name
		}
	}
	return out
}
