package adapters

import (
	"fmt"
	"strconv"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"rez-core/internal/types"
)

// DefinitionFileNames is the probe order inside a version directory:
// the scripting form first, then the structured-data form.
var DefinitionFileNames = []string{"package.py", "package.yaml"}

// DecodePackageDef parses definition file bytes into a PackageDef,
// dispatching on the file name.
func DecodePackageDef(filename string, data []byte) (types.PackageDef, error) {
	switch {
	case hasSuffix(filename, ".py"):
		return decodePythonDef(data)
	case hasSuffix(filename, ".yaml"), hasSuffix(filename, ".yml"):
		return decodeYAMLDef(data)
	}
	return types.PackageDef{}, errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("parse_error: unrecognized definition file %q", filename))
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func decodeYAMLDef(data []byte) (types.PackageDef, error) {
	var def types.PackageDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return types.PackageDef{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("parse_error: failed to parse package yaml").
			WithCause(err)
	}
	return def, nil
}

// decodePythonDef understands the declarative subset of a package.py:
// top-level "ident = literal" assignments where the literal is a
// string, number, boolean, None, list, tuple, or dict. Anything more
// dynamic is rejected with a positioned parse error.
func decodePythonDef(data []byte) (types.PackageDef, error) {
	fields, err := parsePythonAssignments(data)
	if err != nil {
		return types.PackageDef{}, err
	}
	def := types.PackageDef{Extra: map[string]any{}}
	for name, value := range fields {
		switch name {
		case "name":
			def.Name, err = asString(name, value)
		case "version":
			def.Version, err = asString(name, value)
		case "description":
			def.Description, err = asString(name, value)
		case "uuid":
			def.UUID, err = asString(name, value)
		case "timestamp":
			def.Timestamp, err = asInt(name, value)
		case "authors":
			def.Authors, err = asStringList(name, value)
		case "requires":
			def.Requires, err = asStringList(name, value)
		case "build_requires":
			def.BuildRequires, err = asStringList(name, value)
		case "private_build_requires":
			def.PrivateBuildRequires, err = asStringList(name, value)
		case "tools":
			def.Tools, err = asStringList(name, value)
		case "variants":
			def.Variants, err = asStringListList(name, value)
		case "commands":
			def.Commands, err = asCommands(name, value)
		default:
			def.Extra[name] = value
		}
		if err != nil {
			return types.PackageDef{}, err
		}
	}
	return def, nil
}

func fieldError(field string, want string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("parse_error: field %q must be %s", field, want))
}

func asString(field string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fieldError(field, "a string")
	}
	return s, nil
}

func asInt(field string, value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, nil
		}
	}
	return 0, fieldError(field, "an integer")
}

func asStringList(field string, value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fieldError(field, "a list of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fieldError(field, "a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func asStringListList(field string, value any) ([][]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fieldError(field, "a list of requirement lists")
	}
	out := make([][]string, 0, len(items))
	for _, item := range items {
		inner, err := asStringList(field, item)
		if err != nil {
			return nil, err
		}
		out = append(out, inner)
	}
	return out, nil
}

func asCommands(field string, value any) ([]types.CommandDef, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fieldError(field, "a list of operation records")
	}
	out := make([]types.CommandDef, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, fieldError(field, "a list of operation records")
		}
		var cmd types.CommandDef
		for key, raw := range record {
			s, _ := raw.(string)
			switch key {
			case "op":
				cmd.Op = types.CommandOp(s)
			case "name":
				cmd.Name = s
			case "value":
				cmd.Value = s
			case "separator":
				cmd.Separator = s
			case "target":
				cmd.Target = s
			case "message":
				cmd.Message = s
			case "path":
				cmd.Path = s
			}
		}
		out = append(out, cmd)
	}
	return out, nil
}
