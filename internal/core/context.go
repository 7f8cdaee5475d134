package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"rez-core/internal/types"
)

// contextSchemaTag versions the fingerprint layout. Bump it whenever
// the canonical serialization changes so stale cached contexts are not
// reused across schema revisions.
const contextSchemaTag = "rez-context/1"

// EnvOp is one interpreted environment operation. Values are fully
// expanded: ${NAME} references were resolved against the accumulated
// environment at interpretation time.
type EnvOp struct {
	Op        types.CommandOp `json:"op"`
	Name      string          `json:"name,omitempty"`
	Value     string          `json:"value,omitempty"`
	Separator string          `json:"separator,omitempty"`
	Target    string          `json:"target,omitempty"`
	Message   string          `json:"message,omitempty"`
	Path      string          `json:"path,omitempty"`
}

// Context is a materialized environment for a resolved set. The op
// list, not a live process environment, is the source of truth; it can
// be replayed into a script for any supported shell.
type Context struct {
	Resolved    ResolvedSet
	Ops         []EnvOp
	Env         map[string]string
	Fingerprint uint64
	ID          string
	CreatedAt   time.Time
}

// FingerprintResolvedSet digests the sorted (name, version, variant)
// tuples plus the schema tag into a 64-bit key.
func FingerprintResolvedSet(rs ResolvedSet) uint64 {
	labels := make([]string, 0, len(rs.Entries))
	for _, e := range rs.Entries {
		labels = append(labels, e.Package.Name+"-"+e.Package.Version.String()+"@"+strconv.Itoa(e.Variant))
	}
	sort.Strings(labels)
	d := xxhash.New()
	_, _ = d.WriteString(contextSchemaTag)
	for _, label := range labels {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(label)
	}
	return d.Sum64()
}

var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpreter accumulates the environment an op list builds up, for
// interpretation-time ${NAME} expansion.
type interpreter struct {
	env map[string]string
	ops []EnvOp
}

func (it *interpreter) expand(value string) string {
	return envRefRe.ReplaceAllStringFunc(value, func(ref string) string {
		name := ref[2 : len(ref)-1]
		return it.env[name]
	})
}

func (it *interpreter) run(cmd types.CommandDef) error {
	sep := cmd.Separator
	if sep == "" {
		sep = ":"
	}
	switch cmd.Op {
	case types.OpSetenv:
		value := it.expand(cmd.Value)
		it.env[cmd.Name] = value
		it.ops = append(it.ops, EnvOp{Op: types.OpSetenv, Name: cmd.Name, Value: value})
	case types.OpUnsetenv:
		delete(it.env, cmd.Name)
		it.ops = append(it.ops, EnvOp{Op: types.OpUnsetenv, Name: cmd.Name})
	case types.OpPrependenv:
		value := it.expand(cmd.Value)
		if existing, ok := it.env[cmd.Name]; ok && existing != "" {
			it.env[cmd.Name] = value + sep + existing
		} else {
			it.env[cmd.Name] = value
		}
		it.ops = append(it.ops, EnvOp{Op: types.OpPrependenv, Name: cmd.Name, Value: value, Separator: sep})
	case types.OpAppendenv:
		value := it.expand(cmd.Value)
		if existing, ok := it.env[cmd.Name]; ok && existing != "" {
			it.env[cmd.Name] = existing + sep + value
		} else {
			it.env[cmd.Name] = value
		}
		it.ops = append(it.ops, EnvOp{Op: types.OpAppendenv, Name: cmd.Name, Value: value, Separator: sep})
	case types.OpAlias:
		it.ops = append(it.ops, EnvOp{Op: types.OpAlias, Name: cmd.Name, Target: it.expand(cmd.Target)})
	case types.OpInfo:
		it.ops = append(it.ops, EnvOp{Op: types.OpInfo, Message: it.expand(cmd.Message)})
	case types.OpSource:
		it.ops = append(it.ops, EnvOp{Op: types.OpSource, Path: it.expand(cmd.Path)})
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("validation_error: unknown environment operation %q", cmd.Op))
	}
	return nil
}

// BuildContext interprets every package's commands in resolved order
// and returns the materialized context. clock supplies the creation
// timestamp; metadata (ID, CreatedAt) does not participate in rendered
// output, so fingerprint-equal contexts render byte-identically.
func BuildContext(rs ResolvedSet, clock func() time.Time) (*Context, error) {
	it := &interpreter{env: map[string]string{}}
	for _, entry := range rs.Entries {
		for _, cmd := range entry.Package.Commands {
			if err := it.run(cmd); err != nil {
				return nil, err
			}
		}
	}
	env := make(map[string]string, len(it.env))
	for k, v := range it.env {
		env[k] = v
	}
	return &Context{
		Resolved:    rs,
		Ops:         it.ops,
		Env:         env,
		Fingerprint: FingerprintResolvedSet(rs),
		ID:          uuid.NewString(),
		CreatedAt:   clock().UTC(),
	}, nil
}

// OpsJSON serializes the op list, for callers that want the context as
// data rather than as a script.
func (c *Context) OpsJSON() ([]byte, error) {
	return json.MarshalIndent(c.Ops, "", "  ")
}

// EnvValue returns the accumulated value of one variable, with the
// number of separator-joined elements it holds.
func (c *Context) EnvValue(name string) (string, int) {
	value, ok := c.Env[name]
	if !ok || value == "" {
		return "", 0
	}
	// Element count uses the first list op's separator for the name,
	// defaulting to ':'.
	sep := ":"
	for _, op := range c.Ops {
		if op.Name == name && (op.Op == types.OpPrependenv || op.Op == types.OpAppendenv) {
			sep = op.Separator
			break
		}
	}
	return value, len(strings.Split(value, sep))
}
