package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rez-core/internal/types"
)

// Render turns an op list into a script for the target shell. Rendering
// is pure: the same op list and shell always produce the same text.
// List-valued variables reference the prior value through the shell's
// own syntax so the script composes with the caller's environment.
func Render(ops []EnvOp, shell types.Shell) (string, error) {
	var render func(EnvOp, *strings.Builder)
	switch shell {
	case types.ShellBash:
		render = renderBash
	case types.ShellCmd:
		render = renderCmd
	case types.ShellPowershell:
		render = renderPowershell
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("validation_error: unsupported shell %q", shell))
	}
	var b strings.Builder
	for _, op := range ops {
		render(op, &b)
	}
	return b.String(), nil
}

// PathSeparator returns the list separator the shell joins PATH-like
// variables with.
func PathSeparator(shell types.Shell) string {
	if shell == types.ShellBash {
		return ":"
	}
	return ";"
}

func bashEscape(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return r.Replace(value)
}

func bashQuote(value string) string {
	return `"` + bashEscape(value) + `"`
}

func renderBash(op EnvOp, b *strings.Builder) {
	switch op.Op {
	case types.OpSetenv:
		fmt.Fprintf(b, "export %s=%s\n", op.Name, bashQuote(op.Value))
	case types.OpUnsetenv:
		fmt.Fprintf(b, "unset %s\n", op.Name)
	case types.OpPrependenv:
		fmt.Fprintf(b, "export %s=\"%s%s${%s}\"\n", op.Name, bashEscape(op.Value), op.Separator, op.Name)
	case types.OpAppendenv:
		fmt.Fprintf(b, "export %s=\"${%s}%s%s\"\n", op.Name, op.Name, op.Separator, bashEscape(op.Value))
	case types.OpAlias:
		fmt.Fprintf(b, "alias %s=%s\n", op.Name, bashQuote(op.Target))
	case types.OpInfo:
		fmt.Fprintf(b, "# %s\n", op.Message)
	case types.OpSource:
		fmt.Fprintf(b, "source %s\n", bashQuote(op.Path))
	}
}

func renderCmd(op EnvOp, b *strings.Builder) {
	switch op.Op {
	case types.OpSetenv:
		fmt.Fprintf(b, "set %s=%s\n", op.Name, op.Value)
	case types.OpUnsetenv:
		fmt.Fprintf(b, "set %s=\n", op.Name)
	case types.OpPrependenv:
		fmt.Fprintf(b, "set %s=%s%s%%%s%%\n", op.Name, op.Value, op.Separator, op.Name)
	case types.OpAppendenv:
		fmt.Fprintf(b, "set %s=%%%s%%%s%s\n", op.Name, op.Name, op.Separator, op.Value)
	case types.OpAlias:
		fmt.Fprintf(b, "doskey %s=%s\n", op.Name, op.Target)
	case types.OpInfo:
		fmt.Fprintf(b, "rem %s\n", op.Message)
	case types.OpSource:
		fmt.Fprintf(b, "call \"%s\"\n", op.Path)
	}
}

func psQuote(value string) string {
	return `"` + strings.NewReplacer("`", "``", `"`, "`\"", "$", "`$").Replace(value) + `"`
}

func renderPowershell(op EnvOp, b *strings.Builder) {
	switch op.Op {
	case types.OpSetenv:
		fmt.Fprintf(b, "$env:%s = %s\n", op.Name, psQuote(op.Value))
	case types.OpUnsetenv:
		fmt.Fprintf(b, "Remove-Item Env:%s -ErrorAction SilentlyContinue\n", op.Name)
	case types.OpPrependenv:
		fmt.Fprintf(b, "$env:%s = %s + \"%s\" + $env:%s\n", op.Name, psQuote(op.Value), op.Separator, op.Name)
	case types.OpAppendenv:
		fmt.Fprintf(b, "$env:%s = $env:%s + \"%s\" + %s\n", op.Name, op.Name, op.Separator, psQuote(op.Value))
	case types.OpAlias:
		fmt.Fprintf(b, "Set-Alias %s %s\n", op.Name, op.Target)
	case types.OpInfo:
		fmt.Fprintf(b, "# %s\n", op.Message)
	case types.OpSource:
		fmt.Fprintf(b, ". %s\n", psQuote(op.Path))
	}
}
