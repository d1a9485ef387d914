package engine

import "github.com/nextlevelbuilder/oilengine/internal/ast"

// substituteCommand returns a copy of cmd with every "$name" string field
// expanded against scope. The embedded Command carries its own Target
// pointers; those are deep-copied so the original, shared IntentDefinition
// step is never mutated across repeated runs or loop iterations.
func substituteCommand(cmd *ast.Command, scope map[string]string) *ast.Command {
	out := *cmd

	out.URL = substitute(out.URL, scope)
	if cmd.Headers != nil {
		out.Headers = make(map[string]string, len(cmd.Headers))
		for k, v := range cmd.Headers {
			out.Headers[k] = substitute(v, scope)
		}
	}
	out.Selector = substituteTarget(cmd.Selector, scope)
	out.Target = substituteTarget(cmd.Target, scope)
	out.Text = substitute(out.Text, scope)
	out.Option.Value = substitute(out.Option.Value, scope)
	out.Key = substitute(out.Key, scope)
	out.ScrollTarget = substituteTarget(cmd.ScrollTarget, scope)
	out.Wait.Selector = substitute(out.Wait.Selector, scope)
	out.Wait.Pattern = substitute(out.Wait.Pattern, scope)
	out.Wait.Expr = substitute(out.Wait.Expr, scope)
	out.Wait.Target = substituteTarget(cmd.Wait.Target, scope)
	out.ExtractSource.Selector = substitute(out.ExtractSource.Selector, scope)

	if cmd.Subcommand.Args != nil {
		out.Subcommand.Args = make(map[string]string, len(cmd.Subcommand.Args))
		for k, v := range cmd.Subcommand.Args {
			out.Subcommand.Args[k] = substitute(v, scope)
		}
	}
	if cmd.Intent.Params != nil {
		out.Intent.Params = make(map[string]string, len(cmd.Intent.Params))
		for k, v := range cmd.Intent.Params {
			out.Intent.Params[k] = substitute(v, scope)
		}
	}

	return &out
}
