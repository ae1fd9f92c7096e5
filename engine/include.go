package engine

import (
	"fmt"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/value"
	"quercus/varex"
)

// include evaluates include, include_once, require and require_once. The
// included file runs in the current scope. Its value is the value of a
// top-level return, or 1.
func (env *Env) include(ctx featureexpr.Expr, n *ast.Include) (varex.V[value.Value], error) {
	paths, err := env.evaluateExpression(ctx, n.Path)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(paths, live(ctx, paths), func(c featureexpr.Expr, p value.Value) (varex.V[value.Value], error) {
		name, w := value.ToString(p)
		env.warn(c, n.Pos, w)
		return env.includeFile(c, n, name)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(paths)), nil
}

func (env *Env) includeFile(ctx featureexpr.Expr, n *ast.Include, name string) (varex.V[value.Value], error) {
	prog, err := env.engine.loader.Load(env.dir(), name)
	if err != nil {
		if n.Require {
			return env.fault(ctx, n.Pos, errors.WrapError(err, errors.CodeRequireFailed,
				fmt.Sprintf("Failed opening required '%s'", name))), nil
		}
		env.warn(ctx, n.Pos, errors.WrapError(err, errors.CodeIncludeFailed,
			fmt.Sprintf("Failed opening '%s' for inclusion", name)).WithSeverity(errors.SeverityWarning))
		return varex.OneIn(ctx, value.Value(value.FALSE)), nil
	}

	key := prog.File
	if key == "" {
		key = name
	}
	done, seen := env.included[key]
	if !seen {
		done = featureexpr.False()
	}
	run := ctx
	var out []varex.Branch[value.Value]
	if n.Once {
		if again := ctx.And(done); again.IsSatisfiable() {
			out = append(out, varex.Branch[value.Value]{Cond: again, Value: value.TRUE})
		}
		run = ctx.AndNot(done)
	}
	if !run.IsSatisfiable() {
		return varex.FromBranches(out...), nil
	}
	env.included[key] = done.Or(run)

	if err := env.checkTimeout(n.Pos); err != nil {
		return varex.V[value.Value]{}, err
	}
	pop, err := env.pushFrame("include "+key, n.Pos, run)
	defer pop()
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	env.debug("include", logging.StringField("file", key), logging.StringField("cond", run.String()))

	saved := env.file
	env.file = prog.File
	defer func() { env.file = saved }()

	res, err := env.executeFile(run, prog)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res = varex.Map(res, func(v value.Value) value.Value {
		switch v.(type) {
		case nil:
			return value.Long(1)
		case *value.Abort:
			return v
		}
		return value.Copy(v)
	})
	return varex.FromBranches(append(out, res.Branches()...)...), nil
}
