package engine

import (
	"fmt"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/value"
	"quercus/varex"
)

// executeStatement executes stmt within ctx. The result covers ctx: nil where
// execution falls through, a Break, Continue or Abort signal, or the value
// of a return statement.
func (env *Env) executeStatement(ctx featureexpr.Expr, stmt ast.Statement) (varex.V[value.Value], error) {
	if !ctx.IsSatisfiable() {
		return varex.V[value.Value]{}, nil
	}
	switch n := stmt.(type) {
	case *ast.ExpressionStatement:
		return env.executeExpressionStatement(ctx, n)
	case *ast.Echo:
		return env.executeEchoStatement(ctx, n)
	case *ast.Text:
		env.output.Write(ctx, n.Text)
		return fallThrough(ctx), nil
	case *ast.Block:
		return env.executeBlock(ctx, n.Statements)
	case *ast.If:
		return env.executeIfStatement(ctx, n)
	case *ast.Conditional:
		return env.executeConditional(ctx, n)
	case *ast.While:
		return env.executeWhileStatement(ctx, n)
	case *ast.Do:
		return env.executeDoStatement(ctx, n)
	case *ast.For:
		return env.executeForStatement(ctx, n)
	case *ast.Foreach:
		return env.executeForeachStatement(ctx, n)
	case *ast.Break:
		return env.executeJump(ctx, n.Target, n.Pos, func(level int) value.Value { return &value.Break{Target: level} })
	case *ast.Continue:
		return env.executeJump(ctx, n.Target, n.Pos, func(level int) value.Value { return &value.Continue{Target: level} })
	case *ast.Return:
		return env.executeReturnStatement(ctx, n)
	case *ast.FunctionDecl:
		if env.hoisted[n] {
			return fallThrough(ctx), nil
		}
		return env.declareFunction(ctx, &Function{decl: n, name: n.Name, file: env.file}, n.Pos), nil
	case *ast.ClassDecl:
		if env.hoisted[n] {
			return fallThrough(ctx), nil
		}
		return env.declareClass(ctx, n)
	}
	return varex.V[value.Value]{}, env.fatal(errors.NewFatalError(errors.CodeUnsupported,
		fmt.Sprintf("unsupported statement %T", stmt)).WithLocation(stmt.Position()))
}

func fallThrough(ctx featureexpr.Expr) varex.V[value.Value] {
	return varex.OneIn[value.Value](ctx, nil)
}

// executeBlock executes statements in order. After each statement the
// context shrinks to the configurations that fell through.
func (env *Env) executeBlock(ctx featureexpr.Expr, stmts []ast.Statement) (varex.V[value.Value], error) {
	var out []varex.Branch[value.Value]
	cur := ctx
	for _, s := range stmts {
		if !cur.IsSatisfiable() {
			break
		}
		r, err := env.executeStatement(cur, s)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		stopped := r.When(notNil)
		out = append(out, r.Select(stopped).Branches()...)
		cur = cur.AndNot(stopped)
	}
	if cur.IsSatisfiable() {
		out = append(out, varex.Branch[value.Value]{Cond: cur})
	}
	return varex.FromBranches(out...), nil
}

// executeExpressionStatement evaluates an expression for its effects
func (env *Env) executeExpressionStatement(ctx featureexpr.Expr, n *ast.ExpressionStatement) (varex.V[value.Value], error) {
	v, err := env.evaluateExpression(ctx, n.Expression)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(aborted(v), fallThrough(live(ctx, v))), nil
}

// executeEchoStatement converts each value to a string and writes it to the
// output under the configurations that produced it
func (env *Env) executeEchoStatement(ctx featureexpr.Expr, n *ast.Echo) (varex.V[value.Value], error) {
	var faults []varex.Branch[value.Value]
	c := ctx
	for _, e := range n.Values {
		v, err := env.evaluateExpression(c, e)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		faults = append(faults, aborted(v).Branches()...)
		c = live(c, v)
		varex.SForEach(v, c, func(c featureexpr.Expr, x value.Value) {
			s, w := value.ToString(x)
			env.warn(c, n.Pos, w)
			env.output.Write(c, s)
		})
	}
	return collect(varex.FromBranches(faults...), fallThrough(c)), nil
}

// executeIfStatement executes the branches of an if under the configurations
// where the condition is truthy and falsy respectively
func (env *Env) executeIfStatement(ctx featureexpr.Expr, n *ast.If) (varex.V[value.Value], error) {
	cond, err := env.evaluateExpression(ctx, n.Condition)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, cond)
	truthy := c.And(cond.When(value.ToBool))
	then, err := env.executeStatement(truthy, n.Then)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	els, err := env.executeOptional(c.AndNot(truthy), n.Else)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(then, els, aborted(cond)), nil
}

// executeConditional executes a #if block: the feature expression splits
// the context instead of a runtime value
func (env *Env) executeConditional(ctx featureexpr.Expr, n *ast.Conditional) (varex.V[value.Value], error) {
	fe, err := env.feature(n.Condition, n.Pos)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	then, err := env.executeOptional(ctx.And(fe), n.Then)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	els, err := env.executeOptional(ctx.AndNot(fe), n.Else)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(then, els), nil
}

func (env *Env) executeOptional(ctx featureexpr.Expr, stmt ast.Statement) (varex.V[value.Value], error) {
	if stmt == nil {
		return fallThrough(ctx), nil
	}
	return env.executeStatement(ctx, stmt)
}

// executeJump produces the break or continue signal. The level may be given
// by an expression; levels below one abort the configuration.
func (env *Env) executeJump(ctx featureexpr.Expr, target ast.Expression, pos ast.Position, signal func(int) value.Value) (varex.V[value.Value], error) {
	if target == nil {
		return varex.OneIn(ctx, signal(1)), nil
	}
	levels, err := env.evaluateExpression(ctx, target)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res := varex.SFlatMap(levels, live(ctx, levels), func(c featureexpr.Expr, v value.Value) varex.V[value.Value] {
		level := value.ToLong(v)
		if level < 1 {
			return env.fault(c, pos, errors.NewRuntimeError(errors.CodeInvalidTarget,
				"'break' and 'continue' operators accept only positive integers"))
		}
		return varex.OneIn(c, signal(int(level)))
	})
	return collect(res, aborted(levels)), nil
}

// executeReturnStatement yields the returned value; a bare return yields null
func (env *Env) executeReturnStatement(ctx featureexpr.Expr, n *ast.Return) (varex.V[value.Value], error) {
	if n.Value == nil {
		return varex.OneIn(ctx, value.NULL), nil
	}
	v, err := env.evaluateExpression(ctx, n.Value)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return varex.Map(v, func(x value.Value) value.Value {
		if x == nil {
			return value.NULL
		}
		return x
	}), nil
}

// hoist declares the unconditional top-level functions and parentless
// classes of a file before it runs. The result holds the configurations in
// which a declaration faulted.
func (env *Env) hoist(ctx featureexpr.Expr, stmts []ast.Statement) (varex.V[value.Value], error) {
	var faults []varex.Branch[value.Value]
	for _, s := range stmts {
		var r varex.V[value.Value]
		switch n := s.(type) {
		case *ast.FunctionDecl:
			r = env.declareFunction(ctx, &Function{decl: n, name: n.Name, file: env.file}, n.Pos)
		case *ast.ClassDecl:
			if n.Parent != "" {
				continue
			}
			var err error
			if r, err = env.declareClass(ctx, n); err != nil {
				return varex.V[value.Value]{}, err
			}
		default:
			continue
		}
		env.hoisted[s] = true
		faults = append(faults, aborted(r).Branches()...)
		ctx = live(ctx, r)
	}
	return varex.FromBranches(faults...), nil
}

// executeFile hoists the declarations of a file and executes its statements
func (env *Env) executeFile(ctx featureexpr.Expr, prog *ast.Program) (varex.V[value.Value], error) {
	faults, err := env.hoist(ctx, prog.Statements)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := env.executeBlock(ctx.AndNot(faults.Cond()), prog.Statements)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(env.escapedJumps(res, ast.Position{File: prog.File}), faults), nil
}

// escapedJumps faults the configurations in which a break or continue left
// the body of a function or file without an enclosing loop
func (env *Env) escapedJumps(res varex.V[value.Value], pos ast.Position) varex.V[value.Value] {
	var out []varex.Branch[value.Value]
	for _, b := range res.Branches() {
		var keyword string
		switch b.Value.(type) {
		case *value.Break:
			keyword = "break"
		case *value.Continue:
			keyword = "continue"
		default:
			out = append(out, b)
			continue
		}
		out = append(out, env.fault(b.Cond, pos, errors.NewRuntimeError(errors.CodeNotInLoop,
			fmt.Sprintf("'%s' not in the 'loop' or 'switch' context", keyword))).Branches()...)
	}
	return varex.FromBranches(out...)
}
