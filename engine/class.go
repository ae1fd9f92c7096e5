package engine

import (
	"fmt"
	"strings"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/value"
	"quercus/varex"
)

// Class is a declared class. Method names are interned lower-case.
type Class struct {
	name    string
	parent  *Class
	decl    *ast.ClassDecl
	methods map[string]*Function
}

func (c *Class) Name() string { return c.name }

// IsA reports whether c is the named class or one of its descendants
func (c *Class) IsA(name string) bool {
	for k := c; k != nil; k = k.parent {
		if strings.EqualFold(k.name, name) {
			return true
		}
	}
	return false
}

// Parent returns the parent class or nil
func (c *Class) Parent() *Class { return c.parent }

// findMethod looks up an interned method name along the inheritance chain
func (c *Class) findMethod(name string) *Function {
	for k := c; k != nil; k = k.parent {
		if fn, ok := k.methods[name]; ok {
			return fn
		}
	}
	return nil
}

// fieldDecls returns the declared fields, ancestors first
func (c *Class) fieldDecls() []ast.FieldDecl {
	if c.parent == nil {
		return c.decl.Fields
	}
	inherited := c.parent.fieldDecls()
	out := make([]ast.FieldDecl, 0, len(inherited)+len(c.decl.Fields))
	out = append(out, inherited...)
	return append(out, c.decl.Fields...)
}

// declareClass executes a class declaration within ctx. The parent is resolved
// per configuration; configurations without it fault, as do configurations
// where the class already exists.
func (env *Env) declareClass(ctx featureexpr.Expr, decl *ast.ClassDecl) (varex.V[value.Value], error) {
	parents := varex.OneIn[*Class](ctx, nil)
	if decl.Parent != "" {
		parents = env.lookupClass(ctx, decl.Parent)
	}
	key := strings.ToLower(decl.Name)
	return varex.SFlatMapE(parents, ctx, func(c featureexpr.Expr, parent *Class) (varex.V[value.Value], error) {
		if decl.Parent != "" && parent == nil {
			return env.fault(c, decl.Pos, errors.NewRuntimeError(errors.CodeUndefinedClass,
				fmt.Sprintf("Class \"%s\" not found", decl.Parent)).WithSeverity(errors.SeverityError)), nil
		}
		cur, ok := env.classes[key]
		if !ok {
			cur = varex.One[*Class](nil)
		}
		taken := c.And(cur.When(func(k *Class) bool { return k != nil }))
		free := c.AndNot(taken)

		cls := env.newClass(decl, parent)
		env.classes[key] = varex.CompactComparable(varex.Choice(free, varex.OneIn(free, cls), cur))
		env.debug("class declared", logging.StringField("class", decl.Name), logging.StringField("cond", free.String()))

		out := []varex.Branch[value.Value]{{Cond: free, Value: nil}}
		if taken.IsSatisfiable() {
			out = append(out, env.fault(taken, decl.Pos, errors.NewRuntimeError(errors.CodeRedeclared,
				fmt.Sprintf("Cannot declare class %s, because the name is already in use", decl.Name))).Branches()...)
		}
		return varex.FromBranches(out...), nil
	})
}

func (env *Env) newClass(decl *ast.ClassDecl, parent *Class) *Class {
	cls := &Class{name: decl.Name, parent: parent, decl: decl, methods: make(map[string]*Function)}
	for _, m := range decl.Methods {
		cls.methods[env.engine.runtime.Intern(m.Name)] = &Function{decl: m, name: m.Name, class: cls, file: env.file}
	}
	return cls
}

// lookupClass resolves a class name within ctx; nil marks configurations
// where it is undeclared. self, parent and static refer to the class of the
// running method.
func (env *Env) lookupClass(ctx featureexpr.Expr, name string) varex.V[*Class] {
	switch strings.ToLower(name) {
	case "self", "static":
		if env.scope.class != nil {
			cls := env.scope.class
			if strings.EqualFold(name, "static") && env.scope.this != nil {
				if k, ok := env.scope.this.Class.(*Class); ok {
					cls = k
				}
			}
			return varex.OneIn(ctx, cls)
		}
		return varex.OneIn[*Class](ctx, nil)
	case "parent":
		if env.scope.class != nil {
			return varex.OneIn(ctx, env.scope.class.parent)
		}
		return varex.OneIn[*Class](ctx, nil)
	}
	cls, ok := env.classes[strings.ToLower(name)]
	if !ok {
		return varex.OneIn[*Class](ctx, nil)
	}
	return cls.Select(ctx)
}

// instantiate creates an object of cls within ctx, initializes its declared
// fields and runs the constructor
func (env *Env) instantiate(ctx featureexpr.Expr, cls *Class, args []ast.Expression, pos ast.Position) (varex.V[value.Value], error) {
	obj := value.NewObject(cls)
	for _, f := range cls.fieldDecls() {
		init := varex.OneIn(ctx, value.NULL)
		if f.Default != nil {
			v, err := env.evaluateExpression(ctx, f.Default)
			if err != nil {
				return varex.V[value.Value]{}, err
			}
			init = varex.Map(v, storable)
		}
		obj.SetField(ctx, f.Name, init)
	}

	ctor := cls.findMethod(env.engine.runtime.Intern("__construct"))
	if ctor == nil {
		if err := env.checkTimeout(pos); err != nil {
			return varex.V[value.Value]{}, err
		}
		return varex.OneIn(ctx, value.Value(obj)), nil
	}
	res, err := env.callUser(ctx, ctor, args, obj, ctor.class, pos)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return varex.Map(res, func(r value.Value) value.Value {
		if isAbort(r) {
			return r
		}
		return obj
	}), nil
}
