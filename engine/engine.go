package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/value"
	"quercus/varex"
)

// Result is the outcome of one request over all configurations
type Result struct {
	Space   *featureexpr.Space
	Context featureexpr.Expr
	// Value is the completion of the top-level program: nil where it ran to
	// the end, an Abort where a branch fault stopped it, or the value of a
	// top-level return
	Value       varex.V[value.Value]
	Output      *Output
	Diagnostics *Diagnostics
	Globals     *Scope
	Duration    time.Duration
	// Err is the request-fatal error, if any. The other fields then hold the
	// state reached before it.
	Err error
}

// Projection is the result as seen by a single configuration
type Projection struct {
	Config      featureexpr.Configuration `json:"config" yaml:"config" msgpack:"config"`
	Output      string                    `json:"output" yaml:"output" msgpack:"output"`
	Value       interface{}               `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value,omitempty"`
	Diagnostics []string                  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
	Aborted     string                    `json:"aborted,omitempty" yaml:"aborted,omitempty" msgpack:"aborted,omitempty"`
	Error       string                    `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
}

// Run executes prog in every configuration of the feature model
func (e *ExecutionEngine) Run(goctx context.Context, prog *ast.Program) (*Result, error) {
	return e.RunUnder(goctx, prog, featureexpr.True())
}

// RunUnder executes prog in the configurations of fexpr that satisfy the
// feature model. A request-fatal error is returned together with the partial
// result.
func (e *ExecutionEngine) RunUnder(goctx context.Context, prog *ast.Program, fexpr featureexpr.Expr) (res *Result, err error) {
	if prog == nil {
		return nil, errors.NewValidationError("NO_PROGRAM", "program is nil")
	}
	if goctx == nil {
		goctx = context.Background()
	}
	diags, err := e.diagnostics()
	if err != nil {
		return nil, errors.NewSystemError("DIAGNOSTICS_RESOLUTION_FAILED", fmt.Sprintf("failed to resolve diagnostics: %v", err))
	}
	env := e.newEnv(goctx, prog.File, diags)
	ctx := e.model.And(fexpr)
	env.root = ctx

	start := time.Now()
	res = &Result{
		Space:       e.space,
		Context:     ctx,
		Output:      env.output,
		Diagnostics: diags,
		Globals:     env.globals,
	}
	defer func() {
		if r := recover(); r != nil {
			execErr, ok := r.(*errors.ExecutionError)
			if !ok {
				panic(r)
			}
			err = env.fatal(execErr)
		}
		res.Duration = time.Since(start)
		if err != nil {
			res.Err = err
			if execErr, ok := errors.AsExecutionError(err); ok {
				diags.Report(ctx, execErr)
			}
		}
		env.logger.Debug("request finished",
			logging.StringField("file", prog.File),
			logging.DurationField("duration", res.Duration),
			logging.IntField("diagnostics", diags.Len()))
	}()

	if !ctx.IsSatisfiable() {
		return res, nil
	}
	res.Value, err = env.executeFile(ctx, prog)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Close releases the runtime and its host providers
func (e *ExecutionEngine) Close() error {
	return e.runtime.Close()
}

// Space returns the feature space formulas of this engine are built in
func (e *ExecutionEngine) Space() *featureexpr.Space {
	return e.space
}

// Configurations returns the valid configurations of the request. It fails
// with featureexpr.ErrTooManyConfigurations when there are too many to list.
func (r *Result) Configurations() ([]featureexpr.Configuration, error) {
	if r.Space == nil {
		return nil, nil
	}
	return r.Space.Configurations(r.Context, r.Space.Features()...)
}

// ConfigurationCount returns the number of valid configurations of the request
func (r *Result) ConfigurationCount() *big.Int {
	if r.Space == nil {
		return new(big.Int)
	}
	return r.Space.Count(r.Context, r.Space.Features()...)
}

// Project returns what a concrete run in cfg would have produced
func (r *Result) Project(cfg featureexpr.Configuration) Projection {
	p := Projection{Config: cfg}
	if r.Output != nil {
		p.Output = r.Output.Render(cfg)
	}
	if r.Diagnostics != nil {
		for _, d := range r.Diagnostics.For(cfg) {
			p.Diagnostics = append(p.Diagnostics, d.String())
		}
	}
	if got, ok := r.Value.Get(cfg); ok {
		switch v := got.(type) {
		case nil:
		case *value.Abort:
			p.Aborted = v.Err.Message
		default:
			p.Value = value.Export(v, cfg)
		}
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	}
	return p
}

// Projections returns the projection of every valid configuration
func (r *Result) Projections() ([]Projection, error) {
	cfgs, err := r.Configurations()
	if err != nil {
		return nil, err
	}
	out := make([]Projection, len(cfgs))
	for i, cfg := range cfgs {
		out[i] = r.Project(cfg)
	}
	return out, nil
}
