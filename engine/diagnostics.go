package engine

import (
	"strconv"
	"sync"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
)

// Diagnostic is a warning or error raised in the configurations of Cond
type Diagnostic struct {
	Severity errors.ErrorSeverity
	Code     string
	Message  string
	Location ast.Position
	Cond     featureexpr.Expr
}

// String renders the diagnostic the way PHP prints it
func (d Diagnostic) String() string {
	s := severityLabel(d.Severity) + ": " + d.Message
	if d.Location.IsValid() {
		s += " in " + d.Location.File + " on line " + strconv.Itoa(d.Location.Line)
	}
	return s
}

func severityLabel(s errors.ErrorSeverity) string {
	switch s {
	case errors.SeverityWarning:
		return "Warning"
	case errors.SeverityError:
		return "Error"
	case errors.SeverityFatal:
		return "Fatal error"
	}
	return "Notice"
}

// Diagnostics collects the diagnostics of one request and mirrors them to a
// logger
type Diagnostics struct {
	mu     sync.Mutex
	items  []Diagnostic
	logger logging.Logger
}

// NewDiagnostics creates an empty collector
func NewDiagnostics(logger logging.Logger) *Diagnostics {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Diagnostics{logger: logger}
}

// Report records err under ctx
func (d *Diagnostics) Report(ctx featureexpr.Expr, err *errors.ExecutionError) {
	if err == nil || !ctx.IsSatisfiable() {
		return
	}
	d.mu.Lock()
	d.items = append(d.items, Diagnostic{
		Severity: err.Severity,
		Code:     err.Code,
		Message:  err.Message,
		Location: err.Location,
		Cond:     ctx,
	})
	d.mu.Unlock()

	if !ctx.IsTautology() && err.Feature == "" {
		err = err.Clone().WithFeature(ctx)
	}
	d.logger.ErrorExecution(err)
}

// All returns every diagnostic in report order
func (d *Diagnostics) All() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.items...)
}

// For returns the diagnostics raised in cfg
func (d *Diagnostics) For(cfg featureexpr.Configuration) []Diagnostic {
	var out []Diagnostic
	for _, item := range d.All() {
		if item.Cond.Eval(cfg) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of diagnostics
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
