package engine

import (
	"strings"

	"quercus/featureexpr"
)

// Segment is a piece of output written in the configurations of Cond
type Segment struct {
	Cond featureexpr.Expr `json:"cond" yaml:"cond"`
	Text string           `json:"text" yaml:"text"`
}

// Output is the append-only output sink of a request. Text written under a
// feature context is kept as a conditional segment; consecutive writes under
// the same context are merged.
type Output struct {
	segments []Segment
}

// Write appends s within ctx
func (o *Output) Write(ctx featureexpr.Expr, s string) {
	if s == "" || !ctx.IsSatisfiable() {
		return
	}
	if n := len(o.segments); n > 0 && o.segments[n-1].Cond.Equivalent(ctx) {
		o.segments[n-1].Text += s
		return
	}
	o.segments = append(o.segments, Segment{Cond: ctx, Text: s})
}

// Segments returns the conditional segments in write order
func (o *Output) Segments() []Segment {
	return o.segments
}

// Render returns the output seen in cfg
func (o *Output) Render(cfg featureexpr.Configuration) string {
	var sb strings.Builder
	for _, s := range o.segments {
		if s.Cond.Eval(cfg) {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// Annotated renders every segment, wrapping conditional ones in #if/#endif
// markers
func (o *Output) Annotated() string {
	var sb strings.Builder
	for _, s := range o.segments {
		if s.Cond.IsTautology() {
			sb.WriteString(s.Text)
			continue
		}
		sb.WriteString("#if " + s.Cond.String() + "\n")
		sb.WriteString(s.Text)
		if !strings.HasSuffix(s.Text, "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString("#endif\n")
	}
	return sb.String()
}
