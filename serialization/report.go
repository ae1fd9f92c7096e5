package serialization

import (
	"quercus/engine"
)

// ReportVersion is the version of the report layout
const ReportVersion = "1.0.0"

// Report is the serializable form of an evaluation result
type Report struct {
	Version        string          `json:"version" yaml:"version" msgpack:"version"`
	File           string          `json:"file,omitempty" yaml:"file,omitempty" msgpack:"file,omitempty"`
	Features       []string        `json:"features,omitempty" yaml:"features,omitempty" msgpack:"features,omitempty"`
	Context        string          `json:"context" yaml:"context" msgpack:"context"`
	DurationMS     int64           `json:"duration_ms" yaml:"duration_ms" msgpack:"duration_ms"`
	Error          string          `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
	Segments       []Segment       `json:"segments,omitempty" yaml:"segments,omitempty" msgpack:"segments,omitempty"`
	Diagnostics    []Diagnostic    `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
	Configurations []Configuration `json:"configurations,omitempty" yaml:"configurations,omitempty" msgpack:"configurations,omitempty"`
	// Omitted explains why per-configuration projections are missing
	Omitted string `json:"omitted,omitempty" yaml:"omitted,omitempty" msgpack:"omitted,omitempty"`
}

// Segment is output written under a feature condition
type Segment struct {
	Cond string `json:"cond" yaml:"cond" msgpack:"cond"`
	Text string `json:"text" yaml:"text" msgpack:"text"`
}

// Diagnostic is a reported warning or error with the condition it holds in
type Diagnostic struct {
	Severity string `json:"severity" yaml:"severity" msgpack:"severity"`
	Code     string `json:"code" yaml:"code" msgpack:"code"`
	Message  string `json:"message" yaml:"message" msgpack:"message"`
	Location string `json:"location,omitempty" yaml:"location,omitempty" msgpack:"location,omitempty"`
	Cond     string `json:"cond" yaml:"cond" msgpack:"cond"`
}

// Configuration is the outcome of the run in one configuration
type Configuration struct {
	Config      map[string]bool `json:"config" yaml:"config" msgpack:"config"`
	Output      string          `json:"output" yaml:"output" msgpack:"output"`
	Value       interface{}     `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
	Aborted     string          `json:"aborted,omitempty" yaml:"aborted,omitempty" msgpack:"aborted,omitempty"`
}

// ReportOptions selects what NewReport includes
type ReportOptions struct {
	File string
	// PerConfiguration adds the projection of every valid configuration
	PerConfiguration bool
}

// NewReport converts res into a report
func NewReport(res *engine.Result, opts ReportOptions) *Report {
	r := &Report{
		Version:    ReportVersion,
		File:       opts.File,
		Context:    res.Context.String(),
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Space != nil {
		r.Features = res.Space.Features()
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	if res.Output != nil {
		for _, s := range res.Output.Segments() {
			r.Segments = append(r.Segments, Segment{Cond: s.Cond.String(), Text: s.Text})
		}
	}
	if res.Diagnostics != nil {
		for _, d := range res.Diagnostics.All() {
			item := Diagnostic{
				Severity: string(d.Severity),
				Code:     d.Code,
				Message:  d.Message,
				Cond:     d.Cond.String(),
			}
			if d.Location.IsValid() {
				item.Location = d.Location.String()
			}
			r.Diagnostics = append(r.Diagnostics, item)
		}
	}
	if opts.PerConfiguration {
		projections, err := res.Projections()
		if err != nil {
			r.Omitted = err.Error()
		}
		for _, p := range projections {
			r.Configurations = append(r.Configurations, Configuration{
				Config:      p.Config,
				Output:      p.Output,
				Value:       p.Value,
				Diagnostics: p.Diagnostics,
				Aborted:     p.Aborted,
			})
		}
	}
	return r
}
