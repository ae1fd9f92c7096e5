package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"quercus/engine"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/serialization"
	"quercus/shared"
)

// Runner evaluates the program stored at path
type Runner func(ctx context.Context, path string) (*engine.Result, error)

// REPL inspects a variational result interactively
type REPL struct {
	result      *engine.Result
	file        string
	runner      Runner
	serializers *serialization.SerializerRegistry
	prompt      string
	running     bool
	history     []string
	historyFile string
	historySize int
	showWelcome bool
	out         io.Writer
	in          io.Reader
	display     *DisplayManager
	logger      logging.Logger
}

// REPLConfig contains configuration for the REPL
type REPLConfig struct {
	Result       *engine.Result
	File         string // Program the result was produced from
	Runner       Runner // Enables :run
	Serializers  *serialization.SerializerRegistry
	Logger       logging.Logger
	EnableColors bool
	Verbose      bool
	ShowWelcome  bool
	Prompt       string // default: "quercus> "
	HistoryFile  string // default: "/tmp/quercus_history"
	HistorySize  int    // default: 1000
	Out          io.Writer
	In           io.Reader
}

// NewREPLWithConfig creates a new REPL instance with configuration
func NewREPLWithConfig(config REPLConfig) *REPL {
	prompt := config.Prompt
	if prompt == "" {
		prompt = "quercus> "
	}
	historyFile := config.HistoryFile
	if historyFile == "" {
		historyFile = "/tmp/quercus_history"
	}
	historySize := config.HistorySize
	if historySize == 0 {
		historySize = 1000
	}
	serializers := config.Serializers
	if serializers == nil {
		serializers = serialization.NewDefaultSerializerRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	out := config.Out
	if out == nil {
		out = os.Stdout
	}
	in := config.In
	if in == nil {
		in = os.Stdin
	}

	return &REPL{
		result:      config.Result,
		file:        config.File,
		runner:      config.Runner,
		serializers: serializers,
		prompt:      prompt,
		historyFile: historyFile,
		historySize: historySize,
		showWelcome: config.ShowWelcome,
		out:         out,
		in:          in,
		display:     NewDisplayManager(config.EnableColors, config.Verbose),
		logger:      logger.WithComponent("repl"),
	}
}

// Result returns the result under inspection
func (r *REPL) Result() *engine.Result {
	return r.result
}

// GetHistory returns the commands entered so far
func (r *REPL) GetHistory() []string {
	return r.history
}

func (r *REPL) isInteractive() bool {
	f, ok := r.in.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Run starts the REPL loop
func (r *REPL) Run() error {
	r.running = true
	if r.showWelcome {
		r.printWelcome()
	}
	if r.isInteractive() {
		return r.runInteractive()
	}
	return r.runPiped()
}

func (r *REPL) runInteractive() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.display.Prompt(r.prompt),
		HistoryFile:     r.historyFile,
		HistoryLimit:    r.historySize,
		InterruptPrompt: "^C",
		EOFPrompt:       ":exit",
		AutoComplete:    NewCompleter(r),
		Stdout:          r.out,
	})
	if err != nil {
		return errors.NewSystemError("READLINE_INIT_FAILED", fmt.Sprintf("failed to initialize readline: %v", err))
	}
	defer func() {
		if err := rl.Close(); err != nil {
			r.logger.Warn("failed to close readline", logging.ErrorField("error", err))
		}
	}()

	for r.running {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(input) == 0 {
					break
				}
				continue
			}
			if err == io.EOF {
				break
			}
			return errors.NewSystemError("READ_ERROR", fmt.Sprintf("read error: %v", err))
		}
		r.processLine(input)
	}
	fmt.Fprintln(r.out, "Goodbye!")
	return nil
}

func (r *REPL) runPiped() error {
	scanner := bufio.NewScanner(r.in)
	for r.running && scanner.Scan() {
		r.processLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.NewSystemError("STDIN_READ_ERROR", fmt.Sprintf("error reading from stdin: %v", err))
	}
	return nil
}

func (r *REPL) processLine(input string) {
	line := strings.TrimSpace(input)
	if line == "" {
		return
	}
	out, err := r.ExecuteCommand(line)
	if err != nil {
		fmt.Fprintln(r.out, r.display.Error(err.Error()))
		return
	}
	if out != "" {
		fmt.Fprintln(r.out, out)
	}
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, r.display.Header("quercus - variational result inspector"))
	if r.result != nil {
		fmt.Fprintf(r.out, "%s: %s configurations\n", r.file, r.result.ConfigurationCount())
	}
	fmt.Fprintln(r.out, "Type :help for commands")
}

// commands lists the command names, used by help and completion
var commands = []string{
	":configs", ":show", ":output", ":sat", ":var", ":globals", ":diag",
	":save", ":run", ":history", ":help", ":exit",
}

// ExecuteCommand runs one command line and returns what it prints
func (r *REPL) ExecuteCommand(line string) (string, error) {
	r.history = append(r.history, line)
	if len(r.history) > r.historySize {
		r.history = r.history[len(r.history)-r.historySize:]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, args := fields[0], fields[1:]
	if !strings.HasPrefix(cmd, ":") {
		return "", fmt.Errorf("unknown input %q, type :help for commands", line)
	}

	switch cmd {
	case ":help", ":h":
		return r.help(), nil
	case ":quit", ":q", ":exit":
		r.running = false
		return "", nil
	case ":history", ":hist":
		var b strings.Builder
		for i, h := range r.history[:len(r.history)-1] {
			fmt.Fprintf(&b, "%4d  %s\n", i+1, h)
		}
		return strings.TrimSuffix(b.String(), "\n"), nil
	case ":run":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: :run <file>")
		}
		return r.run(args[0])
	}

	if r.result == nil {
		return "", fmt.Errorf("no result loaded, use :run <file>")
	}
	switch cmd {
	case ":configs", ":c":
		return r.configs()
	case ":show", ":s":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: :show <configuration|index>")
		}
		return r.show(args[0])
	case ":output", ":o":
		return r.result.Output.Annotated(), nil
	case ":sat":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: :sat <feature expression>")
		}
		return r.sat(strings.Join(args, " "))
	case ":var", ":v":
		if len(args) < 1 || len(args) > 2 {
			return "", fmt.Errorf("usage: :var <name> [configuration|index]")
		}
		return r.variable(args)
	case ":globals", ":g":
		names := r.result.Globals.Names()
		sort.Strings(names)
		return strings.Join(names, "\n"), nil
	case ":diag", ":d":
		return r.diagnostics(), nil
	case ":save":
		if len(args) < 1 || len(args) > 2 {
			return "", fmt.Errorf("usage: :save <file> [format]")
		}
		return r.save(args)
	}
	return "", fmt.Errorf("unknown command %s, type :help for commands", cmd)
}

func (r *REPL) help() string {
	return strings.Join([]string{
		"Available commands:",
		"  :configs, :c              - List the valid configurations",
		"  :show <cfg|n>, :s         - Show the output, value and diagnostics of one configuration",
		"  :output, :o               - Show the conditional output",
		"  :sat <expr>               - Check a feature expression against the request",
		"  :var <name> [cfg|n], :v   - Show a global variable",
		"  :globals, :g              - List global variables",
		"  :diag, :d                 - List diagnostics with their conditions",
		"  :save <file> [format]     - Write a report (" + strings.Join(r.serializers.ListSerializers(), ", ") + ")",
		"  :run <file>               - Evaluate another program",
		"  :history, :hist           - Show command history",
		"  :quit, :q, :exit          - Exit",
		"",
		"Configurations are written A,!B or by their :configs index.",
	}, "\n")
}

func (r *REPL) configs() (string, error) {
	cfgs, err := r.result.Configurations()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, cfg := range cfgs {
		fmt.Fprintf(&b, "%3d  %s\n", i, cfg)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// configuration resolves an index into :configs or a configuration literal
func (r *REPL) configuration(arg string) (featureexpr.Configuration, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		cfgs, err := r.result.Configurations()
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(cfgs) {
			return nil, fmt.Errorf("configuration index %d out of range [0, %d)", i, len(cfgs))
		}
		return cfgs[i], nil
	}
	cfg, err := featureexpr.ParseConfiguration(arg)
	if err != nil {
		return nil, err
	}
	if !r.result.Context.Eval(cfg) {
		return nil, fmt.Errorf("configuration %s is not valid for this request", cfg)
	}
	return cfg, nil
}

func (r *REPL) show(arg string) (string, error) {
	cfg, err := r.configuration(arg)
	if err != nil {
		return "", err
	}
	p := r.result.Project(cfg)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.display.Label("config:"), cfg)
	fmt.Fprintf(&b, "%s\n%s", r.display.Label("output:"), p.Output)
	if !strings.HasSuffix(p.Output, "\n") {
		b.WriteString("\n")
	}
	if p.Value != nil {
		fmt.Fprintf(&b, "%s %s\n", r.display.Label("value:"), shared.FormatExported(p.Value))
	}
	if p.Aborted != "" {
		fmt.Fprintf(&b, "%s %s\n", r.display.Label("aborted:"), r.display.Error(p.Aborted))
	}
	for _, d := range p.Diagnostics {
		fmt.Fprintf(&b, "%s %s\n", r.display.Label("diagnostic:"), r.display.Warning(d))
	}
	if p.Error != "" {
		fmt.Fprintf(&b, "%s %s\n", r.display.Label("error:"), r.display.Error(p.Error))
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func (r *REPL) sat(text string) (string, error) {
	e, err := r.result.Space.Parse(text)
	if err != nil {
		return "", err
	}
	within := r.result.Context.And(e)
	if !within.IsSatisfiable() {
		return "unsatisfiable", nil
	}
	n := r.result.Space.Count(within, r.result.Space.Features()...)
	total := r.result.ConfigurationCount()
	if r.result.Context.Entails(e) {
		return fmt.Sprintf("valid in all %s configurations", total), nil
	}
	return fmt.Sprintf("satisfiable in %s of %s configurations: %s", n, total, within), nil
}

func (r *REPL) variable(args []string) (string, error) {
	name := strings.TrimPrefix(args[0], "$")
	v := r.result.Globals.Get(name)
	if len(args) == 2 {
		cfg, err := r.configuration(args[1])
		if err != nil {
			return "", err
		}
		got, ok := v.Get(cfg)
		if !ok {
			return "", fmt.Errorf("$%s has no value in %s", name, cfg)
		}
		return shared.FormatValueForDisplay(got), nil
	}
	var b strings.Builder
	for _, br := range v.Branches() {
		within := br.Cond.And(r.result.Context)
		if !within.IsSatisfiable() {
			continue
		}
		fmt.Fprintf(&b, "%s  %s\n", r.display.Label("["+within.String()+"]"), shared.FormatValueForDisplay(br.Value))
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func (r *REPL) diagnostics() string {
	var b strings.Builder
	for _, d := range r.result.Diagnostics.All() {
		fmt.Fprintf(&b, "%s  %s\n", r.display.Label("["+d.Cond.String()+"]"), r.display.Warning(d.String()))
	}
	if b.Len() == 0 {
		return "no diagnostics"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (r *REPL) save(args []string) (string, error) {
	path := args[0]
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if len(args) == 2 {
		format = args[1]
	}
	if format == "yml" {
		format = "yaml"
	}
	s, err := r.serializers.GetSerializer(format)
	if err != nil {
		return "", err
	}
	report := serialization.NewReport(r.result, serialization.ReportOptions{File: r.file, PerConfiguration: true})
	data, err := s.Serialize(report)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.WrapError(err, "REPORT_WRITE_FAILED", "failed to write report")
	}
	return r.display.Success(fmt.Sprintf("wrote %s report to %s", s.GetName(), path)), nil
}

func (r *REPL) run(path string) (string, error) {
	if r.runner == nil {
		return "", fmt.Errorf(":run is not available")
	}
	res, err := r.runner(context.Background(), path)
	if res == nil {
		return "", err
	}
	r.result, r.file = res, path
	r.logger.Debug("loaded result", logging.StringField("file", path))
	msg := fmt.Sprintf("%s: %s configurations, %d diagnostics", path, res.ConfigurationCount(), res.Diagnostics.Len())
	if err != nil {
		return msg + "\n" + r.display.Error(err.Error()), nil
	}
	return r.display.Success(msg), nil
}
