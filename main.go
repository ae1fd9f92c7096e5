package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"quercus/ast"
	"quercus/container"
	"quercus/engine"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/repl"
	"quercus/serialization"
)

const version = "quercus v0.1.0 - variational PHP evaluator"

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("QUERCUS_CONFIG"), "Path to configuration file")
		features    = flag.String("features", "", "Comma separated feature flags, overrides features.declared")
		model       = flag.String("model", "", "Feature model constraint, e.g. \"A => B\"")
		under       = flag.String("under", "", "Evaluate only the configurations satisfying this expression")
		format      = flag.String("format", "", "Output format: text or "+strings.Join(serialization.GetSupportedFormats(), ", "))
		perConfig   = flag.Bool("per-config", false, "Print one block per configuration")
		outFile     = flag.String("o", "", "Write output to file (a directory in batch mode)")
		interactive = flag.Bool("repl", false, "Inspect the result interactively after evaluation")
		saveConfig  = flag.String("save-config", "", "Write the effective configuration to a file and exit")
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *features != "" {
		cfg.Features.Declared = strings.Split(*features, ",")
	}
	if *model != "" {
		cfg.Features.Model = *model
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *perConfig {
		cfg.Output.PerConfiguration = true
	}
	if *outFile != "" {
		cfg.Output.File = *outFile
	}
	if *verbose {
		cfg.Engine.Verbose = true
	}
	if f := cfg.Output.Format; f != "" && f != "text" && !serialization.IsFormatSupported(f) {
		fmt.Fprintf(os.Stderr, "Error: unsupported output format %q (supported: text, %s)\n",
			f, strings.Join(serialization.GetSupportedFormats(), ", "))
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := SaveConfig(cfg, *saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	eng, err := newEngine(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files := flag.Args()
	switch {
	case len(files) > 1:
		if err := BatchMode(ctx, eng, files, *under, cfg, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case len(files) == 1:
		res, err := runFile(ctx, eng, files[0], *under)
		if res == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := emit(res, files[0], cfg.Output, cfg.Output.File); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *interactive {
			if err := newREPL(eng, res, files[0], *under, cfg, logger).Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		if res.Err != nil {
			os.Exit(1)
		}
	default:
		if err := newREPL(eng, nil, "", *under, cfg, logger).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// newEngine wires the configured logger into the engine's container
func newEngine(cfg *Config, logger logging.Logger) (*engine.ExecutionEngine, error) {
	c := container.NewDIContainer()
	if err := c.RegisterInstance("logger", logger); err != nil {
		return nil, err
	}
	ec := cfg.EngineConfig()
	ec.Container = c
	return engine.NewExecutionEngineWithConfig(ec)
}

// runFile decodes the AST file at path and evaluates it in the
// configurations satisfying under
func runFile(ctx context.Context, eng *engine.ExecutionEngine, path, under string) (*engine.Result, error) {
	prog, err := ast.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	restrict := featureexpr.True()
	if under != "" {
		if restrict, err = eng.Space().Parse(under); err != nil {
			return nil, fmt.Errorf("invalid -under expression: %v", err)
		}
	}
	return eng.RunUnder(ctx, prog, restrict)
}

func newREPL(eng *engine.ExecutionEngine, res *engine.Result, file, under string, cfg *Config, logger logging.Logger) *repl.REPL {
	return repl.NewREPLWithConfig(repl.REPLConfig{
		Result: res,
		File:   file,
		Runner: func(ctx context.Context, path string) (*engine.Result, error) {
			return runFile(ctx, eng, path, under)
		},
		Logger:       logger,
		EnableColors: cfg.REPL.Colors,
		Verbose:      cfg.Engine.Verbose,
		ShowWelcome:  cfg.REPL.ShowWelcome,
		Prompt:       cfg.REPL.Prompt,
		HistoryFile:  expandHome(cfg.REPL.HistoryFile),
		HistorySize:  cfg.REPL.HistorySize,
	})
}

// emit writes res to path, or to stdout when path is empty
func emit(res *engine.Result, file string, out OutputConfig, path string) error {
	w := io.Writer(os.Stdout)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return writeResult(w, res, file, out)
}

// writeResult renders res as text or as a serialized report
func writeResult(w io.Writer, res *engine.Result, file string, out OutputConfig) error {
	if out.Format != "" && out.Format != "text" {
		report := serialization.NewReport(res, serialization.ReportOptions{File: file, PerConfiguration: out.PerConfiguration})
		data, err := serialization.Serialize(report, out.Format)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	var b strings.Builder
	if out.PerConfiguration {
		projections, err := res.Projections()
		if err != nil {
			return err
		}
		for _, p := range projections {
			fmt.Fprintf(&b, "== %s ==\n%s", p.Config, p.Output)
			if p.Output != "" && !strings.HasSuffix(p.Output, "\n") {
				b.WriteString("\n")
			}
			if p.Aborted != "" {
				fmt.Fprintf(&b, "aborted: %s\n", p.Aborted)
			}
			for _, d := range p.Diagnostics {
				fmt.Fprintf(&b, "%s\n", d)
			}
		}
	} else {
		b.WriteString(res.Output.Annotated())
		for _, d := range res.Diagnostics.All() {
			fmt.Fprintf(&b, "[%s] %s\n", d.Cond, d)
		}
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "fatal: %v\n", res.Err)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func printHelp() {
	fmt.Println(version)
	fmt.Println()
	fmt.Println("Usage: quercus [options] [file.yaml|file.json ...]")
	fmt.Println()
	fmt.Println("Evaluates PHP programs, given as AST files, in every feature configuration at once.")
	fmt.Println("One file is evaluated and printed; several files are evaluated concurrently;")
	fmt.Println("no file starts the REPL.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  QUERCUS_CONFIG            Path to configuration file")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  quercus -features A,B index.yaml")
	fmt.Println("  quercus -features A,B -model 'A => B' -per-config index.yaml")
	fmt.Println("  quercus -format json -o report.json index.yaml")
	fmt.Println("  quercus -repl index.yaml")
	fmt.Println("  quercus -o reports/ a.yaml b.yaml c.yaml")
}
