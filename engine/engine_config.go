package engine

import (
	"fmt"
	"time"

	"quercus/container"
	"quercus/errors"
	"quercus/factory"
	"quercus/featureexpr"
	"quercus/loader"
	"quercus/logging"
	"quercus/runtime"
)

// Default limits applied when the configuration leaves them at zero
const (
	DefaultMaxExecutionTime  = 30 * time.Second
	DefaultMaxCallDepth      = 512
	DefaultMaxLoopIterations = 1_000_000
)

// ExecutionEngine evaluates programs variationally. It owns the process-wide
// state (runtime tables, module loader, feature space); every Run gets its own
// Env, so one engine serves concurrent requests.
type ExecutionEngine struct {
	container   container.Container
	runtime     *runtime.Runtime
	loader      loader.ModuleLoader
	logger      logging.Logger
	space       *featureexpr.Space
	model       featureexpr.Expr
	handler     errors.ErrorHandler
	verbose     bool
	maxTime     time.Duration
	maxDepth    int
	maxLoops    int
	diagnostics func() (*Diagnostics, error)
}

// ExecutionEngineConfig contains configuration for the execution engine
type ExecutionEngineConfig struct {
	Container container.Container
	// Features are declared in order; the order fixes the configuration bit layout
	Features []string
	// FeatureModel restricts the valid configurations, e.g. "A => B"
	FeatureModel      string
	IncludePaths      []string
	LuaScripts        []string
	MaxExecutionTime  time.Duration
	MaxCallDepth      int
	MaxLoopIterations int
	Verbose           bool // Enable debug logging of calls, includes and loops
}

// NewExecutionEngine creates a new execution engine with default dependencies
func NewExecutionEngine() (*ExecutionEngine, error) {
	return NewExecutionEngineWithContainer(nil)
}

// NewExecutionEngineWithContainer creates a new execution engine with a custom DI container
func NewExecutionEngineWithContainer(c container.Container) (*ExecutionEngine, error) {
	return NewExecutionEngineWithConfig(ExecutionEngineConfig{
		Container: c,
	})
}

// NewExecutionEngineWithConfig creates a new execution engine with configuration.
// Dependencies already present in the container are used as they are.
func NewExecutionEngineWithConfig(config ExecutionEngineConfig) (*ExecutionEngine, error) {
	var diContainer container.Container
	if config.Container == nil {
		diContainer = container.NewDIContainer()
	} else {
		diContainer = config.Container
	}

	if !diContainer.IsRegistered("logger") {
		err := diContainer.Register("logger", func() (interface{}, error) {
			return logging.Logger(logging.NewNopLogger()), nil
		}, container.Singleton)
		if err != nil {
			return nil, errors.NewSystemError("LOGGER_REGISTRATION_FAILED", fmt.Sprintf("failed to register logger: %v", err))
		}
	}

	if !diContainer.IsRegistered("runtime") {
		err := diContainer.Register("runtime", func() (interface{}, error) {
			return newDefaultRuntime(config.LuaScripts)
		}, container.Singleton)
		if err != nil {
			return nil, errors.NewSystemError("RUNTIME_REGISTRATION_FAILED", fmt.Sprintf("failed to register runtime: %v", err))
		}
	}

	if !diContainer.IsRegistered("loader") {
		err := diContainer.Register("loader", func() (interface{}, error) {
			return loader.ModuleLoader(loader.NewFileLoader(config.IncludePaths...)), nil
		}, container.Singleton)
		if err != nil {
			return nil, errors.NewSystemError("LOADER_REGISTRATION_FAILED", fmt.Sprintf("failed to register loader: %v", err))
		}
	}

	if !diContainer.IsRegistered("space") {
		err := diContainer.Register("space", func() (interface{}, error) {
			s := featureexpr.NewSpace()
			s.Declare(config.Features...)
			return s, nil
		}, container.Singleton)
		if err != nil {
			return nil, errors.NewSystemError("SPACE_REGISTRATION_FAILED", fmt.Sprintf("failed to register feature space: %v", err))
		}
	}

	logger, err := container.ResolveAs[logging.Logger](diContainer, "logger")
	if err != nil {
		return nil, errors.NewSystemError("LOGGER_RESOLUTION_FAILED", fmt.Sprintf("failed to resolve logger: %v", err))
	}

	// diagnostics are per request, so the collector is transient
	if !diContainer.IsRegistered("diagnostics") {
		err := diContainer.Register("diagnostics", func() (interface{}, error) {
			return NewDiagnostics(logger.WithComponent("diagnostics")), nil
		}, container.Transient)
		if err != nil {
			return nil, errors.NewSystemError("DIAGNOSTICS_REGISTRATION_FAILED", fmt.Sprintf("failed to register diagnostics: %v", err))
		}
	}

	rt, err := container.ResolveAs[*runtime.Runtime](diContainer, "runtime")
	if err != nil {
		return nil, errors.NewSystemError("RUNTIME_RESOLUTION_FAILED", fmt.Sprintf("failed to resolve runtime: %v", err))
	}

	ld, err := container.ResolveAs[loader.ModuleLoader](diContainer, "loader")
	if err != nil {
		return nil, errors.NewSystemError("LOADER_RESOLUTION_FAILED", fmt.Sprintf("failed to resolve loader: %v", err))
	}

	space, err := container.ResolveAs[*featureexpr.Space](diContainer, "space")
	if err != nil {
		return nil, errors.NewSystemError("SPACE_RESOLUTION_FAILED", fmt.Sprintf("failed to resolve feature space: %v", err))
	}

	model := featureexpr.True()
	if config.FeatureModel != "" {
		model, err = space.Parse(config.FeatureModel)
		if err != nil {
			return nil, errors.NewValidationError(errors.CodeBadFeature, fmt.Sprintf("invalid feature model: %v", err))
		}
		if !model.IsSatisfiable() {
			return nil, errors.NewValidationError(errors.CodeBadFeature, "feature model has no valid configuration")
		}
	}

	engine := &ExecutionEngine{
		container: diContainer,
		runtime:   rt,
		loader:    ld,
		logger:    logger.WithComponent("engine"),
		space:     space,
		model:     model,
		handler:   errors.NewDefaultErrorHandler(),
		verbose:   config.Verbose,
		maxTime:   orDefault(config.MaxExecutionTime, DefaultMaxExecutionTime),
		maxDepth:  orDefault(config.MaxCallDepth, DefaultMaxCallDepth),
		maxLoops:  orDefault(config.MaxLoopIterations, DefaultMaxLoopIterations),
	}
	engine.diagnostics = func() (*Diagnostics, error) {
		return container.ResolveAs[*Diagnostics](diContainer, "diagnostics")
	}
	return engine, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// newDefaultRuntime creates a runtime with the builtin functions and the
// functions of the given Lua scripts
func newDefaultRuntime(luaScripts []string) (*runtime.Runtime, error) {
	registry := factory.DefaultProviderRegistry(luaScripts...)
	failures := registry.ValidateAllEnvironments()
	for _, name := range registry.ListFactories() {
		if err, failed := failures[name]; failed {
			return nil, errors.WrapError(err, "PROVIDER_ENVIRONMENT_INVALID", fmt.Sprintf("provider '%s' cannot be created", name))
		}
	}
	return registry.BuildRuntime()
}
