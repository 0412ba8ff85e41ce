// Package loadexperiment converts the outer YAML ExperimentFile the psuu CLI
// reads into the in-code wiring the core engine expects: a paramspace.Space,
// a kpi.Aggregator, an optimizer.Optimizer, a dispatch.Dispatcher, and a
// controller.RunConfig. Mirrors the teacher's internal/scheduler.loadConfig
// defaulting pattern, generalized from one job shape to this experiment
// shape.
package loadexperiment

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rororowyourboat/psuu/internal/controller"
	"github.com/rororowyourboat/psuu/internal/dispatch"
	"github.com/rororowyourboat/psuu/internal/kpi"
	"github.com/rororowyourboat/psuu/internal/optimizer"
	"github.com/rororowyourboat/psuu/internal/paramspace"
)

// ParameterFile is one [parameters] entry.
type ParameterFile struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"` // continuous | integer | categorical
	Min         float64  `yaml:"min"`
	Max         float64  `yaml:"max"`
	Categories  []any    `yaml:"categories"`
	Description string   `yaml:"description"`
}

// KPIFile is one [kpis] entry: a column reducer (custom reducers are a
// code-only extension, not expressible in YAML).
type KPIFile struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
	Op     string `yaml:"op"`
}

// ObjectiveFile names which registered KPI is the scalar objective.
type ObjectiveFile struct {
	Name     string `yaml:"name"`
	Maximize bool   `yaml:"maximize"`
}

// OptimizerFile selects and configures one Optimizer family member.
type OptimizerFile struct {
	Strategy       string  `yaml:"strategy"` // grid | random | bayesian
	NumIterations  int     `yaml:"numIterations"`
	NumPoints      int     `yaml:"numPoints"`      // grid
	Seed           int64   `yaml:"seed"`            // random, bayesian
	NInitialPoints int     `yaml:"nInitialPoints"` // bayesian
	Acquisition    string  `yaml:"acquisition"`    // bayesian
}

// DispatchFile configures the subprocess Dispatcher backend. The in-process
// backend requires a Go Model implementation and is wired in code, not YAML.
type DispatchFile struct {
	Command        []string          `yaml:"command"`
	Shell          bool              `yaml:"shell"`
	ParamFormat    string            `yaml:"paramFormat"`
	OutputFormat   string            `yaml:"outputFormat"` // csv | json
	OutputFile     string            `yaml:"outputFile"`
	WorkingDir     string            `yaml:"workingDir"`
	Env            map[string]string `yaml:"env"`
	CircuitBreaker bool              `yaml:"circuitBreaker"`
}

// RetryFile maps onto controller.RetryPolicy.
type RetryFile struct {
	MaxAttempts int    `yaml:"maxAttempts"`
	OnError     string `yaml:"onError"` // raise | retry | fallback
}

// RunFile maps onto controller.RunConfig.
type RunFile struct {
	MaxIterations         int       `yaml:"maxIterations"`
	Parallelism           int       `yaml:"parallelism"`
	PerCallTimeoutSeconds float64   `yaml:"perCallTimeoutSeconds"`
	Retry                 RetryFile `yaml:"retry"`
	SaveBasePath          string    `yaml:"saveBasePath"`
}

// ExperimentFile is the full outer YAML document psuu's CLI reads.
type ExperimentFile struct {
	Parameters []ParameterFile `yaml:"parameters"`
	KPIs       []KPIFile       `yaml:"kpis"`
	Objective  ObjectiveFile   `yaml:"objective"`
	Optimizer  OptimizerFile   `yaml:"optimizer"`
	Dispatch   DispatchFile    `yaml:"dispatch"`
	Run        RunFile         `yaml:"run"`
}

// LoadFile reads and parses path into an ExperimentFile.
func LoadFile(path string) (*ExperimentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loadexperiment: read %s: %w", path, err)
	}
	var ef ExperimentFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("loadexperiment: parse %s: %w", path, err)
	}
	return &ef, nil
}

// BuildSpace constructs a paramspace.Space from the file's parameter list.
func (ef *ExperimentFile) BuildSpace() (*paramspace.Space, error) {
	specs := make([]paramspace.Spec, 0, len(ef.Parameters))
	for _, p := range ef.Parameters {
		var spec paramspace.Spec
		var err error
		switch p.Kind {
		case "continuous":
			spec, err = paramspace.NewContinuous(p.Name, p.Min, p.Max, p.Description)
		case "integer":
			spec, err = paramspace.NewInteger(p.Name, p.Min, p.Max, p.Description)
		case "categorical":
			spec, err = paramspace.NewCategorical(p.Name, p.Categories, p.Description)
		default:
			err = fmt.Errorf("loadexperiment: parameter %q: unknown kind %q", p.Name, p.Kind)
		}
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return paramspace.NewSpace(specs...)
}

// BuildAggregator constructs a kpi.Aggregator from the file's KPI list and
// objective.
func (ef *ExperimentFile) BuildAggregator() (*kpi.Aggregator, error) {
	agg := kpi.NewAggregator()
	for _, k := range ef.KPIs {
		if err := agg.AddKPI(kpi.Spec{Name: k.Name, Column: k.Column, Op: kpi.Operation(k.Op)}); err != nil {
			return nil, err
		}
	}
	if ef.Objective.Name != "" {
		if err := agg.SetObjective(ef.Objective.Name, ef.Objective.Maximize); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// BuildOptimizer constructs the Optimizer family member named by
// ef.Optimizer.Strategy, bound to space and targeting maximize.
func (ef *ExperimentFile) BuildOptimizer(space *paramspace.Space, maximize bool) (optimizer.Optimizer, error) {
	switch ef.Optimizer.Strategy {
	case "", "grid":
		return optimizer.NewGrid(space, optimizer.GridConfig{NumPoints: ef.Optimizer.NumPoints}, maximize), nil
	case "random":
		return optimizer.NewRandom(space, optimizer.RandomConfig{
			NumIterations: ef.Optimizer.NumIterations,
			Seed:          ef.Optimizer.Seed,
		}, maximize), nil
	case "bayesian":
		return optimizer.NewBayesian(space, optimizer.BayesianConfig{
			NumIterations:  ef.Optimizer.NumIterations,
			NInitialPoints: ef.Optimizer.NInitialPoints,
			Seed:           ef.Optimizer.Seed,
			Acquisition:    optimizer.Acquisition(ef.Optimizer.Acquisition),
		}, maximize), nil
	default:
		return nil, fmt.Errorf("loadexperiment: unknown optimizer strategy %q", ef.Optimizer.Strategy)
	}
}

// BuildDispatcher constructs the subprocess Dispatcher backend, optionally
// wrapped with a circuit breaker.
func (ef *ExperimentFile) BuildDispatcher(space *paramspace.Space) (dispatch.Dispatcher, error) {
	if len(ef.Dispatch.Command) == 0 {
		return nil, fmt.Errorf("loadexperiment: dispatch.command must not be empty")
	}
	format := dispatch.OutputFormat(ef.Dispatch.OutputFormat)
	if format == "" {
		format = dispatch.CSVOutput
	}
	sub := dispatch.NewSubprocess(dispatch.SubprocessConfig{
		Command:      ef.Dispatch.Command,
		Shell:        ef.Dispatch.Shell,
		ParamFormat:  ef.Dispatch.ParamFormat,
		OutputFormat: format,
		OutputFile:   ef.Dispatch.OutputFile,
		WorkingDir:   ef.Dispatch.WorkingDir,
		Env:          ef.Dispatch.Env,
	}, space)

	var d dispatch.Dispatcher = sub
	if ef.Dispatch.CircuitBreaker {
		d = dispatch.WithBreaker(d, "psuu-subprocess")
	}
	return d, nil
}

// BuildRunConfig converts the file's [run] section into a
// controller.RunConfig.
func (ef *ExperimentFile) BuildRunConfig() controller.RunConfig {
	var onError controller.OnError
	switch ef.Run.Retry.OnError {
	case "retry":
		onError = controller.OnErrorRetry
	case "fallback":
		onError = controller.OnErrorFallback
	default:
		onError = controller.OnErrorRaise
	}
	return controller.RunConfig{
		MaxIterations:  ef.Run.MaxIterations,
		Parallelism:    ef.Run.Parallelism,
		PerCallTimeout: time.Duration(ef.Run.PerCallTimeoutSeconds * float64(time.Second)),
		RetryPolicy: controller.RetryPolicy{
			MaxAttempts: ef.Run.Retry.MaxAttempts,
			OnError:     onError,
		},
		SaveBasePath: ef.Run.SaveBasePath,
	}
}
