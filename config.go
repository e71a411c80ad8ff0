package vmc

import (
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	HarmonicOscillator = "harmonic"
	DoubleWell         = "doublewell"

	Gaussian          = "gaussian"
	SlaterDeterminant = "slater"
	PadeJastrow       = "jastrow"

	BruteForce         = "bruteforce"
	ImportanceSampling = "importance"

	SGD  = "sgd"
	ASGD = "asgd"
	Adam = "adam"

	// Initial weights.
	Constant = "constant"
	Random   = "random"
	File     = "file"

	// Initial states.
	Uniform = "uniform"
	Normal  = "normal"
)

// Config configures a variational Monte Carlo run.
type Config struct {
	Particles  int     `yaml:"particles"`
	Dimensions int     `yaml:"dimensions"`
	Omega      float64 `yaml:"omega"`

	Hamiltonian string `yaml:"hamiltonian"`
	// WellDistance is the distance between the wells of the double well.
	WellDistance    float64 `yaml:"well_distance"`
	Interaction     bool    `yaml:"interaction"`
	ScreeningLength float64 `yaml:"screening_length"`

	// Components are the factors of the trial wavefunction, in order.
	Components []string `yaml:"components"`

	InitialWeights string  `yaml:"initial_weights"`
	InitialWeight  float64 `yaml:"initial_weight"`
	WeightsFile    string  `yaml:"weights_file"`

	InitialState string  `yaml:"initial_state"`
	Sampler      string  `yaml:"sampler"`
	StepLength   float64 `yaml:"step_length"`
	TimeStep     float64 `yaml:"time_step"`
	Sequential   bool    `yaml:"sequential"`
	Seed         uint64  `yaml:"seed"`

	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`

	Workers int `yaml:"workers"`
	// Steps is the number of measured steps of an iteration, summed over workers.
	Steps int `yaml:"steps"`
	// Equilibration is the number of discarded steps of each sweep, as a fraction of the measured ones.
	Equilibration float64 `yaml:"equilibration"`
	Iterations    int     `yaml:"iterations"`
	Batches       int     `yaml:"batches"`

	ConvergenceWindow int     `yaml:"convergence_window"`
	Tolerance         float64 `yaml:"tolerance"`
	// The final iteration samples 2^ConfirmationPower times more steps.
	ConfirmationPower int `yaml:"confirmation_power"`

	// The AdaptiveRange iterations before the final one sample 2^AdaptivePower times more steps.
	AdaptiveSteps bool `yaml:"adaptive_steps"`
	AdaptiveRange int  `yaml:"adaptive_range"`
	AdaptivePower int  `yaml:"adaptive_power"`

	// Resampling estimates the error of the final iteration by blocking.
	Resampling bool `yaml:"resampling"`
}

// DefaultConfig returns the configuration of two interacting electrons in a two dimensional quantum dot.
func DefaultConfig() *Config {
	return &Config{
		Particles:  2,
		Dimensions: 2,
		Omega:      1,

		Hamiltonian: HarmonicOscillator,
		Interaction: true,

		Components:     []string{Gaussian, SlaterDeterminant, PadeJastrow},
		InitialWeights: Constant,
		InitialWeight:  0.5,

		InitialState: Uniform,
		Sampler:      ImportanceSampling,
		StepLength:   1,
		TimeStep:     0.05,
		Seed:         1,

		Optimizer:    Adam,
		LearningRate: 0.01,
		Momentum:     0.5,

		Workers:       4,
		Steps:         1 << 16,
		Equilibration: 0.01,
		Iterations:    200,
		Batches:       1,

		ConvergenceWindow: 5,
		Tolerance:         1e-4,
		ConfirmationPower: 4,

		AdaptiveRange: 10,
		AdaptivePower: 2,

		Resampling: true,
	}
}

// LoadConfig reads a YAML configuration on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (cfg *Config) Validate() error {
	switch {
	case cfg.Particles < 1 || cfg.Dimensions < 1:
		return errors.Errorf("particles %d dimensions %d", cfg.Particles, cfg.Dimensions)
	case cfg.Omega <= 0:
		return errors.Errorf("omega %f", cfg.Omega)
	case !slices.Contains([]string{HarmonicOscillator, DoubleWell}, cfg.Hamiltonian):
		return errors.Errorf("hamiltonian %q", cfg.Hamiltonian)
	case len(cfg.Components) == 0:
		return errors.Errorf("no components")
	case !slices.Contains([]string{Constant, Random, File}, cfg.InitialWeights):
		return errors.Errorf("initial weights %q", cfg.InitialWeights)
	case cfg.InitialWeights == File && cfg.WeightsFile == "":
		return errors.Errorf("no weights file")
	case !slices.Contains([]string{Uniform, Normal}, cfg.InitialState):
		return errors.Errorf("initial state %q", cfg.InitialState)
	case !slices.Contains([]string{BruteForce, ImportanceSampling}, cfg.Sampler):
		return errors.Errorf("sampler %q", cfg.Sampler)
	case cfg.Sampler == BruteForce && cfg.StepLength <= 0:
		return errors.Errorf("step length %f", cfg.StepLength)
	case cfg.Sampler == ImportanceSampling && cfg.TimeStep <= 0:
		return errors.Errorf("time step %f", cfg.TimeStep)
	case !slices.Contains([]string{SGD, ASGD, Adam}, cfg.Optimizer):
		return errors.Errorf("optimizer %q", cfg.Optimizer)
	case cfg.Workers < 1 || cfg.Steps < cfg.Workers:
		return errors.Errorf("workers %d steps %d", cfg.Workers, cfg.Steps)
	case cfg.Batches < 1 || cfg.Batches > cfg.Steps/cfg.Workers:
		return errors.Errorf("batches %d steps per worker %d", cfg.Batches, cfg.Steps/cfg.Workers)
	case cfg.Equilibration < 0:
		return errors.Errorf("equilibration %f", cfg.Equilibration)
	case cfg.Iterations < 1:
		return errors.Errorf("iterations %d", cfg.Iterations)
	case cfg.ConfirmationPower < 0 || cfg.AdaptivePower < 0 || cfg.AdaptiveRange < 0:
		return errors.Errorf("confirmation %d adaptive %d %d", cfg.ConfirmationPower, cfg.AdaptiveRange, cfg.AdaptivePower)
	}
	for _, c := range cfg.Components {
		if !slices.Contains([]string{Gaussian, SlaterDeterminant, PadeJastrow}, c) {
			return errors.Errorf("component %q", c)
		}
	}
	return nil
}
