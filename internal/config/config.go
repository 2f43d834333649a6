// Package config loads snnfault campaign files. A campaign file describes the
// network topology, the input spike train, the fault selection and runtime
// settings. Order: defaults -> YAML file -> environment variables -> flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"snnfault/internal/logging"
	"snnfault/internal/model"
	"snnfault/internal/snn"
)

// Config is the full campaign configuration.
type Config struct {
	Network NetworkConfig `json:"network" yaml:"network"`

	// Input is the spike train fed to the first layer, [t][i] with values 0 or 1.
	Input [][]int `json:"input" yaml:"input"`

	Campaign CampaignConfig `json:"campaign" yaml:"campaign"`
	Store    StoreConfig    `json:"store" yaml:"store"`

	// ArtifactsDir receives one directory per campaign. Empty disables artifacts.
	ArtifactsDir string `json:"artifacts_dir" yaml:"artifacts_dir"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

type NetworkConfig struct {
	// NeuronModel names a registered neuron model. Defaults to "lif".
	NeuronModel string        `json:"neuron_model" yaml:"neuron_model"`
	Layers      []LayerConfig `json:"layers" yaml:"layers"`
}

// LayerConfig lists neuron parameters either per neuron (Neurons) or as
// Count copies of Params.
type LayerConfig struct {
	Neurons      []map[string]float64 `json:"neurons,omitempty" yaml:"neurons,omitempty"`
	Count        int                  `json:"count,omitempty" yaml:"count,omitempty"`
	Params       map[string]float64   `json:"params,omitempty" yaml:"params,omitempty"`
	Weights      [][]float64          `json:"weights" yaml:"weights"`
	IntraWeights [][]float64          `json:"intra_weights" yaml:"intra_weights"`
}

type CampaignConfig struct {
	// Components accepts names or the codes 0..7; "all" or 8 selects every
	// component. Empty runs fault-free.
	Components []string `json:"components" yaml:"components"`
	// ErrorKind accepts stuck_at_0, stuck_at_1, transient_flip or 0, 1, 2.
	ErrorKind string `json:"error_kind" yaml:"error_kind"`
	Trials    int    `json:"trials" yaml:"trials"`
	Seed      int64  `json:"seed" yaml:"seed"`
	Workers   int    `json:"workers" yaml:"workers"`
}

type StoreConfig struct {
	// Kind is "memory" or "sqlite".
	Kind   string `json:"kind" yaml:"kind"`
	DBPath string `json:"db_path" yaml:"db_path"`
}

type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults and no network.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{NeuronModel: snn.ModelLIF},
		Campaign: CampaignConfig{
			ErrorKind: model.ErrorStuckAt0.String(),
			Trials:    100,
			Seed:      1,
			Workers:   1,
		},
		Store: StoreConfig{
			Kind:   "memory",
			DBPath: "snnfault.db",
		},
		ArtifactsDir: "campaigns",
		Logging:      LoggingConfig{Level: "info"},
	}
}

// Load reads path (when non-empty) over the defaults and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks everything that can be checked without running the
// network, including the topology sign and shape constraints.
func (c *Config) Validate() error {
	if len(c.Network.Layers) == 0 {
		return errors.New("network must declare at least one layer")
	}
	if _, err := c.NewBuilder(nil); err != nil {
		return err
	}
	if _, err := c.InputSpikes(); err != nil {
		return err
	}
	if _, err := c.Components(); err != nil {
		return err
	}
	if _, err := c.ErrorKind(); err != nil {
		return err
	}
	if c.Campaign.Trials < 0 {
		return fmt.Errorf("trials must be >= 0, got %d", c.Campaign.Trials)
	}
	if c.Campaign.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Campaign.Workers)
	}
	switch c.Store.Kind {
	case "", "memory":
	case "sqlite":
		if c.Store.DBPath == "" {
			return errors.New("sqlite store requires db_path")
		}
	default:
		return fmt.Errorf("invalid store kind: %s (valid: memory, sqlite)", c.Store.Kind)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

func (c *Config) Components() ([]model.Component, error) {
	return model.ParseComponents(c.Campaign.Components)
}

func (c *Config) ErrorKind() (model.ErrorKind, error) {
	return model.ParseErrorKind(c.Campaign.ErrorKind)
}

// InputSpikes converts the configured input into a spike matrix.
func (c *Config) InputSpikes() ([][]uint8, error) {
	out := make([][]uint8, len(c.Input))
	for t, row := range c.Input {
		out[t] = make([]uint8, len(row))
		for i, v := range row {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: input[%d][%d]=%d", snn.ErrNonBinarySpike, t, i, v)
			}
			out[t][i] = uint8(v)
		}
	}
	return out, nil
}

// LayerSizes returns the neuron count of each configured layer.
func (c *Config) LayerSizes() []int {
	sizes := make([]int, len(c.Network.Layers))
	for i, layer := range c.Network.Layers {
		sizes[i] = layer.size()
	}
	return sizes
}

// NewBuilder instantiates every configured neuron through the model registry
// and loads the weights into a network builder.
func (c *Config) NewBuilder(logger *slog.Logger) (*snn.Builder, error) {
	b := snn.NewBuilder().WithLogger(logger)
	for l, layer := range c.Network.Layers {
		neurons, err := layer.neurons(c.Network.NeuronModel)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", l, err)
		}
		if err := b.AddLayer(neurons, layer.Weights, layer.IntraWeights); err != nil {
			return nil, fmt.Errorf("layer %d: %w", l, err)
		}
	}
	if _, err := b.Shapes(); err != nil {
		return nil, err
	}
	return b, nil
}

func (l LayerConfig) size() int {
	if len(l.Neurons) > 0 {
		return len(l.Neurons)
	}
	return l.Count
}

func (l LayerConfig) neurons(neuronModel string) ([]snn.Neuron, error) {
	if len(l.Neurons) > 0 && l.Count > 0 {
		return nil, errors.New("use either neurons or count+params, not both")
	}
	params := l.Neurons
	if len(params) == 0 {
		if l.Count <= 0 {
			return nil, errors.New("layer must declare neurons or a positive count")
		}
		params = make([]map[string]float64, l.Count)
		for i := range params {
			params[i] = l.Params
		}
	}
	out := make([]snn.Neuron, len(params))
	for i, p := range params {
		n, err := snn.NewNeuron(neuronModel, p)
		if err != nil {
			return nil, fmt.Errorf("neuron %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	var errs []string
	if v := os.Getenv("SNNFAULT_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Campaign.Seed = n
		} else {
			errs = append(errs, "SNNFAULT_SEED")
		}
	}
	if v := os.Getenv("SNNFAULT_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Campaign.Trials = n
		} else {
			errs = append(errs, "SNNFAULT_TRIALS")
		}
	}
	if v := os.Getenv("SNNFAULT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Campaign.Workers = n
		} else {
			errs = append(errs, "SNNFAULT_WORKERS")
		}
	}
	if v := os.Getenv("SNNFAULT_STORE"); v != "" {
		cfg.Store.Kind = v
	}
	if v := os.Getenv("SNNFAULT_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("SNNFAULT_ARTIFACTS_DIR"); v != "" {
		cfg.ArtifactsDir = v
	}
	if v := os.Getenv("SNNFAULT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid integer in %s", strings.Join(errs, ", "))
	}
	return nil
}
