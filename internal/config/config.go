package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sierrasoftworks/humane-errors-go"
	"gopkg.in/yaml.v3"

	"clevo-fan/internal/ecio"
	"clevo-fan/internal/policy"
	"clevo-fan/internal/smoothing"
)

// Policy names accepted in auto.policy.
const (
	PolicyLinear = "linear"
	PolicyExp    = "exp"
	PolicySquare = "square"
)

type Config struct {
	// ECPath is the kernel EC register file used for telemetry.
	ECPath  string        `yaml:"ec_path"`
	Auto    AutoConfig    `yaml:"auto"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type AutoConfig struct {
	Interval time.Duration `yaml:"interval"`
	// At most one of the smoothing windows may be set.
	MovingAverage int `yaml:"moving_average"`
	MovingMedian  int `yaml:"moving_median"`

	Policy string       `yaml:"policy"`
	Linear LinearConfig `yaml:"linear"`
	Exp    ExpConfig    `yaml:"exp"`
	Square SquareConfig `yaml:"square"`
}

type LinearConfig struct {
	Slope  float64 `yaml:"slope"`
	Offset float64 `yaml:"offset"`
}

type ExpConfig struct {
	Base   string  `yaml:"base"`
	Factor float64 `yaml:"factor"`
}

type SquareConfig struct {
	Factor float64 `yaml:"factor"`
}

type MetricsConfig struct {
	// Listen enables the /metrics and /status HTTP server when non-empty.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ECPath: ecio.DefaultRegisterPath,
		Auto: AutoConfig{
			Interval: 500 * time.Millisecond,
			Linear:   LinearConfig{Slope: 1.0, Offset: 0.0},
			Exp:      ExpConfig{Base: "e", Factor: 1},
			Square:   SquareConfig{Factor: 0.01},
		},
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run with. An
// empty auto.policy is allowed here; it only matters for the auto command.
func (c *Config) Validate() error {
	c.ECPath = strings.TrimSpace(c.ECPath)
	if c.ECPath == "" {
		return humane.New("ec_path is required",
			fmt.Sprintf("The default is %s (load the ec_sys kernel module).", ecio.DefaultRegisterPath))
	}
	return c.Auto.Validate()
}

func (a *AutoConfig) Validate() error {
	if a.Interval <= 0 {
		return humane.New("auto.interval must be > 0",
			"Use a duration such as 500ms or 2s.")
	}
	if a.MovingAverage < 0 {
		return humane.New("auto.moving_average must be >= 1", "Omit it to disable the moving average.")
	}
	if a.MovingMedian < 0 {
		return humane.New("auto.moving_median must be >= 1", "Omit it to disable the moving median.")
	}
	if a.MovingAverage > 0 && a.MovingMedian > 0 {
		return humane.New("auto.moving_average and auto.moving_median cannot both be set",
			"Pick one smoothing filter.")
	}

	a.Policy = strings.ToLower(strings.TrimSpace(a.Policy))
	switch a.Policy {
	case "", PolicyLinear, PolicySquare:
	case PolicyExp:
		if _, err := policy.ParseBase(a.Exp.Base); err != nil {
			return humane.Wrap(err, "auto.exp.base is invalid")
		}
	default:
		return humane.New(fmt.Sprintf("auto.policy %q is not supported", a.Policy),
			"Use one of linear, exp, square.")
	}
	return nil
}

// BuildPolicy returns the configured duty policy.
func (a AutoConfig) BuildPolicy() (policy.Policy, error) {
	switch a.Policy {
	case PolicyLinear:
		return policy.Linear{Slope: a.Linear.Slope, Offset: a.Linear.Offset}, nil
	case PolicyExp:
		base, err := policy.ParseBase(a.Exp.Base)
		if err != nil {
			return nil, err
		}
		return policy.Exponential{Base: base, Factor: a.Exp.Factor}, nil
	case PolicySquare:
		return policy.Quadratic{Factor: a.Square.Factor}, nil
	case "":
		return nil, humane.New("auto.policy is required",
			"Select exactly one of linear, exp, square.")
	}
	return nil, humane.New(fmt.Sprintf("auto.policy %q is not supported", a.Policy),
		"Use one of linear, exp, square.")
}

// BuildFilter returns a fresh smoothing filter; the raw stream passes through
// when no window is configured.
func (a AutoConfig) BuildFilter() (smoothing.Filter, error) {
	switch {
	case a.MovingMedian > 0:
		return smoothing.New(smoothing.Median, a.MovingMedian)
	case a.MovingAverage > 0:
		return smoothing.New(smoothing.Average, a.MovingAverage)
	}
	return smoothing.New(smoothing.None, 0)
}
