package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clevo-fan/internal/ec"
	"clevo-fan/internal/ecio"
	"clevo-fan/internal/policy"
	"clevo-fan/internal/smoothing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrContains(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error=%q want it to contain %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "auto:\n  policy: linear\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ECPath != ecio.DefaultRegisterPath {
		t.Fatalf("ec_path=%q want %q", cfg.ECPath, ecio.DefaultRegisterPath)
	}
	if cfg.Auto.Interval != 500*time.Millisecond {
		t.Fatalf("interval=%s want 500ms", cfg.Auto.Interval)
	}
	if cfg.Auto.Linear.Slope != 1.0 || cfg.Auto.Linear.Offset != 0 {
		t.Fatalf("linear=%+v want slope 1 offset 0", cfg.Auto.Linear)
	}
	if cfg.Auto.Exp.Base != "e" || cfg.Auto.Exp.Factor != 1 || cfg.Auto.Square.Factor != 0.01 {
		t.Fatalf("unexpected policy defaults %+v", cfg.Auto)
	}
	if cfg.Metrics.Listen != "" {
		t.Fatalf("metrics should be disabled by default")
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeTempConfig(t, `
ec_path: /tmp/ec-io
auto:
  interval: 2s
  moving_median: 5
  policy: exp
  exp:
    base: "2"
    factor: 0.5
metrics:
  listen: 127.0.0.1:9101
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ECPath != "/tmp/ec-io" || cfg.Auto.Interval != 2*time.Second || cfg.Metrics.Listen != "127.0.0.1:9101" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	p, err := cfg.Auto.BuildPolicy()
	if err != nil {
		t.Fatalf("BuildPolicy: %v", err)
	}
	exp, ok := p.(policy.Exponential)
	if !ok || exp.Base != policy.Binary || exp.Factor != 0.5 {
		t.Fatalf("policy=%#v want binary exponential factor 0.5", p)
	}

	f, err := cfg.Auto.BuildFilter()
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if _, ok := f.(*smoothing.MovingMedian); !ok {
		t.Fatalf("filter=%T want *smoothing.MovingMedian", f)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "NegativeInterval",
			body: "auto:\n  interval: -1s\n",
			want: "auto.interval must be > 0",
		},
		{
			name: "BothFilters",
			body: "auto:\n  moving_average: 3\n  moving_median: 3\n",
			want: "cannot both be set",
		},
		{
			name: "NegativeWindow",
			body: "auto:\n  moving_average: -2\n",
			want: "auto.moving_average must be >= 1",
		},
		{
			name: "UnknownPolicy",
			body: "auto:\n  policy: cubic\n",
			want: "auto.policy \"cubic\" is not supported",
		},
		{
			name: "BadBase",
			body: "auto:\n  policy: exp\n  exp:\n    base: \"10\"\n",
			want: "auto.exp.base is invalid",
		},
		{
			name: "EmptyECPath",
			body: "ec_path: \"  \"\n",
			want: "ec_path is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrContains(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuildPolicy_RequiresSelection(t *testing.T) {
	cfg := Default()
	_, err := cfg.Auto.BuildPolicy()
	requireErrContains(t, err, "auto.policy is required")
}

func TestBuildPolicy_LinearAndSquare(t *testing.T) {
	cfg := Default()
	cfg.Auto.Policy = PolicyLinear
	p, err := cfg.Auto.BuildPolicy()
	if err != nil {
		t.Fatalf("BuildPolicy: %v", err)
	}
	if got := p.Duty(50).Percentage(); got != 50 {
		t.Fatalf("linear duty=%v want 50", got)
	}

	cfg.Auto.Policy = PolicySquare
	p, err = cfg.Auto.BuildPolicy()
	if err != nil {
		t.Fatalf("BuildPolicy: %v", err)
	}
	if got := p.Duty(ec.Temperature(100)).Percentage(); got != 100 {
		t.Fatalf("square duty=%v want 100", got)
	}
}

func TestBuildFilter_DefaultsToPassthrough(t *testing.T) {
	cfg := Default()
	f, err := cfg.Auto.BuildFilter()
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if _, ok := f.(smoothing.Passthrough); !ok {
		t.Fatalf("filter=%T want smoothing.Passthrough", f)
	}

	cfg.Auto.MovingAverage = 4
	f, err = cfg.Auto.BuildFilter()
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if _, ok := f.(*smoothing.MovingAverage); !ok {
		t.Fatalf("filter=%T want *smoothing.MovingAverage", f)
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "clevo-fan.example.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auto.Policy != PolicySquare || cfg.Auto.MovingMedian != 5 {
		t.Fatalf("unexpected example config %+v", cfg.Auto)
	}
}
