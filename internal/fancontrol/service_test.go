package fancontrol

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"clevo-fan/internal/ec"
	"clevo-fan/internal/policy"
	"clevo-fan/internal/smoothing"
)

type fakeTelemetry struct {
	temps []ec.Temperature
	errs  []error
	calls int
}

func (f *fakeTelemetry) ReadRegisters() (ec.Registers, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return ec.Registers{}, f.errs[i]
	}
	var t ec.Temperature
	if i < len(f.temps) {
		t = f.temps[i]
	}
	return ec.Registers{CPUTemp: t, FanSpeed: 2000}, nil
}

type fakeFan struct {
	duties []ec.Duty
	errs   []error
	onSet  func(n int)
}

func (f *fakeFan) SetDuty(d ec.Duty) error {
	n := len(f.duties)
	f.duties = append(f.duties, d)
	if f.onSet != nil {
		f.onSet(n)
	}
	if n < len(f.errs) {
		return f.errs[n]
	}
	return nil
}

func newTestService(t *testing.T, cfg Config, src Telemetry, fan DutyWriter) (*Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	if cfg.Policy == nil {
		cfg.Policy = policy.Linear{Slope: 1}
	}
	if cfg.Interval == 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	cfg.Logger = log.New(&buf, "", 0)
	s, err := New(cfg, src, fan)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, &buf
}

func percentages(ds []ec.Duty) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.Percentage()
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Interval: time.Second}, &fakeTelemetry{}, &fakeFan{}); err == nil {
		t.Fatalf("expected error without policy")
	}
	if _, err := New(Config{Policy: policy.Linear{}}, &fakeTelemetry{}, &fakeFan{}); err == nil {
		t.Fatalf("expected error without interval")
	}
	if _, err := New(Config{Policy: policy.Linear{}, Interval: time.Second}, nil, &fakeFan{}); err == nil {
		t.Fatalf("expected error without telemetry")
	}
}

func TestStep_AppliesPolicy(t *testing.T) {
	fan := &fakeFan{}
	s, logs := newTestService(t, Config{}, &fakeTelemetry{temps: []ec.Temperature{45}}, fan)

	if !s.Step() {
		t.Fatalf("Step reported failure")
	}
	if got := percentages(fan.duties); len(got) != 1 || got[0] != 45 {
		t.Fatalf("duties=%v want [45]", got)
	}
	snap := s.Snapshot()
	if !snap.CPUValid || snap.CPUTempC != 45 || snap.PolicyTempC != 45 || !snap.DutyApplied || snap.FanRPM != 2000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if logs.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %q", logs.String())
	}
}

func TestStep_ReadFailureAssumesWorstCase(t *testing.T) {
	fan := &fakeFan{}
	src := &fakeTelemetry{
		temps: []ec.Temperature{0, 30},
		errs:  []error{errors.New("ec gone")},
	}
	s, logs := newTestService(t, Config{}, src, fan)

	s.Step()
	s.Step()

	if src.calls != 2 {
		t.Fatalf("reads=%d want 2 (fresh read after failure)", src.calls)
	}
	got := percentages(fan.duties)
	if len(got) != 2 || got[0] != 100 || got[1] != 30 {
		t.Fatalf("duties=%v want [100 30]", got)
	}
	if !strings.Contains(logs.String(), "cannot read temperature: ec gone, assuming the worst") {
		t.Fatalf("missing diagnostic, got %q", logs.String())
	}
	snap := s.Snapshot()
	if snap.ReadErrors != 1 || !snap.CPUValid || snap.LastError != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStep_ReadFailureClearsReadings(t *testing.T) {
	src := &fakeTelemetry{
		temps: []ec.Temperature{45},
		errs:  []error{nil, errors.New("ec gone")},
	}
	s, _ := newTestService(t, Config{}, src, &fakeFan{})

	s.Step()
	if snap := s.Snapshot(); snap.CPUTempC != 45 || snap.FanRPM != 2000 {
		t.Fatalf("unexpected snapshot after good read %+v", snap)
	}
	s.Step()
	snap := s.Snapshot()
	if snap.CPUValid || snap.CPUTempC != 0 || snap.GPUTempC != 0 || snap.FanRPM != 0 {
		t.Fatalf("stale readings after failed read %+v", snap)
	}
	if snap.PolicyTempC != 255 || snap.TargetDuty != 100 {
		t.Fatalf("policy=%d target=%v want 255/100", snap.PolicyTempC, snap.TargetDuty)
	}
}

func TestStep_WriteFailureSkipsCycle(t *testing.T) {
	fan := &fakeFan{errs: []error{errors.New("timeout"), nil}}
	s, logs := newTestService(t, Config{}, &fakeTelemetry{temps: []ec.Temperature{40, 50}}, fan)

	if s.Step() {
		t.Fatalf("first Step should report the failed write")
	}
	if snap := s.Snapshot(); snap.DutyApplied || snap.WriteErrors != 1 || snap.LastError != "timeout" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !s.Step() {
		t.Fatalf("second Step failed")
	}
	// Exactly one attempt per cycle, no retry of the failed value.
	if got := percentages(fan.duties); len(got) != 2 || got[0] != 40 || got[1] != 50 {
		t.Fatalf("duties=%v want [40 50]", got)
	}
	if !strings.Contains(logs.String(), "cannot set fan duty: timeout") {
		t.Fatalf("missing diagnostic, got %q", logs.String())
	}
}

func TestStep_SmoothsBeforePolicy(t *testing.T) {
	f, err := smoothing.NewMovingAverage(2)
	if err != nil {
		t.Fatalf("NewMovingAverage: %v", err)
	}
	fan := &fakeFan{}
	s, _ := newTestService(t, Config{Filter: f}, &fakeTelemetry{temps: []ec.Temperature{10, 20, 30}}, fan)
	for i := 0; i < 3; i++ {
		s.Step()
	}
	if got := percentages(fan.duties); got[0] != 10 || got[1] != 15 || got[2] != 25 {
		t.Fatalf("duties=%v want [10 15 25]", got)
	}
}

func TestRun_SurvivesFailuresUntilCanceled(t *testing.T) {
	var waits []time.Duration
	oldAfter := afterFn
	afterFn = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { afterFn = oldAfter })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeTelemetry{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	fan := &fakeFan{
		errs: []error{errors.New("x"), errors.New("y")},
		onSet: func(n int) {
			if n == 4 {
				cancel()
			}
		},
	}
	s, _ := newTestService(t, Config{Interval: 250 * time.Millisecond}, src, fan)

	err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err=%v want context.Canceled", err)
	}
	if src.calls != 5 || len(fan.duties) != 5 {
		t.Fatalf("reads=%d writes=%d want 5/5", src.calls, len(fan.duties))
	}
	for _, w := range waits {
		if w != 250*time.Millisecond {
			t.Fatalf("wait=%v want 250ms", w)
		}
	}
	snap := s.Snapshot()
	if snap.Cycles != 5 || snap.ReadErrors != 3 || snap.WriteErrors != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
