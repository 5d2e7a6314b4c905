// Package fancontrol runs the closed fan control loop:
// read telemetry, smooth, apply the duty policy, write the duty, sleep.
package fancontrol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"clevo-fan/internal/ec"
	"clevo-fan/internal/metrics"
	"clevo-fan/internal/policy"
	"clevo-fan/internal/smoothing"
)

var afterFn = time.After

// Telemetry provides register snapshots. ecio.RegisterFile implements it.
type Telemetry interface {
	ReadRegisters() (ec.Registers, error)
}

// DutyWriter applies a fan duty. ecio.Controller implements it.
type DutyWriter interface {
	SetDuty(d ec.Duty) error
}

type Config struct {
	// Interval is the sleep between the end of one cycle and the start of the next.
	Interval time.Duration
	Policy   policy.Policy
	// Filter defaults to smoothing.Passthrough.
	Filter smoothing.Filter

	// Logger receives one line per suppressed error. Defaults to log.Default().
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Snapshot is the last cycle's state. The register readings are zero while
// CPUValid is false.
type Snapshot struct {
	CPUValid bool    `json:"cpu_valid"`
	CPUTempC float64 `json:"cpu_temp_c"`
	GPUTempC float64 `json:"gpu_temp_c"`
	FanRPM   uint32  `json:"fan_rpm"`
	// PolicyTempC is the smoothed temperature in whole degrees as seen by the policy.
	PolicyTempC uint8   `json:"policy_temp_c"`
	TargetDuty  float64 `json:"target_duty_pct"`
	DutyApplied bool    `json:"duty_applied"`

	Cycles      uint64 `json:"cycles"`
	ReadErrors  uint64 `json:"read_errors"`
	WriteErrors uint64 `json:"write_errors"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Service owns the smoothing window for its whole life. Step and Run must
// not be called concurrently; Snapshot may be called from any goroutine.
type Service struct {
	cfg Config
	src Telemetry
	fan DutyWriter

	mu   sync.RWMutex
	snap Snapshot
}

func New(cfg Config, src Telemetry, fan DutyWriter) (*Service, error) {
	if src == nil || fan == nil {
		return nil, errors.New("fancontrol: telemetry and duty writer are required")
	}
	if cfg.Policy == nil {
		return nil, errors.New("fancontrol: policy is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("fancontrol: invalid interval %s", cfg.Interval)
	}
	if cfg.Filter == nil {
		cfg.Filter = smoothing.Passthrough{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Service{cfg: cfg, src: src, fan: fan}, nil
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

// readTemp never fails: an unreadable EC is reported and treated as the
// hottest possible temperature.
func (s *Service) readTemp() ec.Temperature {
	regs, err := s.src.ReadRegisters()
	if err != nil {
		s.cfg.Logger.Printf("fancontrol: cannot read temperature: %v, assuming the worst", err)
		s.cfg.Metrics.ReadFailed()
		s.setState(func(sn *Snapshot) {
			sn.CPUValid = false
			sn.CPUTempC, sn.GPUTempC, sn.FanRPM = 0, 0, 0
			sn.ReadErrors++
			sn.LastError = err.Error()
		})
		return ec.MaxTemperature
	}
	s.cfg.Metrics.ObserveRegisters(regs)
	s.setState(func(sn *Snapshot) {
		sn.CPUValid = true
		sn.CPUTempC = float64(regs.CPUTemp)
		sn.GPUTempC = float64(regs.GPUTemp)
		sn.FanRPM = regs.FanSpeed.RPM()
	})
	return regs.CPUTemp
}

// Step runs one control cycle without sleeping. It reports whether the duty
// was applied; failures are contained and never returned.
func (s *Service) Step() bool {
	temp := s.cfg.Filter.Next(s.readTemp())
	duty := s.cfg.Policy.Duty(temp)
	s.cfg.Metrics.ObserveCycle(temp.Degrees(), duty)

	if err := s.fan.SetDuty(duty); err != nil {
		// No retry: the next cycle computes a fresh duty anyway.
		s.cfg.Logger.Printf("fancontrol: cannot set fan duty: %v", err)
		s.cfg.Metrics.WriteFailed()
		s.setState(func(sn *Snapshot) {
			sn.Cycles++
			sn.PolicyTempC = temp.Degrees()
			sn.TargetDuty = duty.Percentage()
			sn.DutyApplied = false
			sn.WriteErrors++
			sn.LastError = err.Error()
		})
		return false
	}
	s.setState(func(sn *Snapshot) {
		sn.Cycles++
		sn.PolicyTempC = temp.Degrees()
		sn.TargetDuty = duty.Percentage()
		sn.DutyApplied = true
		if sn.CPUValid {
			sn.LastError = ""
		}
	})
	return true
}

// Run cycles until ctx is canceled, which is only observed between cycles.
// I/O failures never stop it.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fancontrol: service is nil")
	}
	for {
		s.Step()
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-afterFn(s.cfg.Interval):
		}
	}
}
