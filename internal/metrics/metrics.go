// Package metrics exports control loop telemetry for Prometheus and a JSON
// status endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clevo-fan/internal/ec"
)

const namespace = "clevo_fan"

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op sink.
type Metrics struct {
	Registry *prometheus.Registry

	cpuTemp     prometheus.Gauge
	gpuTemp     prometheus.Gauge
	policyTemp  prometheus.Gauge
	readDuty    prometheus.Gauge
	targetDuty  prometheus.Gauge
	fanSpeed    prometheus.Gauge
	cycles      prometheus.Counter
	readErrors  prometheus.Counter
	writeErrors prometheus.Counter
}

func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		Registry:    prometheus.NewRegistry(),
		cpuTemp:     gauge("cpu_temperature_celsius", "CPU temperature reported by the EC (°C)"),
		gpuTemp:     gauge("gpu_temperature_celsius", "GPU temperature reported by the EC (°C)"),
		policyTemp:  gauge("policy_temperature_celsius", "Smoothed temperature fed to the duty policy (°C)"),
		readDuty:    gauge("fan_duty_ratio", "Fan duty read back from the EC (0..1)"),
		targetDuty:  gauge("target_duty_ratio", "Fan duty computed by the policy (0..1)"),
		fanSpeed:    gauge("fan_speed_rpm", "Fan speed (RPM)"),
		cycles:      counter("cycles_total", "Control loop cycles"),
		readErrors:  counter("telemetry_read_errors_total", "Failed EC register reads"),
		writeErrors: counter("duty_write_errors_total", "Failed EC duty writes"),
	}
	m.Registry.MustRegister(
		m.cpuTemp, m.gpuTemp, m.policyTemp, m.readDuty, m.targetDuty, m.fanSpeed,
		m.cycles, m.readErrors, m.writeErrors,
	)
	return m
}

func (m *Metrics) ObserveRegisters(r ec.Registers) {
	if m == nil {
		return
	}
	m.cpuTemp.Set(float64(r.CPUTemp))
	m.gpuTemp.Set(float64(r.GPUTemp))
	m.readDuty.Set(r.FanDuty.Ratio())
	m.fanSpeed.Set(float64(r.FanSpeed.RPM()))
}

func (m *Metrics) ObserveCycle(policyTemp uint8, target ec.Duty) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.policyTemp.Set(float64(policyTemp))
	m.targetDuty.Set(target.Ratio())
}

func (m *Metrics) ReadFailed() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}

func (m *Metrics) WriteFailed() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}

// Handler serves /metrics and, if status is non-nil, /status as JSON.
func Handler(m *Metrics, status func() any) http.Handler {
	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	if status != nil {
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				w.Header().Set("Allow", http.MethodGet)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			b, err := json.MarshalIndent(status(), "", "  ")
			if err != nil {
				http.Error(w, "marshal failed", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(b)
			_, _ = w.Write([]byte("\n"))
		})
	}
	return mux
}

// Serve runs an HTTP server on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
