package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	oklogrun "github.com/oklog/run"
	"github.com/sierrasoftworks/humane-errors-go"

	"clevo-fan/internal/config"
	"clevo-fan/internal/ecio"
	"clevo-fan/internal/fancontrol"
	"clevo-fan/internal/metrics"
)

// autoFlags mirrors config.AutoConfig; only flags given on the command line
// override the file.
type autoFlags struct {
	linear, exp, square bool
	linearSlope         float64
	linearOffset        float64
	expBase             string
	expFactor           float64
	squareFactor        float64

	intervalMs    int64
	movingAverage int
	movingMedian  int
	metricsListen string
}

func parseAutoFlags(cfg *config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("auto", flag.ContinueOnError)
	fs.SetOutput(stderr)

	a := &cfg.Auto
	var f autoFlags
	fs.BoolVar(&f.linear, "linear", false, "Fan duty is offset + temp * slope")
	fs.Float64Var(&f.linearSlope, "linear-slope", a.Linear.Slope, "Slope of the linear policy")
	fs.Float64Var(&f.linearOffset, "linear-offset", a.Linear.Offset, "Offset of the linear policy")
	fs.BoolVar(&f.exp, "exp", false, "Fan duty is factor * base^temp")
	fs.StringVar(&f.expBase, "exp-base", a.Exp.Base, `Base of the exponential policy: "e" or "2"`)
	fs.Float64Var(&f.expFactor, "exp-factor", a.Exp.Factor, "Factor of the exponential policy")
	fs.BoolVar(&f.square, "square", false, "Fan duty is factor * temp^2")
	fs.Float64Var(&f.squareFactor, "square-factor", a.Square.Factor, "Factor of the square policy")

	intervalMs := a.Interval.Milliseconds()
	fs.Int64Var(&f.intervalMs, "polling-interval", intervalMs, "Update interval, in milliseconds")
	fs.Int64Var(&f.intervalMs, "i", intervalMs, "Update interval, in milliseconds (shorthand)")
	fs.IntVar(&f.movingAverage, "moving-average", 0, "Smooth over a moving average of this many samples")
	fs.IntVar(&f.movingAverage, "a", 0, "Moving average window (shorthand)")
	fs.IntVar(&f.movingMedian, "moving-median", 0, "Smooth over a moving median of this many samples")
	fs.IntVar(&f.movingMedian, "m", 0, "Moving median window (shorthand)")
	fs.StringVar(&f.metricsListen, "metrics-listen", cfg.Metrics.Listen, "Serve /metrics and /status on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	selected := 0
	for _, p := range []struct {
		on   bool
		name string
	}{{f.linear, config.PolicyLinear}, {f.exp, config.PolicyExp}, {f.square, config.PolicySquare}} {
		if p.on {
			selected++
			a.Policy = p.name
		}
	}
	if selected > 1 {
		return humane.New("only one of -linear, -exp, -square may be given",
			"Select a single duty policy.")
	}

	a.Linear = config.LinearConfig{Slope: f.linearSlope, Offset: f.linearOffset}
	a.Exp = config.ExpConfig{Base: f.expBase, Factor: f.expFactor}
	a.Square = config.SquareConfig{Factor: f.squareFactor}
	if set["polling-interval"] || set["i"] {
		a.Interval = time.Duration(f.intervalMs) * time.Millisecond
	}
	averageSet := set["moving-average"] || set["a"]
	medianSet := set["moving-median"] || set["m"]
	if averageSet || medianSet {
		a.MovingAverage, a.MovingMedian = 0, 0
		if averageSet {
			a.MovingAverage = f.movingAverage
		}
		if medianSet {
			a.MovingMedian = f.movingMedian
		}
		if (averageSet && f.movingAverage == 0) || (medianSet && f.movingMedian == 0) {
			return humane.New("smoothing window must be >= 1",
				"Omit -moving-average/-moving-median to disable smoothing.")
		}
	}
	cfg.Metrics.Listen = f.metricsListen

	return cfg.Validate()
}

func runAuto(cfg config.Config, args []string, stderr io.Writer) error {
	if err := parseAutoFlags(&cfg, args, stderr); err != nil {
		return err
	}
	pol, err := cfg.Auto.BuildPolicy()
	if err != nil {
		return err
	}
	filter, err := cfg.Auto.BuildFilter()
	if err != nil {
		return err
	}

	regs, err := ecio.OpenRegisterFile(cfg.ECPath)
	if err != nil {
		return err
	}
	defer regs.Close()

	fan, err := openDutyWriter()
	if err != nil {
		return err
	}
	defer fan.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		m = metrics.New()
	}

	svc, err := fancontrol.New(fancontrol.Config{
		Interval: cfg.Auto.Interval,
		Policy:   pol,
		Filter:   filter,
		Logger:   log.New(stderr, "", log.LstdFlags),
		Metrics:  m,
	}, regs, fan)
	if err != nil {
		return err
	}

	log.Printf("clevo-fan auto starting policy=%s interval=%s ec_path=%s", cfg.Auto.Policy, cfg.Auto.Interval, cfg.ECPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var g oklogrun.Group
	g.Add(func() error {
		<-ctx.Done()
		return nil
	}, func(error) {
		cancel()
	})
	g.Add(func() error {
		if err := svc.Run(ctx); ctx.Err() == nil {
			return err
		}
		return nil
	}, func(error) {
		cancel()
	})
	if m != nil {
		h := metrics.Handler(m, func() any { return svc.Snapshot() })
		g.Add(func() error {
			log.Printf("metrics listening on %s", cfg.Metrics.Listen)
			// The fan loop keeps running without metrics.
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, h); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
			<-ctx.Done()
			return nil
		}, func(error) {
			cancel()
		})
	}

	err = g.Run()
	log.Printf("clevo-fan auto stopping")
	return err
}
