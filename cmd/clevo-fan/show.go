package main

import (
	"flag"
	"fmt"
	"io"

	"clevo-fan/internal/config"
	"clevo-fan/internal/ec"
	"clevo-fan/internal/ecio"
)

type showValues struct {
	all      bool
	cpuTemp  bool
	gpuTemp  bool
	fanDuty  bool
	fanSpeed bool
}

type showOptions struct {
	hideLabels bool
	hideUnits  bool
}

// field is anything with a unit-suffixed String and a bare Value.
type field interface {
	fmt.Stringer
	Value() string
}

func runShow(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var v showValues
	var o showOptions
	boolFlag(fs, &v.all, "all", "a", "Print all available values, except gpu temp")
	boolFlag(fs, &v.cpuTemp, "cpu-temp", "c", "Print temperature of the CPU, in degrees Celsius")
	boolFlag(fs, &v.gpuTemp, "gpu-temp", "g", "Print temperature of the GPU, in degrees Celsius (often unreliable)")
	boolFlag(fs, &v.fanDuty, "fan-duty", "f", "Print level of the fan, in percent")
	boolFlag(fs, &v.fanSpeed, "fan-speed", "r", "Print speed of the fan, in RPM")
	boolFlag(fs, &o.hideLabels, "hide-labels", "l", "Hide labels before values")
	boolFlag(fs, &o.hideUnits, "hide-units", "u", "Hide value units")
	if err := fs.Parse(args); err != nil {
		return err
	}

	regs, err := ecio.ReadRegistersFromPath(cfg.ECPath)
	if err != nil {
		return err
	}
	return printRegisters(stdout, stderr, regs, v, o)
}

func boolFlag(fs *flag.FlagSet, p *bool, long, short, help string) {
	fs.BoolVar(p, long, false, help)
	fs.BoolVar(p, short, false, help+" (shorthand)")
}

func printRegisters(stdout, stderr io.Writer, regs ec.Registers, v showValues, o showOptions) error {
	if v.all {
		v.cpuTemp, v.fanDuty, v.fanSpeed = true, true, true
	}

	rows := []struct {
		enabled bool
		value   field
		label   string
	}{
		{v.cpuTemp, regs.CPUTemp, "CPU Temp"},
		{v.gpuTemp, regs.GPUTemp, "GPU Temp"},
		{v.fanDuty, regs.FanDuty, "Fan Duty"},
		{v.fanSpeed, regs.FanSpeed, "Fan Speed"},
	}

	printed := 0
	for _, r := range rows {
		if !r.enabled {
			continue
		}
		printed++
		if !o.hideLabels {
			if _, err := fmt.Fprintf(stdout, "%s: ", r.label); err != nil {
				return err
			}
		}
		s := r.value.String()
		if o.hideUnits {
			s = r.value.Value()
		}
		if _, err := fmt.Fprintln(stdout, s); err != nil {
			return err
		}
	}

	if printed == 0 {
		_, err := fmt.Fprintln(stderr, "Warning: No values are being printed, you might want to use `-a'. See `-h' for further information.")
		return err
	}
	return nil
}
