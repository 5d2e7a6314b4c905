package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"clevo-fan/internal/ec"
)

// The fan does not spin below this duty.
const minSpinningPercent = 37

func runSet(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: clevo-fan set <percent>")
		fmt.Fprintln(stderr, "Warning: this should not be used while `clevo-fan auto' is running.")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("set: expected exactly one duty value")
	}

	duty, err := ec.ParseDutyPercentage(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid fan duty: %w", err)
	}

	threshold, _ := ec.DutyFromPercentage(minSpinningPercent)
	if duty.Less(threshold) {
		fmt.Fprintln(stderr, "Warning: Fan only becomes active from 38% duty upwards. Setting duty below this will disable the fan entirely.")
	}

	fan, err := openDutyWriter()
	if err != nil {
		return err
	}
	defer fan.Close()
	if err := fan.SetDuty(duty); err != nil {
		return fmt.Errorf("set fan duty: %w", err)
	}
	return nil
}
