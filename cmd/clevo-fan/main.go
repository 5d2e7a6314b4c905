// Command clevo-fan controls the fan of Clevo laptops through the embedded
// controller.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"clevo-fan/internal/config"
	"clevo-fan/internal/ecio"
	"clevo-fan/internal/fancontrol"
)

const usage = `usage: clevo-fan [-config file] [-ec-path path] <command> [flags]

commands:
  show   query values from the kernel EC interface
  set    manually set the fan duty, in percent
  auto   automatically manage the fan duty

Run "clevo-fan <command> -h" for command flags.
`

// fanDevice is a duty writer holding the EC ports until closed.
type fanDevice interface {
	fancontrol.DutyWriter
	io.Closer
}

// openDutyWriter acquires the EC ports. Replaced in tests.
var openDutyWriter = func() (fanDevice, error) {
	bus, err := ecio.OpenDevPort()
	if err != nil {
		return nil, err
	}
	c, err := ecio.NewController(bus)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return c, nil
}

func main() {
	log.SetFlags(log.LstdFlags)
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		var he interface{ Display() string }
		if errors.As(err, &he) {
			log.Fatalf("%s", he.Display())
		}
		log.Fatalf("%v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("clevo-fan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	var configPath, ecPath string
	fs.StringVar(&configPath, "config", "", "Path to YAML config (optional)")
	fs.StringVar(&ecPath, "ec-path", "", "SysFS path to the EC interface (default "+ecio.DefaultRegisterPath+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
	}
	if ecPath != "" {
		cfg.ECPath = ecPath
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	switch rest[0] {
	case "show":
		return runShow(cfg, rest[1:], stdout, stderr)
	case "set":
		return runSet(rest[1:], stderr)
	case "auto":
		return runAuto(cfg, rest[1:], stderr)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}
