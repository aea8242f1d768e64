// Command videoagentd is the composition root wiring C1-C7 together
// (SPEC_FULL.md §C.4), grounded on the teacher's main.go flag/errgroup/
// signal-handling shape but split into mitchellh/cli subcommands instead of
// a single monolithic mode flag, since this module runs three genuinely
// separate processes (worker pool, realtime gateway, one-shot index setup)
// rather than catalyst-api's all-in-one binary.
package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/catalystvision/core/config"
)

func main() {
	c := cli.NewCLI("videoagentd", config.Version)
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"worker": func() (cli.Command, error) {
			return &WorkerCommand{}, nil
		},
		"gateway": func() (cli.Command, error) {
			return &GatewayCommand{}, nil
		},
		"index-init": func() (cli.Command, error) {
			return &IndexInitCommand{}, nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitStatus)
}
