package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/hostenv"
	"github.com/spf13/cobra"
)

func newCallCmd(opts *machineOptions) *cobra.Command {
	var (
		results string
		traces  traceOptions
	)
	cmd := &cobra.Command{
		Use:   "call <image> <function|address> [args...]",
		Short: "Call one function with typed arguments and print its results",
		Long: `Arguments are kind:literal pairs (i32:-5, u64:0x10, f64:2.5); a bare
literal is an i32. Result kinds are given with --results, e.g. --results i64,i32.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, st, err := opts.boot(args[0])
			if err != nil {
				return err
			}
			entry, err := resolveAddr(prog, args[1])
			if err != nil {
				return err
			}
			vals, err := parseArgs(args[2:])
			if err != nil {
				return err
			}
			kinds, err := parseKinds(results)
			if err != nil {
				return err
			}

			sinks, err := traces.open(cmd.Context())
			if err != nil {
				return err
			}
			defer sinks.Close()
			if tr := sinks.tracer(); tr != nil {
				st.SetTracer(tr)
			}

			emu := hostenv.NewEmulated(hostenv.WithSerialOutput(os.Stdout))
			d := rv32.NewDriver(st, emu)
			out, err := d.Call(cmd.Context(), entry, vals, kinds)
			log.Info(log.CLIModule, "call finished", "entry", fmt.Sprintf("0x%08x", entry), "retired", st.Retired(), "err", err)
			if err != nil {
				var exit *rv32.ExitError
				if errors.As(err, &exit) {
					return &exitCode{code: int(exit.Code)}
				}
				var trap *rv32.Trap
				if errors.As(err, &trap) {
					return &exitCode{code: statusTrap, err: err}
				}
				var halt *rv32.HaltError
				if errors.As(err, &halt) {
					return &exitCode{code: statusBudget, err: err}
				}
				return err
			}
			for i, v := range out {
				fmt.Printf("%s[%d] = %s\n", v.Kind, i, v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&results, "results", "i32", "Comma separated result kinds (i32,i64,f32,f64); empty for none")
	traces.register(cmd)
	return cmd
}
