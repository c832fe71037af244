// rvemu loads RV32 images and runs, calls, traces, profiles or debugs them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/telemetry"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "rvemu",
		Short:         "RV32IMAC user-mode emulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		logLevel   string
		logModules string
		logJSON    bool
		otlp       string
		provider   *telemetry.Provider
	)
	opts := &machineOptions{}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := log.InitLogger(os.Stderr, logLevel, logJSON); err != nil {
			return err
		}
		log.EnableModules(logModules)
		p, err := telemetry.Init(cmd.Context(), otlp, "rvemu")
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		provider = p
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if provider == nil {
			return nil
		}
		return provider.Shutdown(context.Background())
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error|crit)")
	pf.StringVar(&logModules, "log-modules", "", "Comma separated modules to enable (rv32,abi,syscall,guest,cli or all)")
	pf.BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	pf.StringVar(&otlp, "otlp", "", "OTLP/HTTP endpoint for call spans (disabled when empty)")
	opts.register(pf)

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rvemu %s (commit %s, built %s)\n", Version, commitHash(), BuildTime)
		},
	}

	rootCmd.AddCommand(
		newRunCmd(opts),
		newCallCmd(opts),
		newDisasmCmd(opts),
		newInfoCmd(opts),
		newDebugCmd(opts),
		newTraceCmd(opts),
		newProfileCmd(opts),
		versionCmd,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// a second interrupt gets the default handler
	go func() {
		<-ctx.Done()
		stop()
	}()
	code := 0
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ec *exitCode
		if errors.As(err, &ec) {
			code = ec.code
			if ec.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", ec.err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = 1
		}
	}
	stop()
	os.Exit(code)
}
