package main

import (
	"os"

	log "github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/hostenv"
	"github.com/colorfulnotion/rv32emu/rv32/profile"
	"github.com/spf13/cobra"
)

func newProfileCmd(opts *machineOptions) *cobra.Command {
	var html string
	cmd := &cobra.Command{
		Use:   "profile <image>",
		Short: "Run an image and print its opcode and hot-address histograms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := opts.boot(args[0])
			if err != nil {
				return err
			}
			p := profile.New()
			st.SetTracer(p)
			// guest serial goes to stderr so the report on stdout stays clean
			emu := hostenv.NewEmulated(hostenv.WithSerialOutput(os.Stderr))
			res, runErr := runSliced(cmd.Context(), st, emu, opts.budget)
			log.Info(log.CLIModule, "profile run finished", "result", res.String(), "retired", st.Retired())

			if err := p.WriteText(os.Stdout); err != nil {
				return err
			}
			if html != "" {
				f, err := os.Create(html)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := p.RenderHTML(f); err != nil {
					return err
				}
				log.Info(log.CLIModule, "wrote profile chart", "path", html)
			}
			if ec := runStatus(res, runErr); ec.code != 0 || ec.err != nil {
				return ec
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&html, "html", "", "Also write an HTML bar chart to this file")
	return cmd
}
