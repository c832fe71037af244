package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/rv32emu/rv32/trace"
	"github.com/spf13/cobra"
)

func newTraceCmd(_ *machineOptions) *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect and compare recorded step traces",
	}

	var color bool
	diffCmd := &cobra.Command{
		Use:   "diff <left.jsonl> <right.jsonl>",
		Short: "Report the first step where two JSONL traces diverge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := trace.ReadJSONLFile(args[0])
			if err != nil {
				return err
			}
			right, err := trace.ReadJSONLFile(args[1])
			if err != nil {
				return err
			}
			d, err := trace.Diff(left, right)
			if err != nil {
				return err
			}
			if d == nil {
				fmt.Printf("traces match (%d steps)\n", len(left))
				return nil
			}
			fmt.Println(d.String())
			if d.Left != nil && d.Right != nil {
				text, err := d.ASCII(color)
				if err != nil {
					return err
				}
				fmt.Print(text)
			}
			return &exitCode{code: 1}
		},
	}
	diffCmd.Flags().BoolVar(&color, "color", false, "Colorize the record diff")

	var (
		from  uint64
		count uint64
	)
	showCmd := &cobra.Command{
		Use:   "show <trace-db>",
		Short: "Print steps from a LevelDB trace as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := trace.OpenLevelDBStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			to := store.Len()
			if count > 0 && from+count < to {
				to = from + count
			}
			recs, err := store.Range(from, to)
			if err != nil {
				return err
			}
			w := trace.NewJSONLWriter(os.Stdout)
			for _, r := range recs {
				if err := w.WriteRecord(r); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
	showCmd.Flags().Uint64Var(&from, "from", 0, "First step index")
	showCmd.Flags().Uint64VarP(&count, "count", "n", 0, "Number of steps (0 = all)")

	traceCmd.AddCommand(diffCmd, showCmd)
	return traceCmd
}
