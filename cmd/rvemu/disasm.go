package main

import (
	"fmt"
	"io"
	"os"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/loader"
	"github.com/spf13/cobra"
)

// disassemble writes count lines (all when 0) of code starting at from,
// with a label line before every symbol.
func disassemble(w io.Writer, prog *loader.Program, from uint32, count int) error {
	img := prog.Image
	if from == 0 {
		from = img.CodeBase
	}
	if from < img.CodeBase || uint64(from) >= img.CodeEnd() {
		return fmt.Errorf("address 0x%08x outside code [0x%08x, 0x%08x)", from, img.CodeBase, img.CodeEnd())
	}
	labels := make(map[uint32]string, len(prog.Symbols))
	for name, addr := range prog.Symbols {
		labels[addr] = name
	}
	lines := isa.DisassembleBytes(img.Code[from-img.CodeBase:], from)
	if count > 0 && count < len(lines) {
		lines = lines[:count]
	}
	for _, line := range lines {
		var addr uint32
		if _, err := fmt.Sscanf(line, "%x:", &addr); err == nil {
			if name, ok := labels[addr]; ok {
				fmt.Fprintf(w, "\n%08x <%s>:\n", addr, name)
			}
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func newDisasmCmd(opts *machineOptions) *cobra.Command {
	var (
		from  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "disasm <image>",
		Short: "Disassemble an image's code region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := opts.load(args[0])
			if err != nil {
				return err
			}
			var start uint32
			if from != "" {
				if start, err = resolveAddr(prog, from); err != nil {
					return err
				}
			}
			return disassemble(os.Stdout, prog, start, count)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Start at this symbol or address")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of instructions (0 = to the end of code)")
	return cmd
}
