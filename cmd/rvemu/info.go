package main

import (
	"cmp"
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/loader"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
	"golang.org/x/exp/slices"
)

// layoutTree renders an image and the state built from it.
func layoutTree(name string, prog *loader.Program, st *rv32.State) treeprint.Tree {
	img := prog.Image
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s (%s)", name, prog.Format))

	code := tree.AddBranch("code (r-x)")
	code.AddNode(fmt.Sprintf("base  0x%08x", img.CodeBase))
	code.AddNode(fmt.Sprintf("end   0x%08x", img.CodeEnd()))
	code.AddNode(fmt.Sprintf("size  %d bytes", len(img.Code)))
	code.AddNode(fmt.Sprintf("entry 0x%08x", img.Entry))

	ram := tree.AddBranch("ram (rw-)")
	ram.AddNode(fmt.Sprintf("base  0x%08x", img.RAMBase))
	ram.AddNode(fmt.Sprintf("end   0x%08x", img.RAMEnd()))
	ram.AddNode(fmt.Sprintf("size  %d bytes (%d initialized)", img.RAMSize, len(img.RAM)))
	ram.AddNode(fmt.Sprintf("sp    0x%08x", st.StackTop()))

	cfg := st.Config()
	machine := tree.AddBranch("machine")
	machine.AddNode("isa " + st.Extensions().String())
	machine.AddNode("syscall number in " + cfg.SyscallConvention.String())
	if cfg.Budget != 0 {
		machine.AddNode(fmt.Sprintf("budget %d", cfg.Budget))
	} else {
		machine.AddNode("budget unlimited")
	}
	machine.AddNode(fmt.Sprintf("return sentinel 0x%08x", rvtypes.ReturnSentinel))

	if len(prog.Symbols) > 0 {
		type sym struct {
			name string
			addr uint32
		}
		syms := make([]sym, 0, len(prog.Symbols))
		for n, a := range prog.Symbols {
			syms = append(syms, sym{n, a})
		}
		slices.SortFunc(syms, func(a, b sym) int {
			if c := cmp.Compare(a.addr, b.addr); c != 0 {
				return c
			}
			return cmp.Compare(a.name, b.name)
		})
		branch := tree.AddBranch(fmt.Sprintf("symbols (%d)", len(syms)))
		for _, s := range syms {
			branch.AddNode(fmt.Sprintf("0x%08x %s", s.addr, s.name))
		}
	}
	return tree
}

func newInfoCmd(opts *machineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "Show an image's memory layout and symbols",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, st, err := opts.boot(args[0])
			if err != nil {
				return err
			}
			fmt.Print(layoutTree(args[0], prog, st).String())
			return nil
		},
	}
}
