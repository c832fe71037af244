package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/hostenv"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/loader"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/dop251/goja"
	"github.com/spf13/cobra"
)

const debugHelp = `commands:
  s, step [n]          execute n instructions (default 1)
  c, continue          run to a breakpoint, trap, exit or return
  r, regs              show non-zero registers
  x, mem <addr> [n]    dump n bytes of guest memory (default 64)
  b, break <addr|sym>  set a breakpoint
  delete <addr|sym>    clear a breakpoint
  breaks               list breakpoints
  d, disasm [addr] [n] disassemble n instructions (default 8 at pc)
  input <text>         queue bytes on the serial input
  js <expr>            evaluate JavaScript (reg, setReg, pc, load32, mem, retired)
  q, quit              leave the debugger`

// debugger drives one State interactively. Syscalls raised while stepping
// are served by the emulated devices.
type debugger struct {
	ctx    context.Context
	prog   *loader.Program
	st     *rv32.State
	emu    *hostenv.Emulated
	breaks map[uint32]struct{}
	out    io.Writer
	vm     *goja.Runtime
}

func newDebugger(ctx context.Context, prog *loader.Program, st *rv32.State, out io.Writer) *debugger {
	d := &debugger{
		ctx:    ctx,
		prog:   prog,
		st:     st,
		emu:    hostenv.NewEmulated(hostenv.WithSerialOutput(out)),
		breaks: make(map[uint32]struct{}),
		out:    out,
	}
	d.vm = d.newVM()
	return d
}

func (d *debugger) newVM() *goja.Runtime {
	vm := goja.New()
	throw := func(err error) { panic(vm.NewGoError(err)) }
	regIndex := func(name string) uint8 {
		i, ok := rvtypes.RegIndex(name)
		if !ok {
			throw(fmt.Errorf("unknown register %q", name))
		}
		return uint8(i)
	}
	vm.Set("reg", func(name string) uint32 {
		return d.st.Regs.Read(regIndex(name))
	})
	vm.Set("setReg", func(name string, v uint32) {
		d.st.Regs.Write(regIndex(name), v)
	})
	vm.Set("pc", func() uint32 { return d.st.Regs.PC })
	vm.Set("retired", func() uint64 { return d.st.Retired() })
	vm.Set("load32", func(addr uint32) uint32 {
		v, err := d.st.Mem.Load32(addr)
		if err != nil {
			throw(err)
		}
		return v
	})
	vm.Set("mem", func(addr, n uint32) string {
		b, err := d.st.Mem.ReadBytes(addr, n)
		if err != nil {
			throw(err)
		}
		return string(b)
	})
	vm.Set("print", func(args ...goja.Value) {
		for _, arg := range args {
			fmt.Fprintln(d.out, arg.Export())
		}
	})
	return vm
}

// addr resolves a symbol, register name or numeric address.
func (d *debugger) addr(s string) (uint32, error) {
	if i, ok := rvtypes.RegIndex(s); ok {
		return d.st.Regs.Read(uint8(i)), nil
	}
	return resolveAddr(d.prog, s)
}

// symbolize renders addr as sym+off when a symbol precedes it.
func (d *debugger) symbolize(addr uint32) string {
	best, bestAddr := "", uint32(0)
	for name, a := range d.prog.Symbols {
		if a <= addr && (best == "" || a > bestAddr) {
			best, bestAddr = name, a
		}
	}
	if best == "" {
		return ""
	}
	if addr == bestAddr {
		return "<" + best + ">"
	}
	return fmt.Sprintf("<%s+0x%x>", best, addr-bestAddr)
}

// wordAt fetches enough bytes at pc for one instruction.
func (d *debugger) wordAt(pc uint32) (uint32, error) {
	lo, err := d.st.Mem.Fetch16(pc)
	if err != nil {
		return 0, err
	}
	if lo&0x3 != 0x3 {
		return uint32(lo), nil
	}
	hi, err := d.st.Mem.Fetch16(pc + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func (d *debugger) where() {
	pc := d.st.Regs.PC
	if pc == rvtypes.ReturnSentinel {
		fmt.Fprintf(d.out, "pc 0x%08x <return>\n", pc)
		return
	}
	word, err := d.wordAt(pc)
	if err != nil {
		fmt.Fprintf(d.out, "pc 0x%08x %s: %v\n", pc, d.symbolize(pc), err)
		return
	}
	text, _ := isa.Disassemble(word)
	fmt.Fprintf(d.out, "pc 0x%08x %s: %s\n", pc, d.symbolize(pc), text)
}

// step runs one instruction, serving any syscall it raises.
func (d *debugger) step() rv32.StepResult {
	if d.st.Regs.PC == rvtypes.ReturnSentinel {
		return d.st.RunUntilReturn(rvtypes.ReturnSentinel)
	}
	res := d.st.Step()
	if res.Kind == rv32.StepSyscall {
		fmt.Fprintf(d.out, "%s\n", res.Syscall)
		if d.st.ServePending(d.ctx, d.emu) {
			return d.st.Step()
		}
	}
	return res
}

// stopped reports a terminal or trapping result and whether to stop.
func (d *debugger) stopped(res rv32.StepResult) bool {
	switch res.Kind {
	case rv32.StepTrap:
		fmt.Fprintf(d.out, "trap: %v\n", res.Trap)
		return true
	case rv32.StepHalted:
		if res.Halt == rv32.HaltExited {
			fmt.Fprintf(d.out, "exited with code %d after %d instructions\n", res.ExitCode, d.st.Retired())
		} else {
			fmt.Fprintf(d.out, "%s after %d instructions\n", res, d.st.Retired())
		}
		return true
	}
	return false
}

func (d *debugger) cont() {
	for first := true; ; first = false {
		if _, hit := d.breaks[d.st.Regs.PC]; hit && !first {
			fmt.Fprintf(d.out, "breakpoint 0x%08x %s\n", d.st.Regs.PC, d.symbolize(d.st.Regs.PC))
			break
		}
		if err := d.ctx.Err(); err != nil {
			fmt.Fprintf(d.out, "interrupted: %v\n", err)
			break
		}
		if d.stopped(d.step()) {
			return
		}
	}
	d.where()
}

func (d *debugger) dump(addr, n uint32) error {
	b, err := d.st.Mem.ReadBytes(addr, n)
	if err != nil {
		return err
	}
	for off := 0; off < len(b); off += 16 {
		end := min(off+16, len(b))
		fmt.Fprintf(d.out, "%08x  %s\n", addr+uint32(off), hex.EncodeToString(b[off:end]))
	}
	return nil
}

func (d *debugger) disasm(from uint32, n int) {
	for i := 0; i < n; i++ {
		word, err := d.wordAt(from)
		if err != nil {
			fmt.Fprintf(d.out, "%08x: %v\n", from, err)
			return
		}
		text, size := isa.Disassemble(word)
		mark := "  "
		if from == d.st.Regs.PC {
			mark = "=>"
		}
		if size == 2 {
			fmt.Fprintf(d.out, "%s %08x: %04x      %s\n", mark, from, word&0xffff, text)
		} else {
			fmt.Fprintf(d.out, "%s %08x: %08x  %s\n", mark, from, word, text)
		}
		from += uint32(size)
	}
}

func atoiDefault(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.ParseUint(args[i], 0, 32)
	return int(n), err
}

// exec runs one debugger command line. It returns true on quit.
func (d *debugger) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		fmt.Fprintln(d.out, debugHelp)
	case "s", "step":
		n, err := atoiDefault(args, 0, 1)
		if err != nil {
			return false, err
		}
		for i := 0; i < n; i++ {
			if d.stopped(d.step()) {
				return false, nil
			}
		}
		d.where()
	case "c", "continue":
		d.cont()
	case "r", "regs":
		fmt.Fprintln(d.out, d.st.Regs.String())
		fmt.Fprintf(d.out, "retired=%d\n", d.st.Retired())
	case "x", "mem":
		if len(args) == 0 {
			return false, errors.New("usage: mem <addr> [n]")
		}
		addr, err := d.addr(args[0])
		if err != nil {
			return false, err
		}
		n, err := atoiDefault(args, 1, 64)
		if err != nil {
			return false, err
		}
		return false, d.dump(addr, uint32(n))
	case "b", "break", "delete":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: %s <addr|sym>", cmd)
		}
		addr, err := d.addr(args[0])
		if err != nil {
			return false, err
		}
		if cmd == "delete" {
			delete(d.breaks, addr)
		} else {
			d.breaks[addr] = struct{}{}
			fmt.Fprintf(d.out, "breakpoint at 0x%08x %s\n", addr, d.symbolize(addr))
		}
	case "breaks":
		for addr := range d.breaks {
			fmt.Fprintf(d.out, "0x%08x %s\n", addr, d.symbolize(addr))
		}
	case "d", "disasm":
		from := d.st.Regs.PC
		if len(args) > 0 {
			a, err := d.addr(args[0])
			if err != nil {
				return false, err
			}
			from = a
		}
		n, err := atoiDefault(args, 1, 8)
		if err != nil {
			return false, err
		}
		d.disasm(from, n)
	case "input":
		d.emu.PushInput([]byte(strings.Join(args, " ") + "\n"))
	case "js":
		v, err := d.vm.RunString(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "js")))
		if err != nil {
			return false, err
		}
		if v != nil && !goja.IsUndefined(v) {
			fmt.Fprintln(d.out, v.String())
		}
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func newDebugCmd(opts *machineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "debug <image>",
		Short: "Step through an image interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, st, err := opts.boot(args[0])
			if err != nil {
				return err
			}
			history := filepath.Join(os.TempDir(), "rvemu_debug_history.txt")
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "(rvemu) ",
				HistoryFile:     history,
				InterruptPrompt: "^C",
				EOFPrompt:       "quit",
			})
			if err != nil {
				return fmt.Errorf("readline: %w", err)
			}
			defer rl.Close()

			d := newDebugger(cmd.Context(), prog, st, rl.Stdout())
			fmt.Fprintf(rl.Stdout(), "%s loaded, type help for commands\n", args[0])
			d.where()
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if len(line) == 0 {
						return nil
					}
					continue
				}
				if err != nil {
					return nil
				}
				quit, err := d.exec(line)
				if err != nil {
					fmt.Fprintf(rl.Stdout(), "error: %v\n", err)
				}
				if quit {
					return nil
				}
			}
		},
	}
}
