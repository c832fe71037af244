// Package profile aggregates executed steps into opcode, hot-spot and
// syscall histograms and renders them as text or an HTML chart page.
package profile

import (
	"cmp"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"golang.org/x/exp/slices"
)

// Profile is an rv32.Tracer. It is not safe for concurrent use; a State
// emits from a single goroutine.
type Profile struct {
	total      uint64
	compressed uint64
	ops        map[isa.Op]uint64
	pcs        map[uint32]uint64
	syscalls   map[uint32]uint64
	traps      map[string]uint64
}

type Entry struct {
	Name  string
	Count uint64
}

func New() *Profile {
	return &Profile{
		ops:      make(map[isa.Op]uint64),
		pcs:      make(map[uint32]uint64),
		syscalls: make(map[uint32]uint64),
		traps:    make(map[string]uint64),
	}
}

func (p *Profile) TraceStep(ev *rv32.StepEvent) {
	if ev.Kind == rv32.StepTrap {
		p.traps[ev.Trap.Reason.String()]++
		return
	}
	p.total++
	p.ops[ev.Instruction.Op]++
	p.pcs[ev.PC]++
	if ev.Instruction.Compressed() {
		p.compressed++
	}
	if ev.Syscall != nil {
		p.syscalls[ev.Syscall.Number]++
	}
}

// Total is the number of retired instructions observed.
func (p *Profile) Total() uint64 { return p.total }

// Compressed is how many of them were 16-bit encodings.
func (p *Profile) Compressed() uint64 { return p.compressed }

func sorted(entries []Entry) []Entry {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return entries
}

// Opcodes returns the opcode histogram, most frequent first.
func (p *Profile) Opcodes() []Entry {
	out := make([]Entry, 0, len(p.ops))
	for op, n := range p.ops {
		out = append(out, Entry{Name: op.String(), Count: n})
	}
	return sorted(out)
}

// HotPCs returns the n most executed addresses.
func (p *Profile) HotPCs(n int) []Entry {
	out := make([]Entry, 0, len(p.pcs))
	for pc, c := range p.pcs {
		out = append(out, Entry{Name: fmt.Sprintf("0x%08x", pc), Count: c})
	}
	out = sorted(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (p *Profile) Syscalls() []Entry {
	out := make([]Entry, 0, len(p.syscalls))
	for num, c := range p.syscalls {
		out = append(out, Entry{Name: rvtypes.SyscallName(num), Count: c})
	}
	return sorted(out)
}

func (p *Profile) Traps() []Entry {
	out := make([]Entry, 0, len(p.traps))
	for r, c := range p.traps {
		out = append(out, Entry{Name: r, Count: c})
	}
	return sorted(out)
}

// WriteText prints the histograms as aligned tables.
func (p *Profile) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "retired\t%d\t(compressed %d)\n", p.total, p.compressed)
	section := func(title string, entries []Entry) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(tw, "\n%s\tcount\tshare\n", title)
		for _, e := range entries {
			share := 0.0
			if p.total > 0 {
				share = 100 * float64(e.Count) / float64(p.total)
			}
			fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", e.Name, e.Count, share)
		}
	}
	section("opcode", p.Opcodes())
	section("pc", p.HotPCs(20))
	section("syscall", p.Syscalls())
	section("trap", p.Traps())
	return tw.Flush()
}

func barChart(title, subtitle string, entries []Entry) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 45, Interval: "0"}}),
	)
	names := make([]string, len(entries))
	data := make([]opts.BarData, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		data[i] = opts.BarData{Value: e.Count}
	}
	bar.SetXAxis(names).AddSeries("count", data)
	return bar
}

// RenderHTML writes a standalone page with the opcode and hot-spot charts.
func (p *Profile) RenderHTML(w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = "rv32 profile"
	page.AddCharts(
		barChart("Opcode histogram", fmt.Sprintf("%d retired instructions", p.total), p.Opcodes()),
		barChart("Hot addresses", "top 30 program counters", p.HotPCs(30)),
	)
	if sc := p.Syscalls(); len(sc) > 0 {
		page.AddCharts(barChart("Syscalls", "", sc))
	}
	return page.Render(w)
}
