package trace

import (
	"encoding/json"
	"fmt"

	"github.com/nsf/jsondiff"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// Divergence is the first step at which two traces disagree. Left or
// Right is nil when one trace ended early.
type Divergence struct {
	Position int
	Left     *Record
	Right    *Record
	Report   string
}

func (d *Divergence) String() string {
	switch {
	case d.Left == nil:
		return fmt.Sprintf("step %d: left trace ended, right continues at pc=%s", d.Position, d.Right.PC)
	case d.Right == nil:
		return fmt.Sprintf("step %d: right trace ended, left continues at pc=%s", d.Position, d.Left.PC)
	}
	return fmt.Sprintf("step %d (pc=%s): %s", d.Position, d.Left.PC, d.Report)
}

// Diff walks both traces in lockstep and returns the first divergence, or
// nil when they are identical.
func Diff(left, right []*Record) (*Divergence, error) {
	opts := jsondiff.DefaultConsoleOptions()
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		a, err := json.Marshal(left[i])
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(right[i])
		if err != nil {
			return nil, err
		}
		diff, report := jsondiff.Compare(a, b, &opts)
		if diff != jsondiff.FullMatch {
			return &Divergence{Position: i, Left: left[i], Right: right[i], Report: report}, nil
		}
	}
	switch {
	case len(left) > n:
		return &Divergence{Position: n, Left: left[n]}, nil
	case len(right) > n:
		return &Divergence{Position: n, Right: right[n]}, nil
	}
	return nil, nil
}

// ASCII renders the divergent pair as a field-level delta, optionally
// with ANSI colors.
func (d *Divergence) ASCII(color bool) (string, error) {
	if d.Left == nil || d.Right == nil {
		return d.String(), nil
	}
	a, err := json.Marshal(d.Left)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(d.Right)
	if err != nil {
		return "", err
	}
	delta, err := gojsondiff.New().Compare(a, b)
	if err != nil {
		return "", err
	}
	var leftObj map[string]interface{}
	if err := json.Unmarshal(a, &leftObj); err != nil {
		return "", err
	}
	f := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       color,
	})
	return f.Format(delta)
}
