package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// GuestRecord is one message the guest emitted through the log syscall.
type GuestRecord struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Target  string    `json:"target"`
	Message string    `json:"msg"`
	PC      uint32    `json:"pc,omitempty"`
	Retired uint64    `json:"retired,omitempty"`
}

var fieldOrder = []string{"time", "level", "target", "msg", "pc", "retired"}

// Custom JSON marshaling to preserve field order and omit zero/empty values.
func (g GuestRecord) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeField := func(key string, val []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, `"%s":`, key)
		buf.Write(val)
	}
	for _, f := range fieldOrder {
		switch f {
		case "time":
			b, _ := json.Marshal(g.Time)
			writeField(f, b)
		case "level":
			b, _ := json.Marshal(g.Level)
			writeField(f, b)
		case "target":
			b, _ := json.Marshal(g.Target)
			writeField(f, b)
		case "msg":
			b, _ := json.Marshal(g.Message)
			writeField(f, b)
		case "pc":
			if g.PC != 0 {
				writeField(f, []byte(fmt.Sprintf(`"0x%08x"`, g.PC)))
			}
		case "retired":
			if g.Retired != 0 {
				b, _ := json.Marshal(g.Retired)
				writeField(f, b)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GuestLevel maps the guest wire level (0=error .. 3=debug) to a slog level.
// Unknown values clamp to debug.
func GuestLevel(level uint32) slog.Level {
	switch level {
	case 0:
		return LevelError
	case 1:
		return LevelWarn
	case 2:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// Guest forwards a guest log record to the root logger under the guest
// module. Debug-level guest messages obey the module switch.
func Guest(rec GuestRecord) {
	lvl := GuestLevel(guestWireLevel(rec.Level))
	if lvl <= LevelDebug && !IsModuleEnabled(GuestModule) {
		return
	}
	Root().Write(lvl, GuestModule, rec.Message, "target", rec.Target, "pc", fmt.Sprintf("0x%08x", rec.PC))
}

func guestWireLevel(s string) uint32 {
	switch s {
	case "error":
		return 0
	case "warn":
		return 1
	case "info":
		return 2
	}
	return 3
}
