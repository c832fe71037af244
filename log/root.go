package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	gethlog "github.com/ethereum/go-ethereum/log"
)

const (
	RV32Module    = "rv32"    // executor, step controller
	AbiModule     = "abi"     // argument/result marshaling
	SyscallModule = "syscall" // syscall dispatch and host handlers
	GuestModule   = "guest"   // messages the guest emits through the log syscall
	CLIModule     = "cli"     // rvemu command line
)

var root atomic.Value

func init() {
	root.Store(NewLogger(gethlog.DiscardHandler()))
}

// InitLogger installs a terminal (or JSON) handler on w at the given level.
func InitLogger(w io.Writer, logLevel string, jsonOutput bool) error {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}
	var h slog.Handler
	if jsonOutput {
		h = gethlog.JSONHandlerWithLevel(w, logLvl)
	} else {
		useColor := false
		if f, ok := w.(*os.File); ok {
			useColor = isTerminal(f)
		}
		h = gethlog.NewTerminalHandlerWithLevel(w, logLvl, useColor)
	}
	SetDefault(NewLogger(h))
	return nil
}

// SetDefault replaces the root logger and the slog default.
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

func Root() Logger {
	return root.Load().(Logger)
}

// moduleEnabled gates Trace and Debug output per module.
var (
	moduleMu      sync.RWMutex
	moduleEnabled = map[string]bool{
		RV32Module:    false,
		AbiModule:     false,
		SyscallModule: false,
		GuestModule:   true,
		CLIModule:     true,
	}
)

// EnableModule enables logging for the specified module.
func EnableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = true
	moduleMu.Unlock()
}

// DisableModule disables logging for the specified module.
func DisableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = false
	moduleMu.Unlock()
}

// EnableModules enables a comma separated list, e.g. "rv32,abi". "all"
// enables every known module.
func EnableModules(list string) {
	for _, m := range strings.Split(list, ",") {
		m = strings.TrimSpace(m)
		switch m {
		case "":
		case "all":
			for _, k := range KnownModules() {
				EnableModule(k)
			}
		default:
			EnableModule(m)
		}
	}
}

func KnownModules() []string {
	return []string{RV32Module, AbiModule, SyscallModule, GuestModule, CLIModule}
}

// IsModuleEnabled checks if logging is enabled for the given module.
func IsModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	return moduleEnabled[module]
}

// Trace logs a message at the trace level for a specific module.
func Trace(module string, msg string, ctx ...interface{}) {
	if !IsModuleEnabled(module) {
		return
	}
	Root().Write(LevelTrace, module, msg, ctx...)
}

// Debug logs a message at the debug level for a specific module.
func Debug(module string, msg string, ctx ...interface{}) {
	if !IsModuleEnabled(module) {
		return
	}
	Root().Write(LevelDebug, module, msg, ctx...)
}

// Info and the levels above it are not filtered by module.
func Info(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelInfo, module, msg, ctx...)
}

func Warn(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelWarn, module, msg, ctx...)
}

func Error(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelError, module, msg, ctx...)
}

// Crit logs and exits the process.
func Crit(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}

// New returns the root logger with ctx attached to every record.
func New(ctx ...interface{}) Logger {
	return Root().With(ctx...)
}
