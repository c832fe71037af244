package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/hostenv"
	"github.com/colorfulnotion/rv32emu/rv32/trace"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const ctrlC = 0x03

// traceOptions select where per-step records go.
type traceOptions struct {
	jsonl string
	db    string
	ws    string
}

func (o *traceOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.jsonl, "trace", "", "Write one JSON record per step to this file")
	cmd.Flags().StringVar(&o.db, "trace-db", "", "Record steps into a LevelDB directory")
	cmd.Flags().StringVar(&o.ws, "trace-ws", "", "Serve live steps over WebSocket at this address (path /trace)")
}

// sinkSet owns the trace sinks opened for one command.
type sinkSet struct {
	sinks   []trace.Sink
	closers []func() error
}

func (o *traceOptions) open(ctx context.Context) (*sinkSet, error) {
	s := &sinkSet{}
	if o.jsonl != "" {
		w, err := trace.NewJSONLWriterFile(o.jsonl)
		if err != nil {
			return nil, err
		}
		s.add(w, w.Close)
	}
	if o.db != "" {
		store, err := trace.OpenLevelDBStore(o.db)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.add(store, store.Close)
	}
	if o.ws != "" {
		hub := trace.NewBroadcaster(ctx)
		mux := http.NewServeMux()
		mux.Handle("/trace", hub)
		srv := &http.Server{Addr: o.ws, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(log.CLIModule, "trace websocket server", "addr", o.ws, "err", err)
			}
		}()
		log.Info(log.CLIModule, "streaming trace", "url", "ws://"+o.ws+"/trace")
		s.add(hub, func() error {
			hub.Close()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	return s, nil
}

func (s *sinkSet) add(sink trace.Sink, closer func() error) {
	s.sinks = append(s.sinks, sink)
	s.closers = append(s.closers, closer)
}

// tracer returns nil when no sink was requested.
func (s *sinkSet) tracer() *trace.Tracer {
	if len(s.sinks) == 0 {
		return nil
	}
	return trace.NewTracer(s.sinks...)
}

func (s *sinkSet) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// crlfWriter restores line starts on a terminal in raw mode.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// rawStdin switches a terminal stdin to raw mode so single keystrokes
// reach the guest.
func rawStdin() (restore func(), raw bool, err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, false, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, false, err
	}
	return func() { _ = term.Restore(fd, old) }, true, nil
}

// forwardStdin feeds stdin into the guest's serial input. In raw mode
// Ctrl-C cancels the run.
func forwardStdin(raw bool, cancel context.CancelFunc, emu *hostenv.Emulated) {
	buf := make([]byte, 256)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if raw && bytes.IndexByte(buf[:n], ctrlC) >= 0 {
				cancel()
				return
			}
			emu.PushInput(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func newRunCmd(opts *machineOptions) *cobra.Command {
	var (
		serialStdio  bool
		input        string
		guestLogJSON string
		traces       traceOptions
	)
	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Run an image from its entry point until it exits or returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, st, err := opts.boot(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var out io.Writer = os.Stdout
			raw := false
			if serialStdio {
				restore, isRaw, err := rawStdin()
				if err != nil {
					return err
				}
				defer restore()
				if raw = isRaw; raw {
					out = crlfWriter{w: os.Stdout}
				}
			}

			hostOpts := []hostenv.Option{hostenv.WithSerialOutput(out)}
			if guestLogJSON != "" {
				f, err := os.Create(guestLogJSON)
				if err != nil {
					return err
				}
				defer f.Close()
				hostOpts = append(hostOpts, hostenv.WithGuestLogJSON(f))
			}
			emu := hostenv.NewEmulated(hostOpts...)
			if input != "" {
				emu.PushInput([]byte(input))
			}
			if serialStdio {
				go forwardStdin(raw, cancel, emu)
			}

			sinks, err := traces.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := sinks.Close(); err != nil {
					log.Warn(log.CLIModule, "closing trace sinks", "err", err)
				}
			}()
			tr := sinks.tracer()
			if tr != nil {
				st.SetTracer(tr)
			}

			log.Info(log.CLIModule, "run", "image", args[0], "format", prog.Format,
				"entry", fmt.Sprintf("0x%08x", prog.Image.Entry), "isa", st.Extensions().String())
			res, runErr := runSliced(ctx, st, emu, opts.budget)
			if tr != nil && tr.Err() != nil {
				log.Warn(log.CLIModule, "trace stopped early", "records", tr.Count(), "err", tr.Err())
			}
			log.Info(log.CLIModule, "run finished", "result", res.String(), "retired", st.Retired())
			if ec := runStatus(res, runErr); ec.code != 0 || ec.err != nil {
				return ec
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&serialStdio, "serial-stdio", false, "Feed stdin to the guest's serial input (raw mode on a terminal)")
	cmd.Flags().StringVar(&input, "input", "", "Bytes queued on the guest's serial input before start")
	cmd.Flags().StringVar(&guestLogJSON, "guest-log-json", "", "Write guest log records as JSON lines to this file")
	traces.register(cmd)
	return cmd
}
