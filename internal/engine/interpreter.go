package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/michaelbrown/execbridge/internal/capture"
	"github.com/michaelbrown/execbridge/internal/namespace"
	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/render"
	"github.com/michaelbrown/execbridge/internal/session"
)

// bridgePackage is the import path and name of the package fragments use to
// talk to the bridge.
const bridgePackage = "bridge/bridge"

// Options configures an Interpreter.
type Options struct {
	Session  *session.Session
	Renderer *render.Renderer
	Slot     *push.Slot
	Logger   *zap.Logger

	// GoPath is handed to yaegi for resolving source imports. Empty means
	// only pre-compiled packages can be imported.
	GoPath string
}

// Interpreter is an Executor backed by a single long-lived yaegi interpreter.
type Interpreter struct {
	ns   *namespace.Context
	opts Options
	log  *zap.Logger
	vm   *interp.Interpreter

	stdout *capture.Switch
	stderr *capture.Switch

	// Every output path, os.Stdout included, goes through these so that a
	// single Flush orders it before the result is read.
	stdoutPipe *capture.Pipe
	stderrPipe *capture.Pipe

	// Exported to fragments as bridge.Stdout and bridge.Stderr.
	stdoutW io.Writer
	stderrW io.Writer
}

// New creates an Interpreter operating on ns.
func New(ns *namespace.Context, opts Options) (*Interpreter, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	in := &Interpreter{
		ns:     ns,
		opts:   opts,
		log:    log,
		stdout: capture.NewSwitch(),
		stderr: capture.NewSwitch(),
	}

	var err error
	if in.stdoutPipe, err = capture.NewPipe(in.stdout); err != nil {
		return nil, err
	}
	if in.stderrPipe, err = capture.NewPipe(in.stderr); err != nil {
		in.stdoutPipe.Close()
		return nil, err
	}
	in.stdoutW = in.stdoutPipe.File()
	in.stderrW = in.stderrPipe.File()

	// The streams are *os.File values, so using the stdlib symbols points
	// os.Stdout and os.Stderr at them as well as fmt.Print and log.
	in.vm = interp.New(interp.Options{
		GoPath: opts.GoPath,
		Stdin:  bytes.NewReader(nil),
		Stdout: in.stdoutPipe.File(),
		Stderr: in.stderrPipe.File(),
	})

	if err := in.vm.Use(stdlib.Symbols); err != nil {
		in.Close()
		return nil, fmt.Errorf("loading stdlib symbols: %w", err)
	}
	if err := in.vm.Use(in.exports()); err != nil {
		in.Close()
		return nil, fmt.Errorf("loading bridge symbols: %w", err)
	}
	in.vm.ImportUsed()

	return in, nil
}

// Close releases the output pipes. Output written afterwards by goroutines a
// fragment left running is lost.
func (in *Interpreter) Close() error {
	return errors.Join(in.stdoutPipe.Close(), in.stderrPipe.Close())
}

func (in *Interpreter) exports() interp.Exports {
	return interp.Exports{
		bridgePackage: {
			"Return":     reflect.ValueOf(in.setReturn),
			"Get":        reflect.ValueOf(in.get),
			"Set":        reflect.ValueOf(in.ns.Set),
			"Keys":       reflect.ValueOf(in.ns.Keys),
			"Session":    reflect.ValueOf(in.session),
			"Show":       reflect.ValueOf(in.show),
			"Push":       reflect.ValueOf(in.push),
			"PushTarget": reflect.ValueOf(in.pushTarget),
			"Configure":  reflect.ValueOf(in.configure),
			"Recovered":  reflect.ValueOf(in.recovered),

			"ErrNoPushTarget": reflect.ValueOf(&push.ErrTargetUnavailable).Elem(),
			"Stdout":          reflect.ValueOf(&in.stdoutW).Elem(),
			"Stderr":          reflect.ValueOf(&in.stderrW).Elem(),
		},
	}
}

// Execute runs fragment in the shared context and reports what it did.
func (in *Interpreter) Execute(fragment string) Result {
	stdout, stderr := capture.NewBuffer(), capture.NewBuffer()
	in.stdout.Set(stdout)
	in.stderr.Set(stderr)
	defer func() {
		in.stdout.Set(nil)
		in.stderr.Set(nil)
	}()

	in.ns.Set(namespace.KeyReturn, "")
	in.ns.Set(namespace.KeySession, in.opts.Session)
	in.ns.Set(namespace.KeyShow, in.show)

	var res Result
	if err := in.run(fragment); err != nil {
		res.Traceback = traceback(err)
		in.log.Debug("fragment raised", zap.Error(err))
	}

	in.stdoutPipe.Flush()
	in.stderrPipe.Flush()
	res.Stdout = stdout.Get()
	res.Stderr = stderr.Get()

	v, _ := in.ns.Get(namespace.KeyReturn)
	in.ns.Delete(namespace.KeyReturn)
	res.Return = text(v)

	return res
}

// run evaluates the fragment segment by segment, stopping at the first
// failure.
func (in *Interpreter) run(fragment string) error {
	for _, seg := range split(fragment) {
		if err := in.eval(guardGoroutines(seg)); err != nil {
			return err
		}
	}
	return nil
}

// eval runs src, converting anything that escapes the interpreter's own
// panic recovery into an error.
func (in *Interpreter) eval(src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	_, err = in.vm.Eval(src)
	return err
}

func (in *Interpreter) setReturn(v any) {
	in.ns.Set(namespace.KeyReturn, v)
}

// recovered reports a panic caught in a goroutine started by a fragment.
func (in *Interpreter) recovered(v any) {
	in.log.Warn("goroutine panicked", zap.Any("panic", v))
	fmt.Fprintf(in.stderrW, "panic in goroutine: %v\n", v)
}

func (in *Interpreter) get(name string) any {
	v, _ := in.ns.Get(name)
	return v
}

func (in *Interpreter) session() *session.Session {
	return in.opts.Session
}

func (in *Interpreter) show(v any) (string, error) {
	if in.opts.Renderer == nil {
		return "", render.ErrNotConfigured
	}
	return in.opts.Renderer.Show(v)
}

func (in *Interpreter) configure(key, value string) error {
	if in.opts.Renderer == nil {
		return errors.New("no renderer installed")
	}
	return in.opts.Renderer.Configure(key, value)
}

func (in *Interpreter) push(v any) error {
	if in.opts.Slot == nil {
		return push.ErrTargetUnavailable
	}
	return in.opts.Slot.Send(v)
}

func (in *Interpreter) pushTarget() push.Target {
	if in.opts.Slot == nil {
		return nil
	}
	return in.opts.Slot.Current()
}

// text coerces a return value to a string.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
