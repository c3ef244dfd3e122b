package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
)

// panicError is a panic that escaped the interpreter.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

// traceback renders err as the text reported to clients: the error kind and
// message, followed by the stack for panics.
func traceback(err error) string {
	var p interp.Panic
	if errors.As(err, &p) {
		return formatPanic(p.Value, p.Stack)
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return formatPanic(pe.value, pe.stack)
	}
	return fmt.Sprintf("%s: %v\n", kind(err), err)
}

func formatPanic(value any, stack []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "panic: %v", value)
	if e, ok := value.(error); ok {
		fmt.Fprintf(&b, " [%s]", kind(e))
	}
	b.WriteString("\n")
	if len(stack) > 0 {
		b.WriteString("\n")
		b.Write(stack)
	}
	return b.String()
}

// kind names the error's type, falling back to "error" for the anonymous
// types produced by errors.New and fmt.Errorf.
func kind(err error) string {
	switch k := fmt.Sprintf("%T", err); k {
	case "*errors.errorString", "*fmt.wrapError", "*fmt.wrapErrors", "*errors.joinError":
		return "error"
	default:
		return k
	}
}
