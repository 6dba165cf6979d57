package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// New returns a stdlib logger writing to stderr with a component prefix. It satisfies the
// Printf/Fatalf logger interfaces expected by third-party tooling such as migrations.
func New(component string) *log.Logger {
	return NewTo(os.Stderr, component)
}

// NewTo is New with an explicit destination; pass io.Discard to silence output.
func NewTo(w io.Writer, component string) *log.Logger {
	if w == nil {
		w = io.Discard
	}
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(w, prefix, log.LstdFlags|log.Lmsgprefix)
}
