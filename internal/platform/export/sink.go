package export

import (
	"context"
	"fmt"
	"io"
)

// WriterSink writes text exports to an io.Writer. The CLI registers one
// over stdout; tests register one over a buffer.
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(_ context.Context, name, text string) error {
	if _, err := fmt.Fprintf(s.w, "--- %s ---\n%s\n", name, text); err != nil {
		return fmt.Errorf("write text export: %w", err)
	}
	return nil
}
