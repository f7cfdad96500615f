// Package export defines the document-export collaborator: an ordered
// stream of typed drawing commands rendered to a downloadable binary, and
// the text sink used for clipboard-style exports. State-owning components
// are always mutated before an export starts; a command stream is a
// snapshot, never a live view.
package export

import (
	"context"
	"errors"

	"github.com/dosecalc/dosecalc/internal/platform/capability"
)

// ErrUnavailable is returned when a required export collaborator is not
// registered. The caller reports it without touching any stored state.
var ErrUnavailable = errors.New("export: collaborator unavailable")

type CommandKind int

const (
	// KindText renders a block of text at the current cursor.
	KindText CommandKind = iota
	// KindRule renders a horizontal rule line.
	KindRule
	// KindPageBreak starts a new page.
	KindPageBreak
	// KindQR renders a QR code of the payload, when a QR encoder is
	// available; otherwise the command is skipped.
	KindQR
)

// Style controls text rendering. LineHeight is in millimeters.
type Style struct {
	Size       float64
	Bold       bool
	LineHeight float64
}

// Command is one typed drawing instruction.
type Command struct {
	Kind    CommandKind
	Text    string
	Payload string // QR content
	Style   Style
}

// Document is a complete, ordered command stream plus output metadata.
type Document struct {
	Title    string
	Filename string
	Commands []Command
}

// Renderer converts a command stream into a binary document.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// QRCoder encodes a payload into a PNG image of the given pixel size.
type QRCoder interface {
	EncodePNG(content string, size int) ([]byte, error)
}

// Sink receives a plain-text export (the clipboard collaborator).
type Sink interface {
	Write(ctx context.Context, name, text string) error
}

// RendererFrom resolves the PDF renderer capability.
func RendererFrom(reg *capability.Registry) (Renderer, bool) {
	impl, ok := reg.Lookup(capability.PDFRenderer)
	if !ok {
		return nil, false
	}
	r, ok := impl.(Renderer)
	return r, ok
}

// QRFrom resolves the QR encoder capability.
func QRFrom(reg *capability.Registry) (QRCoder, bool) {
	impl, ok := reg.Lookup(capability.QREncoder)
	if !ok {
		return nil, false
	}
	q, ok := impl.(QRCoder)
	return q, ok
}

// SinkFrom resolves the text sink capability.
func SinkFrom(reg *capability.Registry) (Sink, bool) {
	impl, ok := reg.Lookup(capability.TextSink)
	if !ok {
		return nil, false
	}
	s, ok := impl.(Sink)
	return s, ok
}
