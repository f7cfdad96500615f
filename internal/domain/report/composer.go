package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dosecalc/dosecalc/internal/platform/export"
)

// ErrNoResult is returned when composition is requested before any
// validated computation has populated the result store.
var ErrNoResult = errors.New("report: no result to export")

// Page layout estimates in millimeters, matching the PDF renderer's A4
// portrait setup. The composer tracks a running vertical cursor so it can
// break the page before the disclaimer instead of splitting it.
const (
	usablePageHeight = 267.0 // 297 - top and bottom margins
	titleHeight      = 7.0
	lineHeight       = 5.0
	ruleHeight       = 3.0
	qrBlockHeight    = 34.0
	charsPerLine     = 95
)

// ComposeText builds the clipboard export. Pure function of its input.
func ComposeText(in Input) (string, error) {
	if in.Bundle.IsEmpty() {
		return "", ErrNoResult
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", in.Meta.CalculatorTitle, strings.Repeat("=", len(in.Meta.CalculatorTitle)))

	for _, s := range sections(in) {
		switch s.kind {
		case kindQR:
			fmt.Fprintf(&b, "\n%s\n%s\nVerification code: %s\n", s.title, underline(s.title), s.qr)
		case kindFooter:
			fmt.Fprintf(&b, "\n---\n%s\n", s.lines[0])
		default:
			fmt.Fprintf(&b, "\n%s\n%s\n", s.title, underline(s.title))
			for _, line := range s.lines {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}

// ComposeDocument builds the ordered drawing-command stream for the PDF
// renderer. The stream is a snapshot: a later recompute does not affect a
// document already composed.
func ComposeDocument(in Input) (export.Document, error) {
	if in.Bundle.IsEmpty() {
		return export.Document{}, ErrNoResult
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	doc := export.Document{
		Title:    in.Meta.CalculatorTitle,
		Filename: in.Meta.Filename,
	}
	cursor := 0.0

	push := func(cmd export.Command, height float64) {
		doc.Commands = append(doc.Commands, cmd)
		cursor += height
	}

	push(export.Command{
		Kind:  export.KindText,
		Text:  in.Meta.CalculatorTitle,
		Style: export.Style{Size: 16, Bold: true, LineHeight: 8},
	}, 8)
	push(export.Command{Kind: export.KindRule}, ruleHeight)

	for _, s := range sections(in) {
		height := sectionHeight(s)

		// The disclaimer block is never split across a page boundary: when
		// it would overflow, break first.
		if s.title == "Legal Disclaimer" && cursor+height > usablePageHeight {
			push(export.Command{Kind: export.KindPageBreak}, 0)
			cursor = 0
		}

		switch s.kind {
		case kindQR:
			push(export.Command{
				Kind:  export.KindText,
				Text:  s.title,
				Style: export.Style{Size: 12, Bold: true, LineHeight: titleHeight},
			}, titleHeight)
			push(export.Command{Kind: export.KindQR, Payload: s.qr}, qrBlockHeight)
		case kindFooter:
			push(export.Command{Kind: export.KindRule}, ruleHeight)
			push(export.Command{
				Kind:  export.KindText,
				Text:  s.lines[0],
				Style: export.Style{Size: 8, LineHeight: 4},
			}, 4)
		default:
			push(export.Command{
				Kind:  export.KindText,
				Text:  s.title,
				Style: export.Style{Size: 12, Bold: true, LineHeight: titleHeight},
			}, titleHeight)
			text := strings.Join(s.lines, "\n")
			push(export.Command{
				Kind:  export.KindText,
				Text:  text,
				Style: export.Style{Size: 10, LineHeight: lineHeight},
			}, estimateTextHeight(text))
			push(export.Command{Kind: export.KindRule}, ruleHeight)
		}
	}
	return doc, nil
}

func sectionHeight(s section) float64 {
	switch s.kind {
	case kindQR:
		return titleHeight + qrBlockHeight
	case kindFooter:
		return ruleHeight + 4
	default:
		return titleHeight + estimateTextHeight(strings.Join(s.lines, "\n")) + ruleHeight
	}
}

// estimateTextHeight approximates rendered height from line count, with
// long lines wrapped at the usable width.
func estimateTextHeight(text string) float64 {
	lines := 0.0
	for _, line := range strings.Split(text, "\n") {
		wrapped := 1 + len(line)/charsPerLine
		lines += float64(wrapped)
	}
	return lines * lineHeight
}

func underline(s string) string {
	return strings.Repeat("-", len(s))
}
