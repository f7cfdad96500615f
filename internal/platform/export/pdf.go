package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// A4 portrait metrics in millimeters.
const (
	pageWidth    = 210.0
	marginLeft   = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	qrSizeMM     = 30.0
	qrSizePx     = 256
)

// PDF renders a command stream to a PDF document. The zero value is not
// usable; construct with NewPDF. The QR coder is optional: when nil, KindQR
// commands are skipped rather than failing the whole document.
type PDF struct {
	qr QRCoder
}

func NewPDF(qr QRCoder) *PDF {
	return &PDF{qr: qr}
}

func (p *PDF) Render(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.AddPage()

	usableWidth := pageWidth - 2*marginLeft
	qrIndex := 0

	for _, cmd := range doc.Commands {
		switch cmd.Kind {
		case KindText:
			style := "B"
			if !cmd.Style.Bold {
				style = ""
			}
			size := cmd.Style.Size
			if size <= 0 {
				size = 10
			}
			height := cmd.Style.LineHeight
			if height <= 0 {
				height = 5
			}
			pdf.SetFont("Helvetica", style, size)
			pdf.MultiCell(usableWidth, height, cmd.Text, "", "L", false)
		case KindRule:
			y := pdf.GetY() + 1
			pdf.SetDrawColor(120, 120, 120)
			pdf.Line(marginLeft, y, pageWidth-marginLeft, y)
			pdf.SetY(y + 2)
		case KindPageBreak:
			pdf.AddPage()
		case KindQR:
			if p.qr == nil {
				continue
			}
			png, err := p.qr.EncodePNG(cmd.Payload, qrSizePx)
			if err != nil {
				return nil, fmt.Errorf("encode qr: %w", err)
			}
			name := fmt.Sprintf("qr-%d", qrIndex)
			qrIndex++
			pdf.RegisterImageOptionsReader(name,
				gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
			pdf.ImageOptions(name, marginLeft, pdf.GetY(), qrSizeMM, qrSizeMM,
				true, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
