package export

import qrcode "github.com/skip2/go-qrcode"

// QR encodes report verification payloads as QR PNGs.
type QR struct{}

func NewQR() *QR { return &QR{} }

func (*QR) EncodePNG(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}
