// Package qr wraps QR image rendering behind a small interface so the link
// service can treat it as a black-box collaborator.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Renderer produces a scannable image for the given text.
type Renderer interface {
	// Render returns a base64 PNG data URL suitable for direct embedding.
	Render(text string) (string, error)
}

type pngRenderer struct {
	size int
}

// NewRenderer returns the default PNG renderer. size <= 0 falls back to
// 256x256 pixels.
func NewRenderer(size int) Renderer {
	if size <= 0 {
		size = defaultSize
	}
	return &pngRenderer{size: size}
}

func (r *pngRenderer) Render(text string) (string, error) {
	png, err := qrcode.Encode(text, qrcode.Medium, r.size)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
