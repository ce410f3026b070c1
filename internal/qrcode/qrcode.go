// Package qrcode renders the PNG QR codes printed on restaurant tables.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultSize is the PNG edge length in pixels.
	DefaultSize = 512

	dataURIPrefix = "data:image/png;base64,"
)

// Generator encodes URLs as QR code PNGs.
type Generator struct {
	Size  int
	Level goqrcode.RecoveryLevel
}

// NewGenerator returns a Generator with medium error recovery, which keeps
// codes readable when partly covered or worn.
func NewGenerator() *Generator {
	return &Generator{Size: DefaultSize, Level: goqrcode.Medium}
}

// PNG encodes target as a PNG image.
func (g *Generator) PNG(target string) ([]byte, error) {
	if target == "" {
		return nil, errors.New("qrcode: empty target")
	}
	png, err := goqrcode.Encode(target, g.Level, g.Size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode %q: %w", target, err)
	}
	return png, nil
}

// DataURI encodes target and returns the PNG as a data: URI reference.
func (g *Generator) DataURI(target string) (string, error) {
	png, err := g.PNG(target)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeDataURI returns the PNG bytes stored in a data URI produced by DataURI.
func DecodeDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return nil, errors.New("qrcode: not a PNG data URI")
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataURIPrefix))
	if err != nil {
		return nil, fmt.Errorf("qrcode: decode data URI: %w", err)
	}
	return png, nil
}
