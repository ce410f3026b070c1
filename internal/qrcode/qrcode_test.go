package qrcode

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_DataURIRoundTrip(t *testing.T) {
	g := NewGenerator()
	uri, err := g.DataURI("https://menu.example.com/menu/blue-cafe")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := DecodeDataURI(uri)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
}

func TestGenerator_EmptyTarget(t *testing.T) {
	_, err := NewGenerator().PNG("")
	assert.Error(t, err)
}

func TestDecodeDataURI_RejectsOtherSchemes(t *testing.T) {
	_, err := DecodeDataURI("https://cdn.example.com/qr.png")
	assert.Error(t, err)
}
