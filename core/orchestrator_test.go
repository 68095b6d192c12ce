package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-intake/config"
	apperrors "github.com/Skryldev/image-intake/errors"
)

func TestSubmit_QueueFull(t *testing.T) {
	cfg := config.Default()
	cfg.QueueSize = 1
	o := NewOrchestrator(cfg, Deps{})
	// Workers never started: the queue fills immediately.

	require.NoError(t, o.Submit(Job{ID: "first"}))
	err := o.Submit(Job{ID: "second"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrWorkerPoolFull)
}

func TestDecodeDataURL(t *testing.T) {
	data, mime, err := decodeDataURL("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("hello"), data)
}

func TestDecodeDataURL_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing scheme", "image/png;base64,aGVsbG8="},
		{"missing comma", "data:image/png;base64"},
		{"missing mime", "data:;base64,aGVsbG8="},
		{"missing encoding", "data:image/png,aGVsbG8="},
		{"wrong encoding", "data:image/png;base32,aGVsbG8="},
		{"invalid payload", "data:image/png;base64,!!!"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := decodeDataURL(tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
		})
	}
}

func TestFormatRoundtrips(t *testing.T) {
	for _, f := range Formats {
		assert.Equal(t, f, FormatFromMIME(f.MIMEType()), "format %s", f)
		assert.NotEmpty(t, f.Extension())
	}
	assert.Equal(t, FormatUnknown, FormatFromMIME("application/pdf"))
	assert.Equal(t, FormatJPEG, FormatFromMIME("image/jpg"))
}
