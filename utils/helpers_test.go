package utils

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"webp", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}, "webp"},
		{"riff but not webp", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'A', 'V', 'E'}, "unknown"},
		{"gif", []byte("GIF89a\x01\x00"), "gif"},
		{"bmp", []byte{'B', 'M', 0x36, 0x00}, "bmp"},
		{"tiff le", []byte{'I', 'I', 0x2A, 0x00}, "tiff"},
		{"tiff be", []byte{'M', 'M', 0x00, 0x2A}, "tiff"},
		{"svg element", []byte("<svg xmlns=\"x\">"), "svg"},
		{"svg xml prolog", []byte("<?xml version=\"1.0\"?>"), "svg"},
		{"too short", []byte{0xFF, 0xD8}, "unknown"},
		{"garbage", []byte("plain text that is long enough"), "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFormat(tc.data))
		})
	}
}

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, targetW, targetH int
		wantW, wantH                 int
	}{
		{800, 600, 400, 0, 400, 300},
		{800, 600, 0, 300, 400, 300},
		{800, 600, 200, 200, 200, 200},
		{800, 600, 0, 0, 800, 600},
	}
	for _, tc := range tests {
		gotW, gotH := ScaleDimensions(tc.srcW, tc.srcH, tc.targetW, tc.targetH)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Errorf("ScaleDimensions(%d,%d,%d,%d) = %d,%d; want %d,%d",
				tc.srcW, tc.srcH, tc.targetW, tc.targetH, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestCloneBytes(t *testing.T) {
	src := []byte("hello")
	dup := CloneBytes(src)
	src[0] = 'X'
	assert.Equal(t, []byte("hello"), dup)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "10.00MB", HumanSize(10*1024*1024))
	assert.Equal(t, "0.50MB", HumanSize(512*1024))
}

func TestDrainReader(t *testing.T) {
	payload := strings.Repeat("abc", 50_000)
	buf, err := DrainReader(context.Background(), strings.NewReader(payload), 0)
	require.NoError(t, err)
	defer ReleaseBuffer(buf)
	assert.Equal(t, payload, buf.String())
}

func TestDrainReader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DrainReader(ctx, strings.NewReader("data"), 0)
	assert.Error(t, err)
}

func TestLimitedReader(t *testing.T) {
	src := bytes.Repeat([]byte{0xAA}, 100)

	lr := &LimitedReader{R: bytes.NewReader(src), Max: 40}
	read, err := io.ReadAll(lr)
	assert.Error(t, err)
	assert.Len(t, read, 40)

	// Max 0 means unbounded.
	lr = &LimitedReader{R: bytes.NewReader(src)}
	read, err = io.ReadAll(lr)
	require.NoError(t, err)
	assert.Len(t, read, 100)
}
