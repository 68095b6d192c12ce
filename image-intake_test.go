package imageintake_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imageintake "github.com/Skryldev/image-intake"
	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
	"github.com/Skryldev/image-intake/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newRedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newBluePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 50, G: 50, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newService(t *testing.T) *imageintake.Service {
	t.Helper()
	cfg := imageintake.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.QueueSize = 16
	cfg.TempDir = t.TempDir()
	cfg.PermanentDir = t.TempDir()

	svc, err := imageintake.New(cfg)
	require.NoError(t, err)
	svc.Start()
	t.Cleanup(svc.Stop)
	return svc
}

// ── Intake scenarios ──────────────────────────────────────────────────────────

func TestIntake_ValidUpload(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 800, 600)

	result, err := svc.ProcessImage(context.Background(), raw, "image/jpeg", "photo.jpg")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Validation.IsValid())
	assert.True(t, result.Security.IsSecure())
	require.NotEmpty(t, result.TempID)

	require.NotNil(t, result.OriginalImage)
	assert.Equal(t, 800, result.OriginalImage.Width)
	assert.Equal(t, "photo.jpg", result.OriginalImage.OriginalName)
	assert.NotEqual(t, "photo.jpg", result.OriginalImage.AssignedFileName)

	require.NotNil(t, result.Thumbnail)
	assert.Equal(t, 200, result.Thumbnail.Width)
	assert.Equal(t, 200, result.Thumbnail.Height)

	// Stage timings were recorded for the full path.
	for _, stage := range []string{core.StageMetadata, core.StageSecurity, core.StageConstraints, core.StageStore} {
		_, ok := result.StageTimings[stage]
		assert.True(t, ok, "missing stage timing %s", stage)
	}

	obj, err := svc.GetTempImage(context.Background(), result.TempID)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, result.ProcessedImage.Data, obj.Data)
}

func TestIntake_OversizeFileRejected(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 200, 200)

	policy := svc.DefaultPolicy()
	policy.MaxBytes = 100 // far below any real JPEG

	result, err := svc.ProcessImageWithPolicy(context.Background(), raw, "image/jpeg", "big.jpg", policy)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Empty(t, result.TempID, "rejected uploads must never be persisted")
	require.Len(t, result.Validation.Errors, 1)
	assert.Equal(t, core.FindingFileTooLarge, result.Validation.Errors[0].Kind)
}

func TestIntake_OversizeDimensionsStillTransformed(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 4000, 3000)

	policy := svc.DefaultPolicy()
	policy.MaxWidth = 2000
	policy.MaxHeight = 2000
	policy.Compress = true

	result, err := svc.ProcessImageWithPolicy(context.Background(), raw, "image/jpeg", "huge.jpg", policy)
	require.NoError(t, err)

	// Dimension overflow is a hard validation error, so the intake as a whole
	// is rejected and nothing lands in the scratch area.
	assert.False(t, result.Success)
	assert.Empty(t, result.TempID)
	assert.False(t, result.Validation.IsValid())

	// The transform stages still ran: the caller gets back a compliant
	// rendition it can resubmit or preview.
	require.NotNil(t, result.ProcessedImage)
	assert.LessOrEqual(t, result.ProcessedImage.Width, 2000)
	assert.LessOrEqual(t, result.ProcessedImage.Height, 2000)
	assert.Greater(t, result.CompressionRatio, 1.0)
	require.NotNil(t, result.Thumbnail)
	assert.Equal(t, 200, result.Thumbnail.Width)
}

func TestIntake_SignatureMismatchRejected(t *testing.T) {
	svc := newService(t)
	raw := newBluePNG(t, 100, 100)

	// PNG bytes declared as JPEG.
	result, err := svc.ProcessImage(context.Background(), raw, "image/jpeg", "spoof.jpg")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Empty(t, result.TempID)
	assert.False(t, result.Security.IsSecure())
	require.NotEmpty(t, result.Security.Threats)
	assert.Equal(t, core.ThreatSignatureMismatch, result.Security.Threats[0].Kind)
	assert.Equal(t, core.FormatPNG, result.Security.DetectedFormat)
}

func TestIntake_UndecodableInput(t *testing.T) {
	svc := newService(t)

	result, err := svc.ProcessImage(context.Background(), []byte("definitely not an image"), "image/jpeg", "junk.jpg")
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.True(t, apperrors.IsCategory(result.Err, apperrors.CategoryMetadata))
	require.NotNil(t, result.OriginalImage)
	assert.Zero(t, result.OriginalImage.Width)
	assert.Empty(t, result.TempID)
}

func TestIntake_ConvertToWebP(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 300, 200)

	policy := svc.DefaultPolicy()
	policy.ConvertTo = core.FormatWebP

	result, err := svc.ProcessImageWithPolicy(context.Background(), raw, "image/jpeg", "banner.jpg", policy)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "image/webp", result.ProcessedImage.MimeType)

	// The emitted bytes carry a real WebP container signature.
	data := result.ProcessedImage.Data
	require.GreaterOrEqual(t, len(data), 12)
	assert.Equal(t, []byte("RIFF"), data[0:4])
	assert.Equal(t, []byte("WEBP"), data[8:12])
}

func TestIntake_DataURL(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 120, 80)
	encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	result, err := svc.ProcessImageFromDataURL(context.Background(), encoded)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 120, result.OriginalImage.Width)
}

func TestIntake_DataURLMalformed(t *testing.T) {
	svc := newService(t)

	for _, bad := range []string{
		"image/jpeg;base64,xxxx",       // missing scheme
		"data:image/jpeg;base64",       // no comma
		"data:;base64,xxxx",            // no mime type
		"data:image/jpeg,xxxx",         // no encoding
		"data:image/jpeg;base64,!!!!!", // invalid base64
	} {
		_, err := svc.ProcessImageFromDataURL(context.Background(), bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestIntake_FromReader(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 100, 100)

	result, err := svc.ProcessImageFromReader(context.Background(), bytes.NewReader(raw), "image/jpeg", "stream.jpg")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestIntake_PromoteLifecycle(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 300, 300)

	result, err := svc.ProcessImage(context.Background(), raw, "image/jpeg", "keep.jpg")
	require.NoError(t, err)
	require.True(t, result.Success)

	promo, err := svc.Promote(context.Background(), result.TempID)
	require.NoError(t, err)
	require.NotNil(t, promo)
	assert.NotEmpty(t, promo.URL)
	assert.NotEmpty(t, promo.ThumbnailURL)

	// Promotion evicts the scratch entry.
	obj, err := svc.GetTempImage(context.Background(), result.TempID)
	require.NoError(t, err)
	assert.Nil(t, obj)

	// Promoting again is a clean miss, not an error.
	promo, err = svc.Promote(context.Background(), result.TempID)
	require.NoError(t, err)
	assert.Nil(t, promo)
}

func TestIntake_DeleteTemp(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 100, 100)

	result, err := svc.ProcessImage(context.Background(), raw, "image/jpeg", "drop.jpg")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTempImage(context.Background(), result.TempID))
	require.NoError(t, svc.DeleteTempImage(context.Background(), result.TempID))

	obj, err := svc.GetTempImage(context.Background(), result.TempID)
	require.NoError(t, err)
	assert.Nil(t, obj)
}

// ── Batch + async ─────────────────────────────────────────────────────────────

func TestIntake_Batch(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 100, 100)

	requests := make([]core.IntakeRequest, 5)
	for i := range requests {
		requests[i] = core.IntakeRequest{
			Data: raw, MimeType: "image/jpeg", OriginalName: "batch.jpg",
			Policy: svc.DefaultPolicy(),
		}
	}

	results, err := svc.ProcessBatch(context.Background(), requests)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		require.NotNil(t, r, "result %d", i)
		assert.True(t, r.Success, "result %d", i)
		assert.NotEmpty(t, r.TempID, "result %d", i)
	}
}

func TestIntake_AsyncJob(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 100, 100)

	resultCh := make(chan core.JobResult, 1)
	err := svc.Submit(core.Job{
		ID:  "test-job-1",
		Ctx: context.Background(),
		Request: core.IntakeRequest{
			Data: raw, MimeType: "image/jpeg", OriginalName: "async.jpg",
			Policy: svc.DefaultPolicy(),
		},
		ResultCh: resultCh,
	})
	require.NoError(t, err)

	select {
	case res := <-resultCh:
		require.NoError(t, res.Err)
		assert.Equal(t, "test-job-1", res.JobID)
		assert.True(t, res.Result.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("async job timed out")
	}
}

// ── Hooks / metrics ───────────────────────────────────────────────────────────

func TestIntake_MetricsHook(t *testing.T) {
	svc := newService(t)
	m := hooks.NewInMemoryMetrics()
	svc.AddHook(hooks.NewMetricsHook(m))

	raw := newRedJPEG(t, 100, 100)
	_, err := svc.ProcessImage(context.Background(), raw, "image/jpeg", "m.jpg")
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.NotZero(t, snap.StageCalls[core.StageMetadata])
	assert.NotZero(t, snap.StageCalls[core.StageSecurity])
	assert.NotZero(t, snap.StageCalls[core.StageConstraints])
}

func TestIntake_Stats(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 100, 100)

	_, err := svc.ProcessImage(context.Background(), raw, "image/jpeg", "ok.jpg")
	require.NoError(t, err)
	_, err = svc.ProcessImage(context.Background(), []byte("garbage"), "image/jpeg", "bad.jpg")
	require.NoError(t, err)

	processed, errCount := svc.Stats()
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(1), errCount)
}

func TestIntake_ContextCancelled(t *testing.T) {
	svc := newService(t)
	raw := newRedJPEG(t, 100, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessImage(ctx, raw, "image/jpeg", "late.jpg")
	assert.Error(t, err)
}
