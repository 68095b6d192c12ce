package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/image-intake/config"
	apperrors "github.com/Skryldev/image-intake/errors"
)

// Intake stage names reported to hooks and metrics.
const (
	StageMetadata    = "metadata.extract"
	StageSecurity    = "security.validate"
	StageConstraints = "constraints.enforce"
	StageOptimize    = "transform.optimize"
	StageThumbnail   = "transform.thumbnail"
	StageStore       = "storage.create"
)

const (
	defaultThumbnailWidth  = 200
	defaultThumbnailHeight = 200
)

// SignatureValidator is a minimal interface over security.Validator so that
// core does not import the security package (avoiding a circular dependency).
type SignatureValidator interface {
	Validate(data []byte, declaredMime string) SecurityOutcome
}

// MetadataExtractor is the interface over metadata.Extractor.
type MetadataExtractor interface {
	Extract(ctx context.Context, data []byte) (Metadata, error)
}

// ConstraintEnforcer is the interface over validate.Enforcer.
type ConstraintEnforcer interface {
	Enforce(byteSize int64, meta Metadata, policy UploadPolicy, declaredMime, originalName string) ValidationOutcome
}

// Transformer is the interface over pipeline.Transformer.
type Transformer interface {
	Optimize(ctx context.Context, data []byte, opts OptimizeOptions) ([]byte, Metadata, error)
	GenerateThumbnail(ctx context.Context, data []byte, width, height int) ([]byte, Metadata, error)
}

// Deps collects the injected collaborators of the orchestrator.
type Deps struct {
	Validator   SignatureValidator
	Extractor   MetadataExtractor
	Enforcer    ConstraintEnforcer
	Transformer Transformer
	Codec       Codec
	TempStore   TempStore
}

// Orchestrator composes signature validation, metadata extraction, constraint
// enforcement, transformation, and temp persistence into the intake entry
// points.  It is safe for concurrent use: intake calls share no mutable state
// besides the temp store's entry table.
type Orchestrator struct {
	cfg  config.Config
	deps Deps

	hooks   []Hook
	logger  Logger
	metrics MetricsCollector

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// NewOrchestrator creates an Orchestrator with the given config and
// collaborators.  Call Start() before submitting async jobs; call Stop()
// when done.
func NewOrchestrator(cfg config.Config, deps Deps) *Orchestrator {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		jobQueue: make(chan Job, queueSize),
		shutdown: make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (o *Orchestrator) SetLogger(l Logger) { o.logger = l }

// SetMetrics attaches a metrics collector.
func (o *Orchestrator) SetMetrics(m MetricsCollector) { o.metrics = m }

// AddHook registers a stage observer.
func (o *Orchestrator) AddHook(h Hook) { o.hooks = append(o.hooks, h) }

// Start launches the worker pool.  It is idempotent.
func (o *Orchestrator) Start() {
	o.once.Do(func() {
		workerCount := o.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			o.wg.Add(1)
			go o.worker()
		}
	})
}

// Stop shuts down all workers.
func (o *Orchestrator) Stop() {
	close(o.shutdown)
	o.wg.Wait()
}

// ProcessImage is the primary synchronous entry point.  Domain failures
// (validation, undecodable input, transform or storage trouble) are reported
// inside the ProcessingResult; the error return is reserved for a context
// that was already done.
func (o *Orchestrator) ProcessImage(ctx context.Context, data []byte, mimeType, originalName string, policy UploadPolicy) (*ProcessingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "intake.process", err)
	}

	start := time.Now()
	result := &ProcessingResult{
		StageTimings: make(map[string]time.Duration, 6),
	}

	// --- 1. Metadata -----------------------------------------------------------
	var meta Metadata
	err := o.runStage(ctx, StageMetadata, result.StageTimings, func() error {
		var extractErr error
		meta, extractErr = o.deps.Extractor.Extract(ctx, data)
		return extractErr
	})
	if err != nil {
		// Undecodable input: record a zero-dimension snapshot for diagnostics.
		result.Err = err
		result.OriginalImage = o.newAsset("upload", data, mimeType, originalName, Metadata{}, false, 100)
		result.ProcessingTime = time.Since(start)
		atomic.AddInt64(&o.errorCount, 1)
		o.logFailure("intake.metadata_failed", originalName, err)
		return result, nil
	}

	// --- 2. Signature + constraints -------------------------------------------
	_ = o.runStage(ctx, StageSecurity, result.StageTimings, func() error {
		result.Security = o.deps.Validator.Validate(data, mimeType)
		return nil
	})
	_ = o.runStage(ctx, StageConstraints, result.StageTimings, func() error {
		result.Validation = o.deps.Enforcer.Enforce(int64(len(data)), meta, policy, mimeType, originalName)
		return nil
	})
	valid := result.Validation.IsValid() && result.Security.IsSecure()

	declared := mimeType
	if meta.Format != FormatUnknown {
		declared = meta.Format.MIMEType()
	}
	original := o.newAsset("upload", data, declared, originalName, meta, false, 100)
	result.OriginalImage = original
	result.ProcessedImage = original
	result.CompressionRatio = 1

	// --- 3. Optimize -----------------------------------------------------------
	quality := policy.Quality
	if quality <= 0 {
		quality = o.cfg.DefaultQuality
	}
	needsOptimize := policy.Compress ||
		(policy.MaxWidth > 0 && meta.Width > policy.MaxWidth) ||
		(policy.MaxHeight > 0 && meta.Height > policy.MaxHeight) ||
		policy.ConvertTo != ""
	if needsOptimize && o.deps.Codec.CanTransform(meta.Format) {
		var processed []byte
		var processedMeta Metadata
		err = o.runStage(ctx, StageOptimize, result.StageTimings, func() error {
			var optErr error
			processed, processedMeta, optErr = o.deps.Transformer.Optimize(ctx, data, OptimizeOptions{
				MaxWidth:  policy.MaxWidth,
				MaxHeight: policy.MaxHeight,
				Quality:   quality,
				Format:    policy.ConvertTo,
			})
			return optErr
		})
		if err != nil {
			return o.fail(result, start, originalName, err), nil
		}
		result.ProcessedImage = o.newAsset("processed", processed, processedMeta.Format.MIMEType(), originalName, processedMeta, true, quality)
		if len(processed) > 0 {
			result.CompressionRatio = float64(len(data)) / float64(len(processed))
		}
	}

	// --- 4. Thumbnail ----------------------------------------------------------
	if policy.GenerateThumbnail && o.deps.Codec.CanTransform(meta.Format) {
		tw, th := policy.ThumbnailWidth, policy.ThumbnailHeight
		if tw <= 0 {
			tw = defaultThumbnailWidth
		}
		if th <= 0 {
			th = defaultThumbnailHeight
		}
		var thumb []byte
		var thumbMeta Metadata
		err = o.runStage(ctx, StageThumbnail, result.StageTimings, func() error {
			var thumbErr error
			thumb, thumbMeta, thumbErr = o.deps.Transformer.GenerateThumbnail(ctx, result.ProcessedImage.Data, tw, th)
			return thumbErr
		})
		if err != nil {
			return o.fail(result, start, originalName, err), nil
		}
		result.Thumbnail = o.newAsset("thumb", thumb, thumbMeta.Format.MIMEType(), originalName, thumbMeta, true, 80)
	}

	// --- 5. Persist ------------------------------------------------------------
	// An invalid intake is never persisted: Success always implies the temp id
	// is retrievable, and the scratch area only ever holds accepted assets.
	if valid {
		err = o.runStage(ctx, StageStore, result.StageTimings, func() error {
			id, storeErr := o.deps.TempStore.Create(ctx, result.ProcessedImage, result.Thumbnail)
			result.TempID = id
			return storeErr
		})
		if err != nil {
			return o.fail(result, start, originalName, err), nil
		}
	}

	result.Success = valid
	result.ProcessingTime = time.Since(start)
	if valid {
		atomic.AddInt64(&o.processedCount, 1)
	} else {
		atomic.AddInt64(&o.errorCount, 1)
	}
	if o.metrics != nil {
		o.metrics.RecordThroughput(int64(len(data)))
	}
	if o.logger != nil {
		o.logger.Info("intake.done",
			"name", originalName,
			"success", result.Success,
			"temp_id", result.TempID,
			"duration_ms", result.ProcessingTime.Milliseconds(),
		)
	}
	return result, nil
}

// ProcessImageFromDataURL decodes a self-describing data URL
// (data:mimeType;base64,payload) and delegates to ProcessImage.
func (o *Orchestrator) ProcessImageFromDataURL(ctx context.Context, encoded string, policy UploadPolicy) (*ProcessingResult, error) {
	data, mimeType, err := decodeDataURL(encoded)
	if err != nil {
		return nil, err
	}
	return o.ProcessImage(ctx, data, mimeType, "", policy)
}

// ProcessBatch runs independent intakes concurrently (fan-out / fan-in).
// Per-request failures land in the corresponding ProcessingResult.
func (o *Orchestrator) ProcessBatch(ctx context.Context, requests []IntakeRequest) ([]*ProcessingResult, error) {
	results := make([]*ProcessingResult, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			r, err := o.ProcessImage(gctx, req.Data, req.MimeType, req.OriginalName, req.Policy)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Submit enqueues an async job.  Returns ErrWorkerPoolFull if the queue is full.
func (o *Orchestrator) Submit(job Job) error {
	select {
	case o.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryInput, "intake.submit", apperrors.ErrWorkerPoolFull)
	}
}

// ProcessedCount returns the total number of successful intakes.
func (o *Orchestrator) ProcessedCount() int64 { return atomic.LoadInt64(&o.processedCount) }

// ErrorCount returns the total number of failed or rejected intakes.
func (o *Orchestrator) ErrorCount() int64 { return atomic.LoadInt64(&o.errorCount) }

// ── worker pool internals ─────────────────────────────────────────────────────

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.shutdown:
			return
		case job, ok := <-o.jobQueue:
			if !ok {
				return
			}
			o.processJob(job)
		}
	}
}

func (o *Orchestrator) processJob(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := o.cfg.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := o.ProcessImage(ctx, job.Request.Data, job.Request.MimeType, job.Request.OriginalName, job.Request.Policy)
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Result: result, Err: err}
	}
}

// ── stage plumbing ────────────────────────────────────────────────────────────

func (o *Orchestrator) runStage(ctx context.Context, stage string, timings map[string]time.Duration, fn func() error) error {
	o.notifyBefore(ctx, stage)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	timings[stage] = elapsed
	o.notifyAfter(ctx, stage, elapsed, err)
	if o.metrics != nil {
		o.metrics.RecordStageTime(stage, elapsed)
		if err != nil {
			o.metrics.RecordError(stage, categoryOf(err))
		}
	}
	return err
}

func (o *Orchestrator) fail(result *ProcessingResult, start time.Time, name string, err error) *ProcessingResult {
	result.Success = false
	result.Err = err
	result.ProcessingTime = time.Since(start)
	atomic.AddInt64(&o.errorCount, 1)
	o.logFailure("intake.failed", name, err)
	return result
}

func (o *Orchestrator) logFailure(msg, name string, err error) {
	if o.logger != nil {
		o.logger.Error(msg, "name", name, "error", err.Error())
	}
}

func (o *Orchestrator) notifyBefore(ctx context.Context, stage string) {
	for _, h := range o.hooks {
		h.BeforeStage(ctx, stage)
	}
}

func (o *Orchestrator) notifyAfter(ctx context.Context, stage string, d time.Duration, err error) {
	for _, h := range o.hooks {
		h.AfterStage(ctx, stage, d, err)
	}
}

// newAsset builds an immutable ImageAsset with a system-assigned filename.
// The caller-supplied name is carried as advisory metadata only.
func (o *Orchestrator) newAsset(prefix string, data []byte, mimeType, originalName string, meta Metadata, transformed bool, quality int) *ImageAsset {
	id := uuid.NewString()
	ext := meta.Format.Extension()
	return &ImageAsset{
		ID:               id,
		OriginalName:     originalName,
		AssignedFileName: fmt.Sprintf("%s-%s.%s", prefix, id[:8], ext),
		MimeType:         mimeType,
		ByteSize:         int64(len(data)),
		Width:            meta.Width,
		Height:           meta.Height,
		Data:             data,
		UploadedAt:       time.Now(),
		IsTransformed:    transformed,
		QualityLevel:     quality,
	}
}

func categoryOf(err error) string {
	var ie *apperrors.IntakeError
	if errors.As(err, &ie) {
		return string(ie.Category)
	}
	return "internal"
}

// decodeDataURL splits a data:mime;base64,payload envelope into its raw
// bytes and MIME type.
func decodeDataURL(encoded string) ([]byte, string, error) {
	const scheme = "data:"
	if !strings.HasPrefix(encoded, scheme) {
		return nil, "", apperrors.New(apperrors.CategoryInput, "intake.decode_data_url", apperrors.ErrMalformedDataURL)
	}
	rest := encoded[len(scheme):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", apperrors.New(apperrors.CategoryInput, "intake.decode_data_url", apperrors.ErrMalformedDataURL)
	}
	header, payload := rest[:comma], rest[comma+1:]

	mimeType := header
	encoding := ""
	if semi := strings.IndexByte(header, ';'); semi >= 0 {
		mimeType = header[:semi]
		encoding = header[semi+1:]
	}
	if mimeType == "" || encoding != "base64" {
		return nil, "", apperrors.New(apperrors.CategoryInput, "intake.decode_data_url", apperrors.ErrMalformedDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CategoryInput, "intake.decode_data_url", err)
	}
	return data, mimeType, nil
}
