// Package finalize turns the ephemeral state of a finished session into
// durable records: the cached audio chunks become one uploaded MP3, the
// cached segments become a persisted transcript, and the session moves to
// completed.
//
// Loading the session, draining the ephemeral store, and the final status
// write are terminal; every other step failure is collected as a warning on
// the result so a session never wedges in processing.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/observe"
	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/internal/summary"
	"github.com/intrascribe/intrascribe/pkg/audio"
	"github.com/intrascribe/intrascribe/pkg/objectstore"
	"github.com/intrascribe/intrascribe/pkg/types"
)

// ModelIDAgent marks transcripts assembled from the realtime agent's cached
// segments.
const ModelIDAgent = "agent_microservice"

// Store is the slice of the ephemeral store the pipeline drains and clears.
type Store interface {
	ListTranscriptions(ctx context.Context, sessionID string) ([]types.TranscriptionSegment, error)
	ListAudio(ctx context.Context, sessionID string) ([]types.AudioChunk, error)
	ClearTranscriptions(ctx context.Context, sessionID string) error
	ClearAudio(ctx context.Context, sessionID string) error
}

// Transcoder converts an assembled WAV file into the uploaded MP3.
// *audio.Transcoder satisfies it.
type Transcoder interface {
	ToMP3(ctx context.Context, srcPath, dstPath string) error
}

// Result reports what one finalization produced.
type Result struct {
	SessionID        string   `json:"session_id"`
	Status           string   `json:"status"`
	TranscriptID     string   `json:"transcript_id,omitempty"`
	AudioPath        string   `json:"audio_path,omitempty"`
	PublicURL        string   `json:"public_url,omitempty"`
	DurationSeconds  int      `json:"duration_seconds,omitempty"`
	Title            string   `json:"title,omitempty"`
	AlreadyCompleted bool     `json:"already_completed,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithSummaries enables best-effort title and summary generation after a
// successful transcript persist.
func WithSummaries(svc *summary.Service) Option {
	return func(p *Pipeline) {
		p.summaries = svc
	}
}

// WithTempDir overrides the scratch directory for WAV and MP3 assembly.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(p *Pipeline) {
		p.tempDir = dir
	}
}

// WithMetrics sets the metrics sink for run counters and latency.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// Pipeline finalizes sessions. Safe for concurrent use; runs for the same
// session serialize on a per-session lock.
type Pipeline struct {
	registry  registry.Store
	cache     Store
	objects   objectstore.Store
	transcode Transcoder
	bucket    string
	summaries *summary.Service
	tempDir   string
	log       *slog.Logger
	metrics   *observe.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Pipeline uploading into the given object store bucket.
func New(reg registry.Store, cache Store, objects objectstore.Store, transcode Transcoder, bucket string, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:  reg,
		cache:     cache,
		objects:   objects,
		transcode: transcode,
		bucket:    bucket,
		tempDir:   os.TempDir(),
		log:       slog.Default(),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// sessionLock returns the mutex serializing runs for one session.
func (p *Pipeline) sessionLock(sessionID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[sessionID] = l
	}
	return l
}

// Finalize runs the pipeline for one session. callerID must own the session;
// an empty callerID marks an internal-service call.
func (p *Pipeline) Finalize(ctx context.Context, sessionID, callerID string) (*Result, error) {
	lock := p.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	outcome := "failed"
	defer func() {
		if p.metrics != nil {
			p.metrics.FinalizeDuration.Record(ctx, time.Since(started).Seconds())
			p.metrics.RecordFinalization(ctx, outcome)
		}
	}()

	log := p.log.With("session", sessionID)
	res := &Result{SessionID: sessionID}

	// Step 1: load and authorize.
	sess, err := p.registry.SessionByID(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	if callerID != "" && sess.OwnerID != callerID {
		return nil, fmt.Errorf("finalize: session %s: caller %s: %w", sessionID, callerID, fault.ErrForbidden)
	}

	// A completed session short-circuits; only the store clear repeats.
	if sess.Status == registry.StatusCompleted {
		res.Status = string(registry.StatusCompleted)
		res.AlreadyCompleted = true
		p.clearStore(ctx, sessionID, res)
		outcome = "short_circuit"
		return res, nil
	}

	// Step 2: drain the ephemeral store. An unreachable store is terminal:
	// completing here would silently discard the cached capture, so the
	// session keeps its prior status and the caller retries.
	segments, err := p.cache.ListTranscriptions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finalize: session %s: reading cached transcription: %w", sessionID, err)
	}
	chunks, err := p.cache.ListAudio(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finalize: session %s: reading cached audio: %w", sessionID, err)
	}

	processing := registry.StatusProcessing
	if _, err := p.registry.UpdateSession(ctx, sessionID, registry.Update{Status: &processing, ViaPipeline: true}, ""); err != nil {
		return nil, fmt.Errorf("finalize: session %s: enter processing: %w", sessionID, err)
	}

	// Step 3: audio assembly.
	var (
		audioOK  bool
		duration int
	)
	if len(chunks) > 0 {
		duration, err = p.assembleAudio(ctx, sess, chunks, res)
		if err != nil {
			p.warn(res, log, "audio assembly failed", err)
		} else {
			audioOK = true
		}
	} else {
		log.Info("no cached audio, skipping audio assembly")
	}

	// Step 4: transcript assembly.
	var transcript *registry.Transcript
	if len(segments) > 0 {
		transcript, err = p.assembleTranscript(ctx, sess, segments)
		if err != nil {
			p.warn(res, log, "transcript persist failed", err)
		} else {
			res.TranscriptID = transcript.ID
		}
	} else {
		log.Info("no cached transcription, skipping transcript assembly")
	}

	// Supplement: title and summary, best effort.
	if transcript != nil && p.summaries != nil {
		p.generateSummary(ctx, sess, transcript, res, log)
	}

	// Step 5: completed. This write is terminal on failure.
	upd := registry.Update{ViaPipeline: true}
	completed := registry.StatusCompleted
	upd.Status = &completed
	if audioOK {
		upd.DurationSeconds = &duration
		now := time.Now().UTC()
		upd.EndedAt = &now
		res.DurationSeconds = duration
	}
	if res.Title != "" && sess.Title == "" {
		upd.Title = &res.Title
	}
	if _, err := p.registry.UpdateSession(ctx, sessionID, upd, ""); err != nil {
		return nil, fmt.Errorf("finalize: session %s: complete: %w", sessionID, err)
	}
	res.Status = string(registry.StatusCompleted)

	// Step 6: clear the ephemeral store.
	p.clearStore(ctx, sessionID, res)

	log.Info("session finalized",
		"duration_s", duration, "transcript", res.TranscriptID, "warnings", len(res.Warnings))
	outcome = "completed"
	return res, nil
}

// assembleAudio concatenates the cached chunks, transcodes them to MP3, and
// uploads the result. Returns the measured duration in whole seconds.
func (p *Pipeline) assembleAudio(ctx context.Context, sess *registry.Session, chunks []types.AudioChunk, res *Result) (int, error) {
	sampleRate := chunks[0].SampleRateHz
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	var total int
	for _, c := range chunks {
		total += len(c.Samples)
	}
	samples := make([]int16, 0, total)
	for _, c := range chunks {
		samples = append(samples, c.Samples...)
	}

	scratch := filepath.Join(p.tempDir, "finalize_"+sess.ID+"_"+uuid.NewString())
	wavPath := scratch + ".wav"
	mp3Path := scratch + ".mp3"
	defer os.Remove(wavPath)
	defer os.Remove(mp3Path)

	wav := audio.EncodeWAV(audio.Int16sToBytes(samples), sampleRate, 1)
	if err := os.WriteFile(wavPath, wav, 0o600); err != nil {
		return 0, fmt.Errorf("write wav: %w", err)
	}
	if err := p.transcode.ToMP3(ctx, wavPath, mp3Path); err != nil {
		return 0, err
	}
	mp3, err := os.ReadFile(mp3Path)
	if err != nil {
		return 0, fmt.Errorf("read mp3: %w", err)
	}

	path := fmt.Sprintf("raw/%s/%s_%d.mp3", sess.OwnerID, sess.ID, time.Now().Unix())
	upload, err := p.objects.Upload(ctx, p.bucket, path, mp3, "audio/mpeg")
	if err != nil {
		return 0, fmt.Errorf("upload: %w", err)
	}
	res.AudioPath = upload.Path
	res.PublicURL = upload.PublicURL

	duration := total / sampleRate
	file := &registry.AudioFile{
		SessionID:       sess.ID,
		OwnerID:         sess.OwnerID,
		StoragePath:     upload.Path,
		PublicURL:       upload.PublicURL,
		SizeBytes:       int64(len(mp3)),
		DurationSeconds: duration,
		Format:          "mp3",
		SampleRateHz:    sampleRate,
		UploadStatus:    registry.UploadCompleted,
	}
	if err := p.registry.SaveAudioFile(ctx, file); err != nil {
		return 0, fmt.Errorf("save audio file row: %w", err)
	}
	return duration, nil
}

// assembleTranscript joins the cached segments into one transcript row.
func (p *Pipeline) assembleTranscript(ctx context.Context, sess *registry.Session, segments []types.TranscriptionSegment) (*registry.Transcript, error) {
	var parts []string
	kept := make([]types.TranscriptionSegment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		parts = append(parts, seg.Text)
		kept = append(kept, seg)
	}
	content := strings.Join(parts, " ")

	t := &registry.Transcript{
		SessionID: sess.ID,
		Content:   content,
		Segments:  kept,
		Language:  sess.Language,
		WordCount: len(strings.Fields(content)),
		ModelID:   ModelIDAgent,
	}
	if err := p.registry.SaveTranscript(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// generateSummary asks the summary service for a title and summary and
// persists them. All failures are warnings.
func (p *Pipeline) generateSummary(ctx context.Context, sess *registry.Session, transcript *registry.Transcript, res *Result, log *slog.Logger) {
	var templateContent string
	if sess.TemplateID != "" {
		tpl, err := p.registry.TemplateByID(ctx, sess.TemplateID, "")
		if err != nil {
			p.warn(res, log, "loading summary template failed", err)
		} else {
			templateContent = tpl.Content
		}
	}

	sum := p.summaries.Summarize(ctx, transcript.Content, templateContent)
	if sum.Summary != "" {
		err := p.registry.SaveSummary(ctx, &registry.AISummary{
			SessionID:       sess.ID,
			TranscriptionID: transcript.ID,
			Summary:         sum.Summary,
			KeyPoints:       sum.KeyPoints,
			ModelUsed:       sum.Model,
		})
		if err != nil {
			p.warn(res, log, "saving summary failed", err)
		}
	}
	if sess.Title == "" {
		res.Title = p.summaries.Title(ctx, transcript.Content)
	}
}

func (p *Pipeline) clearStore(ctx context.Context, sessionID string, res *Result) {
	if err := p.cache.ClearTranscriptions(ctx, sessionID); err != nil {
		p.warn(res, p.log, "clearing cached transcription failed", err)
	}
	if err := p.cache.ClearAudio(ctx, sessionID); err != nil {
		p.warn(res, p.log, "clearing cached audio failed", err)
	}
}

func (p *Pipeline) warn(res *Result, log *slog.Logger, msg string, err error) {
	log.Warn(msg, "error", err)
	res.Warnings = append(res.Warnings, msg+": "+err.Error())
}
