// Package retrans re-runs transcription over a session's persisted media
// with speaker diarization, replacing the session's current transcript. Work
// is handed to a background goroutine immediately; callers poll the task
// tracker for progress and the result.
package retrans

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/observe"
	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/internal/task"
	"github.com/intrascribe/intrascribe/pkg/audio"
	"github.com/intrascribe/intrascribe/pkg/objectstore"
	"github.com/intrascribe/intrascribe/pkg/provider/diarize"
	"github.com/intrascribe/intrascribe/pkg/provider/stt"
	"github.com/intrascribe/intrascribe/pkg/types"
)

const (
	// silenceRMS is the normalised energy below which a slice is skipped.
	silenceRMS = 0.01

	// sttRate is the canonical sample rate for per-segment STT payloads.
	sttRate = 24000

	defaultMaxConcurrentSTT = 4

	fallbackSpeaker = "Speaker 1"

	// TaskKindRetranscription and TaskKindBatchImport name the tracked jobs.
	TaskKindRetranscription = "retranscription"
	TaskKindBatchImport     = "batch_import"
)

// Progress steps, in pipeline order.
const (
	stepInitializing    = "initializing"
	stepFindingAudio    = "finding_audio"
	stepDownloading     = "downloading_audio"
	stepCleaningOldData = "cleaning_old_data"
	stepProcessing      = "processing_audio"
	stepCompleted       = "completed"
)

// Transcoder is the ffmpeg surface the service needs. *audio.Transcoder
// satisfies it.
type Transcoder interface {
	ToWAV(ctx context.Context, srcPath, dstPath string) error
	ToMP3(ctx context.Context, srcPath, dstPath string) error
}

// TaskResult is the payload stored on a successful task.
type TaskResult struct {
	TranscriptionID string  `json:"transcription_id"`
	SessionID       string  `json:"session_id,omitempty"`
	DurationSeconds float64 `json:"duration_s"`
	TotalSegments   int     `json:"total_segments"`
	SpeakerCount    int     `json:"speaker_count"`
}

// Option configures a [Service].
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithMaxConcurrentSTT bounds the per-segment STT fan-out. Defaults to 4.
func WithMaxConcurrentSTT(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrentSTT = n
		}
	}
}

// WithModelID sets the model identity written on produced transcripts.
func WithModelID(id string) Option {
	return func(s *Service) {
		s.modelID = id
	}
}

// WithTempDir overrides the scratch directory. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *Service) {
		s.tempDir = dir
	}
}

// WithMetrics sets the metrics sink for STT and diarization latency.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// Service runs retranscription and batch-import jobs.
type Service struct {
	registry  registry.Store
	objects   objectstore.Store
	bucket    string
	tasks     *task.Tracker
	stt       stt.Client
	diarize   diarize.Client
	transcode Transcoder

	maxConcurrentSTT int
	modelID          string
	tempDir          string
	log              *slog.Logger
	metrics          *observe.Metrics

	// wg tracks background jobs so shutdown can wait for them.
	wg sync.WaitGroup
}

// New creates a Service downloading media from the given bucket.
func New(reg registry.Store, objects objectstore.Store, bucket string, tasks *task.Tracker,
	sttClient stt.Client, diarizeClient diarize.Client, transcode Transcoder, opts ...Option) *Service {
	s := &Service{
		registry:         reg,
		objects:          objects,
		bucket:           bucket,
		tasks:            tasks,
		stt:              sttClient,
		diarize:          diarizeClient,
		transcode:        transcode,
		maxConcurrentSTT: defaultMaxConcurrentSTT,
		modelID:          "agent_microservice",
		tempDir:          os.TempDir(),
		log:              slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Wait blocks until all background jobs have finished. Used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Retranscribe authorizes the caller, allocates a task, and returns its id
// immediately; processing continues in the background.
func (s *Service) Retranscribe(ctx context.Context, sessionID, callerID, language string) (string, error) {
	sess, err := s.registry.SessionByID(ctx, sessionID, "")
	if err != nil {
		return "", err
	}
	if callerID != "" && sess.OwnerID != callerID {
		return "", fmt.Errorf("retrans: session %s: caller %s: %w", sessionID, callerID, fault.ErrForbidden)
	}
	if language == "" {
		language = sess.Language
	}

	taskID := s.tasks.Create(TaskKindRetranscription, sessionID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRetranscription(context.Background(), taskID, sess, language)
	}()
	return taskID, nil
}

// cancelled checks the cooperative cancellation flag between steps.
func (s *Service) cancelled(taskID string) bool {
	return s.tasks.IsCancelled(taskID)
}

func (s *Service) runRetranscription(ctx context.Context, taskID string, sess *registry.Session, language string) {
	log := s.log.With("task", taskID, "session", sess.ID)

	if err := s.tasks.Start(taskID); err != nil {
		log.Info("task not started", "error", err)
		return
	}
	s.tasks.SetProgress(taskID, stepInitializing, 0)

	// Locate media.
	s.tasks.SetProgress(taskID, stepFindingAudio, 15)
	files, err := s.registry.AudioFilesBySession(ctx, sess.ID)
	if err != nil {
		s.fail(taskID, log, fmt.Errorf("finding audio: %w", err))
		return
	}
	var file *registry.AudioFile
	for _, f := range files {
		if f.UploadStatus == registry.UploadCompleted {
			file = f
			break
		}
	}
	if file == nil {
		s.fail(taskID, log, fmt.Errorf("session %s has no uploaded media: %w", sess.ID, fault.ErrNoMedia))
		return
	}
	if s.cancelled(taskID) {
		log.Info("task cancelled before download")
		return
	}

	// Download.
	s.tasks.SetProgress(taskID, stepDownloading, 25)
	data, err := s.objects.Download(ctx, s.bucket, file.StoragePath)
	if err != nil {
		s.fail(taskID, log, fmt.Errorf("downloading media: %w", err))
		return
	}
	if s.cancelled(taskID) {
		log.Info("task cancelled after download")
		return
	}

	// Clean prior transcripts.
	s.tasks.SetProgress(taskID, stepCleaningOldData, 35)
	if err := s.registry.DeleteTranscripts(ctx, sess.ID); err != nil {
		s.fail(taskID, log, fmt.Errorf("deleting prior transcripts: %w", err))
		return
	}
	if s.cancelled(taskID) {
		log.Info("task cancelled before processing")
		return
	}

	// The session rides in processing for the duration of the core; it is
	// restored to completed on every exit path.
	processing := registry.StatusProcessing
	if _, err := s.registry.UpdateSession(ctx, sess.ID, registry.Update{Status: &processing, ViaPipeline: true}, ""); err != nil {
		log.Warn("entering processing failed", "error", err)
	} else {
		defer func() {
			completed := registry.StatusCompleted
			if _, err := s.registry.UpdateSession(ctx, sess.ID, registry.Update{Status: &completed, ViaPipeline: true}, ""); err != nil {
				log.Warn("restoring completed failed", "error", err)
			}
		}()
	}

	s.tasks.SetProgress(taskID, stepProcessing, 50)
	core, err := s.process(ctx, taskID, data, file.Format, sess.ID, language)
	if err != nil {
		s.fail(taskID, log, err)
		return
	}
	if core == nil {
		// Cancelled inside the core; no transcript is written.
		log.Info("task cancelled during processing")
		return
	}

	transcript := &registry.Transcript{
		SessionID: sess.ID,
		Content:   core.Content,
		Segments:  core.Segments,
		Language:  language,
		WordCount: len(strings.Fields(core.Content)),
		ModelID:   s.modelID,
	}
	if err := s.registry.ReplaceTranscript(ctx, transcript); err != nil {
		s.fail(taskID, log, fmt.Errorf("storing transcript: %w", err))
		return
	}

	s.tasks.SetProgress(taskID, stepCompleted, 100)
	s.succeed(taskID, log, TaskResult{
		TranscriptionID: transcript.ID,
		DurationSeconds: core.DurationSeconds,
		TotalSegments:   len(core.Segments),
		SpeakerCount:    core.SpeakerCount,
	})
}

func (s *Service) fail(taskID string, log *slog.Logger, err error) {
	log.Error("task failed", "error", err)
	if terr := s.tasks.Fail(taskID, err); terr != nil {
		log.Info("task result dropped", "error", terr)
	}
}

func (s *Service) succeed(taskID string, log *slog.Logger, result TaskResult) {
	if terr := s.tasks.Succeed(taskID, result); terr != nil {
		log.Info("task result dropped", "error", terr)
		return
	}
	log.Info("task succeeded",
		"segments", result.TotalSegments, "speakers", result.SpeakerCount, "duration_s", result.DurationSeconds)
}

// coreResult is what the processing core emits.
type coreResult struct {
	Content         string
	Segments        []types.TranscriptionSegment
	DurationSeconds float64
	SpeakerCount    int
}

// process runs the speaker-aware transcription core. A nil result with nil
// error means the task was cancelled mid-core.
func (s *Service) process(ctx context.Context, taskID string, data []byte, format, sessionID, language string) (*coreResult, error) {
	if format == "" {
		format = "mp3"
	}

	scratch := filepath.Join(s.tempDir, "retrans_"+sessionID+"_"+uuid.NewString())
	srcPath := scratch + "." + format
	if err := os.WriteFile(srcPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing media to scratch: %w", err)
	}
	defer os.Remove(srcPath)

	// Normalise to WAV for duration measurement and slicing.
	wavPath := srcPath
	if !audio.IsWAV(data) {
		wavPath = scratch + ".wav"
		if err := s.transcode.ToWAV(ctx, srcPath, wavPath); err != nil {
			return nil, fmt.Errorf("converting media to wav: %w", err)
		}
		defer os.Remove(wavPath)
	}

	wavBytes, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	info, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	duration := info.DurationSeconds()

	// Diarize, with the single-segment fallback.
	speakers := s.diarizeOrFallback(ctx, data, format, sessionID, duration)
	speakers = CoalesceSegments(RemoveOverlaps(speakers))

	segments, cancelled, err := s.transcribeSegments(ctx, taskID, info, speakers, sessionID, language)
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, nil
	}

	var parts []string
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return &coreResult{
		Content:         strings.Join(parts, " "),
		Segments:        segments,
		DurationSeconds: duration,
		SpeakerCount:    distinctLabels(segments),
	}, nil
}

// diarizeOrFallback calls the diarization service; unavailability or an
// empty result degrades to one whole-recording segment.
func (s *Service) diarizeOrFallback(ctx context.Context, data []byte, format, sessionID string, duration float64) []types.SpeakerSegment {
	started := time.Now()
	resp, err := s.diarize.Diarize(ctx, data, format, sessionID)
	if s.metrics != nil {
		s.metrics.DiarizeDuration.Record(ctx, time.Since(started).Seconds())
	}
	if err != nil || !resp.Success || len(resp.Segments) == 0 {
		s.log.Warn("diarization unavailable, using single-segment fallback",
			"session", sessionID, "error", err, "remote_error", resp.ErrorMessage)
		return []types.SpeakerSegment{{
			StartSeconds:    0,
			EndSeconds:      duration,
			Label:           fallbackSpeaker,
			DurationSeconds: duration,
		}}
	}
	return resp.Segments
}

// transcribeSegments fans per-segment STT calls out with a bounded group and
// re-sorts the kept results by start time. Cancellation is polled before
// each launch.
func (s *Service) transcribeSegments(ctx context.Context, taskID string, info audio.WAVInfo, speakers []types.SpeakerSegment, sessionID, language string) ([]types.TranscriptionSegment, bool, error) {
	results := make([]*types.TranscriptionSegment, len(speakers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentSTT)

	cancelled := false
	for i, sp := range speakers {
		if s.cancelled(taskID) {
			cancelled = true
			break
		}

		slice := audio.SliceSeconds(info.PCM, info.SampleRate, sp.StartSeconds, sp.EndSeconds)
		if audio.RMS(slice) < silenceRMS {
			continue
		}

		i, sp, slice := i, sp, slice
		g.Go(func() error {
			if info.SampleRate != sttRate {
				slice = audio.ResampleMono16(slice, info.SampleRate, sttRate)
			}
			sttStart := time.Now()
			resp, err := s.stt.Transcribe(gctx, stt.Request{
				AudioData: stt.AudioData{
					SampleRate:      sttRate,
					AudioArray:      audio.PCMToFloat32(slice),
					Format:          "pcm",
					DurationSeconds: sp.EndSeconds - sp.StartSeconds,
				},
				SessionID: sessionID,
				Language:  language,
			})
			if s.metrics != nil {
				s.metrics.STTDuration.Record(gctx, time.Since(sttStart).Seconds())
			}
			if err != nil || !resp.Success {
				// Dropped segment; the rest of the recording still lands.
				s.log.Warn("segment transcription failed",
					"session", sessionID, "start_s", sp.StartSeconds, "error", err)
				return nil
			}
			text := StripMetaTokens(resp.Text)
			if !isSpeech(text) {
				return nil
			}
			results[i] = &types.TranscriptionSegment{
				Speaker:      sp.Label,
				StartSeconds: sp.StartSeconds,
				EndSeconds:   sp.EndSeconds,
				Text:         text,
				Confidence:   resp.ConfidenceScore,
				IsFinal:      true,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	if cancelled {
		return nil, true, nil
	}

	var kept []types.TranscriptionSegment
	for _, r := range results {
		if r != nil {
			kept = append(kept, *r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].StartSeconds < kept[j].StartSeconds })
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range kept {
		kept[i].Index = i
		kept[i].Timestamp = now
	}
	return kept, false, nil
}
