// Package ingest turns the decoded PCM frames of one media session into
// cached audio chunks and live transcription segments.
//
// One Adapter serves one session. Frames enter through [Adapter.Push] and are
// buffered by a single goroutine that owns all mutable state; when the buffer
// reaches two seconds of audio it is flushed: the chunk is appended to the
// ephemeral store while the STT service transcribes it, and a successful
// transcription is published to the session's room and cached alongside the
// audio. Flushes never overlap.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/intrascribe/intrascribe/internal/observe"
	"github.com/intrascribe/intrascribe/pkg/audio"
	"github.com/intrascribe/intrascribe/pkg/media"
	"github.com/intrascribe/intrascribe/pkg/provider/stt"
	"github.com/intrascribe/intrascribe/pkg/types"
)

const (
	// TargetRate is the canonical sample rate of cached audio. Frames at
	// other rates are resampled on the way in.
	TargetRate = 24000

	// flushThreshold is two seconds of 16-bit mono at TargetRate.
	flushThreshold = 2 * TargetRate * 2

	// minResidualSeconds is the smallest residual buffer still worth
	// flushing on close.
	minResidualSeconds = 0.1

	frameChannelBuffer = 64

	liveSpeakerLabel = "Speaker 1"
)

// Store is the slice of the ephemeral store the adapter writes to.
type Store interface {
	AppendAudio(ctx context.Context, sessionID string, chunk types.AudioChunk) error
	AppendTranscription(ctx context.Context, sessionID string, seg types.TranscriptionSegment) error
}

// Frame is one decoded PCM frame from the media server.
type Frame struct {
	SampleRate int
	Samples    []int16
}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *Adapter) {
		a.log = log
	}
}

// WithLanguage sets the transcription language hint.
func WithLanguage(language string) Option {
	return func(a *Adapter) {
		a.language = language
	}
}

// WithMetrics sets the metrics sink for chunk counters and STT latency. A nil
// sink disables recording.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = metrics
	}
}

// Adapter buffers and flushes the audio of one session.
type Adapter struct {
	sessionID string
	room      string
	language  string

	store   Store
	stt     stt.Client
	router  media.Router
	log     *slog.Logger
	metrics *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once

	// Owned by processLoop.
	buf          []byte
	startSeconds float64
	segIndex     int
	flushed      int
}

// New creates an Adapter for the given room and starts its processing
// goroutine. The session id is the room name's identifier suffix; a room
// outside this service's namespace is a fatal configuration error.
func New(room string, store Store, sttClient stt.Client, router media.Router, opts ...Option) (*Adapter, error) {
	sessionID, err := media.ParseRoom(room)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		sessionID: sessionID,
		room:      room,
		store:     store,
		stt:       sttClient,
		router:    router,
		log:       slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		frames:    make(chan Frame, frameChannelBuffer),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	a.log = a.log.With("session", sessionID)

	go a.processLoop()
	return a, nil
}

// SessionID returns the session this adapter serves.
func (a *Adapter) SessionID() string { return a.sessionID }

// Push hands a frame to the processing goroutine. It blocks while the frame
// buffer is full and returns an error once the adapter is closed.
func (a *Adapter) Push(frame Frame) error {
	select {
	case <-a.ctx.Done():
		return fmt.Errorf("ingest: session %s: adapter closed", a.sessionID)
	default:
	}
	select {
	case a.frames <- frame:
		return nil
	case <-a.ctx.Done():
		return fmt.Errorf("ingest: session %s: adapter closed", a.sessionID)
	}
}

// Close stops intake, flushes any residual buffer of at least 0.1 s, and
// waits for the processing goroutine to exit. When ctx expires first the
// in-flight work is aborted and the residual is dropped.
func (a *Adapter) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { close(a.frames) })
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		a.cancel()
		<-a.done
		return fmt.Errorf("ingest: session %s: close: %w", a.sessionID, ctx.Err())
	}
}

// processLoop owns the buffer. It exits when the frame channel closes, after
// the residual flush.
func (a *Adapter) processLoop() {
	defer close(a.done)
	defer a.cancel()

	for frame := range a.frames {
		pcm := audio.Int16sToBytes(frame.Samples)
		if frame.SampleRate != TargetRate && frame.SampleRate > 0 {
			pcm = audio.ResampleMono16(pcm, frame.SampleRate, TargetRate)
		}
		a.buf = append(a.buf, pcm...)

		if len(a.buf) >= flushThreshold {
			a.flush(a.buf)
			a.buf = nil
		}
	}

	// Residual flush, exactly once.
	if audio.ChunkDuration(a.buf, TargetRate, 1) >= minResidualSeconds {
		a.flush(a.buf)
		a.buf = nil
	}

	a.log.Info("ingest adapter stopped", "flushes", a.flushed, "segments", a.segIndex)
}

// flush sends one buffered chunk through the store and the STT service. The
// two writes run concurrently; the transcription segment is only built after
// a successful RPC with non-empty text.
func (a *Adapter) flush(pcm []byte) {
	duration := audio.ChunkDuration(pcm, TargetRate, 1)
	a.flushed++
	if a.metrics != nil {
		a.metrics.ChunksIngested.Add(a.ctx, 1)
	}

	chunk := types.AudioChunk{
		Samples:         audio.BytesToInt16s(pcm),
		SampleRateHz:    TargetRate,
		DurationSeconds: duration,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.store.AppendAudio(a.ctx, a.sessionID, chunk); err != nil {
			a.log.Warn("caching audio chunk failed", "error", err)
		}
	}()

	sttStart := time.Now()
	resp, err := a.stt.Transcribe(a.ctx, stt.Request{
		AudioData: stt.AudioData{
			SampleRate:      TargetRate,
			AudioArray:      audio.PCMToFloat32(pcm),
			Format:          "pcm",
			DurationSeconds: duration,
		},
		SessionID: a.sessionID,
		Language:  a.language,
	})
	if a.metrics != nil {
		a.metrics.STTDuration.Record(a.ctx, time.Since(sttStart).Seconds())
	}
	wg.Wait()

	if err != nil || !resp.Success {
		// Dropped, not retried. The next flush covers the gap.
		a.log.Warn("transcription RPC failed, dropping chunk",
			"duration_s", duration, "error", err, "remote_error", resp.ErrorMessage)
		return
	}

	start := a.startSeconds
	a.startSeconds += duration

	if resp.Text == "" {
		return
	}

	seg := types.TranscriptionSegment{
		Index:        a.segIndex,
		Speaker:      liveSpeakerLabel,
		StartSeconds: start,
		EndSeconds:   start + duration,
		Text:         resp.Text,
		Confidence:   resp.ConfidenceScore,
		IsFinal:      true,
	}
	a.segIndex++

	if payload, err := json.Marshal(seg); err == nil {
		if err := a.router.Publish(a.ctx, a.room, media.TopicTranscription, payload); err != nil {
			a.log.Warn("publishing segment failed", "error", err)
		}
	}
	if err := a.store.AppendTranscription(a.ctx, a.sessionID, seg); err != nil {
		a.log.Warn("caching segment failed", "error", err)
	}
}
