package retrans

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/pkg/audio"
)

// batchTimeout bounds one whole import job.
const batchTimeout = 300 * time.Second

// ImportRequest describes an uploaded recording to transcribe into a fresh
// session.
type ImportRequest struct {
	OwnerID    string
	Title      string
	Language   string
	TemplateID string
	FileName   string
	Data       []byte
}

// ImportResult is returned synchronously from Import.
type ImportResult struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
}

// Import creates a session for the uploaded media and transcribes it in the
// background. The returned task carries the transcript id on success.
func (s *Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	if req.OwnerID == "" || len(req.Data) == 0 {
		return ImportResult{}, fmt.Errorf("retrans: import needs an owner and media bytes: %w", fault.ErrInvalidInput)
	}
	if req.Title == "" {
		req.Title = strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	}

	sess := &registry.Session{
		OwnerID:    req.OwnerID,
		Title:      req.Title,
		Language:   req.Language,
		TemplateID: req.TemplateID,
		Metadata:   map[string]any{"source": "batch_import", "file_name": req.FileName},
	}
	if err := s.registry.CreateSession(ctx, sess); err != nil {
		return ImportResult{}, fmt.Errorf("retrans: creating import session: %w", err)
	}

	taskID := s.tasks.Create(TaskKindBatchImport, sess.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		jctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		defer cancel()
		s.runImport(jctx, taskID, sess, req)
	}()
	return ImportResult{TaskID: taskID, SessionID: sess.ID}, nil
}

func (s *Service) runImport(ctx context.Context, taskID string, sess *registry.Session, req ImportRequest) {
	log := s.log.With("task", taskID, "session", sess.ID)

	if err := s.tasks.Start(taskID); err != nil {
		log.Info("task not started", "error", err)
		return
	}
	s.tasks.SetProgress(taskID, stepInitializing, 0)

	processing := registry.StatusProcessing
	if _, err := s.registry.UpdateSession(ctx, sess.ID, registry.Update{Status: &processing, ViaPipeline: true}, ""); err != nil {
		s.fail(taskID, log, fmt.Errorf("entering processing: %w", err))
		return
	}

	format := strings.TrimPrefix(filepath.Ext(req.FileName), ".")
	if format == "" {
		format = "mp3"
	}

	s.tasks.SetProgress(taskID, stepProcessing, 50)
	core, err := s.process(ctx, taskID, req.Data, format, sess.ID, req.Language)
	if err != nil {
		s.fail(taskID, log, err)
		return
	}
	if core == nil {
		log.Info("task cancelled during processing")
		return
	}

	// Persist the media itself under the batch prefix.
	path, publicURL, size, perr := s.uploadImportMedia(ctx, sess, req.Data, format)
	if perr != nil {
		// The transcript still lands; the media row just records the failure.
		log.Warn("media upload failed", "error", perr)
	}
	file := &registry.AudioFile{
		SessionID:       sess.ID,
		OwnerID:         sess.OwnerID,
		StoragePath:     path,
		PublicURL:       publicURL,
		SizeBytes:       size,
		DurationSeconds: int(core.DurationSeconds),
		Format:          format,
		UploadStatus:    registry.UploadCompleted,
	}
	if perr != nil {
		file.UploadStatus = registry.UploadFailed
	}
	if err := s.registry.SaveAudioFile(ctx, file); err != nil {
		log.Warn("audio row not saved", "error", err)
	}

	transcript := &registry.Transcript{
		SessionID: sess.ID,
		Content:   core.Content,
		Segments:  core.Segments,
		Language:  req.Language,
		WordCount: len(strings.Fields(core.Content)),
		ModelID:   s.modelID,
	}
	if err := s.registry.ReplaceTranscript(ctx, transcript); err != nil {
		s.fail(taskID, log, fmt.Errorf("storing transcript: %w", err))
		return
	}

	completed := registry.StatusCompleted
	now := time.Now().UTC()
	duration := int(core.DurationSeconds)
	if _, err := s.registry.UpdateSession(ctx, sess.ID, registry.Update{
		Status:          &completed,
		DurationSeconds: &duration,
		EndedAt:         &now,
		ViaPipeline:     true,
	}, ""); err != nil {
		log.Warn("completing session failed", "error", err)
	}

	s.tasks.SetProgress(taskID, stepCompleted, 100)
	s.succeed(taskID, log, TaskResult{
		TranscriptionID: transcript.ID,
		SessionID:       sess.ID,
		DurationSeconds: core.DurationSeconds,
		TotalSegments:   len(core.Segments),
		SpeakerCount:    core.SpeakerCount,
	})
}

// uploadImportMedia writes the upload to the batch prefix as MP3, converting
// first when the source is not already one.
func (s *Service) uploadImportMedia(ctx context.Context, sess *registry.Session, data []byte, format string) (path, publicURL string, size int64, err error) {
	mp3 := data
	if format != "mp3" {
		scratch := filepath.Join(s.tempDir, "import_"+sess.ID+"_"+uuid.NewString())
		srcPath := scratch + "." + format
		dstPath := scratch + ".mp3"
		if err := os.WriteFile(srcPath, data, 0o600); err != nil {
			return "", "", 0, fmt.Errorf("writing media to scratch: %w", err)
		}
		defer os.Remove(srcPath)
		if err := s.transcode.ToMP3(ctx, srcPath, dstPath); err != nil {
			return "", "", 0, fmt.Errorf("converting media: %w", err)
		}
		defer os.Remove(dstPath)
		mp3, err = os.ReadFile(dstPath)
		if err != nil {
			return "", "", 0, fmt.Errorf("reading converted media: %w", err)
		}
	}

	objectPath := fmt.Sprintf("batch-transcription/%s/%s_%d.mp3", sess.OwnerID, sess.ID, time.Now().Unix())
	res, err := s.objects.Upload(ctx, s.bucket, objectPath, mp3, "audio/mpeg")
	if err != nil {
		return objectPath, "", 0, fmt.Errorf("uploading media: %w", err)
	}
	return res.Path, res.PublicURL, int64(len(mp3)), nil
}

// compile-time interface check against the real transcoder
var _ Transcoder = (*audio.Transcoder)(nil)
