package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultFFmpegBin = "ffmpeg"

	// defaultTranscodeTimeout bounds a single WAV→MP3 transcode.
	defaultTranscodeTimeout = 60 * time.Second

	// defaultConvertTimeout bounds large container conversions (batch
	// imports can carry hour-long recordings).
	defaultConvertTimeout = 300 * time.Second
)

// ErrTranscode wraps every ffmpeg invocation failure.
var ErrTranscode = errors.New("ffmpeg transcode failed")

// TranscoderOption configures a [Transcoder].
type TranscoderOption func(*Transcoder)

// WithBinary overrides the ffmpeg binary path. Defaults to "ffmpeg" resolved
// via PATH.
func WithBinary(path string) TranscoderOption {
	return func(t *Transcoder) {
		t.bin = path
	}
}

// WithTranscodeTimeout overrides the WAV→MP3 timeout. Defaults to 60 s.
func WithTranscodeTimeout(d time.Duration) TranscoderOption {
	return func(t *Transcoder) {
		t.transcodeTimeout = d
	}
}

// WithConvertTimeout overrides the container-conversion timeout. Defaults to
// 300 s.
func WithConvertTimeout(d time.Duration) TranscoderOption {
	return func(t *Transcoder) {
		t.convertTimeout = d
	}
}

// Transcoder shells out to ffmpeg for the conversions the pipelines need:
// WAV→MP3 for upload, arbitrary container→WAV for retranscription input, and
// time-bounded segment extraction for per-speaker slicing.
//
// A Transcoder is stateless and safe for concurrent use.
type Transcoder struct {
	bin              string
	transcodeTimeout time.Duration
	convertTimeout   time.Duration
}

// NewTranscoder creates a Transcoder with default timeouts.
func NewTranscoder(opts ...TranscoderOption) *Transcoder {
	t := &Transcoder{
		bin:              defaultFFmpegBin,
		transcodeTimeout: defaultTranscodeTimeout,
		convertTimeout:   defaultConvertTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ToMP3 transcodes srcPath (any container ffmpeg reads) into an MP3 at
// 128 kbps at dstPath, overwriting an existing file.
func (t *Transcoder) ToMP3(ctx context.Context, srcPath, dstPath string) error {
	return t.run(ctx, t.transcodeTimeout,
		"-i", srcPath,
		"-codec:a", "mp3",
		"-b:a", "128k",
		"-y",
		dstPath,
	)
}

// ToWAV converts srcPath into a mono 16 kHz 16-bit WAV at dstPath. Used to
// normalise retranscription input before duration measurement and slicing.
func (t *Transcoder) ToWAV(ctx context.Context, srcPath, dstPath string) error {
	return t.run(ctx, t.convertTimeout,
		"-i", srcPath,
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		dstPath,
	)
}

// ExtractSegment writes the [start, start+duration) window of srcPath to
// dstPath as mono 16 kHz 16-bit WAV.
func (t *Transcoder) ExtractSegment(ctx context.Context, srcPath, dstPath string, start, duration float64) error {
	return t.run(ctx, t.transcodeTimeout,
		"-i", srcPath,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		dstPath,
	)
}

// run invokes ffmpeg with the given arguments under a timeout derived from
// ctx. stderr is folded into the returned error because ffmpeg reports its
// diagnostics there.
func (t *Transcoder) run(ctx context.Context, timeout time.Duration, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTranscode, runCtx.Err())
		}
		return fmt.Errorf("%w: %v: %s", ErrTranscode, err, lastLine(out))
	}
	return nil
}

// lastLine returns the final non-empty line of ffmpeg output, which carries
// the actual failure reason.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
