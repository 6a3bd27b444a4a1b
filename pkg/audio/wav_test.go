package audio_test

import (
	"math"
	"testing"

	"github.com/intrascribe/intrascribe/pkg/audio"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := samplesToBytes([]int16{0, 1000, -1000, 32767, -32768})
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length: got %d, want %d", len(wav), 44+len(pcm))
	}
	if !audio.IsWAV(wav) {
		t.Fatal("IsWAV returned false for encoded output")
	}

	info, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("sample rate: got %d, want 16000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("channels: got %d, want 1", info.Channels)
	}
	got := bytesToSamples(info.PCM)
	want := []int16{0, 1000, -1000, 32767, -32768}
	if len(got) != len(want) {
		t.Fatalf("pcm length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDecodeWAV_NotRIFF(t *testing.T) {
	if _, err := audio.DecodeWAV([]byte("ID3\x04mp3 data here and more")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}

func TestWAVInfo_DurationSeconds(t *testing.T) {
	// One second of mono 16 kHz audio.
	pcm := make([]byte, 16000*2)
	info, err := audio.DecodeWAV(audio.EncodeWAV(pcm, 16000, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := info.DurationSeconds(); math.Abs(d-1.0) > 1e-9 {
		t.Errorf("duration: got %f, want 1.0", d)
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("empty buffer RMS: got %f, want 0", got)
	}
	if got := audio.RMS(samplesToBytes([]int16{0, 0, 0, 0})); got != 0 {
		t.Errorf("silence RMS: got %f, want 0", got)
	}

	// A constant full-scale signal has normalized RMS ≈ 1.
	full := samplesToBytes([]int16{-32768, -32768, -32768, -32768})
	if got := audio.RMS(full); math.Abs(got-1.0) > 1e-3 {
		t.Errorf("full-scale RMS: got %f, want ~1.0", got)
	}

	// Low-amplitude noise sits well under the 0.01 silence threshold.
	quiet := samplesToBytes([]int16{50, -50, 50, -50})
	if got := audio.RMS(quiet); got >= 0.01 {
		t.Errorf("quiet RMS: got %f, want < 0.01", got)
	}
}

func TestSliceSeconds(t *testing.T) {
	// 10 samples at 10 Hz: one sample per 0.1 s.
	pcm := samplesToBytes([]int16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	got := bytesToSamples(audio.SliceSeconds(pcm, 10, 0.2, 0.5))
	want := []int16{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("slice length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}

	// End beyond the buffer clamps.
	if got := audio.SliceSeconds(pcm, 10, 0.8, 5.0); len(got) != 4 {
		t.Errorf("clamped slice: got %d bytes, want 4", len(got))
	}

	// Inverted bounds yield nil.
	if got := audio.SliceSeconds(pcm, 10, 0.5, 0.2); got != nil {
		t.Errorf("inverted bounds: got %v, want nil", got)
	}
}

func TestPCMToFloat32(t *testing.T) {
	pcm := samplesToBytes([]int16{0, 16384, -32768})
	got := audio.PCMToFloat32(pcm)
	want := []float32{0, 0.5, -1.0}
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestInt16sRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out := audio.BytesToInt16s(audio.Int16sToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], in[i])
		}
	}
}

func TestChunkDuration(t *testing.T) {
	// 48000 samples of mono 24 kHz is 2 seconds.
	pcm := make([]byte, 48000*2)
	if d := audio.ChunkDuration(pcm, 24000, 1); math.Abs(d-2.0) > 1e-9 {
		t.Errorf("duration: got %f, want 2.0", d)
	}
	if d := audio.ChunkDuration(pcm, 0, 1); d != 0 {
		t.Errorf("invalid rate duration: got %f, want 0", d)
	}
}
