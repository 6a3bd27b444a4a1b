package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// bitsPerSample is fixed at 16 for all PCM handled by this package.
const bitsPerSample = 16

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. No external dependencies are required.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// WAVInfo describes a decoded WAV payload.
type WAVInfo struct {
	SampleRate int
	Channels   int
	// PCM is the raw sample data without the container header.
	PCM []byte
}

// DurationSeconds returns the audio length computed from the sample count.
func (w WAVInfo) DurationSeconds() float64 {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return 0
	}
	samples := len(w.PCM) / 2 / w.Channels
	return float64(samples) / float64(w.SampleRate)
}

// DecodeWAV parses a RIFF/WAV container holding 16-bit PCM. It walks the
// sub-chunks rather than assuming a fixed 44-byte header so files with extra
// chunks (LIST, fact) decode correctly.
func DecodeWAV(data []byte) (WAVInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("audio: not a RIFF/WAVE container")
	}

	var info WAVInfo
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return WAVInfo{}, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return WAVInfo{}, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			bps := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bps != bitsPerSample {
				return WAVInfo{}, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bps)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			info.PCM = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return WAVInfo{}, fmt.Errorf("audio: missing fmt chunk")
	}
	if info.PCM == nil {
		return WAVInfo{}, fmt.Errorf("audio: missing data chunk")
	}
	return info, nil
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// RMS returns the normalized root-mean-square energy of a 16-bit PCM buffer
// in [0, 1]. Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// SliceSeconds returns the PCM covering [start, end) seconds of a mono
// buffer, clamped to the buffer bounds.
func SliceSeconds(pcm []byte, sampleRate int, start, end float64) []byte {
	if sampleRate <= 0 || end <= start {
		return nil
	}
	from := int(start*float64(sampleRate)) * 2
	to := int(end*float64(sampleRate)) * 2
	if from < 0 {
		from = 0
	}
	if to > len(pcm) {
		to = len(pcm)
	}
	// Keep sample alignment.
	from -= from % 2
	to -= to % 2
	if from >= to {
		return nil
	}
	return pcm[from:to]
}

// Int16sToBytes converts int16 samples to little-endian PCM bytes.
func Int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16s converts little-endian PCM bytes to int16 samples. A trailing
// odd byte is ignored.
func BytesToInt16s(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}

// PCMToFloat32 converts 16-bit PCM bytes to float32 samples in [-1, 1), the
// canonical payload of the transcription RPC.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// ChunkDuration returns the duration in seconds of a PCM chunk.
func ChunkDuration(pcm []byte, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := len(pcm) / 2 / channels
	return float64(samples) / float64(sampleRate)
}
