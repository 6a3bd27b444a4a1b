package remote_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/provider/diarize"
	"github.com/intrascribe/intrascribe/pkg/provider/diarize/remote"
	"github.com/intrascribe/intrascribe/pkg/types"
)

func TestDiarize_Success(t *testing.T) {
	audio := []byte{0x01, 0x02, 0xff}

	var got diarize.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diarize" {
			t.Errorf("path: got %q, want /diarize", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(diarize.Response{
			Success: true,
			Segments: []types.SpeakerSegment{
				{StartSeconds: 0, EndSeconds: 4.5, Label: "speaker_0", DurationSeconds: 4.5},
			},
			SpeakerCount: 1,
		})
	}))
	defer srv.Close()

	c, err := remote.New(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Diarize(context.Background(), audio, "mp3", "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || len(resp.Segments) != 1 {
		t.Errorf("response: got %+v", resp)
	}
	if got.AudioData != hex.EncodeToString(audio) {
		t.Errorf("audio_data: got %q, want hex of input", got.AudioData)
	}
	if got.FileFormat != "mp3" {
		t.Errorf("file_format: got %q, want mp3", got.FileFormat)
	}
}

func TestDiarize_Unreachable(t *testing.T) {
	c, err := remote.New("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = c.Diarize(context.Background(), []byte{1}, "wav", "s-1")
	if !errors.Is(err, fault.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want fault.ErrServiceUnavailable", err)
	}
}
