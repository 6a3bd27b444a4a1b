package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/intrascribe/intrascribe/internal/store"
	"github.com/intrascribe/intrascribe/pkg/types"
)

func newTestStore(t *testing.T) (*store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := store.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestAppendListTranscriptions_ChronologicalOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seg := types.TranscriptionSegment{
			Index:        i,
			Speaker:      "Speaker 1",
			StartSeconds: float64(i) * 2,
			EndSeconds:   float64(i)*2 + 2,
			Text:         string(rune('a' + i)),
			IsFinal:      true,
		}
		if err := s.AppendTranscription(ctx, "s-1", seg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	segments, err := s.ListTranscriptions(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("segments: got %d, want 3", len(segments))
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Errorf("segment %d: index %d, want %d", i, seg.Index, i)
		}
		if seg.Timestamp == "" {
			t.Errorf("segment %d: missing server-assigned timestamp", i)
		}
	}
	if segments[0].Text != "a" || segments[2].Text != "c" {
		t.Errorf("order: got %q %q %q", segments[0].Text, segments[1].Text, segments[2].Text)
	}
}

func TestAppendRefreshesTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendTranscription(ctx, "s-1", types.TranscriptionSegment{Text: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	ttl := mr.TTL("session:s-1:transcription")
	if ttl <= 23*time.Hour || ttl > 24*time.Hour {
		t.Errorf("ttl: got %v, want ~24h", ttl)
	}
}

func TestListTranscriptions_EmptyAfterExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendTranscription(ctx, "s-1", types.TranscriptionSegment{Text: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	mr.FastForward(25 * time.Hour)

	segments, err := s.ListTranscriptions(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("segments after expiry: got %d, want 0", len(segments))
	}
}

func TestAudioRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	chunk := types.AudioChunk{
		Samples:         []int16{1, -1, 100, -100},
		SampleRateHz:    24000,
		DurationSeconds: 4.0 / 24000,
	}
	if err := s.AppendAudio(ctx, "s-1", chunk); err != nil {
		t.Fatalf("append: %v", err)
	}

	chunks, err := s.ListAudio(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks: got %d, want 1", len(chunks))
	}
	if len(chunks[0].Samples) != 4 || chunks[0].Samples[2] != 100 {
		t.Errorf("samples: got %v", chunks[0].Samples)
	}
	if chunks[0].SampleRateHz != 24000 {
		t.Errorf("sample rate: got %d", chunks[0].SampleRateHz)
	}
}

func TestClear_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendAudio(ctx, "s-1", types.AudioChunk{Samples: []int16{1}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.ClearAudio(ctx, "s-1"); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := s.ClearAudio(ctx, "s-1"); err != nil {
		t.Fatalf("second clear: %v", err)
	}

	chunks, err := s.ListAudio(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks after clear: got %d, want 0", len(chunks))
	}
}

func TestState(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SetState(ctx, "s-1", map[string]string{"status": "recording"}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := s.SetState(ctx, "s-1", map[string]string{"room": "intrascribe_room_abc"}); err != nil {
		t.Fatalf("merge state: %v", err)
	}

	kv, err := s.GetState(ctx, "s-1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if kv["status"] != "recording" || kv["room"] != "intrascribe_room_abc" {
		t.Errorf("state: got %v", kv)
	}
}

func TestCache(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	if err := s.CacheSet(ctx, "k1", payload{Name: "v"}, time.Minute); err != nil {
		t.Fatalf("cache set: %v", err)
	}

	var got payload
	if err := s.CacheGet(ctx, "k1", &got); err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if got.Name != "v" {
		t.Errorf("value: got %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if err := s.CacheGet(ctx, "k1", &got); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err after expiry = %v, want store.ErrNotFound", err)
	}

	if err := s.CacheDelete(ctx, "k1"); err != nil {
		t.Fatalf("cache delete: %v", err)
	}
}
