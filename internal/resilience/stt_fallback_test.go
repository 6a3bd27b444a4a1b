package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/intrascribe/intrascribe/pkg/provider/stt"
	sttmock "github.com/intrascribe/intrascribe/pkg/provider/stt/mock"
)

func TestSTTFallback_FailsOver(t *testing.T) {
	primary := &sttmock.Client{
		TranscribeFunc: func(ctx context.Context, req stt.Request) (stt.Response, error) {
			return stt.Response{}, errors.New("connection refused")
		},
	}
	secondary := &sttmock.Client{
		TranscribeFunc: func(ctx context.Context, req stt.Request) (stt.Response, error) {
			return stt.Response{Success: true, Text: "hello"}, nil
		},
	}

	f := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("secondary", secondary)

	resp, err := f.Transcribe(context.Background(), stt.Request{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("text: got %q", resp.Text)
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Client{
		TranscribeFunc: func(ctx context.Context, req stt.Request) (stt.Response, error) {
			return stt.Response{}, errors.New("down")
		},
	}
	f := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := f.Transcribe(context.Background(), stt.Request{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
