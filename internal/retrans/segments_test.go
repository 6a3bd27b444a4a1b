package retrans_test

import (
	"testing"

	"github.com/intrascribe/intrascribe/internal/retrans"
	"github.com/intrascribe/intrascribe/pkg/types"
)

func seg(start, end float64, label string) types.SpeakerSegment {
	return types.SpeakerSegment{
		StartSeconds:    start,
		EndSeconds:      end,
		Label:           label,
		DurationSeconds: end - start,
	}
}

func assertSegments(t *testing.T, got, want []types.SpeakerSegment) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("segments: got %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.StartSeconds != w.StartSeconds || g.EndSeconds != w.EndSeconds || g.Label != w.Label {
			t.Errorf("segment %d: got [%v, %v] %q, want [%v, %v] %q",
				i, g.StartSeconds, g.EndSeconds, g.Label, w.StartSeconds, w.EndSeconds, w.Label)
		}
	}
}

func TestRemoveOverlaps(t *testing.T) {
	t.Run("clips overlapping starts", func(t *testing.T) {
		got := retrans.RemoveOverlaps([]types.SpeakerSegment{
			seg(0, 5, "A"),
			seg(3, 8, "B"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 5, "A"), seg(5, 8, "B")})
	})

	t.Run("drops swallowed segments", func(t *testing.T) {
		got := retrans.RemoveOverlaps([]types.SpeakerSegment{
			seg(0, 5, "A"),
			seg(1, 4, "B"),
			seg(5, 9, "A"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 5, "A"), seg(5, 9, "A")})
	})

	t.Run("sorts unordered input", func(t *testing.T) {
		got := retrans.RemoveOverlaps([]types.SpeakerSegment{
			seg(6, 9, "B"),
			seg(0, 6, "A"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 6, "A"), seg(6, 9, "B")})
	})
}

func TestCoalesceSegments(t *testing.T) {
	t.Run("merges adjacent short same-label segments", func(t *testing.T) {
		got := retrans.CoalesceSegments([]types.SpeakerSegment{
			seg(0, 3, "A"),
			seg(3, 4, "A"),
			seg(4, 7, "B"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 4, "A"), seg(4, 7, "B")})
	})

	t.Run("long same-label segments stay apart", func(t *testing.T) {
		got := retrans.CoalesceSegments([]types.SpeakerSegment{
			seg(0, 6, "A"),
			seg(6, 12, "A"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 6, "A"), seg(6, 12, "A")})
	})

	t.Run("short leading segment absorbed by successor", func(t *testing.T) {
		got := retrans.CoalesceSegments([]types.SpeakerSegment{
			seg(0, 0.6, "A"),
			seg(0.6, 5, "B"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 5, "B")})
	})

	t.Run("short trailing segment absorbed by predecessor", func(t *testing.T) {
		got := retrans.CoalesceSegments([]types.SpeakerSegment{
			seg(0, 10, "A"),
			seg(10, 11, "A"),
		})
		assertSegments(t, got, []types.SpeakerSegment{seg(0, 11, "A")})
	})

	t.Run("lone sub-second segment dropped", func(t *testing.T) {
		got := retrans.CoalesceSegments([]types.SpeakerSegment{seg(0, 0.5, "A")})
		if len(got) != 0 {
			t.Fatalf("segments: got %+v, want none", got)
		}
	})
}

func TestStripMetaTokens(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<|zh|> 你好", "你好"},
		{"<|startoftranscript|>hello<|endoftext|>", "hello"},
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
		{"<|nospeech|>", ""},
	}
	for _, c := range cases {
		if got := retrans.StripMetaTokens(c.in); got != c.want {
			t.Errorf("StripMetaTokens(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
