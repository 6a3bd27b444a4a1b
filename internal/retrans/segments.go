package retrans

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/intrascribe/intrascribe/pkg/types"
)

const (
	// mergeSameLabelBelow is the duration under which adjacent same-label
	// segments are merged.
	mergeSameLabelBelow = 5.0

	// absorbBelow is the duration under which a segment is absorbed into a
	// neighbour regardless of label.
	absorbBelow = 2.0

	// dropBelow is the minimum duration a segment must keep to survive.
	dropBelow = 1.0
)

// metaTokenRE matches bracketed meta-tokens such as <|endoftext|> that some
// transcription backends interleave with the text.
var metaTokenRE = regexp.MustCompile(`<\|[^|]*\|>`)

// StripMetaTokens removes bracketed meta-tokens and trims the result.
func StripMetaTokens(s string) string {
	return strings.TrimSpace(metaTokenRE.ReplaceAllString(s, ""))
}

// isSpeech reports whether cleaned text carries anything beyond punctuation
// and whitespace.
func isSpeech(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return true
		}
	}
	return false
}

func segDuration(s types.SpeakerSegment) float64 {
	return s.EndSeconds - s.StartSeconds
}

// RemoveOverlaps sorts diarization segments by start time and clips each
// segment's start to its predecessor's end. Segments fully swallowed by a
// predecessor are dropped.
func RemoveOverlaps(segs []types.SpeakerSegment) []types.SpeakerSegment {
	out := append([]types.SpeakerSegment(nil), segs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartSeconds < out[j].StartSeconds })

	kept := out[:0]
	var prevEnd float64
	for _, s := range out {
		if s.StartSeconds < prevEnd {
			s.StartSeconds = prevEnd
		}
		if s.EndSeconds <= s.StartSeconds {
			continue
		}
		s.DurationSeconds = segDuration(s)
		prevEnd = s.EndSeconds
		kept = append(kept, s)
	}
	return kept
}

// CoalesceSegments applies the three merge passes that keep diarization
// output coarse enough to transcribe well:
//
//  1. Adjacent segments sharing a label merge while both are under 5 s.
//  2. Any segment under 2 s is absorbed into its successor (taking the
//     successor's label); a trailing sub-2 s segment merges into its
//     predecessor instead.
//  3. Segments still under 1 s are dropped.
//
// Input must be overlap-free and sorted by start time (see [RemoveOverlaps]).
func CoalesceSegments(segs []types.SpeakerSegment) []types.SpeakerSegment {
	// Pass 1: same-label merge.
	var merged []types.SpeakerSegment
	for _, s := range segs {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Label == s.Label && segDuration(*last) < mergeSameLabelBelow && segDuration(s) < mergeSameLabelBelow {
				last.EndSeconds = s.EndSeconds
				last.DurationSeconds = segDuration(*last)
				continue
			}
		}
		merged = append(merged, s)
	}

	// Pass 2: absorb short segments into a neighbour.
	var absorbed []types.SpeakerSegment
	for i := 0; i < len(merged); i++ {
		s := merged[i]
		if segDuration(s) >= absorbBelow {
			absorbed = append(absorbed, s)
			continue
		}
		if i < len(merged)-1 {
			// The successor starts earlier and keeps its own label.
			merged[i+1].StartSeconds = s.StartSeconds
			merged[i+1].DurationSeconds = segDuration(merged[i+1])
			continue
		}
		if n := len(absorbed); n > 0 {
			absorbed[n-1].EndSeconds = s.EndSeconds
			absorbed[n-1].DurationSeconds = segDuration(absorbed[n-1])
			continue
		}
		absorbed = append(absorbed, s)
	}

	// Pass 3: drop what stayed too short.
	kept := absorbed[:0]
	for _, s := range absorbed {
		if segDuration(s) >= dropBelow {
			s.DurationSeconds = segDuration(s)
			kept = append(kept, s)
		}
	}
	return kept
}

// distinctLabels counts the speaker labels present in segs.
func distinctLabels(segs []types.TranscriptionSegment) int {
	labels := make(map[string]struct{}, 2)
	for _, s := range segs {
		labels[s.Speaker] = struct{}{}
	}
	return len(labels)
}
