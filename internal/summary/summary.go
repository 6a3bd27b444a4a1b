// Package summary generates session summaries and titles from transcript
// text via an LLM backend. Generation is best effort: when every backend
// fails, a deterministic rule-based fallback produces a usable result so the
// calling pipeline never blocks on AI availability.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/intrascribe/intrascribe/internal/observe"
	"github.com/intrascribe/intrascribe/pkg/provider/llm"
)

const (
	defaultSystemPrompt = "You are an assistant that writes concise meeting summaries. " +
		"Summarize the transcript in the transcript's own language. " +
		"Capture decisions, action items, and key discussion points."

	titleSystemPrompt = "You write short descriptive titles for meeting transcripts. " +
		"Reply with the title only, no quotes, at most twelve words, " +
		"in the transcript's own language."

	// fallbackModel marks results produced without an LLM.
	fallbackModel = "fallback_rule_based"

	defaultMaxTokens = 2048
	titleMaxTokens   = 64
)

// Result is a generated summary.
type Result struct {
	Summary   string
	KeyPoints []string
	Model     string
	Usage     llm.Usage
}

// Option configures a [Service].
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithSystemPrompt overrides the default summarization prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Service) {
		s.systemPrompt = prompt
	}
}

// WithMetrics sets the metrics sink for LLM latency and request counters.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// Service generates summaries and titles. Pass an
// [resilience.LLMFallback] as the provider to get multi-backend failover.
type Service struct {
	provider     llm.Provider
	systemPrompt string
	log          *slog.Logger
	metrics      *observe.Metrics
}

// complete calls the provider and records latency and outcome counters.
func (s *Service) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	started := time.Now()
	resp, err := s.provider.Complete(ctx, req)
	if s.metrics != nil {
		s.metrics.LLMDuration.Record(ctx, time.Since(started).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			s.metrics.RecordProviderError(ctx, s.provider.Name(), "llm")
		}
		s.metrics.RecordProviderRequest(ctx, s.provider.Name(), "llm", status)
	}
	return resp, err
}

// New creates a Service on the given provider. A nil provider is allowed and
// routes every request to the rule-based fallback.
func New(provider llm.Provider, opts ...Option) *Service {
	s := &Service{
		provider:     provider,
		systemPrompt: defaultSystemPrompt,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize produces a summary of the transcript. templateContent, when
// non-empty, replaces the default instruction so user templates steer the
// output. Never returns an error for backend failures; the fallback result
// is marked with [Result.Model] == "fallback_rule_based".
func (s *Service) Summarize(ctx context.Context, transcript, templateContent string) Result {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Result{Summary: "", Model: fallbackModel}
	}
	if s.provider == nil {
		return ruleBasedSummary(transcript)
	}

	prompt := s.systemPrompt
	if templateContent != "" {
		prompt = templateContent
	}

	resp, err := s.complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages: []llm.Message{
			{Role: "user", Content: transcript},
		},
		Temperature: 0.3,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		s.log.Warn("summary generation failed, using rule-based fallback", "error", err)
		return ruleBasedSummary(transcript)
	}

	return Result{
		Summary:   strings.TrimSpace(resp.Content),
		KeyPoints: extractKeyPoints(resp.Content),
		Model:     s.provider.Name(),
		Usage:     resp.Usage,
	}
}

// Title produces a short session title. Backend failures fall back to a
// timestamped default so the caller always gets a non-empty title.
func (s *Service) Title(ctx context.Context, transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" || s.provider == nil {
		return fallbackTitle()
	}

	// Long transcripts are truncated; the opening minutes carry the topic.
	const maxTitleInput = 4000
	if len(transcript) > maxTitleInput {
		transcript = transcript[:maxTitleInput]
	}

	resp, err := s.complete(ctx, llm.CompletionRequest{
		SystemPrompt: titleSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: transcript},
		},
		Temperature: 0.3,
		MaxTokens:   titleMaxTokens,
	})
	if err != nil {
		s.log.Warn("title generation failed, using fallback", "error", err)
		return fallbackTitle()
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Content), `"“”`))
	if title == "" {
		return fallbackTitle()
	}
	return title
}

// ruleBasedSummary builds a deterministic summary from the transcript's
// opening sentences plus a word count line.
func ruleBasedSummary(transcript string) Result {
	const maxSentences = 3

	sentences := splitSentences(transcript)
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	text := strings.Join(sentences, " ")

	words := len(strings.Fields(transcript))
	summary := fmt.Sprintf("%s\n\n(Transcript of %d words; automatic summary unavailable.)", text, words)

	return Result{
		Summary: summary,
		Model:   fallbackModel,
	}
}

func fallbackTitle() string {
	return "Recording session " + time.Now().UTC().Format("2006-01-02 15:04")
}

// splitSentences splits on common sentence terminators, keeping them.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '.', '!', '?', '。', '！', '？':
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// extractKeyPoints pulls list-style lines out of a generated summary.
func extractKeyPoints(content string) []string {
	var points []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- "):
			points = append(points, strings.TrimPrefix(line, "- "))
		case strings.HasPrefix(line, "* "):
			points = append(points, strings.TrimPrefix(line, "* "))
		}
	}
	return points
}
