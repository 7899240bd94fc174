package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"codesensei/internal/domain/review"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

const summarizerSystemPrompt = `You write short, friendly pull request review ` +
	`comments for developers. Summarize the security findings in Markdown: a ` +
	`one-line verdict, then at most one bullet per finding with file, line, and ` +
	`what to do about it. Keep the whole comment under 200 words. Do not invent ` +
	`findings that are not listed.`

const lessonSystemPrompt = `You are a security mentor. Given one code finding, ` +
	`write a short Markdown lesson: what the vulnerability class is, why it is ` +
	`dangerous, and how to fix this specific instance. Keep it under 300 words.`

const summaryDiffExcerptLimit = 4000

// Summarizer turns findings into the human-facing PR comment, and doubles as
// the lesson writer for the learning dashboard. Points at any OpenAI-compatible
// endpoint (the default config targets Gemini's compatibility surface).
type Summarizer struct {
	client openai.Client
	model  string
}

var (
	_ ports.Summarizer   = (*Summarizer)(nil)
	_ ports.LessonWriter = (*Summarizer)(nil)
)

func NewSummarizer(baseURL string, apiKey string, model string) (*Summarizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("summarizer api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("summarizer model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Summarizer{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (s *Summarizer) Summarize(ctx context.Context, findings []review.Finding, diff string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	var prompt strings.Builder
	if len(findings) == 0 {
		prompt.WriteString("No security issues were found in this pull request. Write a short encouraging comment.\n")
	} else {
		fmt.Fprintf(&prompt, "These %d issues were found:\n", len(findings))
		for i, f := range findings {
			fmt.Fprintf(&prompt, "%d. [%s] %s in %s:%d — %s (fix: %s)\n",
				i+1, f.Severity, f.Type, f.File, f.Line, f.Description, f.Recommendation)
		}
	}
	excerpt := diff
	if len(excerpt) > summaryDiffExcerptLimit {
		excerpt = excerpt[:summaryDiffExcerptLimit]
	}
	if strings.TrimSpace(excerpt) != "" {
		prompt.WriteString("\nDiff context:\n")
		prompt.WriteString(excerpt)
	}

	return s.complete(ctx, summarizerSystemPrompt, prompt.String())
}

func (s *Summarizer) WriteLesson(ctx context.Context, finding review.Finding) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	prompt := fmt.Sprintf("Finding: [%s] %s in %s:%d\nDescription: %s\nRecommendation: %s\n",
		finding.Severity, finding.Type, finding.File, finding.Line, finding.Description, finding.Recommendation)

	return s.complete(ctx, lessonSystemPrompt, prompt)
}

func (s *Summarizer) complete(ctx context.Context, system string, user string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", errs.Wrap(err, "summarizer completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summarizer returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("summarizer returned empty content")
	}
	return content, nil
}
