package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"codesensei/internal/domain/review"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

const bugFinderSystemPrompt = `You are a security-focused code reviewer. ` +
	`You receive a unified diff from a pull request and report concrete bugs ` +
	`and security issues introduced by the change. Only report issues you can ` +
	`point to in the diff. Respond with JSON matching the provided schema.`

type bugReportItem struct {
	Type           string `json:"type"`
	File           string `json:"file"`
	Line           int    `json:"line"`
	Description    string `json:"description"`
	Severity       string `json:"severity" jsonschema:"enum=LOW,enum=MEDIUM,enum=HIGH,enum=CRITICAL"`
	Recommendation string `json:"recommendation"`
}

type bugReport struct {
	Bugs []bugReportItem `json:"bugs"`
}

func bugReportSchema() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&bugReport{})
}

// BugFinder asks a JSON-mode chat model to extract findings from a diff.
// The base URL is configurable so OpenRouter/DeepSeek style endpoints work.
type BugFinder struct {
	client openai.Client
	model  string
}

var _ ports.BugFinder = (*BugFinder)(nil)

func NewBugFinder(baseURL string, apiKey string, model string) (*BugFinder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("bug finder api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("bug finder model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &BugFinder{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (f *BugFinder) FindBugs(ctx context.Context, diff string) ([]review.Finding, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}

	resp, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(f.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(bugFinderSystemPrompt),
			openai.UserMessage("Analyze this pull request diff:\n\n" + diff),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "bug_report",
					Description: openai.String("Bugs and security issues found in a pull request diff"),
					Schema:      bugReportSchema(),
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, errs.Wrap(err, "bug finder completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("bug finder returned no choices")
	}

	report, err := parseBugReport(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	findings := make([]review.Finding, 0, len(report.Bugs))
	for _, bug := range report.Bugs {
		findings = append(findings, review.Finding{
			Type:           strings.TrimSpace(bug.Type),
			Severity:       review.NormalizeSeverity(bug.Severity),
			Description:    strings.TrimSpace(bug.Description),
			File:           strings.TrimSpace(bug.File),
			Line:           bug.Line,
			Recommendation: strings.TrimSpace(bug.Recommendation),
		})
	}
	return findings, nil
}

// parseBugReport tolerates models that wrap the JSON in a Markdown fence even
// when asked for a raw object.
func parseBugReport(content string) (bugReport, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var report bugReport
	if err := json.Unmarshal([]byte(trimmed), &report); err != nil {
		return bugReport{}, errs.Wrap(err, "parse bug report json")
	}
	return report, nil
}
