package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hungson175/teamvoice/internal/observability"
)

const summarySystemPrompt = `You turn raw terminal output from a remote agent session into a short spoken status update for its supervisor.
Two or three plain sentences: what finished, whether it succeeded, and what needs attention.
No markdown, no file paths, no command lines.`

// Keep the prompt bounded; the tail of the output carries the outcome.
const maxOutputChars = 6000

type completionFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

// OpenAISummarizer produces feedback summaries via a chat completion.
type OpenAISummarizer struct {
	model    string
	timeout  time.Duration
	metrics  *observability.Metrics
	complete completionFunc
}

func NewOpenAISummarizer(client *openai.Client, model string, timeout time.Duration, metrics *observability.Metrics) *OpenAISummarizer {
	return &OpenAISummarizer{
		model:   model,
		timeout: timeout,
		metrics: metrics,
		complete: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return client.CreateChatCompletion(ctx, req)
		},
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, agentRef, roleRef, output string) (string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return "", errors.New("summarize: empty session output")
	}
	if len(output) > maxOutputChars {
		output = output[len(output)-maxOutputChars:]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.complete(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Session %s, role %s, finished a unit of work. Recent output:\n\n%s", agentRef, roleRef, output)},
		},
	})
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("summarizer", "complete").Inc()
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summarize: no choices in response")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("summarize: empty summary")
	}
	return summary, nil
}
