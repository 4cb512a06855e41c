package inference

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	"github.com/yanqian/batch-summarizer/internal/infra/llm/chatgpt"
	"github.com/yanqian/batch-summarizer/internal/infra/llm/tgi"
	"github.com/yanqian/batch-summarizer/pkg/metrics"
)

// Settings are the generation parameters fixed for a whole run.
type Settings struct {
	Model          string
	MaxNewTokens   int
	Temperature    float32
	TopK           int
	DoSample       bool
	ReturnFullText bool
}

type generator interface {
	Generate(ctx context.Context, req tgi.GenerateRequest) (tgi.GenerateResponse, error)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// TGISummarizer sends prompts to a text-generation-inference server.
type TGISummarizer struct {
	client    generator
	settings  Settings
	truncator Truncator
	metrics   *metrics.Pipeline
}

// NewTGISummarizer constructs the adapter.
func NewTGISummarizer(client *tgi.Client, settings Settings, truncator Truncator, pipeline *metrics.Pipeline) *TGISummarizer {
	return &TGISummarizer{client: client, settings: settings, truncator: truncator, metrics: pipeline}
}

// Summarize implements batchsum.Summarizer.
func (s *TGISummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	input, tokens := s.truncator.Truncate(prompt)
	s.metrics.AddPromptTokens(tokens)

	started := time.Now()
	resp, err := s.client.Generate(ctx, tgi.GenerateRequest{
		Inputs: input,
		Parameters: tgi.Parameters{
			DoSample:       s.settings.DoSample,
			TopK:           s.settings.TopK,
			Temperature:    s.settings.Temperature,
			MaxNewTokens:   s.settings.MaxNewTokens,
			ReturnFullText: s.settings.ReturnFullText,
		},
	})
	s.metrics.ObserveInference(time.Since(started))
	if err != nil {
		return "", err
	}
	return resp.GeneratedText, nil
}

// ChatGPTSummarizer adapts the chat completions client. The prompt is sent
// as a single user message.
type ChatGPTSummarizer struct {
	client    chatCompleter
	settings  Settings
	truncator Truncator
	metrics   *metrics.Pipeline
}

// NewChatGPTSummarizer constructs the adapter.
func NewChatGPTSummarizer(client *chatgpt.Client, settings Settings, truncator Truncator, pipeline *metrics.Pipeline) *ChatGPTSummarizer {
	return &ChatGPTSummarizer{client: client, settings: settings, truncator: truncator, metrics: pipeline}
}

// Summarize implements batchsum.Summarizer.
func (s *ChatGPTSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	input, tokens := s.truncator.Truncate(prompt)
	s.metrics.AddPromptTokens(tokens)

	req := chatgpt.ChatCompletionRequest{
		Model:       s.settings.Model,
		Messages:    []chatgpt.Message{{Role: "user", Content: input}},
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxNewTokens,
	}
	if s.settings.DoSample {
		req.TopK = s.settings.TopK
	} else {
		req.Temperature = 0
	}

	started := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	s.metrics.ObserveInference(time.Since(started))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	text := resp.Choices[0].Message.Content
	if s.settings.ReturnFullText {
		text = input + text
	}
	return text, nil
}

// EchoSummarizer answers with the first sentence of the fenced text block.
// It needs no backend and is used for dry runs.
type EchoSummarizer struct{}

// Summarize implements batchsum.Summarizer.
func (EchoSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return firstSentence(fencedText(prompt)), nil
}

func fencedText(prompt string) string {
	const fence = "```"
	start := strings.Index(prompt, fence)
	if start < 0 {
		return prompt
	}
	rest := prompt[start+len(fence):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return rest
	}
	return rest[:end]
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + 1
		if next == len(text) || text[next] == ' ' || text[next] == '\n' {
			return text[:next]
		}
	}
	return text
}

var (
	_ batchsum.Summarizer = (*TGISummarizer)(nil)
	_ batchsum.Summarizer = (*ChatGPTSummarizer)(nil)
	_ batchsum.Summarizer = EchoSummarizer{}
)
