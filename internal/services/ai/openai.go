package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds each API call
	DefaultTimeout = 30 * time.Second
)

// ErrEmptyResponse is returned when the API response has no choices
var ErrEmptyResponse = errors.New("no choices in response")

// OpenAIProvider implements Provider using the OpenAI API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates an OpenAI-backed provider
func NewOpenAIProvider(apiKey, baseURL, model string, log *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    log,
		debugMode: debugMode,
	}
}

// extractionResponse mirrors the JSON the extraction prompt asks for
type extractionResponse struct {
	Tasks []extractionTask `json:"tasks"`
}

type extractionTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueAt       string `json:"due_at"`
	Assignee    string `json:"assignee"`
	Priority    string `json:"priority"`
}

// ExtractTasks asks the model to find actionable tasks in a message
func (p *OpenAIProvider) ExtractTasks(ctx context.Context, msg *models.ChatMessage) ([]ExtractedTask, error) {
	prompt := buildExtractionPrompt(msg)

	content, err := p.complete(ctx, "extract_tasks", []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You extract actionable tasks from chat messages. Respond with valid JSON only: " +
			`{"tasks":[{"title":"...","description":"...","due_at":"RFC3339 or empty","assignee":"name or empty","priority":"low|medium|high"}]}. ` +
			"Return an empty tasks array when the message contains no actionable work."),
		openai.UserMessage(prompt),
	}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to extract tasks: %w", err)
	}

	tasks, err := parseExtraction(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return tasks, nil
}

// AnswerQuestion answers a question grounded in recent chat history
func (p *OpenAIProvider) AnswerQuestion(ctx context.Context, question string, history []*models.ChatMessage) (string, error) {
	var b strings.Builder
	b.WriteString("Recent chat history:\n")
	for _, msg := range history {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.SentAt.Format("02 Jan 15:04"), msg.SenderName, msg.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)

	content, err := p.complete(ctx, "answer_question", []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a chat assistant. Answer the question using only the provided chat history. " +
			"If the history does not contain the answer, say so briefly. Answer in the language of the question."),
		openai.UserMessage(b.String()),
	}, false)
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// SummarizeDigest condenses a day of activity into short digest text
func (p *OpenAIProvider) SummarizeDigest(ctx context.Context, chatTitle string, tasks []*models.Task, msgs []*models.ChatMessage) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat: %s\n\nOpen tasks:\n", chatTitle)
	for _, task := range tasks {
		fmt.Fprintf(&b, "- %s", task.Title)
		if task.DueAt != nil {
			fmt.Fprintf(&b, " (due %s)", task.DueAt.Format("02 Jan 15:04"))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nMessages today: %d\n", len(msgs))
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", msg.SenderName, msg.Text)
	}

	content, err := p.complete(ctx, "summarize_digest", []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You write short daily chat digests: key discussion points, decisions, and open tasks " +
			"with deadlines. Plain text, at most ten lines."),
		openai.UserMessage(b.String()),
	}, false)
	if err != nil {
		return "", fmt.Errorf("failed to summarize digest: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// complete sends one chat completion request and returns the first choice
func (p *OpenAIProvider) complete(ctx context.Context, operation string, messages []openai.ChatCompletionMessageParamUnion, jsonMode bool) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if jsonMode {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	if p.debugMode && p.logger != nil {
		p.logger.Debug("llm_api_response",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", logger.SanitizeText(content, 500)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

func buildExtractionPrompt(msg *models.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message sent %s by %s:\n%s\n", msg.SentAt.Format(time.RFC3339), msg.SenderName, msg.Text)
	fmt.Fprintf(&b, "\nCurrent time: %s. Resolve relative dates against it.", time.Now().Format(time.RFC3339))
	return b.String()
}

// parseExtraction decodes the model's JSON and normalizes each task.
// Entries without a title are dropped; unparseable due dates become nil
// rather than failing the whole message.
func parseExtraction(content string) ([]ExtractedTask, error) {
	var resp extractionResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, err
	}

	var tasks []ExtractedTask
	for _, raw := range resp.Tasks {
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			continue
		}

		task := ExtractedTask{
			Title:        title,
			Description:  strings.TrimSpace(raw.Description),
			AssigneeName: strings.TrimSpace(raw.Assignee),
			Priority:     normalizePriority(raw.Priority),
		}

		if raw.DueAt != "" {
			if due, err := time.Parse(time.RFC3339, raw.DueAt); err == nil {
				task.DueAt = &due
			}
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func normalizePriority(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return string(models.TaskPriorityLow)
	case "high":
		return string(models.TaskPriorityHigh)
	default:
		return string(models.TaskPriorityMedium)
	}
}
