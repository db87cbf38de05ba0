package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dietexpert/backend/internal/config"
	"dietexpert/backend/internal/logger"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AIModelRequest struct {
	Model        string
	SystemPrompt string
	Conversation []ChatTurn
	UserPrompt   string
}

type AIModelResponse struct {
	Answer string
	Model  string
	Usage  AIUsage
}

type AIClient interface {
	Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error)
}

const (
	defaultMaxOutputTokens = 600
	openAIServerAttempts   = 2
	openAIRetryDelay       = 200 * time.Millisecond
)

type OpenAIResponsesClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	log             *logger.Logger
}

// MockAIClient answers without a network call. Foods it recognises in the
// question come back as a per-item calorie breakdown.
type MockAIClient struct {
	Model string
}

var mockFoodCalories = []struct {
	name     string
	calories int
}{
	{"apple", 95},
	{"banana", 105},
	{"egg", 78},
	{"toast", 80},
	{"oatmeal", 150},
	{"yogurt", 100},
	{"rice", 200},
	{"chicken", 300},
	{"salad", 150},
	{"pasta", 350},
	{"pizza", 285},
	{"coffee", 5},
}

func (m MockAIClient) Query(_ context.Context, req AIModelRequest) (AIModelResponse, error) {
	question := strings.TrimSpace(req.UserPrompt)
	if question == "" {
		question = "No question provided."
	}
	lowered := strings.ToLower(question)

	lines := make([]string, 0, len(mockFoodCalories))
	for _, food := range mockFoodCalories {
		if strings.Contains(lowered, food.name) {
			lines = append(lines, fmt.Sprintf("- %s: %d calories", strings.ToUpper(food.name[:1])+food.name[1:], food.calories))
		}
	}

	answer := "Mock response: " + question
	if len(lines) > 0 {
		answer = "Here is an estimate for each item:\n" + strings.Join(lines, "\n") + "\nEnjoy your meal!"
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(m.Model)
	}
	if model == "" {
		model = "gpt-5-mini"
	}
	return AIModelResponse{
		Answer: answer,
		Model:  model,
		Usage: AIUsage{
			PromptTokens:     120,
			CompletionTokens: 80,
			TotalTokens:      200,
		},
	}, nil
}

func NewOpenAIResponsesClient(cfg config.Config, log *logger.Logger) *OpenAIResponsesClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	return &OpenAIResponsesClient{
		apiKey:          strings.TrimSpace(cfg.OpenAIAPIKey),
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		model:           strings.TrimSpace(cfg.OpenAIModel),
		maxOutputTokens: cfg.AIMaxOutputTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		log: logger.OrNop(log),
	}
}

type inputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type inputBlock struct {
	Role    string      `json:"role"`
	Content []inputText `json:"content"`
}

func buildResponsesInput(req AIModelRequest, includeAssistantTurns bool) []inputBlock {
	input := make([]inputBlock, 0, len(req.Conversation)+2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		input = append(input, inputBlock{
			Role:    "system",
			Content: []inputText{{Type: "input_text", Text: strings.TrimSpace(req.SystemPrompt)}},
		})
	}
	for _, turn := range req.Conversation {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		if role == "assistant" && !includeAssistantTurns {
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		contentType := "input_text"
		if role == "assistant" {
			contentType = "output_text"
		}
		input = append(input, inputBlock{
			Role:    role,
			Content: []inputText{{Type: contentType, Text: content}},
		})
	}
	if userPrompt := strings.TrimSpace(req.UserPrompt); userPrompt != "" {
		input = append(input, inputBlock{
			Role:    "user",
			Content: []inputText{{Type: "input_text", Text: userPrompt}},
		})
	}
	return input
}

func (c *OpenAIResponsesClient) Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return AIModelResponse{}, errors.New("OPENAI_API_KEY is not configured")
	}
	if strings.TrimSpace(c.baseURL) == "" {
		return AIModelResponse{}, errors.New("OPENAI_BASE_URL is not configured")
	}
	defaultModel := strings.TrimSpace(c.model)
	if defaultModel == "" {
		return AIModelResponse{}, errors.New("OPENAI_MODEL is not configured")
	}
	requestModel := strings.TrimSpace(req.Model)
	if requestModel == "" {
		requestModel = defaultModel
	}

	hasAssistantTurn := false
	for _, turn := range req.Conversation {
		if strings.EqualFold(strings.TrimSpace(turn.Role), "assistant") {
			hasAssistantTurn = true
			break
		}
	}

	maxTokens := c.maxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}

	input := buildResponsesInput(req, true)
	statusCode, responseBody, err := c.callResponses(ctx, requestModel, input, maxTokens)
	if err != nil {
		return AIModelResponse{}, err
	}
	if statusCode < 200 || statusCode >= 300 {
		bodyText := strings.TrimSpace(string(responseBody))
		shouldRetryWithoutAssistant := statusCode == http.StatusBadRequest &&
			hasAssistantTurn &&
			strings.Contains(bodyText, "Invalid value: 'input_text'") &&
			strings.Contains(bodyText, "Supported values are: 'output_text' and 'refusal'")
		if !shouldRetryWithoutAssistant {
			return AIModelResponse{}, fmt.Errorf("openai responses error (%d): %s", statusCode, bodyText)
		}
		input = buildResponsesInput(req, false)
		statusCode, responseBody, err = c.callResponses(ctx, requestModel, input, maxTokens)
		if err != nil {
			return AIModelResponse{}, err
		}
		if statusCode < 200 || statusCode >= 300 {
			return AIModelResponse{}, fmt.Errorf("openai responses error (%d): %s", statusCode, strings.TrimSpace(string(responseBody)))
		}
	}

	parsed := parseJSONStringMap(responseBody)
	answer := extractResponseAnswer(parsed)
	if strings.TrimSpace(answer) == "" && isMaxOutputTokenIncomplete(parsed) {
		c.logger().Warn("openai response incomplete, retrying with a larger budget", "max_output_tokens", maxTokens)
		maxTokens *= 2
		statusCode, responseBody, err = c.callResponses(ctx, requestModel, input, maxTokens)
		if err != nil {
			return AIModelResponse{}, err
		}
		if statusCode < 200 || statusCode >= 300 {
			return AIModelResponse{}, fmt.Errorf("openai responses error (%d): %s", statusCode, strings.TrimSpace(string(responseBody)))
		}
		parsed = parseJSONStringMap(responseBody)
		answer = extractResponseAnswer(parsed)
	}
	if strings.TrimSpace(answer) == "" {
		if isMaxOutputTokenIncomplete(parsed) {
			return AIModelResponse{}, errors.New("openai response incomplete due max_output_tokens")
		}
		c.logger().Warn("openai response had no extractable answer", "body", truncateForLog(string(responseBody), 1200))
		return AIModelResponse{}, errors.New("openai response answer is empty")
	}

	usage, _ := parsed["usage"].(map[string]any)
	promptTokens := int(extractNumberFromMap(usage, "input_tokens", "prompt_tokens"))
	completionTokens := int(extractNumberFromMap(usage, "output_tokens", "completion_tokens"))
	totalTokens := int(extractNumberFromMap(usage, "total_tokens"))
	if totalTokens <= 0 {
		return AIModelResponse{}, errors.New("openai response missing token usage")
	}

	modelName := strings.TrimSpace(toString(parsed["model"]))
	if modelName == "" {
		modelName = requestModel
	}

	return AIModelResponse{
		Answer: answer,
		Model:  modelName,
		Usage: AIUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      totalTokens,
		},
	}, nil
}

func (c *OpenAIResponsesClient) logger() *logger.Logger {
	return logger.OrNop(c.log)
}

// callResponses posts one request. A 5xx answer is retried once after a
// short pause.
func (c *OpenAIResponsesClient) callResponses(ctx context.Context, model string, input []inputBlock, maxTokens int) (int, []byte, error) {
	if len(input) == 0 {
		return 0, nil, errors.New("AI request input is empty")
	}
	payload := map[string]any{
		"model":             model,
		"input":             input,
		"max_output_tokens": maxTokens,
		"reasoning": map[string]any{
			"effort": "low",
		},
		"text": map[string]any{
			"verbosity": "low",
		},
	}
	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	var (
		statusCode   int
		responseBody []byte
	)
	for attempt := 1; attempt <= openAIServerAttempts; attempt++ {
		statusCode, responseBody, err = c.post(ctx, bodyRaw)
		if err != nil {
			return 0, nil, err
		}
		if statusCode < http.StatusInternalServerError {
			break
		}
		c.logger().Warn("openai responses server error",
			"status", statusCode,
			"attempt", attempt,
			"body", truncateForLog(string(responseBody), 300),
		)
		if attempt < openAIServerAttempts {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(openAIRetryDelay):
			}
		}
	}
	return statusCode, responseBody, nil
}

func (c *OpenAIResponsesClient) post(ctx context.Context, body []byte) (int, []byte, error) {
	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/responses",
		bytes.NewReader(body),
	)
	if err != nil {
		return 0, nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, nil, err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, err
	}
	return response.StatusCode, responseBody, nil
}

func extractResponseAnswer(data map[string]any) string {
	direct := strings.TrimSpace(toString(data["output_text"]))
	if direct != "" {
		return direct
	}

	outputs, ok := data["output"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0)
	for _, item := range outputs {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		contentList, ok := block["content"].([]any)
		if !ok {
			continue
		}
		for _, contentItem := range contentList {
			contentMap, ok := contentItem.(map[string]any)
			if !ok {
				continue
			}
			contentType := strings.ToLower(strings.TrimSpace(toString(contentMap["type"])))
			if contentType != "output_text" && contentType != "text" {
				continue
			}
			text := strings.TrimSpace(extractResponseTextValue(contentMap))
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func extractResponseTextValue(content map[string]any) string {
	if content == nil {
		return ""
	}
	if text := strings.TrimSpace(toString(content["text"])); text != "" {
		return text
	}
	textMap, ok := content["text"].(map[string]any)
	if ok {
		if value := strings.TrimSpace(toString(textMap["value"])); value != "" {
			return value
		}
	}
	if value := strings.TrimSpace(toString(content["output_text"])); value != "" {
		return value
	}
	return ""
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}

func isMaxOutputTokenIncomplete(parsed map[string]any) bool {
	if parsed == nil {
		return false
	}
	details, ok := parsed["incomplete_details"].(map[string]any)
	if !ok {
		return false
	}
	reason := strings.ToLower(strings.TrimSpace(toString(details["reason"])))
	return reason == "max_output_tokens"
}
