package inference

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/chatmodel"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "inference")

// DefaultChatModel is used when the config does not name a model.
const DefaultChatModel = "gpt-5-mini"

// OpenAIConfig holds the credentials and model for the OpenAI-style API.
// BaseURL covers compatible gateways (Azure, vLLM, Ollama).
type OpenAIConfig struct {
	Token   string
	Model   string
	BaseURL string
}

// OpenAIClient implements Client over the chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

var _ Client = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Token == "" {
		return nil, errors.New("inference token is not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []chatmodel.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(messages),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", c.model,
		"messages", len(messages),
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []chatmodel.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chatmodel.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chatmodel.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
