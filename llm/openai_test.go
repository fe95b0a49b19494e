package llm

import (
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewOpenAIClient() error = %v, want ErrNoAPIKey", err)
	}
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	if c.config.EmbeddingModel != string(openai.SmallEmbedding3) {
		t.Errorf("EmbeddingModel = %q, want %q", c.config.EmbeddingModel, openai.SmallEmbedding3)
	}
	if c.config.GenerationModel != openai.GPT4oMini {
		t.Errorf("GenerationModel = %q, want %q", c.config.GenerationModel, openai.GPT4oMini)
	}
}

func TestOpenAIClient_ChatRequest(t *testing.T) {
	c, err := NewOpenAIClient(OpenAIConfig{
		APIKey:          "test-key",
		GenerationModel: "test-model",
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	t.Run("with system message", func(t *testing.T) {
		req := c.chatRequest(GenerationRequest{
			System:      "You answer from context only.",
			Prompt:      "How do I EQ a kick?",
			MaxTokens:   256,
			Temperature: 0.2,
		})

		if req.Model != "test-model" {
			t.Errorf("Model = %q, want %q", req.Model, "test-model")
		}
		if len(req.Messages) != 2 {
			t.Fatalf("Messages = %d, want 2", len(req.Messages))
		}
		if req.Messages[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("First role = %q, want system", req.Messages[0].Role)
		}
		if req.Messages[1].Role != openai.ChatMessageRoleUser {
			t.Errorf("Second role = %q, want user", req.Messages[1].Role)
		}
		if req.MaxTokens != 256 {
			t.Errorf("MaxTokens = %d, want 256", req.MaxTokens)
		}
		if req.Temperature != 0.2 {
			t.Errorf("Temperature = %v, want 0.2", req.Temperature)
		}
	})

	t.Run("without system message", func(t *testing.T) {
		req := c.chatRequest(GenerationRequest{Prompt: "hello"})

		if len(req.Messages) != 1 {
			t.Fatalf("Messages = %d, want 1", len(req.Messages))
		}
		if req.Messages[0].Role != openai.ChatMessageRoleUser {
			t.Errorf("Role = %q, want user", req.Messages[0].Role)
		}
		// Zero values defer to provider defaults
		if req.MaxTokens != 0 {
			t.Errorf("MaxTokens = %d, want 0", req.MaxTokens)
		}
		if req.Temperature != 0 {
			t.Errorf("Temperature = %v, want 0", req.Temperature)
		}
	})
}
