package provider

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	ID() string
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthCheck(ctx context.Context) error
}

// ChatRequest represents a request to an LLM provider.
type ChatRequest struct {
	Model        string    `json:"model"`
	Messages     []Message `json:"messages"`
	Temperature  float64   `json:"temperature,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	ShowThinking bool      `json:"-"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a response from an LLM provider.
type ChatResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds configuration for a provider instance.
type Config struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"` // openai | ollama
	Name     string        `json:"name"`
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// Role selects the model tier and system prompt a client speaks with.
type Role string

const (
	// RoleReasoning drives the planning and synthesis cycles.
	RoleReasoning Role = "reasoning"
	// RoleGeneral handles preprocessing and cheap retry requests.
	RoleGeneral Role = "general"
)

// SystemPrompt returns the role's system message.
func (r Role) SystemPrompt() string {
	switch r {
	case RoleReasoning:
		return "You are an advanced satellite operations reasoning agent. You excel at complex reasoning, multi-step analysis, and decision-making for satellite operations. Provide clear, step-by-step reasoning and justify your recommendations."
	case RoleGeneral:
		return "You are a professional satellite operations assistant. You help with quick task understanding, categorization, and clear communication. Always be direct, concise, and professional."
	default:
		return "You are a professional satellite operations assistant. You are helpful, professional, and provide clear, concise responses."
	}
}

// Temperature returns the sampling temperature used for the role.
func (r Role) Temperature() float64 {
	if r == RoleReasoning {
		return 0.3
	}
	return 0.5
}
