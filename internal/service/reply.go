package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/llm"
	"github.com/capitalize-ai/retention-chat/internal/model"
)

const defaultReplyTimeout = 10 * time.Second

// ReplyGenerator writes the AI answer to a user message. conv is a snapshot
// that does not yet contain message.
type ReplyGenerator interface {
	Reply(ctx context.Context, conv *model.Conversation, message string) (string, error)
}

// WithReplyGenerator answers user messages with g. The keyword script is used
// whenever g fails, times out, or returns nothing.
func WithReplyGenerator(g ReplyGenerator, timeout time.Duration) Option {
	return func(s *RetentionService) {
		s.replies = g
		if timeout > 0 {
			s.replyTimeout = timeout
		}
	}
}

// generate returns the generator's answer, or "" when the script should be
// used instead.
func (s *RetentionService) generate(ctx context.Context, conv *model.Conversation, message string) string {
	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	text, err := s.replies.Reply(ctx, conv, message)
	if err != nil {
		s.logger.WithConversation(conv.ID, conv.UserID).Warn("reply generator failed, using script", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// LLMReplies generates answers with a language model.
type LLMReplies struct {
	client    llm.Client
	model     string
	maxTokens int
}

// NewLLMReplies creates a generator backed by client. An empty modelName
// selects the provider default.
func NewLLMReplies(client llm.Client, modelName string, maxTokens int) *LLMReplies {
	return &LLMReplies{client: client, model: modelName, maxTokens: maxTokens}
}

// Reply sends the transcript and the new message to the model.
func (r *LLMReplies) Reply(ctx context.Context, conv *model.Conversation, message string) (string, error) {
	req := &llm.CompletionRequest{
		Model:       r.model,
		System:      instructions(conv),
		MaxTokens:   r.maxTokens,
		Temperature: 0.7,
		Messages:    make([]llm.ChatMessage, 0, len(conv.Messages)+1),
	}
	for _, msg := range conv.Messages {
		role := llm.RoleAssistant
		if msg.Sender == model.SenderUser {
			role = llm.RoleUser
		}
		req.Messages = append(req.Messages, llm.ChatMessage{Role: role, Content: msg.Content})
	}
	req.Messages = append(req.Messages, llm.ChatMessage{Role: llm.RoleUser, Content: message})

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", r.client.Name(), err)
	}
	return resp.Content, nil
}

func instructions(conv *model.Conversation) string {
	var b strings.Builder
	b.WriteString("You are a friendly customer retention agent talking to a subscriber who wants to cancel. ")
	b.WriteString("Acknowledge their concern and keep each answer to two or three sentences. ")
	b.WriteString("Do not invent discounts or prices; concrete offers are presented separately.\n")
	fmt.Fprintf(&b, "Cancellation reason: %s.", conv.CancellationReason)
	if conv.ReasonText != "" {
		fmt.Fprintf(&b, " In their words: %q.", conv.ReasonText)
	}
	return b.String()
}
