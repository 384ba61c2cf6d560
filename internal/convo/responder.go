package convo

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"recruit-agent/internal/domain"
)

// LLMClient is the chat-completion surface the responder needs.
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Reply is the tagged-union result of one responder call: the visible text
// to send back to the target, and the decision the LLM signalled, if any.
type Reply struct {
	Text     string
	Decision *string
}

// Responder produces the next system message for a conversation and parses
// the decision sentinel out of it.
type Responder struct {
	llm   LLMClient
	model string
	log   *slog.Logger
}

// NewResponder creates a Responder backed by the given LLM client.
func NewResponder(llm LLMClient, model string, log *slog.Logger) (*Responder, error) {
	if llm == nil {
		return nil, errors.New("convo: llm client must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("convo: model must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Responder{llm: llm, model: model, log: log}, nil
}

// Respond asks the LLM for the next message given the full conversation
// context and parses it against tags. On an LLM failure the caller gets
// the campaign's fallback text and no decision, and the conversation
// continues on the target's next message.
func (r *Responder) Respond(ctx context.Context, instructions string, log []domain.Turn, inbound, fallback string, tags TagSet) Reply {
	raw, err := r.llm.Chat(ctx, r.model, BuildMessages(instructions, log, inbound))
	if err != nil {
		r.log.Error("llm call failed, using fallback reply", "err", err)
		return Reply{Text: fallback}
	}
	visible, decision := tags.Parse(strings.TrimSpace(raw))
	return Reply{Text: visible, Decision: decision}
}
