package convo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruit-agent/internal/domain"
)

type mockLLM struct {
	reply    string
	err      error
	captured []domain.ChatMessage
	model    string
}

func (m *mockLLM) Chat(_ context.Context, model string, messages []domain.ChatMessage) (string, error) {
	m.model = model
	m.captured = messages
	return m.reply, m.err
}

func newTestResponder(t *testing.T, llm LLMClient) *Responder {
	t.Helper()
	r, err := NewResponder(llm, "gpt-4o-mini", nil)
	require.NoError(t, err)
	return r
}

func TestNewResponder_ValidatesDependencies(t *testing.T) {
	_, err := NewResponder(nil, "gpt-4o-mini", nil)
	require.Error(t, err)

	_, err = NewResponder(&mockLLM{}, " ", nil)
	require.Error(t, err)
}

func TestRespond_ParsesDecision(t *testing.T) {
	llm := &mockLLM{reply: "Thanks, your consent is recorded. [CONSENT:granted]"}
	r := newTestResponder(t, llm)

	reply := r.Respond(context.Background(), "instructions", nil, "yes", "fallback", consentTags)
	require.Equal(t, "Thanks, your consent is recorded.", reply.Text)
	require.NotNil(t, reply.Decision)
	require.Equal(t, "granted", *reply.Decision)
	require.Equal(t, "gpt-4o-mini", llm.model)
}

func TestRespond_NoDecision(t *testing.T) {
	r := newTestResponder(t, &mockLLM{reply: "Could you tell me a bit more?"})

	reply := r.Respond(context.Background(), "instructions", nil, "maybe", "fallback", consentTags)
	require.Equal(t, "Could you tell me a bit more?", reply.Text)
	require.Nil(t, reply.Decision)
}

func TestRespond_LLMFailureFallsBack(t *testing.T) {
	r := newTestResponder(t, &mockLLM{err: errors.New("upstream down")})

	reply := r.Respond(context.Background(), "instructions", nil, "yes", "Please reply YES or NO.", consentTags)
	require.Equal(t, "Please reply YES or NO.", reply.Text)
	require.Nil(t, reply.Decision)
}

func TestRespond_PassesFullConversation(t *testing.T) {
	now := time.Now()
	log := []domain.Turn{
		{Sender: domain.SenderSystem, Message: "Hello, may we keep your data?", Timestamp: now},
		{Sender: domain.SenderTarget, Message: "What data do you hold?", Timestamp: now},
	}
	llm := &mockLLM{reply: "We hold your CV and contact details."}
	r := newTestResponder(t, llm)

	r.Respond(context.Background(), "You are a GDPR assistant.", log, "Okay, go ahead.", "fallback", consentTags)
	require.Len(t, llm.captured, 4)
	require.Equal(t, domain.RoleSystem, llm.captured[0].Role)
	require.Equal(t, "You are a GDPR assistant.", llm.captured[0].Content)
	require.Equal(t, domain.RoleAssistant, llm.captured[1].Role)
	require.Equal(t, domain.RoleUser, llm.captured[2].Role)
	require.Equal(t, domain.RoleUser, llm.captured[3].Role)
	require.Equal(t, "Okay, go ahead.", llm.captured[3].Content)
}
