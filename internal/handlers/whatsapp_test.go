package handlers

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthbot/internal/models"
	"healthbot/internal/services"
)

type emptyKnowledge struct{}

func (emptyKnowledge) SimilarityQuery(context.Context, string, string, int, map[string]string) ([]models.Match, error) {
	return nil, nil
}

// newPipelineAssistant wires the real orchestrator and in-memory history with
// no model clients, so every reply is the default message
func newPipelineAssistant(t *testing.T) *services.HealthAssistant {
	t.Helper()
	assistant := services.NewHealthAssistant(services.AssistantDeps{
		Decomposer:    services.NewQueryDecomposer(nil, 4, time.Second),
		Researcher:    services.NewResearchService(nil, time.Second, 100, time.Minute, 4, nil),
		Retriever:     services.NewContextRetriever(emptyKnowledge{}, 3, time.Second),
		Composer:      services.NewResponseComposer(nil, time.Second),
		Conversations: services.NewMemoryConversationStore(10),
	}, services.AssistantOptions{MaxHistory: 10})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = assistant.Close(ctx)
	})
	return assistant
}

func TestWhatsAppHandler_HistoryStaysWithSender(t *testing.T) {
	assistant := newPipelineAssistant(t)
	h := NewWhatsAppHandler(assistant, services.NewTwilioService("", "", ""))
	app := fiber.New()
	app.Post("/whatsapp/webhook", h.Webhook)

	send := func(from, body string) {
		resp, err := app.Test(formRequest("/whatsapp/webhook", url.Values{"Body": {body}, "From": {from}}))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	send("whatsapp:+1111", "first user question")
	for i := 0; i < 5; i++ {
		send("whatsapp:+2222", fmt.Sprintf("second user question %d", i))
	}

	first, err := assistant.GetRecentHistory(context.Background(), "whatsapp:+1111", 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "first user question", first[0].Content)

	second, err := assistant.GetRecentHistory(context.Background(), "whatsapp:+2222", 0)
	require.NoError(t, err)
	require.Len(t, second, 10)
	assert.Equal(t, "second user question 0", second[0].Content)
	assert.Equal(t, "second user question 4", second[8].Content)
}

func TestChatHandler_FormBodiesStayWithUser(t *testing.T) {
	assistant := newPipelineAssistant(t)
	app := fiber.New()
	app.Post("/chat", NewChatHandler(assistant).Chat)

	for _, form := range []url.Values{
		{"user_id": {"alice"}, "message": {"alice asks"}},
		{"user_id": {"bob"}, "message": {"bob asks a longer question"}},
	} {
		resp, err := app.Test(formRequest("/chat", form))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	alice, err := assistant.GetRecentHistory(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "alice asks", alice[0].Content)
}

type fakeWhatsAppSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func (s *fakeWhatsAppSender) SendWhatsApp(_ context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[to] = text
	return nil
}

func TestWhatsAppHandler_AsyncReplies(t *testing.T) {
	assistant := &fakeAssistant{reply: "Answer: Rest."}
	sender := &fakeWhatsAppSender{sent: map[string]string{}}
	h := NewWhatsAppHandler(assistant, services.NewTwilioService("", "", "")).WithAsyncReplies(sender)
	app := fiber.New()
	app.Post("/whatsapp/webhook", h.Webhook)

	resp, err := app.Test(formRequest("/whatsapp/webhook", url.Values{
		"Body": {"I feel tired"},
		"From": {"whatsapp:+15551234567"},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "<Response></Response>")
	assert.NotContains(t, string(raw), "<Message>")

	h.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, map[string]string{"whatsapp:+15551234567": "Answer: Rest."}, sender.sent)

	handled := assistant.handled()
	require.Len(t, handled, 1)
	assert.Equal(t, handledMessage{models.ChannelWhatsApp, "whatsapp:+15551234567", "I feel tired"}, handled[0])
}
