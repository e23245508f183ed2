package handlers

import (
	"context"
	"encoding/xml"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"healthbot/internal/models"
)

// TwiMLRenderer wraps reply text in Twilio's messaging-response envelope
type TwiMLRenderer interface {
	RenderTwiML(text string) ([]byte, error)
}

// WhatsAppSender delivers an out-of-band WhatsApp reply
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, text string) error
}

// emptyTwiML acknowledges a webhook without replying inline
var emptyTwiML = []byte(xml.Header + "<Response></Response>")

// WhatsAppHandler serves the Twilio WhatsApp webhooks
type WhatsAppHandler struct {
	assistant   Assistant
	twiml       TwiMLRenderer
	sender      WhatsAppSender
	sendTimeout time.Duration

	pending sync.WaitGroup
}

// NewWhatsAppHandler creates a new WhatsApp handler that answers inline
func NewWhatsAppHandler(assistant Assistant, twiml TwiMLRenderer) *WhatsAppHandler {
	return &WhatsAppHandler{assistant: assistant, twiml: twiml, sendTimeout: 30 * time.Second}
}

// WithAsyncReplies acknowledges webhooks immediately and delivers the answer
// through the REST API. Twilio abandons webhooks after 15 seconds, which a
// research-backed answer can exceed.
func (h *WhatsAppHandler) WithAsyncReplies(sender WhatsAppSender) *WhatsAppHandler {
	h.sender = sender
	return h
}

// Webhook answers an incoming WhatsApp message
// POST /whatsapp/webhook
func (h *WhatsAppHandler) Webhook(c *fiber.Ctx) error {
	// Form values alias fasthttp buffers that are reused after the handler returns
	message := utils.CopyString(strings.TrimSpace(c.FormValue("Body")))
	from := utils.CopyString(strings.TrimSpace(c.FormValue("From")))

	if message == "" {
		return h.reply(c, "Message is required")
	}
	if from == "" {
		from = defaultUserID
	}

	log.Printf("📱 [WHATSAPP] Message received (%d chars)", len(message))

	if h.sender != nil {
		h.pending.Add(1)
		go func() {
			defer h.pending.Done()
			h.process(from, message)
		}()
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
		return c.Send(emptyTwiML)
	}

	reply := h.assistant.HandleMessage(c.UserContext(), models.ChannelWhatsApp, from, message)
	return h.reply(c, reply)
}

func (h *WhatsAppHandler) process(from, message string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [WHATSAPP] Message processing panicked: %v", r)
		}
	}()

	reply := h.assistant.HandleMessage(context.Background(), models.ChannelWhatsApp, from, message)

	ctx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
	defer cancel()
	if err := h.sender.SendWhatsApp(ctx, from, reply); err != nil {
		log.Printf("❌ [WHATSAPP] Failed to deliver reply: %v", err)
	}
}

// Wait blocks until in-flight asynchronous replies are delivered
func (h *WhatsAppHandler) Wait() {
	h.pending.Wait()
}

// Status logs Twilio delivery callbacks
// POST /whatsapp/status
func (h *WhatsAppHandler) Status(c *fiber.Ctx) error {
	var cb models.TwilioStatusCallback
	if err := c.BodyParser(&cb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status callback"})
	}

	if cb.ErrorCode != "" {
		log.Printf("⚠️  [WHATSAPP] Message %s status %s (error %s)", cb.MessageSid, cb.MessageStatus, cb.ErrorCode)
	} else {
		log.Printf("📬 [WHATSAPP] Message %s status %s", cb.MessageSid, cb.MessageStatus)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *WhatsAppHandler) reply(c *fiber.Ctx, text string) error {
	body, err := h.twiml.RenderTwiML(text)
	if err != nil {
		log.Printf("❌ [WHATSAPP] %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(body)
}
