package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"healthbot/internal/models"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// whatsAppMaxBody is Twilio's WhatsApp body limit
const whatsAppMaxBody = 1600

// TwilioService renders TwiML replies, validates webhook signatures and
// sends outbound WhatsApp messages
type TwilioService struct {
	accountSID     string
	authToken      string
	whatsAppNumber string
	apiBase        string
	httpClient     *http.Client
}

// NewTwilioService creates the service. Outbound sending needs all three
// credentials; TwiML rendering works without them.
func NewTwilioService(accountSID, authToken, whatsAppNumber string) *TwilioService {
	if accountSID == "" || authToken == "" || whatsAppNumber == "" {
		log.Println("⚠️  [TWILIO] Credentials not configured, outbound WhatsApp disabled")
	}
	return &TwilioService{
		accountSID:     accountSID,
		authToken:      authToken,
		whatsAppNumber: whatsAppNumber,
		apiBase:        twilioAPIBase,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// CanSend reports whether outbound messages are configured
func (s *TwilioService) CanSend() bool {
	return s.accountSID != "" && s.authToken != "" && s.whatsAppNumber != ""
}

// RenderTwiML wraps text in a messaging response envelope. Markdown is
// stripped since WhatsApp shows it literally.
func (s *TwilioService) RenderTwiML(text string) ([]byte, error) {
	body := stripMarkdown(text)
	if len(body) > whatsAppMaxBody {
		body = truncateUTF8(body, whatsAppMaxBody-3) + "..."
	}

	out, err := xml.Marshal(models.NewTwiMLResponse(body))
	if err != nil {
		return nil, fmt.Errorf("failed to render TwiML: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// ValidateSignature checks X-Twilio-Signature: base64(HMAC-SHA1(authToken,
// url + sorted key/value pairs of the POST form))
func (s *TwilioService) ValidateSignature(fullURL string, params url.Values, signature string) bool {
	if s.authToken == "" || signature == "" {
		return false
	}
	expected := ComputeTwilioSignature(s.authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeTwilioSignature returns the signature Twilio sends for a request
func ComputeTwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SendWhatsApp sends an outbound message to a phone number in E.164 form
func (s *TwilioService) SendWhatsApp(ctx context.Context, to, text string) error {
	if !s.CanSend() {
		return fmt.Errorf("twilio client not configured")
	}

	form := url.Values{}
	form.Set("From", "whatsapp:"+s.whatsAppNumber)
	form.Set("To", "whatsapp:"+strings.TrimPrefix(to, "whatsapp:"))
	form.Set("Body", stripMarkdown(text))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.apiBase, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create Twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Twilio API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
