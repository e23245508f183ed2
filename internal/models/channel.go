package models

import "encoding/xml"

// TwiMLResponse is the Twilio messaging-response envelope
type TwiMLResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Messages []TwiMLMessage `xml:"Message"`
}

// TwiMLMessage is a single reply inside a TwiML response
type TwiMLMessage struct {
	Body string `xml:",chardata"`
}

// NewTwiMLResponse wraps text in a one-message TwiML envelope
func NewTwiMLResponse(text string) TwiMLResponse {
	return TwiMLResponse{Messages: []TwiMLMessage{{Body: text}}}
}

// TwilioStatusCallback is the form posted to the status webhook
type TwilioStatusCallback struct {
	MessageSid    string `form:"MessageSid"`
	MessageStatus string `form:"MessageStatus"`
	ErrorCode     string `form:"ErrorCode"`
}

// TelegramUpdate represents an incoming Telegram webhook update
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

// TelegramMessage represents a Telegram message. Only text is handled.
type TelegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from,omitempty"`
	Chat      *TelegramChat `json:"chat"`
	Date      int64         `json:"date"`
	Text      string        `json:"text,omitempty"`
}

// TelegramUser represents a Telegram user
type TelegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// TelegramChat represents a Telegram chat
type TelegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup", "channel"
}
