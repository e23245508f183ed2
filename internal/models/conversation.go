package models

import "time"

// Channel names the surface a message arrived on
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// ChatTranscript is an archived exchange. It is written to the chat_history
// collection and mirrored to MongoDB when an archive is configured.
type ChatTranscript struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"user_id"`
	Channel   Channel   `bson:"channel" json:"channel"`
	Message   string    `bson:"message" json:"message"`
	Response  string    `bson:"response" json:"response"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// Document renders the transcript in the knowledge store's document format
func (t ChatTranscript) Document() string {
	return "User: " + t.Message + "\nBot: " + t.Response
}

// FeedbackEntry is a user rating of the assistant
type FeedbackEntry struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"user_id"`
	Rating    int       `bson:"rating" json:"rating"`
	Comment   string    `bson:"comment" json:"comment"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}
