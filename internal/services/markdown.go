package services

import (
	"bytes"
	"log"
	"regexp"
	"strings"

	"github.com/leonid-shevtsov/telegold"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// webMarkdown renders answers for the web chat with GitHub Flavored Markdown
var webMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// telegramMarkdown renders the subset of HTML the Telegram Bot API accepts
var telegramMarkdown = goldmark.New(goldmark.WithRenderer(telegold.NewRenderer()))

var (
	codeBlockPattern = regexp.MustCompile("```[a-zA-Z]*\\n([\\s\\S]*?)```")
	headerPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// RenderAnswerHTML converts an answer to HTML for the web client. Conversion
// errors yield an empty string and callers show the plain answer.
func RenderAnswerHTML(text string) string {
	var buf bytes.Buffer
	if err := webMarkdown.Convert([]byte(text), &buf); err != nil {
		log.Printf("⚠️  [MARKDOWN] Conversion failed: %v", err)
		return ""
	}
	return buf.String()
}

// convertToTelegramHTML converts standard Markdown to Telegram-compatible HTML
func convertToTelegramHTML(text string) string {
	var buf bytes.Buffer
	if err := telegramMarkdown.Convert([]byte(text), &buf); err != nil {
		log.Printf("⚠️  [TELEGRAM] Markdown conversion failed: %v", err)
		return text
	}
	return buf.String()
}

// stripMarkdown removes Markdown formatting for plain-text channels
func stripMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = codeBlockPattern.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "`", "")
	text = strings.ReplaceAll(text, "~~", "")
	text = headerPattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "$1 ($2)")
	return text
}

// splitMessageIntoChunks splits a message into chunks of at most maxSize
// bytes, preferring paragraph, line, sentence and word boundaries
func splitMessageIntoChunks(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = append(chunks, remaining)
			break
		}

		chunk := remaining[:maxSize]
		breakPoint := maxSize

		for _, sep := range []string{"\n\n", "\n", ". ", " "} {
			if idx := strings.LastIndex(chunk, sep); idx > maxSize/2 {
				breakPoint = idx + len(sep)
				break
			}
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:breakPoint]))
		remaining = strings.TrimSpace(remaining[breakPoint:])
	}

	return chunks
}
