package models

import (
	"fmt"
	"strconv"
	"time"
)

// Knowledge store collections
const (
	CollectionHealthTips  = "health_tips"
	CollectionProducts    = "products"
	CollectionChatHistory = "chat_history"
	CollectionFeedback    = "feedback"
)

// KnownCollections lists every collection the store accepts
var KnownCollections = []string{
	CollectionHealthTips,
	CollectionProducts,
	CollectionChatHistory,
	CollectionFeedback,
}

// IsKnownCollection reports whether name is a valid collection
func IsKnownCollection(name string) bool {
	for _, c := range KnownCollections {
		if c == name {
			return true
		}
	}
	return false
}

// Match is one result of a similarity or filter query
type Match struct {
	ID        string         `json:"id"`
	Document  string         `json:"document"`
	Metadata  map[string]any `json:"metadata"`
	Score     float64        `json:"score"`
	CreatedAt time.Time      `json:"created_at"`
}

// MetaString returns a metadata value as text, or def when absent
func (m Match) MetaString(key, def string) string {
	v, ok := m.Metadata[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// MetaFloat returns a numeric metadata value, or def when absent or not numeric
func (m Match) MetaFloat(key string, def float64) float64 {
	switch t := m.Metadata[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return def
}

// Tip is a seeded health tip
type Tip struct {
	ID       string `yaml:"id" json:"id"`
	Text     string `yaml:"text" json:"tip"`
	Category string `yaml:"category" json:"category"`
}

// Product is a seeded product recommendation
type Product struct {
	ID          string  `yaml:"id" json:"id,omitempty"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Category    string  `yaml:"category" json:"category,omitempty"`
	Price       float64 `yaml:"price" json:"price"`
}

// KnowledgeSeed is the YAML document used to populate the store
type KnowledgeSeed struct {
	Tips     []Tip     `yaml:"tips"`
	Products []Product `yaml:"products"`
}

// ProductFromMatch rebuilds a product from a products-collection match
func ProductFromMatch(m Match) Product {
	return Product{
		ID:          m.ID,
		Name:        m.MetaString("name", "Unknown Product"),
		Description: m.Document,
		Category:    m.MetaString("category", ""),
		Price:       m.MetaFloat("price", 0),
	}
}
