package services

import (
	"context"
	"log"
	"math/rand/v2"

	"healthbot/internal/models"
)

// KnowledgeLister is the exact-filter read side of the knowledge store
type KnowledgeLister interface {
	List(ctx context.Context, collection string, filter map[string]string) ([]models.Match, error)
}

// fallbackTip is served when the store cannot be read
var fallbackTip = models.TipResponse{
	Tip:             "Remember to maintain a healthy lifestyle!",
	Category:        "general_health",
	RelatedProducts: []models.Product{},
}

// defaultTips are served when no tip matches
var defaultTips = []models.Tip{
	{Text: "Maintain a regular sleep schedule", Category: "sleep"},
	{Text: "Stay hydrated throughout the day", Category: "general_health"},
	{Text: "Exercise regularly for better health", Category: "lifestyle"},
}

// TipsService serves random health tips with related products
type TipsService struct {
	store KnowledgeLister
}

// NewTipsService creates the service
func NewTipsService(store KnowledgeLister) *TipsService {
	return &TipsService{store: store}
}

// RandomTip picks a stored tip, optionally restricted to one category
func (s *TipsService) RandomTip(ctx context.Context, category string) models.TipResponse {
	var filter map[string]string
	if category != "" {
		filter = map[string]string{"category": category}
	}

	tips, err := s.store.List(ctx, models.CollectionHealthTips, filter)
	if err != nil {
		log.Printf("⚠️  [TIPS] Failed to load tips: %v", err)
		return fallbackTip
	}

	if len(tips) == 0 {
		tip := defaultTips[rand.IntN(len(defaultTips))]
		return models.TipResponse{Tip: tip.Text, Category: tip.Category, RelatedProducts: []models.Product{}}
	}

	picked := tips[rand.IntN(len(tips))]
	tipCategory := picked.MetaString("category", "general_health")
	return models.TipResponse{
		Tip:             picked.Document,
		Category:        tipCategory,
		RelatedProducts: s.RelatedProducts(ctx, tipCategory),
	}
}

// RelatedProducts lists products in category; errors yield an empty list
func (s *TipsService) RelatedProducts(ctx context.Context, category string) []models.Product {
	return productsByCategory(ctx, s.store, category)
}

func productsByCategory(ctx context.Context, store KnowledgeLister, category string) []models.Product {
	products := []models.Product{}
	if category == "" {
		return products
	}

	matches, err := store.List(ctx, models.CollectionProducts, map[string]string{"category": category})
	if err != nil {
		log.Printf("⚠️  [TIPS] Failed to load products for %s: %v", category, err)
		return products
	}
	for _, m := range matches {
		products = append(products, models.ProductFromMatch(m))
	}
	return products
}
