package services

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"healthbot/internal/models"
)

//go:embed seeds/knowledge.yaml
var defaultSeedYAML []byte

// DefaultKnowledgeSeed returns the built-in tips and products
func DefaultKnowledgeSeed() *models.KnowledgeSeed {
	seed, err := ParseKnowledgeSeed(defaultSeedYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge seed is invalid: %v", err))
	}
	return seed
}

// LoadKnowledgeSeedFile reads a YAML seed document from disk
func LoadKnowledgeSeedFile(path string) (*models.KnowledgeSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseKnowledgeSeed(data)
}

// ParseKnowledgeSeed decodes and validates a YAML seed document
func ParseKnowledgeSeed(data []byte) (*models.KnowledgeSeed, error) {
	var seed models.KnowledgeSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	seen := make(map[string]bool)
	for i, tip := range seed.Tips {
		if strings.TrimSpace(tip.ID) == "" || strings.TrimSpace(tip.Text) == "" {
			return nil, fmt.Errorf("tip %d: id and text are required", i)
		}
		if seen["tip:"+tip.ID] {
			return nil, fmt.Errorf("duplicate tip id %q", tip.ID)
		}
		seen["tip:"+tip.ID] = true
	}
	for i, p := range seed.Products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("product %d: id and name are required", i)
		}
		if seen["product:"+p.ID] {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen["product:"+p.ID] = true
	}

	return &seed, nil
}

// SeedIfEmpty loads seed into each collection that has no records yet
func (s *KnowledgeStore) SeedIfEmpty(ctx context.Context, seed *models.KnowledgeSeed) error {
	tipCount, err := s.Count(ctx, models.CollectionHealthTips)
	if err != nil {
		return err
	}
	if tipCount == 0 {
		if err := s.upsertTips(ctx, seed.Tips); err != nil {
			return err
		}
		log.Printf("🌱 [KNOWLEDGE] Seeded %d health tips", len(seed.Tips))
	}

	productCount, err := s.Count(ctx, models.CollectionProducts)
	if err != nil {
		return err
	}
	if productCount == 0 {
		if err := s.upsertProducts(ctx, seed.Products); err != nil {
			return err
		}
		log.Printf("🌱 [KNOWLEDGE] Seeded %d products", len(seed.Products))
	}

	return nil
}

// UpsertSeed writes every tip and product in seed, replacing records with the same id
func (s *KnowledgeStore) UpsertSeed(ctx context.Context, seed *models.KnowledgeSeed) error {
	if err := s.upsertTips(ctx, seed.Tips); err != nil {
		return err
	}
	return s.upsertProducts(ctx, seed.Products)
}

func (s *KnowledgeStore) upsertTips(ctx context.Context, tips []models.Tip) error {
	for _, tip := range tips {
		meta := map[string]any{"category": tip.Category}
		if _, err := s.Append(ctx, models.CollectionHealthTips, tip.Text, meta, tip.ID); err != nil {
			return fmt.Errorf("failed to seed tip %s: %w", tip.ID, err)
		}
	}
	return nil
}

func (s *KnowledgeStore) upsertProducts(ctx context.Context, products []models.Product) error {
	for _, p := range products {
		meta := map[string]any{
			"name":     p.Name,
			"category": p.Category,
			"price":    p.Price,
		}
		if _, err := s.Append(ctx, models.CollectionProducts, p.Description, meta, p.ID); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}
	return nil
}
