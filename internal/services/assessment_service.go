package services

import (
	"context"
	"errors"

	"healthbot/internal/models"
)

// ErrUnknownAssessment is returned when scoring a category without a template
var ErrUnknownAssessment = errors.New("invalid assessment category")

const defaultAssessmentCategory = "general_health"

// AssessmentService serves the self-assessment questionnaires and scores them
type AssessmentService struct {
	store     KnowledgeLister
	templates map[string]models.AssessmentTemplate
}

// NewAssessmentService creates the service with the built-in templates
func NewAssessmentService(store KnowledgeLister) *AssessmentService {
	templates := map[string]models.AssessmentTemplate{
		"sleep": {
			Category: "sleep",
			Questions: []models.AssessmentQuestion{
				{
					ID:      "sleep_1",
					Text:    "How many hours do you typically sleep per night?",
					Options: []string{"Less than 5", "5-6", "7-8", "More than 8"},
					Weights: []int{1, 2, 4, 3},
				},
				{
					ID:      "sleep_2",
					Text:    "How often do you have trouble falling asleep?",
					Options: []string{"Never", "Sometimes", "Often", "Always"},
					Weights: []int{4, 3, 2, 1},
				},
				{
					ID:      "sleep_3",
					Text:    "Do you feel refreshed when you wake up?",
					Options: []string{"Always", "Usually", "Rarely", "Never"},
					Weights: []int{4, 3, 2, 1},
				},
			},
			MaxScore: 12,
		},
		"sexual_health": {
			Category: "sexual_health",
			Questions: []models.AssessmentQuestion{
				{
					ID:      "sexual_1",
					Text:    "How would you rate your overall sexual health?",
					Options: []string{"Excellent", "Good", "Fair", "Poor"},
					Weights: []int{4, 3, 2, 1},
				},
			},
			MaxScore: 4,
		},
		"general_health": {
			Category: "general_health",
			Questions: []models.AssessmentQuestion{
				{
					ID:      "general_1",
					Text:    "How would you rate your overall health?",
					Options: []string{"Excellent", "Good", "Fair", "Poor"},
					Weights: []int{4, 3, 2, 1},
				},
			},
			MaxScore: 4,
		},
	}

	return &AssessmentService{store: store, templates: templates}
}

// GetAssessment returns the questionnaire for category, or the general
// health questionnaire for unknown categories
func (s *AssessmentService) GetAssessment(category string) models.AssessmentTemplate {
	if t, ok := s.templates[category]; ok {
		return t
	}
	return s.templates[defaultAssessmentCategory]
}

// Score totals the weights of the chosen options as a percentage of the
// template's maximum. Unanswered questions and unknown options score zero.
func (s *AssessmentService) Score(ctx context.Context, category string, answers map[string]string) (*models.AssessmentResult, error) {
	template, ok := s.templates[category]
	if !ok {
		return nil, ErrUnknownAssessment
	}

	total := 0
	for _, q := range template.Questions {
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		for i, option := range q.Options {
			if option == answer && i < len(q.Weights) {
				total += q.Weights[i]
				break
			}
		}
	}

	score := float64(total) / float64(template.MaxScore) * 100

	return &models.AssessmentResult{
		Category:        category,
		Score:           score,
		Recommendations: recommendationsFor(score),
		RelatedProducts: productsByCategory(ctx, s.store, category),
	}, nil
}

func recommendationsFor(score float64) []string {
	switch {
	case score >= 80:
		return []string{"Your health appears to be good! Here are some tips to maintain it..."}
	case score >= 60:
		return []string{"There's room for improvement. Consider these suggestions..."}
	default:
		return []string{"We recommend consulting with a healthcare professional for personalized advice."}
	}
}
