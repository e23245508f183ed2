package models

// AssessmentQuestion is one multiple-choice question. Weights align with Options.
type AssessmentQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Weights []int    `json:"-"`
}

// AssessmentTemplate is the questionnaire for one health category
type AssessmentTemplate struct {
	Category  string               `json:"category"`
	Questions []AssessmentQuestion `json:"questions"`
	MaxScore  int                  `json:"max_score"`
}

// AssessmentResult is the scored outcome of a submitted questionnaire
type AssessmentResult struct {
	Category        string    `json:"category"`
	Score           float64   `json:"score"`
	Recommendations []string  `json:"recommendations"`
	RelatedProducts []Product `json:"related_products"`
}
