package models

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	UserID  string `json:"user_id" form:"user_id"`
	Message string `json:"message" form:"message"`
}

// ChatResponse is the JSON envelope around an assistant reply
type ChatResponse struct {
	Response     string `json:"response"`
	ResponseHTML string `json:"response_html,omitempty"`
	UserID       string `json:"user_id"`
}

// HistoryResponse lists a user's recent turns
type HistoryResponse struct {
	UserID string `json:"user_id"`
	Turns  []Turn `json:"turns"`
	Count  int    `json:"count"`
}

// FeedbackRequest is the body of POST /feedback
type FeedbackRequest struct {
	UserID  string `json:"user_id"`
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// TipResponse is a random tip with products from the same category
type TipResponse struct {
	Tip             string    `json:"tip"`
	Category        string    `json:"category"`
	RelatedProducts []Product `json:"related_products"`
}
