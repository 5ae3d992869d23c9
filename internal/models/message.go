package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Fixed answers returned instead of generated text.
const (
	NoResultsAnswer        = "No relevant information found in the documents."
	NotAvailableAnswer     = "This information is not fully available in the documents."
	GenerationFailedAnswer = "An error occurred while generating the answer."
)
