package models

// Topic is a practice area in the question bank (e.g., arrays, graphs)
type Topic struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Questions   int            `json:"questions"`
	ByLevel     map[string]int `json:"by_difficulty"`
}
