package dto

type CreateProductInput struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	CreatedBy string `json:"-"`
}
