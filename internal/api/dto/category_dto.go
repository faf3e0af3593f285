package dto

// CategoryRequest creates or updates a category.
type CategoryRequest struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}
