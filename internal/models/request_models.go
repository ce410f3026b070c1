package models

// CreateCategoryRequest represents the request body for creating a category.
type CreateCategoryRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Position int    `json:"position"`
}

// UpdateCategoryRequest uses pointers to tell "not provided" from zero values.
type UpdateCategoryRequest struct {
	Name     *string `json:"name,omitempty" binding:"omitempty,max=80"`
	Position *int    `json:"position,omitempty"`
}

// CreateMenuItemRequest represents the request body for creating a menu item.
type CreateMenuItemRequest struct {
	CategoryID  string `json:"categoryId" binding:"required"`
	Name        string `json:"name" binding:"required,max=120"`
	Description string `json:"description,omitempty" binding:"max=1000"`
	PriceCents  int64  `json:"priceCents" binding:"min=0"`
	ImageURL    string `json:"imageURL,omitempty" binding:"omitempty,url"`
	Available   *bool  `json:"available,omitempty"`
	Position    int    `json:"position"`
}

// UpdateMenuItemRequest uses pointers to tell "not provided" from zero values.
type UpdateMenuItemRequest struct {
	CategoryID  *string `json:"categoryId,omitempty"`
	Name        *string `json:"name,omitempty" binding:"omitempty,max=120"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=1000"`
	PriceCents  *int64  `json:"priceCents,omitempty" binding:"omitempty,min=0"`
	ImageURL    *string `json:"imageURL,omitempty"`
	Available   *bool   `json:"available,omitempty"`
	Position    *int    `json:"position,omitempty"`
}
