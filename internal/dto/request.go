package dto

// CreateWishlistRequest is the body of POST /requests.
type CreateWishlistRequest struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=2000"`
	DepartmentID *string `json:"departmentId" validate:"omitempty,uuid"`
}

// WishlistQuery filters open requests.
type WishlistQuery struct {
	DepartmentID string `form:"departmentId"`
}
