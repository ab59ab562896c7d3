package domain

// Course is a single entry in the catalog.
// ID is assigned by the store on insert and never changes afterwards.
// An ID of 0 means "not stored yet".
type Course struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}
