package progress

// StartPayload begins reading a book. TotalPages is whatever unit the
// reader's client counts in; the catalog's page count is not assumed.
type StartPayload struct {
	TotalPages *int `json:"total_pages" validate:"omitempty,min=1"`
}

// UpdatePayload moves the reader's position within a book.
type UpdatePayload struct {
	CurrentPage int     `json:"current_page" validate:"min=0"`
	TotalPages  *int    `json:"total_pages" validate:"omitempty,min=1"`
	Location    *string `json:"location" validate:"omitempty,max=2048"`
}

// ListQuery pages through the reading shelves.
type ListQuery struct {
	Limit  int `query:"limit" default:"50" validate:"min=1,max=200"`
	Offset int `query:"offset" validate:"min=0"`
}

// RecentQuery bounds the recently-read listing.
type RecentQuery struct {
	Limit int `query:"limit" default:"10" validate:"min=1,max=100"`
}
