package archive

// ListArchivedQuery filters the archive listing.
type ListArchivedQuery struct {
	Reason *string `query:"reason" json:"reason,omitempty"`
	Limit  int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

// ArchivePayload is the optional body for a manual archive.
type ArchivePayload struct {
	Reason *string `json:"reason" validate:"omitempty,max=200"`
}
