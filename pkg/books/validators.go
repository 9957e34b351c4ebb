package books

type ListBooksQuery struct {
	Limit         int      `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset        int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Tags          []string `query:"tags" json:"tags,omitempty" validate:"omitempty,dive,min=1,max=100"`
	ExcludeTags   []string `query:"exclude_tags" json:"exclude_tags,omitempty" validate:"omitempty,dive,min=1,max=100"`
	Genres        []string `query:"genres" json:"genres,omitempty" validate:"omitempty,dive,min=1,max=100"`
	ExcludeGenres []string `query:"exclude_genres" json:"exclude_genres,omitempty" validate:"omitempty,dive,min=1,max=100"`
	AuthorID      *int     `query:"author_id" json:"author_id,omitempty" validate:"omitempty,min=1"`
	Format        *string  `query:"format" json:"format,omitempty" validate:"omitempty,max=10"`
	Search        *string  `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	Archived      bool     `query:"archived" json:"archived,omitempty"`
}

// UpdateBookPayload carries manual metadata edits. Absent fields are left
// alone; an empty string clears the stored value. Name, Author, and
// PageCount can't be cleared, so blank or zero values are rejected there.
type UpdateBookPayload struct {
	Name            *string `json:"name,omitempty" validate:"omitnil,min=1,max=300"`
	Author          *string `json:"author,omitempty" validate:"omitnil,min=1,max=200"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	PublicationDate *string `json:"publication_date,omitempty" validate:"omitempty,max=40"`
	Publisher       *string `json:"publisher,omitempty" validate:"omitempty,max=200"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	PageCount       *int    `json:"page_count,omitempty" validate:"omitnil,min=1"`
}
