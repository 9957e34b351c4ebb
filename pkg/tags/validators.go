package tags

type ListTagsQuery struct {
	Category *string `query:"category" json:"category,omitempty" validate:"omitempty,oneof=content-rating genre format collection status language"`
	Search   *string `query:"search" json:"search,omitempty" mod:"trim"`
	Limit    *int    `query:"limit" json:"limit,omitempty" validate:"omitempty,gte=1,lte=500"`
	Offset   *int    `query:"offset" json:"offset,omitempty" validate:"omitempty,gte=0"`
}

type AttachTagPayload struct {
	Name string `json:"name" mod:"trim" validate:"required,max=100"`
}
