package catalog

type SearchQuery struct {
	Q     string `query:"q" json:"q" mod:"trim" validate:"required,max=200"`
	Limit int    `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=40"`
}
