package books

import "mime/multipart"

type UploadBookPayload struct {
	Title    string `form:"title" json:"title,omitempty" mod:"trim" validate:"max=300"`
	Author   string `form:"author" json:"author,omitempty" mod:"trim" validate:"max=200"`
	CoverURL string `form:"cover_url" json:"cover_url,omitempty" mod:"trim" validate:"omitempty,url"`

	FormFiles map[string]*multipart.FileHeader `form:"-" json:"-"`
}

type UpdateProgressPayload struct {
	Progress *float64 `json:"progress" validate:"required,min=0,max=1"`
}
