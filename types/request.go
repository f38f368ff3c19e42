package types

import (
	"github.com/go-playground/validator/v10"
)

// MaxQuestionRunes bounds the length of a question in characters, as the
// validator's max tag counts them.
const MaxQuestionRunes = 4096

var validate = validator.New()

type QARequest struct {
	Question string `json:"question" validate:"required,max=4096"`
}

// Validate checks the request after binding.
func (r *QARequest) Validate() error {
	return validate.Struct(r)
}

type SearchRequest struct {
	Query string `form:"q" json:"query" validate:"required,max=4096"`
	Limit int    `form:"limit" json:"limit,omitempty" validate:"gte=0,lte=50"`
}

func (r *SearchRequest) Validate() error {
	return validate.Struct(r)
}

type UploadRequest struct {
	Title  string   `json:"title"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}
