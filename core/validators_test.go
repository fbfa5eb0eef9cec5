package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func TestInitValidatorsFieldNames(t *testing.T) {
	validate := validator.New()
	translator := newTestTranslator()
	InitValidators(validate, translator)

	type payload struct {
		MadrassahID string `json:"madrassah_id" validate:"required,uuid4"`
		Search      string `query:"search" validate:"required"`
	}

	err := validate.Struct(payload{MadrassahID: "not-a-uuid"})
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		t.Fatalf("expected validator.ValidationErrors, got %v", err)
	}
	if len(vErrs) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(vErrs))
	}

	got := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		got[vErr.Field()] = vErr.Translate(translator)
	}
	// json tag names win; query tag names are the fallback
	if msg, ok := got["madrassah_id"]; !ok || msg != "must be a valid v4 UUID" {
		t.Errorf(`got["madrassah_id"] = %q, %t`, msg, ok)
	}
	if msg, ok := got["search"]; !ok || msg != "this field is required" {
		t.Errorf(`got["search"] = %q, %t`, msg, ok)
	}
}
