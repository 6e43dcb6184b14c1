package handler

import (
	"time"

	dErrors "akashic/pkg/domain-errors"
)

const (
	maxNameLength     = 50
	maxFreeTextLength = 1000
	birthDateLayout   = "2006-01-02"
)

// FreeDiagnosisRequest is the payload for POST /diagnosis/free.
type FreeDiagnosisRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

func (r FreeDiagnosisRequest) Validate() error {
	return validateSubject(r.Name, r.BirthDate)
}

// DetailedDiagnosisRequest is the payload for POST /diagnosis/detail.
type DetailedDiagnosisRequest struct {
	Name       string   `json:"name"`
	BirthDate  string   `json:"birth_date"`
	Categories []string `json:"categories"`
	FreeText   string   `json:"free_text"`
}

func (r DetailedDiagnosisRequest) Validate() error {
	if err := validateSubject(r.Name, r.BirthDate); err != nil {
		return err
	}
	if len(r.Categories) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one category is required")
	}
	for _, c := range r.Categories {
		if c == "" {
			return dErrors.New(dErrors.CodeValidation, "categories must not be empty")
		}
	}
	if len([]rune(r.FreeText)) > maxFreeTextLength {
		return dErrors.New(dErrors.CodeValidation, "free_text must be at most 1000 characters")
	}
	return nil
}

func validateSubject(name, birthDate string) error {
	nameLen := len([]rune(name))
	if nameLen < 1 || nameLen > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be between 1 and 50 characters")
	}
	if _, err := time.Parse(birthDateLayout, birthDate); err != nil {
		return dErrors.New(dErrors.CodeValidation, "birth_date must be formatted as YYYY-MM-DD")
	}
	return nil
}
