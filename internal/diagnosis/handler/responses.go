package handler

import "akashic/internal/diagnosis"

// FreeDiagnosisResponse is returned by POST /diagnosis/free.
type FreeDiagnosisResponse struct {
	Token  string `json:"token"`
	Result string `json:"result"`
}

// DetailedDiagnosisResponse is returned by POST /diagnosis/detail. The
// result is always the redacted projection; the full text only becomes
// visible after the unlock.
type DetailedDiagnosisResponse struct {
	Token         string `json:"token"`
	PartialResult string `json:"partial_result"`
	IsLocked      bool   `json:"is_locked"`
}

// DiagnosisResponse is returned by GET /diagnosis/{token}.
type DiagnosisResponse struct {
	Token      string   `json:"token"`
	Result     string   `json:"result"`
	Name       string   `json:"name"`
	BirthDate  string   `json:"birth_date"`
	IsDetailed bool     `json:"is_detailed"`
	IsUnlocked bool     `json:"is_unlocked"`
	Categories []string `json:"categories"`
	FreeText   string   `json:"free_text,omitempty"`
}

// FromProjection converts the service projection into the wire shape.
func FromProjection(p diagnosis.Projection) DiagnosisResponse {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	return DiagnosisResponse{
		Token:      p.Token,
		Result:     p.Result,
		Name:       p.Name,
		BirthDate:  p.BirthDate,
		IsDetailed: p.Detailed,
		IsUnlocked: !p.Locked,
		Categories: categories,
		FreeText:   p.FreeText,
	}
}
