// Package diagnosis holds the diagnosis record model and its lifecycle rules:
// created -> locked -> unlocked, monotonic, idempotent unlock.
package diagnosis

import "time"

// Tier separates immediately-visible diagnoses from paywalled ones.
type Tier string

const (
	// TierFree diagnoses are unlocked at creation and never paid.
	TierFree Tier = "free"
	// TierDetailed diagnoses start locked and unlock exactly once via a
	// payment confirmation.
	TierDetailed Tier = "detailed"
)

// Redaction parameters for locked detailed diagnoses. The cut is a fixed
// rune count regardless of content so the projection length never depends on
// the generated text beyond the cutoff.
const (
	RedactionCutoff = 200
	RedactionNotice = "...\n\n※ 続きは課金後にご覧いただけます"
)

// Record is a stored diagnosis. All fields except Unlocked and UpdatedAt are
// immutable after creation.
type Record struct {
	Token      string
	Name       string
	BirthDate  string
	Result     string
	Tier       Tier
	Categories []string
	FreeText   string
	Unlocked   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Detailed reports whether the record is paywalled.
func (r Record) Detailed() bool {
	return r.Tier == TierDetailed
}

// Projection is the caller-visible view of a record. Locked detailed records
// carry the redacted result; everything else carries the full text.
type Projection struct {
	Token      string
	Name       string
	BirthDate  string
	Result     string
	Detailed   bool
	Locked     bool
	Categories []string
	FreeText   string
}

// Project builds the visibility-ruled view of the record. This is the only
// way result text leaves the package, so the paywall cannot be bypassed by a
// forgotten call site.
func (r Record) Project() Projection {
	p := Projection{
		Token:      r.Token,
		Name:       r.Name,
		BirthDate:  r.BirthDate,
		Result:     r.Result,
		Detailed:   r.Detailed(),
		Categories: r.Categories,
		FreeText:   r.FreeText,
	}
	if r.Detailed() && !r.Unlocked {
		p.Locked = true
		p.Result = Redact(r.Result)
	}
	return p
}

// Redact returns the fixed-length preview of a locked result: the first
// RedactionCutoff runes plus the notice suffix. Runes, not bytes, so the cut
// never splits a multibyte character.
func Redact(result string) string {
	runes := []rune(result)
	if len(runes) > RedactionCutoff {
		runes = runes[:RedactionCutoff]
	}
	return string(runes) + RedactionNotice
}
