// Package document renders unlocked diagnoses as downloadable artifacts.
package document

import "context"

// Renderer produces a complete document or fails; it never returns partial
// bytes.
type Renderer interface {
	Render(ctx context.Context, name, birthDate, result string) ([]byte, error)
}
