package diagnosis

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	t.Run("cuts at the rune cutoff", func(t *testing.T) {
		long := strings.Repeat("あ", 500)
		got := Redact(long)
		assert.Equal(t, strings.Repeat("あ", RedactionCutoff)+RedactionNotice, got)
	})

	t.Run("cutoff counts runes not bytes", func(t *testing.T) {
		long := strings.Repeat("運", 300)
		got := Redact(long)
		preview := strings.TrimSuffix(got, RedactionNotice)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, RedactionCutoff, utf8.RuneCountInString(preview))
	})

	t.Run("short results keep their full text before the notice", func(t *testing.T) {
		got := Redact("短い結果")
		assert.Equal(t, "短い結果"+RedactionNotice, got)
	})

	t.Run("redacted length is independent of content past the cutoff", func(t *testing.T) {
		a := Redact(strings.Repeat("x", 250))
		b := Redact(strings.Repeat("x", 9000))
		assert.Equal(t, len(a), len(b))
	})
}

func TestProject(t *testing.T) {
	long := strings.Repeat("占", 400)

	t.Run("free record is never redacted", func(t *testing.T) {
		p := Record{Token: "t1", Tier: TierFree, Result: long, Unlocked: true}.Project()
		assert.False(t, p.Locked)
		assert.False(t, p.Detailed)
		assert.Equal(t, long, p.Result)
	})

	t.Run("locked detailed record is redacted", func(t *testing.T) {
		p := Record{Token: "t2", Tier: TierDetailed, Result: long}.Project()
		assert.True(t, p.Locked)
		assert.True(t, p.Detailed)
		assert.NotEqual(t, long, p.Result)
		assert.True(t, strings.HasSuffix(p.Result, RedactionNotice))
	})

	t.Run("unlocked detailed record shows the full text", func(t *testing.T) {
		p := Record{Token: "t3", Tier: TierDetailed, Result: long, Unlocked: true}.Project()
		assert.False(t, p.Locked)
		assert.Equal(t, long, p.Result)
	})
}
