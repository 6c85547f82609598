package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Ada@example.org", Normalize("  Ada@EXAMPLE.org "))
	assert.Equal(t, "no-at-sign", Normalize("no-at-sign"))
}

func TestValid(t *testing.T) {
	valid := []string{"ada@example.org", "a.b+c@uni.edu"}
	invalid := []string{"", "ada", "ada@localhost", "Ada <ada@example.org>", "@example.org", strings.Repeat("a", 250) + "@x.io"}
	for _, v := range valid {
		assert.True(t, Valid(v), v)
	}
	for _, v := range invalid {
		assert.False(t, Valid(v), v)
	}
}
