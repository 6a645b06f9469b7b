package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerKeyIsStableAndPathSafe(t *testing.T) {
	key := OwnerKey("user-12345")

	assert.Equal(t, key, OwnerKey("user-12345"))
	assert.NotEqual(t, key, OwnerKey("guest:user-12345"))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), key)
}
