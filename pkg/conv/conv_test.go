package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrings(t *testing.T) {
	assert.Nil(t, Strings(nil))
	assert.Equal(t, []string{"a", "b"}, Strings("a, b,,"))
	assert.Equal(t, []string{"a"}, Strings([]string{" a ", ""}))
	assert.Equal(t, []string{"x", "3"}, Strings([]any{"x", 3, true}))
	assert.Nil(t, Strings(42))
}

func TestConfigGet(t *testing.T) {
	m := map[string]any{"name": "followed", "limit": 7.0, "sources": []any{"a", "b"}}

	assert.Equal(t, "followed", ConfigGet(m, "name", ""))
	assert.Equal(t, "dflt", ConfigGet(m, "missing", "dflt"))
	assert.Equal(t, 0, ConfigGet(m, "name", 0))
	assert.Equal(t, "dflt", ConfigGet[string](nil, "name", "dflt"))

	assert.Equal(t, 7, ConfigGetInt(m, "limit", 1))
	assert.Equal(t, 1, ConfigGetInt(m, "name", 1))
	assert.Equal(t, []string{"a", "b"}, ConfigGetStrings(m, "sources"))
	assert.Nil(t, ConfigGetStrings(nil, "sources"))
}
