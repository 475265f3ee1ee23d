package idempotency

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/orders", nil)
	key, ok := Key(r)
	assert.True(t, ok)
	assert.Empty(t, key)

	r.Header.Set(Header, "  abc  ")
	key, ok = Key(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", key)

	r.Header.Set(Header, strings.Repeat("k", MaxLen+1))
	_, ok = Key(r)
	assert.False(t, ok)
}

func TestReplayed(t *testing.T) {
	w := httptest.NewRecorder()
	Replayed(w)
	assert.Equal(t, "true", w.Header().Get(ReplayedHeader))
}
