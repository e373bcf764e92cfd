package security

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q1", nil)
	assert.Equal(t, "q1", TokenFromRequest(r, true))
	assert.Empty(t, TokenFromRequest(r, false))

	r.Header.Set("Authorization", "Bearer h1")
	assert.Equal(t, "h1", TokenFromRequest(r, true), "header wins over query")

	r.Header.Set("Authorization", "bearer  h2 ")
	assert.Equal(t, "h2", TokenFromRequest(r, false))

	r.Header.Set("Authorization", "raw-token")
	assert.Equal(t, "raw-token", TokenFromRequest(r, false))
}
