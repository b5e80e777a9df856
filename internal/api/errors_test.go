package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"string detail", `{"detail":"Username already taken"}`, "Username already taken"},
		{"validation list", `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, "field required; too short"},
		{"no detail", `{"error":"boom"}`, ""},
		{"not json", `<html>bad gateway</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newError(400, []byte(tt.body))
			assert.Equal(t, tt.detail, err.Detail)
		})
	}
}

func TestDetail(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", &Error{Status: 404, Detail: DetailUserNotFound})

	assert.Equal(t, DetailUserNotFound, Detail(wrapped, "fallback"))
	assert.True(t, IsUserNotFound(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, "fallback", Detail(fmt.Errorf("plain"), "fallback"))
	assert.Equal(t, "fallback", Detail(&Error{Status: 500}, "fallback"))
	assert.Contains(t, (&Error{Status: 502}).Error(), "Bad Gateway")
}

func TestFlexibleID(t *testing.T) {
	var id FlexibleID
	assert.NoError(t, id.UnmarshalJSON([]byte(`42`)))
	assert.Equal(t, "42", id.String())
	assert.NoError(t, id.UnmarshalJSON([]byte(`"u-7"`)))
	assert.Equal(t, "u-7", id.String())
	assert.NoError(t, id.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, "", id.String())
	assert.Error(t, id.UnmarshalJSON([]byte(`{}`)))
}
