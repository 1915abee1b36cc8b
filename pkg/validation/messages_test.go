package validation

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type signup struct {
	Email    string `validate:"required,email"`
	Password string `validate:"omitempty,min=8"`
	Nickname string `validate:"max=3"`
}

func TestMessagesUsesCustomThenDefault(t *testing.T) {
	err := validator.New().Struct(signup{Email: "nope", Password: "short", Nickname: "toolong"})

	assert.ElementsMatch(t, []string{
		"email must be a valid email address",
		"password must be at least 8 characters",
		"nickname must be at most 3 characters",
	}, Messages(err))
}

func TestMessagesForMalformedBody(t *testing.T) {
	var v map[string]string
	err := json.Unmarshal([]byte("{"), &v)
	assert.Equal(t, []string{"request body must be valid JSON"}, Messages(err))
}
