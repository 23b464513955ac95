package serverutils

import (
	"errors"
	"fmt"
	"testing"

	"live-relay-be/internal/errs"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session not found", errs.ErrSessionNotFound, fiber.StatusNotFound},
		{"wrapped member not found", fmt.Errorf("claim: %w", errs.ErrMemberNotFound), fiber.StatusNotFound},
		{"inactive", errs.ErrInactive, fiber.StatusGone},
		{"not authorized", errs.ErrNotAuthorized, fiber.StatusForbidden},
		{"chat disabled", errs.ErrChatDisabled, fiber.StatusForbidden},
		{"conflict", errs.ErrBroadcasterConflict, fiber.StatusConflict},
		{"validation", &ValidationError{Fields: map[string]string{"Name": "required"}}, fiber.StatusBadRequest},
		{"fiber error", fiber.NewError(fiber.StatusBadRequest, "bad body"), fiber.StatusBadRequest},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

type createRequest struct {
	Name string `validate:"required,max=5"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(createRequest{Name: "ok"}))

	err := ValidateRequest(createRequest{Name: "too long"})
	var validationErr *ValidationError
	if assert.ErrorAs(t, err, &validationErr) {
		assert.Equal(t, "max", validationErr.Fields["Name"])
	}
}
