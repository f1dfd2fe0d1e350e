package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "validation", err: NewValidationError("bad", nil), wantCode: CodeValidation, wantStatus: http.StatusBadRequest},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", NewNotFound("ticket", nil)), wantCode: CodeNotFound, wantStatus: http.StatusNotFound},
		{name: "no rows", err: pgx.ErrNoRows, wantCode: CodeNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid transition", err: NewInvalidTransition("start", "draft"), wantCode: CodeInvalidTransition, wantStatus: http.StatusConflict},
		{name: "missing client", err: NewMissingClient("t1"), wantCode: CodeMissingClient, wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "insufficient stock",
			err:        &InsufficientStockError{ProductID: "p1", ProductName: "Filter", Available: 3, Requested: 5},
			wantCode:   CodeInsufficientStock,
			wantStatus: http.StatusConflict,
		},
		{name: "unknown", err: errors.New("socket closed"), wantCode: CodeInternal, wantStatus: http.StatusInternalServerError},
		{name: "status missing", err: &DomainError{Code: "CUSTOM"}, wantCode: "CUSTOM", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ToDomainError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}

	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestSentinels(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, NewAlreadyInvoiced("t1"), ErrAlreadyInvoiced)
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", NewNoTechnicianAvailable(nil)), ErrNoTechnicianAvailable)
	assert.NotErrorIs(t, NewNoTechnicianAssigned("t1"), ErrNoTechnicianAvailable)
	assert.ErrorIs(t, &InsufficientStockError{}, ErrInsufficientStock)
	assert.ErrorIs(t, MapError(&InsufficientStockError{}), ErrInsufficientStock)

	stock := ToDomainError(&InsufficientStockError{ProductID: "p1", Available: 1, Requested: 2})
	assert.Equal(t, map[string]any{"product_id": "p1", "available": 1.0, "requested": 2.0}, stock.Details)
}
