package service

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/intervention-service/internal/domain"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

func TestStockService_RecordPart_InsufficientStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, _ := env.assigned(t)
	product := env.product(t, 10, 3)

	line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 5)
	require.Error(t, err)
	assert.Nil(t, line)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	var stockErr *apperrors.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, product.ID, stockErr.ProductID)
	assert.Equal(t, 3.0, stockErr.Available)
	assert.Equal(t, 5.0, stockErr.Requested)

	lines, err := env.svc.Stock.ListPartLines(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Empty(t, env.store.Moves())
	assert.Equal(t, 3.0, env.available(t, product.ID))
}

func TestStockService_RecordPart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, _ := env.assigned(t)
	product := env.product(t, 12, 10)

	line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, line.StockMoveID)
	assert.Equal(t, product.Name, line.ProductName)
	decimalEqual(t, 12, line.UnitPrice)
	decimalEqual(t, 24, line.Subtotal)

	moves := env.store.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, *line.StockMoveID, moves[0].ID)
	assert.Equal(t, domain.MoveStateDone, moves[0].State)
	assert.Equal(t, env.cfg.Stock.SourceLocation, moves[0].SourceLocation)
	assert.Equal(t, env.cfg.Stock.CustomerLocation, moves[0].DestinationLocation)
	assert.Equal(t, ticket.Reference, moves[0].Origin)
	assert.Equal(t, 8.0, env.available(t, product.ID))

	stored := env.reload(t, ticket.ID)
	decimalEqual(t, 24, stored.MaterialCost)
}

func TestStockService_RecordPart_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(t *testing.T, env *testEnv) (ticketID, productID string, qty float64)
		wantErr error
	}{
		{
			name: "zero quantity",
			prepare: func(t *testing.T, env *testEnv) (string, string, float64) {
				ticket, _ := env.assigned(t)
				return ticket.ID, env.product(t, 5, 5).ID, 0
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "negative quantity",
			prepare: func(t *testing.T, env *testEnv) (string, string, float64) {
				ticket, _ := env.assigned(t)
				return ticket.ID, env.product(t, 5, 5).ID, -1
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "service product",
			prepare: func(t *testing.T, env *testEnv) (string, string, float64) {
				ticket, _ := env.assigned(t)
				product, err := env.svc.Catalog.CreateProduct(context.Background(), ProductInput{
					Name:      gofakeit.ProductName(),
					Type:      domain.ProductTypeService,
					ListPrice: decimal.NewFromInt(40),
				})
				require.NoError(t, err)
				return ticket.ID, product.ID, 1
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "unknown product",
			prepare: func(t *testing.T, env *testEnv) (string, string, float64) {
				ticket, _ := env.assigned(t)
				return ticket.ID, gofakeit.UUID(), 1
			},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name: "unknown ticket",
			prepare: func(t *testing.T, env *testEnv) (string, string, float64) {
				return gofakeit.UUID(), env.product(t, 5, 5).ID, 1
			},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name: "cancelled ticket",
			prepare: func(t *testing.T, env *testEnv) (string, string, float64) {
				ticket, _ := env.assigned(t)
				_, err := env.svc.Interventions.Cancel(context.Background(), ticket.ID)
				require.NoError(t, err)
				return ticket.ID, env.product(t, 5, 5).ID, 1
			},
			wantErr: apperrors.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			ticketID, productID, qty := tt.prepare(t, env)

			line, err := env.svc.Stock.RecordPart(context.Background(), ticketID, productID, qty)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, line)
			assert.Empty(t, env.store.Moves())
		})
	}
}

func TestStockService_RemovePartLine_ReturnsStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ticket, _ := env.assigned(t)
	product := env.product(t, 15, 6)

	line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 2.0, env.available(t, product.ID))

	require.NoError(t, env.svc.Stock.RemovePartLine(ctx, line.ID))

	moves := env.store.Moves()
	require.Len(t, moves, 2)
	returns := lo.Filter(moves, func(m domain.StockMove, _ int) bool {
		return m.SourceLocation == env.cfg.Stock.CustomerLocation
	})
	require.Len(t, returns, 1)
	assert.Equal(t, env.cfg.Stock.SourceLocation, returns[0].DestinationLocation)
	assert.Equal(t, 4.0, returns[0].Quantity)
	assert.Equal(t, domain.MoveStateDone, returns[0].State)

	assert.Equal(t, 6.0, env.available(t, product.ID))
	lines, err := env.svc.Stock.ListPartLines(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.True(t, env.reload(t, ticket.ID).MaterialCost.IsZero())

	err = env.svc.Stock.RemovePartLine(ctx, line.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStockService_UpdatePartLine(t *testing.T) {
	t.Parallel()

	t.Run("quantity change returns then reissues stock", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket, _ := env.assigned(t)
		product := env.product(t, 10, 5)

		line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 2)
		require.NoError(t, err)
		firstMove := *line.StockMoveID

		// The whole on-hand quantity is usable once the previous move is returned.
		updated, err := env.svc.Stock.UpdatePartLine(ctx, line.ID, PartLineUpdate{Quantity: ptr(5.0)})
		require.NoError(t, err)
		assert.Equal(t, 5.0, updated.Quantity)
		decimalEqual(t, 50, updated.Subtotal)
		require.NotNil(t, updated.StockMoveID)
		assert.NotEqual(t, firstMove, *updated.StockMoveID)

		assert.Len(t, env.store.Moves(), 3)
		assert.Equal(t, 0.0, env.available(t, product.ID))
		decimalEqual(t, 50, env.reload(t, ticket.ID).MaterialCost)
	})

	t.Run("insufficient stock rolls back the return", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket, _ := env.assigned(t)
		product := env.product(t, 10, 5)

		line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 2)
		require.NoError(t, err)

		_, err = env.svc.Stock.UpdatePartLine(ctx, line.ID, PartLineUpdate{Quantity: ptr(6.0)})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

		assert.Len(t, env.store.Moves(), 1)
		assert.Equal(t, 3.0, env.available(t, product.ID))
		lines, err := env.svc.Stock.ListPartLines(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 2.0, lines[0].Quantity)
	})

	t.Run("product change moves both products", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket, _ := env.assigned(t)
		first := env.product(t, 10, 5)
		second := env.product(t, 30, 5)

		line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, first.ID, 2)
		require.NoError(t, err)

		updated, err := env.svc.Stock.UpdatePartLine(ctx, line.ID, PartLineUpdate{ProductID: &second.ID})
		require.NoError(t, err)
		assert.Equal(t, second.ID, updated.ProductID)
		assert.Equal(t, second.Name, updated.ProductName)
		decimalEqual(t, 60, updated.Subtotal)

		assert.Equal(t, 5.0, env.available(t, first.ID))
		assert.Equal(t, 3.0, env.available(t, second.ID))
	})

	t.Run("unchanged line issues no move", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		ctx := context.Background()
		ticket, _ := env.assigned(t)
		product := env.product(t, 10, 5)

		line, err := env.svc.Stock.RecordPart(ctx, ticket.ID, product.ID, 2)
		require.NoError(t, err)

		_, err = env.svc.Stock.UpdatePartLine(ctx, line.ID, PartLineUpdate{Quantity: ptr(2.0)})
		require.NoError(t, err)
		assert.Len(t, env.store.Moves(), 1)
	})
}

func TestStockService_AdjustStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	product := env.product(t, 10, 4)

	qty, err := env.svc.Stock.AdjustStock(ctx, product.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, qty)

	_, err = env.svc.Stock.AdjustStock(ctx, product.ID, -4)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	_, err = env.svc.Stock.AdjustStock(ctx, product.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Equal(t, 3.0, env.available(t, product.ID))
}
