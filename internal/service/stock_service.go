package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// StockService tracks the parts consumed on interventions and the stock moves behind them.
type StockService struct {
	tx         persistence.Transactor
	tickets    repository.TicketRepository
	lines      repository.PartLineRepository
	products   repository.ProductRepository
	stock      repository.StockRepository
	dispatcher events.Dispatcher
	cfg        config.StockConfig
	logger     *zap.Logger
}

// StockDependencies bundles collaborators for the stock service.
type StockDependencies struct {
	Tx           persistence.Transactor
	TicketRepo   repository.TicketRepository
	PartLineRepo repository.PartLineRepository
	ProductRepo  repository.ProductRepository
	StockRepo    repository.StockRepository
	Dispatcher   events.Dispatcher
	Config       config.StockConfig
	Logger       *zap.Logger
}

// PartLineUpdate carries the fields a technician may change on a line. Nil leaves the value unchanged.
type PartLineUpdate struct {
	ProductID *string
	Quantity  *float64
}

// NewStockService constructs the service.
func NewStockService(deps StockDependencies) *StockService {
	return &StockService{
		tx:         deps.Tx,
		tickets:    deps.TicketRepo,
		lines:      deps.PartLineRepo,
		products:   deps.ProductRepo,
		stock:      deps.StockRepo,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Config,
		logger:     nopIfNil(deps.Logger),
	}
}

// RecordPart consumes quantity units of a product on a ticket and moves them to the customer location.
func (s *StockService) RecordPart(ctx context.Context, ticketID, productID string, quantity float64) (*domain.PartLine, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", map[string]any{"quantity": quantity})
	}
	var line *domain.PartLine
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.lockOpenTicket(ctx, ticketID, "record_part")
		if err != nil {
			return err
		}
		product, err := s.stockableProduct(ctx, productID)
		if err != nil {
			return err
		}
		if err := s.ensureAvailable(ctx, product, quantity); err != nil {
			return err
		}
		move, err := s.deliver(ctx, product.ID, quantity, ticket.Reference)
		if err != nil {
			return err
		}

		line = &domain.PartLine{
			TicketID:    ticket.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    quantity,
			StockMoveID: &move.ID,
		}
		line.ApplyPrice(product.ListPrice)
		if err := s.lines.Create(ctx, line); err != nil {
			return apperrors.MapError(err)
		}
		if err := saveTicket(ctx, s.tickets, s.lines, ticket); err != nil {
			return apperrors.MapError(err)
		}
		publishAfterCommit(ctx, s.dispatcher, events.EventPartRecorded, ticket.ID, events.PartPayload{
			PartLineID: line.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			Subtotal:   line.Subtotal,
			MoveID:     line.StockMoveID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdatePartLine changes the product or quantity of a line. A change first returns the stock of
// the previous move, then checks availability again and issues a new move.
func (s *StockService) UpdatePartLine(ctx context.Context, lineID string, update PartLineUpdate) (*domain.PartLine, error) {
	if update.Quantity != nil && *update.Quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", map[string]any{"quantity": *update.Quantity})
	}
	var line *domain.PartLine
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = s.lines.GetByID(ctx, lineID)
		if err != nil {
			return lookupErr(err, "part_line", lineID)
		}
		ticket, err := s.lockOpenTicket(ctx, line.TicketID, "update_part")
		if err != nil {
			return err
		}

		productID := line.ProductID
		if update.ProductID != nil {
			productID = *update.ProductID
		}
		quantity := line.Quantity
		if update.Quantity != nil {
			quantity = *update.Quantity
		}
		product, err := s.stockableProduct(ctx, productID)
		if err != nil {
			return err
		}

		if productID != line.ProductID || quantity != line.Quantity {
			if line.StockMoveID != nil {
				if err := s.returnMove(ctx, *line.StockMoveID); err != nil {
					return err
				}
			}
			if err := s.ensureAvailable(ctx, product, quantity); err != nil {
				return err
			}
			move, err := s.deliver(ctx, product.ID, quantity, ticket.Reference)
			if err != nil {
				return err
			}
			line.StockMoveID = &move.ID
		}

		line.ProductID = product.ID
		line.ProductName = product.Name
		line.Quantity = quantity
		line.ApplyPrice(product.ListPrice)
		if err := s.lines.Update(ctx, line); err != nil {
			return apperrors.MapError(err)
		}
		return apperrors.MapError(saveTicket(ctx, s.tickets, s.lines, ticket))
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemovePartLine deletes a line, returning its stock when the move had been executed.
func (s *StockService) RemovePartLine(ctx context.Context, lineID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		line, err := s.lines.GetByID(ctx, lineID)
		if err != nil {
			return lookupErr(err, "part_line", lineID)
		}
		ticket, err := s.lockOpenTicket(ctx, line.TicketID, "remove_part")
		if err != nil {
			return err
		}
		if line.StockMoveID != nil {
			if err := s.returnMove(ctx, *line.StockMoveID); err != nil {
				return err
			}
		}
		if err := s.lines.Delete(ctx, line.ID); err != nil {
			return apperrors.MapError(err)
		}
		if err := saveTicket(ctx, s.tickets, s.lines, ticket); err != nil {
			return apperrors.MapError(err)
		}
		publishAfterCommit(ctx, s.dispatcher, events.EventPartRemoved, ticket.ID, events.PartPayload{
			PartLineID: line.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			Subtotal:   line.Subtotal,
			MoveID:     line.StockMoveID,
		})
		return nil
	})
}

// ListPartLines returns the lines recorded on a ticket.
func (s *StockService) ListPartLines(ctx context.Context, ticketID string) ([]domain.PartLine, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	lines, err := s.lines.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return lines, nil
}

// Available returns the on-hand quantity of a product at the source location.
func (s *StockService) Available(ctx context.Context, productID string) (float64, error) {
	var qty float64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		qty, err = s.stock.AvailableForUpdate(ctx, productID, s.cfg.SourceLocation)
		return apperrors.MapError(err)
	})
	return qty, err
}

// AdjustStock corrects the on-hand quantity of a stockable product at the source location.
func (s *StockService) AdjustStock(ctx context.Context, productID string, delta float64) (float64, error) {
	if delta == 0 {
		return 0, apperrors.NewValidationError("adjustment must not be zero", nil)
	}
	var qty float64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.stockableProduct(ctx, productID); err != nil {
			return err
		}
		current, err := s.stock.AvailableForUpdate(ctx, productID, s.cfg.SourceLocation)
		if err != nil {
			return apperrors.MapError(err)
		}
		if current+delta < 0 {
			return &apperrors.InsufficientStockError{ProductID: productID, Available: current, Requested: -delta}
		}
		if err := s.stock.Adjust(ctx, productID, s.cfg.SourceLocation, delta); err != nil {
			return apperrors.MapError(err)
		}
		qty = current + delta
		return nil
	})
	return qty, err
}

func (s *StockService) lockOpenTicket(ctx context.Context, ticketID, action string) (*domain.InterventionTicket, error) {
	ticket, err := s.tickets.GetForUpdate(ctx, ticketID)
	if err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	if ticket.State.IsTerminal() {
		return nil, apperrors.NewInvalidTransition(action, string(ticket.State))
	}
	return ticket, nil
}

func (s *StockService) stockableProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, lookupErr(err, "product", productID)
	}
	if product.IsService() {
		return nil, apperrors.NewValidationError("service products cannot be consumed as parts", map[string]any{"product_id": productID})
	}
	return product, nil
}

func (s *StockService) ensureAvailable(ctx context.Context, product *domain.Product, quantity float64) error {
	available, err := s.stock.AvailableForUpdate(ctx, product.ID, s.cfg.SourceLocation)
	if err != nil {
		return apperrors.MapError(err)
	}
	if quantity > available {
		return &apperrors.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   available,
			Requested:   quantity,
		}
	}
	return nil
}

// deliver creates, confirms and executes a move from the source to the customer location.
func (s *StockService) deliver(ctx context.Context, productID string, quantity float64, origin string) (*domain.StockMove, error) {
	move := &domain.StockMove{
		Name:                "Intervention " + origin,
		ProductID:           productID,
		Quantity:            quantity,
		SourceLocation:      s.cfg.SourceLocation,
		DestinationLocation: s.cfg.CustomerLocation,
		Origin:              origin,
	}
	if err := s.execute(ctx, move); err != nil {
		return nil, err
	}
	return move, nil
}

// returnMove issues the compensating move for an executed move. Moves not yet done are left alone.
func (s *StockService) returnMove(ctx context.Context, moveID string) error {
	move, err := s.stock.GetMove(ctx, moveID)
	if err != nil {
		return lookupErr(err, "stock_move", moveID)
	}
	if move.State != domain.MoveStateDone {
		return nil
	}
	return s.execute(ctx, move.Reversed())
}

func (s *StockService) execute(ctx context.Context, move *domain.StockMove) error {
	if err := s.stock.CreateMove(ctx, move); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.stock.ConfirmMove(ctx, move.ID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.stock.CompleteMove(ctx, move.ID); err != nil {
		if errors.Is(err, repository.ErrMoveAlreadyDone) {
			return apperrors.NewConflict("stock move already done", map[string]any{"move_id": move.ID})
		}
		return apperrors.MapError(err)
	}
	move.State = domain.MoveStateDone
	return nil
}
