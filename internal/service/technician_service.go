package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
	"github.com/fieldops/intervention-service/internal/repository"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// TechnicianService is the technician directory: availability, specialties and assignment claims.
type TechnicianService struct {
	tx          persistence.Transactor
	technicians repository.TechnicianRepository
	tickets     repository.TicketRepository
	references  repository.ReferenceRepository
	logger      *zap.Logger
}

// TechnicianDependencies bundles collaborators.
type TechnicianDependencies struct {
	Tx             persistence.Transactor
	TechnicianRepo repository.TechnicianRepository
	TicketRepo     repository.TicketRepository
	ReferenceRepo  repository.ReferenceRepository
	Logger         *zap.Logger
}

// TechnicianInput describes a technician registration.
type TechnicianInput struct {
	ID              string
	Name            string
	Email           string
	SpecialtyIDs    []string
	CurrentLocation string
}

// TechnicianProfileUpdate changes profile fields. Availability is not part of it.
type TechnicianProfileUpdate struct {
	Name            *string
	Email           *string
	IsTechnician    *bool
	SpecialtyIDs    *[]string
	CurrentLocation *string
}

// TechnicianView is a technician with its derived counters.
type TechnicianView struct {
	domain.Technician
	Stats domain.TechnicianStats
}

// NewTechnicianService constructs the service.
func NewTechnicianService(deps TechnicianDependencies) *TechnicianService {
	return &TechnicianService{
		tx:          deps.Tx,
		technicians: deps.TechnicianRepo,
		tickets:     deps.TicketRepo,
		references:  deps.ReferenceRepo,
		logger:      nopIfNil(deps.Logger),
	}
}

// FindAvailable lists eligible, available technicians ordered by name then id.
func (s *TechnicianService) FindAvailable(ctx context.Context, specialtyID *string) ([]domain.Technician, error) {
	techs, err := s.technicians.List(ctx, repository.TechnicianFilter{
		SpecialtyID:     specialtyID,
		Available:       ptr(true),
		TechniciansOnly: true,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return techs, nil
}

// Assign claims the first available technician. Candidates lost to a concurrent claim are skipped.
func (s *TechnicianService) Assign(ctx context.Context, specialtyID *string) (*domain.Technician, error) {
	candidates, err := s.FindAvailable(ctx, specialtyID)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		tech := candidates[i]
		claimed, err := s.technicians.Claim(ctx, tech.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !claimed {
			s.logger.Debug("technician claimed concurrently", zap.String("technician_id", tech.ID))
			continue
		}
		tech.Available = false
		return &tech, nil
	}
	details := map[string]any{}
	if specialtyID != nil {
		details["specialty_id"] = *specialtyID
	}
	return nil, apperrors.NewNoTechnicianAvailable(details)
}

// Claim reserves a specific technician for a manual assignment.
func (s *TechnicianService) Claim(ctx context.Context, technicianID string) (*domain.Technician, error) {
	tech, err := s.technicians.GetByID(ctx, technicianID)
	if err != nil {
		return nil, lookupErr(err, "technician", technicianID)
	}
	if !tech.IsTechnician {
		return nil, apperrors.NewValidationError("user is not an intervention technician", map[string]any{"technician_id": technicianID})
	}
	claimed, err := s.technicians.Claim(ctx, technicianID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !claimed {
		return nil, apperrors.NewNoTechnicianAvailable(map[string]any{"technician_id": technicianID})
	}
	tech.Available = false
	return tech, nil
}

// Release marks the technician available again.
func (s *TechnicianService) Release(ctx context.Context, technicianID string) error {
	if err := s.technicians.SetAvailable(ctx, technicianID, true); err != nil {
		return lookupErr(err, "technician", technicianID)
	}
	return nil
}

// Register adds a technician to the directory. New technicians start available.
func (s *TechnicianService) Register(ctx context.Context, input TechnicianInput) (*domain.Technician, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	tech := &domain.Technician{
		ID:              input.ID,
		Name:            name,
		Email:           strings.TrimSpace(input.Email),
		IsTechnician:    true,
		Available:       true,
		SpecialtyIDs:    lo.Uniq(input.SpecialtyIDs),
		CurrentLocation: input.CurrentLocation,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.checkSpecialties(ctx, tech.SpecialtyIDs); err != nil {
			return err
		}
		return apperrors.MapError(s.technicians.Create(ctx, tech))
	})
	if err != nil {
		return nil, err
	}
	return tech, nil
}

// Get returns the technician with its intervention counters.
func (s *TechnicianService) Get(ctx context.Context, technicianID string) (*TechnicianView, error) {
	tech, err := s.technicians.GetByID(ctx, technicianID)
	if err != nil {
		return nil, lookupErr(err, "technician", technicianID)
	}
	view := &TechnicianView{Technician: *tech}
	if !tech.IsTechnician {
		return view, nil
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{TechnicianID: &tech.ID, InterventionOnly: true})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	view.Stats = domain.TechnicianStats{
		InterventionCount: len(tickets),
		CurrentInterventions: lo.CountBy(tickets, func(t domain.InterventionTicket) bool {
			return t.State.IsOpenJob()
		}),
	}
	return view, nil
}

// UpdateProfile changes name, specialties or location.
func (s *TechnicianService) UpdateProfile(ctx context.Context, technicianID string, update TechnicianProfileUpdate) (*domain.Technician, error) {
	var tech *domain.Technician
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		tech, err = s.technicians.GetByID(ctx, technicianID)
		if err != nil {
			return lookupErr(err, "technician", technicianID)
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return apperrors.NewValidationError("name is required", nil)
			}
			tech.Name = name
		}
		if update.Email != nil {
			tech.Email = strings.TrimSpace(*update.Email)
		}
		if update.IsTechnician != nil {
			tech.IsTechnician = *update.IsTechnician
		}
		if update.CurrentLocation != nil {
			tech.CurrentLocation = *update.CurrentLocation
		}
		if update.SpecialtyIDs != nil {
			ids := lo.Uniq(*update.SpecialtyIDs)
			if err := s.checkSpecialties(ctx, ids); err != nil {
				return err
			}
			tech.SpecialtyIDs = ids
		}
		return apperrors.MapError(s.technicians.UpdateProfile(ctx, tech))
	})
	if err != nil {
		return nil, err
	}
	return tech, nil
}

func (s *TechnicianService) checkSpecialties(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.references.GetSpecialty(ctx, id); err != nil {
			if apperrors.IsNoRows(err) {
				return apperrors.NewValidationError("unknown specialty", map[string]any{"specialty_id": id})
			}
			return apperrors.MapError(err)
		}
	}
	return nil
}
