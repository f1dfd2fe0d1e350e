package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/intervention-service/internal/domain"
	"github.com/fieldops/intervention-service/internal/persistence"
)

// StageRepository manages workflow stages.
type StageRepository interface {
	Create(ctx context.Context, stage *domain.Stage) error
	GetByID(ctx context.Context, id string) (*domain.Stage, error)
	// FindByKind returns the lowest-sequence stage of the given kind, preferring the team's own stages over shared ones.
	FindByKind(ctx context.Context, teamID *string, kind domain.StageKind) (*domain.Stage, error)
	ListByTeam(ctx context.Context, teamID string) ([]domain.Stage, error)
}

type stageRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewStageRepository constructs repository.
func NewStageRepository(pool *pgxpool.Pool) StageRepository {
	return &stageRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var stageColumns = []string{
	"id", "team_id", "name", "sequence", "kind", "is_intervention_stage", "auto_action", "require_signature",
}

func (r *stageRepository) Create(ctx context.Context, stage *domain.Stage) error {
	if stage.ID == "" {
		stage.ID = newID()
	}
	if stage.AutoAction == "" {
		stage.AutoAction = domain.ActionNone
	}
	sqlStr, args, err := r.sb.Insert("stages").
		Columns(stageColumns...).
		Values(stage.ID, stage.TeamID, stage.Name, stage.Sequence, stage.Kind, stage.IsInterventionStage,
			stage.AutoAction, stage.RequireSignature).
		ToSql()
	if err != nil {
		return err
	}
	_, err = persistence.Conn(ctx, r.pool).Exec(ctx, sqlStr, args...)
	return err
}

func (r *stageRepository) GetByID(ctx context.Context, id string) (*domain.Stage, error) {
	sqlStr, args, err := r.sb.Select(stageColumns...).From("stages").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanStage(persistence.Conn(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
}

func (r *stageRepository) FindByKind(ctx context.Context, teamID *string, kind domain.StageKind) (*domain.Stage, error) {
	q := r.sb.Select(stageColumns...).From("stages").Where(sq.Eq{"kind": kind})
	if teamID != nil {
		q = q.Where(sq.Or{sq.Eq{"team_id": *teamID}, sq.Eq{"team_id": nil}}).
			OrderBy("team_id IS NULL", "sequence", "id")
	} else {
		q = q.Where(sq.Eq{"team_id": nil}).OrderBy("sequence", "id")
	}
	sqlStr, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	return scanStage(persistence.Conn(ctx, r.pool).QueryRow(ctx, sqlStr, args...))
}

func (r *stageRepository) ListByTeam(ctx context.Context, teamID string) ([]domain.Stage, error) {
	sqlStr, args, err := r.sb.Select(stageColumns...).From("stages").
		Where(sq.Or{sq.Eq{"team_id": teamID}, sq.Eq{"team_id": nil}}).
		OrderBy("sequence", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *stage)
	}
	return result, rows.Err()
}

func scanStage(row pgx.Row) (*domain.Stage, error) {
	var (
		stage  domain.Stage
		action string
	)
	if err := row.Scan(
		&stage.ID,
		&stage.TeamID,
		&stage.Name,
		&stage.Sequence,
		&stage.Kind,
		&stage.IsInterventionStage,
		&action,
		&stage.RequireSignature,
	); err != nil {
		return nil, err
	}
	kind, err := domain.ParseActionKind(action)
	if err != nil {
		return nil, err
	}
	stage.AutoAction = kind
	return &stage, nil
}
