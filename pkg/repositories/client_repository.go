package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/database"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

// ClientRepository defines the interface for client data access.
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	Get(ctx context.Context, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// clientRepository implements ClientRepository using PostgreSQL.
type clientRepository struct {
	db *database.DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db *database.DB) ClientRepository {
	return &clientRepository{db: db}
}

// Create inserts a new client or updates if it already exists (idempotent).
// Uses ON CONFLICT for safe retry behavior during provisioning.
func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	if _, err := access.GetScope(ctx); err != nil {
		return err
	}

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.OTDMode == "" {
		client.OTDMode = models.OTDModeStandard
	}

	query := `
		INSERT INTO engine_clients (id, name, code, otd_mode, otd_grace_days,
			efficiency_target, hold_aging_threshold_days, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    code = EXCLUDED.code,
		    otd_mode = EXCLUDED.otd_mode,
		    otd_grace_days = EXCLUDED.otd_grace_days,
		    efficiency_target = EXCLUDED.efficiency_target,
		    hold_aging_threshold_days = EXCLUDED.hold_aging_threshold_days,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		client.ID,
		client.Name,
		client.Code,
		client.OTDMode,
		client.OTDGraceDays,
		client.EfficiencyTarget,
		client.HoldAgingThresholdDays,
		client.Active,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// Get retrieves a client by ID. Scopes that do not include the client are
// denied with ErrClientAccessDenied rather than told the row is missing.
func (r *clientRepository) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireClient(id); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, code, otd_mode, otd_grace_days, efficiency_target,
		       hold_aging_threshold_days, active, created_at, updated_at
		FROM engine_clients
		WHERE id = $1`

	var client models.Client
	err = r.db.QueryRow(ctx, query, id).Scan(
		&client.ID,
		&client.Name,
		&client.Code,
		&client.OTDMode,
		&client.OTDGraceDays,
		&client.EfficiencyTarget,
		&client.HoldAgingThresholdDays,
		&client.Active,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return &client, nil
}

// List retrieves the clients visible to the caller's scope, active first.
func (r *clientRepository) List(ctx context.Context) ([]*models.Client, error) {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return nil, err
	}

	filter, args := scope.ClientFilter("id", 1)
	query := fmt.Sprintf(`
		SELECT id, name, code, otd_mode, otd_grace_days, efficiency_target,
		       hold_aging_threshold_days, active, created_at, updated_at
		FROM engine_clients
		WHERE %s
		ORDER BY active DESC, name`, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		var client models.Client
		err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.Code,
			&client.OTDMode,
			&client.OTDGraceDays,
			&client.EfficiencyTarget,
			&client.HoldAgingThresholdDays,
			&client.Active,
			&client.CreatedAt,
			&client.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, &client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Update updates a client's settings.
func (r *clientRepository) Update(ctx context.Context, client *models.Client) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(client.ID); err != nil {
		return err
	}

	client.UpdatedAt = time.Now()

	query := `
		UPDATE engine_clients
		SET name = $2, otd_mode = $3, otd_grace_days = $4, efficiency_target = $5,
		    hold_aging_threshold_days = $6, active = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		client.ID,
		client.Name,
		client.OTDMode,
		client.OTDGraceDays,
		client.EfficiencyTarget,
		client.HoldAgingThresholdDays,
		client.Active,
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Deactivate marks a client inactive. Rows are never deleted; historical
// entries keep their client for reporting.
func (r *clientRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	scope, err := access.GetScope(ctx)
	if err != nil {
		return err
	}
	if err := scope.RequireClient(id); err != nil {
		return err
	}

	query := `UPDATE engine_clients SET active = FALSE, updated_at = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate client: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure clientRepository implements ClientRepository at compile time.
var _ ClientRepository = (*clientRepository)(nil)
