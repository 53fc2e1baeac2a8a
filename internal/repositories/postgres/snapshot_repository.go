package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrisdamba/messforecast/internal/models"
)

// SnapshotRepository appends forecast snapshots to the ingredient_forecasts table.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

func (r *SnapshotRepository) Name() string {
	return models.SinkPostgres
}

func (r *SnapshotRepository) Append(ctx context.Context, snapshot models.ForecastSnapshot) error {
	body, err := json.Marshal(snapshot.Forecast)
	if err != nil {
		return fmt.Errorf("error encoding forecast: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO ingredient_forecasts (id, created_at, forecast) VALUES ($1, $2, $3)`,
		snapshot.ID, snapshot.Timestamp, body,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into ingredient_forecasts: %w", err)
	}
	return nil
}
