package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrisdamba/messforecast/internal/models"
)

type IngredientRepository struct {
	pool *pgxpool.Pool
}

func NewIngredientRepository(pool *pgxpool.Pool) *IngredientRepository {
	return &IngredientRepository{pool: pool}
}

func (r *IngredientRepository) ListAll(ctx context.Context) ([]models.IngredientRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, unit, per_person, dishes FROM ingredients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.IngredientRule
	for rows.Next() {
		var rule models.IngredientRule
		if err := rows.Scan(&rule.Name, &rule.Unit, &rule.PerPerson, &rule.Dishes); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// BulkCreate upserts by ingredient name.
func (r *IngredientRepository) BulkCreate(ctx context.Context, rules []models.IngredientRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO ingredients (name, unit, per_person, dishes)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (name) DO UPDATE
        SET unit = EXCLUDED.unit, per_person = EXCLUDED.per_person, dishes = EXCLUDED.dishes
    `
	for _, rule := range rules {
		dishes := rule.Dishes
		if dishes == nil {
			dishes = []string{}
		}
		if _, err := tx.Exec(ctx, query, rule.Name, rule.Unit, rule.PerPerson, dishes); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *IngredientRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE ingredients")
	return err
}
