package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrisdamba/messforecast/internal/models"
)

type MenuRepository struct {
	pool *pgxpool.Pool
}

func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

func (r *MenuRepository) ListAll(ctx context.Context) ([]models.MenuEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT day, breakfast, lunch, dinner FROM menus ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.MenuEntry
	for rows.Next() {
		var e models.MenuEntry
		if err := rows.Scan(&e.Day, &e.Breakfast, &e.Lunch, &e.Dinner); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *MenuRepository) BulkCreate(ctx context.Context, entries []models.MenuEntry) error {
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"menus"},
		[]string{"day", "breakfast", "lunch", "dinner"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]interface{}, error) {
			return []interface{}{
				entries[i].Day,
				entries[i].Breakfast,
				entries[i].Lunch,
				entries[i].Dinner,
			}, nil
		}),
	)
	return err
}

func (r *MenuRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE menus RESTART IDENTITY")
	return err
}
