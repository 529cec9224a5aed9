package pgorder

import (
	"context"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Справочник для маршрутизации уведомлений и фичи "удиви меня":
// кто владеет траком и кто администраторы платформы. Сами профили
// пользователей живут во внешнем identity-провайдере.

func (s *Storage) UpsertTruck(ctx context.Context, truck models.TruckRef) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO trucks (id, name, owner_id, created_at)
VALUES ($1,$2,$3, now())
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, owner_id = EXCLUDED.owner_id
`, truck.ID, truck.Name, truck.OwnerID)
	return errors.Wrap(err, "upsert truck")
}

func (s *Storage) GetTruck(ctx context.Context, truckID string) (*models.TruckRef, error) {
	var t models.TruckRef
	err := s.db.QueryRow(ctx, `
SELECT id, name, owner_id FROM trucks WHERE id = $1
`, truckID).Scan(&t.ID, &t.Name, &t.OwnerID)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(models.ErrTruckNotFound, "truck %s", truckID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select truck")
	}
	return &t, nil
}

func (s *Storage) RandomTruck(ctx context.Context) (*models.TruckRef, error) {
	var t models.TruckRef
	err := s.db.QueryRow(ctx, `
SELECT id, name, owner_id FROM trucks ORDER BY random() LIMIT 1
`).Scan(&t.ID, &t.Name, &t.OwnerID)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(models.ErrTruckNotFound, "no trucks registered")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select random truck")
	}
	return &t, nil
}

func (s *Storage) AddAdmin(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO platform_admins (user_id) VALUES ($1) ON CONFLICT DO NOTHING
`, userID)
	return errors.Wrap(err, "add admin")
}

func (s *Storage) ListAdmins(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM platform_admins ORDER BY user_id`)
	if err != nil {
		return nil, errors.Wrap(err, "select admins")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan admin")
		}
		out = append(out, id)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
