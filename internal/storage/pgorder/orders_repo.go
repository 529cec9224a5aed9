package pgorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const orderColumns = `
  id, order_number, customer_id, truck_id, lines,
  subtotal_cents, tax_cents, tip_cents, total_cents,
  status, notes, rejected_reason, payment_status,
  completed_at, created_at, updated_at
`

// CreateOrder вставляет заказ в статусе pending и неявную запись
// ('' -> pending) в журнал переходов. Обе записи в одной транзакции.
func (s *Storage) CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error) {
	now := time.Now().UTC()

	linesJSON, err := json.Marshal(in.Lines)
	if err != nil {
		return nil, errors.Wrap(err, "marshal lines")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO orders (
  customer_id, truck_id, lines,
  subtotal_cents, tax_cents, tip_cents, total_cents,
  status, notes, payment_status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING id
`, in.CustomerID, in.TruckID, linesJSON,
		in.SubtotalCents, in.TaxCents, in.TipCents, in.TotalCents,
		models.OrderStatusPending, in.Notes, models.PaymentStatusPending, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	orderNumber := fmt.Sprintf("SE-%s-%06d", now.Format("20060102"), id)
	if _, err := tx.Exec(ctx, `UPDATE orders SET order_number = $2 WHERE id = $1`, id, orderNumber); err != nil {
		return nil, errors.Wrap(err, "set order number")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO order_transitions (order_id, from_status, to_status, actor, occurred_at)
VALUES ($1, '', $2, $3, $4)
`, id, models.OrderStatusPending, in.CustomerID, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert initial transition")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetOrderByID(ctx, id)
}

// TransitionOrder применяет переход только если текущий статус всё ещё равен
// from: условный UPDATE и запись в журнал идут одной транзакцией. Ноль
// обновлённых строк при существующем заказе означает, что вызывающий считал
// устаревший статус.
func (s *Storage) TransitionOrder(ctx context.Context, orderID uint64, from, to, actor, note string) (*models.Order, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE orders
SET
  status = $3,
  updated_at = $4,
  completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END,
  rejected_reason = CASE WHEN $3 = 'rejected' AND $5 <> '' THEN $5 ELSE rejected_reason END
WHERE id = $1 AND status = $2
`, orderID, from, to, now, note)
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}

	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
		if err == pgx.ErrNoRows {
			return nil, errors.Wrapf(models.ErrOrderNotFound, "order %d", orderID)
		}
		if err != nil {
			return nil, errors.Wrap(err, "check order status")
		}
		return nil, errors.Wrapf(models.ErrStaleStatus, "expected %s, current %s", from, current)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO order_transitions (order_id, from_status, to_status, actor, note, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, orderID, from, to, actor, note, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert transition")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetOrderByID(ctx, orderID)
}

// UpdatePaymentStatus трогает только поле оплаты; машина статусов не участвует.
func (s *Storage) UpdatePaymentStatus(ctx context.Context, orderID uint64, paymentStatus string) (*models.Order, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1
`, orderID, paymentStatus)
	if err != nil {
		return nil, errors.Wrap(err, "update payment status")
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.Wrapf(models.ErrOrderNotFound, "order %d", orderID)
	}
	return s.GetOrderByID(ctx, orderID)
}

func (s *Storage) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(models.ErrOrderNotFound, "order %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

func (s *Storage) ListOrdersByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, error) {
	return s.listOrders(ctx, `customer_id = $1`, customerID, limit, offset)
}

func (s *Storage) ListOrdersByTruck(ctx context.Context, truckID string, limit, offset int) ([]*models.Order, error) {
	return s.listOrders(ctx, `truck_id = $1`, truckID, limit, offset)
}

func (s *Storage) ListOrdersByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	return s.listOrders(ctx, `status = $1`, status, limit, offset)
}

func (s *Storage) listOrders(ctx context.Context, where string, arg any, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE `+where+`
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, arg, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListOrderTransitions(ctx context.Context, orderID uint64) ([]*models.OrderTransition, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, from_status, to_status, actor, note, occurred_at
FROM order_transitions
WHERE order_id = $1
ORDER BY occurred_at ASC, id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select transitions")
	}
	defer rows.Close()

	var out []*models.OrderTransition
	for rows.Next() {
		var tr models.OrderTransition
		if err := rows.Scan(&tr.ID, &tr.OrderID, &tr.FromStatus, &tr.ToStatus, &tr.Actor, &tr.Note, &tr.OccurredAt); err != nil {
			return nil, errors.Wrap(err, "scan transition")
		}
		out = append(out, &tr)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var linesJSON []byte
	var rejectedReason *string
	var completedAt *time.Time
	if err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.TruckID, &linesJSON,
		&o.SubtotalCents, &o.TaxCents, &o.TipCents, &o.TotalCents,
		&o.Status, &o.Notes, &rejectedReason, &o.PaymentStatus,
		&completedAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, errors.Wrap(err, "unmarshal lines")
	}
	o.RejectedReason = rejectedReason
	o.CompletedAt = completedAt
	return &o, nil
}
