package orders

import (
	"context"
)

func (t *repoTx) AddReservation(ctx context.Context, r Reservation) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO reservations(order_id, line_no, product_id, qty, status)
		VALUES ($1,$2,$3,$4,'RESERVED')`,
		r.OrderID, r.LineNo, r.ProductID, r.Qty)
	return err
}

// ActiveReservations mengunci baris RESERVED milik order (FOR UPDATE).
func (t *repoTx) ActiveReservations(ctx context.Context, orderID string) ([]Reservation, error) {
	rows, err := t.q.Query(ctx, `
		SELECT order_id, line_no, product_id, qty, status, created_at
		FROM reservations
		WHERE order_id=$1 AND status='RESERVED'
		ORDER BY line_no
		FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var (
			r      Reservation
			status string
		)
		if err := rows.Scan(&r.OrderID, &r.LineNo, &r.ProductID, &r.Qty, &status, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = ReservationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *repoTx) SettleReservations(ctx context.Context, orderID string, to ReservationStatus) error {
	_, err := t.q.Exec(ctx, `
		UPDATE reservations SET status=$2, settled_at=now()
		WHERE order_id=$1 AND status='RESERVED'`, orderID, string(to))
	return err
}
