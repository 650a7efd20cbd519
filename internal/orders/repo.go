package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kyanz/pos-reservations/internal/postgres"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. Stok dikunci per baris (FOR UPDATE) di dalam tx.
type Repo struct {
	DB     *pgxpool.Pool
	TxOpts postgres.TxOptions
}

// pgxpool.Pool dan pgx.Tx sama-sama memenuhi ini.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repoTx struct{ q querier }

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return postgres.RunTx(ctx, r.DB, r.TxOpts, func(tx pgx.Tx) error {
		return fn(ctx, &repoTx{q: tx})
	})
}

const productCols = `id, name, sku, stock, base_price::text, is_active, created_at, updated_at`

const orderCols = `id, customer_name, phone, email, remarks, created_by, status, items,
	override_total::text, final_total::text, payment_method, paid_at, paid_by,
	receipt_no, receipt_ref, proofs, cancelled_by, cancelled_at, share_token,
	created_at, updated_at`

const orderInsertCols = `id, customer_name, phone, email, remarks, created_by, status, items,
	override_total, final_total, payment_method, paid_at, paid_by,
	receipt_no, receipt_ref, proofs, cancelled_by, cancelled_at, share_token,
	created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Stock, &price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNoRows
		}
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s base_price: %w", p.ID, err)
	}
	p.BasePrice = d
	return p, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o             Order
		status        string
		items, proofs []byte
		override      *string
		final         string
	)
	err := row.Scan(&o.ID, &o.Name, &o.Phone, &o.Email, &o.Remarks, &o.CreatedBy, &status, &items,
		&override, &final, &o.Payment.Method, &o.Payment.PaidAt, &o.Payment.PaidBy,
		&o.Receipt.ReceiptNo, &o.Receipt.ArtifactRef, &proofs, &o.CancelledBy, &o.CancelledAt, &o.ShareToken,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNoRows
		}
		return Order{}, err
	}
	o.Status = Status(status)
	if err := json.Unmarshal(items, &o.Lines); err != nil {
		return Order{}, fmt.Errorf("order %s items: %w", o.ID, err)
	}
	if err := json.Unmarshal(proofs, &o.Proofs); err != nil {
		return Order{}, fmt.Errorf("order %s proofs: %w", o.ID, err)
	}
	if override != nil {
		d, err := decimal.NewFromString(*override)
		if err != nil {
			return Order{}, fmt.Errorf("order %s override_total: %w", o.ID, err)
		}
		o.OverrideTotal = &d
	}
	if o.FinalTotal, err = decimal.NewFromString(final); err != nil {
		return Order{}, fmt.Errorf("order %s final_total: %w", o.ID, err)
	}
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullableDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func orderArgs(o *Order) ([]any, error) {
	lines := o.Lines
	if lines == nil {
		lines = []Line{}
	}
	items, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}
	pr := o.Proofs
	if pr == nil {
		pr = []Proof{}
	}
	proofs, err := json.Marshal(pr)
	if err != nil {
		return nil, err
	}
	return []any{
		o.ID, o.Name, o.Phone, o.Email, o.Remarks, o.CreatedBy, string(o.Status), string(items),
		nullableDecimal(o.OverrideTotal), o.FinalTotal.String(), o.Payment.Method, o.Payment.PaidAt, o.Payment.PaidBy,
		o.Receipt.ReceiptNo, o.Receipt.ArtifactRef, string(proofs), o.CancelledBy, o.CancelledAt, o.ShareToken,
		o.CreatedAt, o.UpdatedAt,
	}, nil
}

// ---- Store (baca di luar tx) ----

func (r *Repo) FindOrders(ctx context.Context, f Filter) ([]Order, error) {
	return findOrders(ctx, r.DB, f)
}

func findOrders(ctx context.Context, q querier, f Filter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		args = append(args, s, strings.ToLower(s), "%"+escapeLike(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(phone = $%d OR email = $%d OR customer_name ILIKE $%d OR receipt_no ILIKE $%d)", n-2, n-1, n, n))
	}
	sql := `SELECT ` + orderCols + ` FROM orders`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, PageLimit(f.Limit, ListLimit))
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
}

func (r *Repo) OrderByShareToken(ctx context.Context, token string) (Order, error) {
	if token == "" {
		return Order{}, ErrNoRows
	}
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE share_token=$1`, token))
}

func (r *Repo) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

// ---- Tx: produk ----

func (t *repoTx) ProductForUpdate(ctx context.Context, id string) (Product, error) {
	return scanProduct(t.q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

func (t *repoTx) SetStock(ctx context.Context, productID string, stock int) error {
	ct, err := t.q.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, stock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNoRows
	}
	return nil
}

func (t *repoTx) InsertProduct(ctx context.Context, p *Product) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO products(id, name, sku, stock, base_price, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8)`,
		p.ID, p.Name, p.SKU, p.Stock, p.BasePrice.String(), p.Active, p.CreatedAt, p.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return Validation("DUPLICATE_PRODUCT", "Product name already exists: "+p.Name)
	}
	return err
}

func (t *repoTx) UpdateProduct(ctx context.Context, p *Product) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE products SET name=$2, sku=$3, stock=$4, base_price=$5::numeric, is_active=$6, updated_at=$7
		WHERE id=$1`,
		p.ID, p.Name, p.SKU, p.Stock, p.BasePrice.String(), p.Active, p.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return Validation("DUPLICATE_PRODUCT", "Product name already exists: "+p.Name)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNoRows
	}
	return nil
}

// ---- Tx: order ----

// LockCustomer mengambil advisory lock per phone/email sampai tx selesai.
// Kunci diurutkan supaya dua tx tidak saling menunggu.
func (t *repoTx) LockCustomer(ctx context.Context, phone, email string) error {
	keys := []string{"phone:" + phone}
	if email != "" {
		keys = append(keys, "email:"+email)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
	}
	return nil
}

func (t *repoTx) FindOpenOrder(ctx context.Context, phone, email string) (Order, error) {
	sql := `SELECT ` + orderCols + ` FROM orders WHERE status='reserved' AND (phone=$1`
	args := []any{phone}
	if email != "" {
		sql += ` OR email=$2`
		args = append(args, email)
	}
	sql += `) ORDER BY created_at LIMIT 1`
	return scanOrder(t.q.QueryRow(ctx, sql, args...))
}

func (t *repoTx) OrderForUpdate(ctx context.Context, id string) (Order, error) {
	return scanOrder(t.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *repoTx) OpenOrdersForUpdate(ctx context.Context) ([]Order, error) {
	rows, err := t.q.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE status='reserved' ORDER BY created_at FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (t *repoTx) InsertOrder(ctx context.Context, o *Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO orders(`+orderInsertCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9::numeric,$10::numeric,$11,$12,$13,$14,$15,$16::jsonb,$17,$18,$19,$20,$21)`,
		args...)
	return err
}

func (t *repoTx) UpdateOrder(ctx context.Context, o *Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	ct, err := t.q.Exec(ctx, `
		UPDATE orders SET customer_name=$2, phone=$3, email=$4, remarks=$5, created_by=$6, status=$7,
			items=$8::jsonb, override_total=$9::numeric, final_total=$10::numeric,
			payment_method=$11, paid_at=$12, paid_by=$13, receipt_no=$14, receipt_ref=$15,
			proofs=$16::jsonb, cancelled_by=$17, cancelled_at=$18, share_token=$19, created_at=$20, updated_at=$21
		WHERE id=$1`, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNoRows
	}
	return nil
}
