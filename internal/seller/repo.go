package seller

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

var ErrNotFound = errors.New("seller order not found")

type Repository interface {
	FindByParentAndSeller(ctx context.Context, parentOrderID, sellerID string) (SellerOrder, error)
	Create(ctx context.Context, so *SellerOrder) error
	SetStatus(ctx context.Context, id string, to status.SellerOrder) (bool, error)
	Get(ctx context.Context, id string) (SellerOrder, error)
	ListBySeller(ctx context.Context, sellerID string) ([]SellerOrder, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

// FindByParentAndSeller: lookup natural key sebelum insert.
func (r *Repo) FindByParentAndSeller(ctx context.Context, parentOrderID, sellerID string) (SellerOrder, error) {
	var so SellerOrder
	err := r.DB.QueryRow(ctx, `
		SELECT id, parent_order_id, seller_id, user_id, status, created_at, updated_at
		FROM seller_orders WHERE parent_order_id=$1 AND seller_id=$2
	`, parentOrderID, sellerID).Scan(&so.ID, &so.ParentOrderID, &so.SellerID, &so.UserID,
		&so.Status, &so.CreatedAt, &so.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SellerOrder{}, ErrNotFound
	}
	if err != nil {
		return SellerOrder{}, err
	}
	so.Items, err = r.items(ctx, so.ID)
	return so, err
}

// Create: unique index (parent_order_id, seller_id) jadi jaring terakhir kalau
// dua consumer balapan di lookup.
func (r *Repo) Create(ctx context.Context, so *SellerOrder) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	so.ID = uuid.NewString()
	so.Status = status.SellerOrderPlaced

	ct, err := tx.Exec(ctx, `
		INSERT INTO seller_orders(id, parent_order_id, seller_id, user_id, status)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (parent_order_id, seller_id) DO NOTHING
	`, so.ID, so.ParentOrderID, so.SellerID, so.UserID, so.Status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Kalah balapan: pakai baris yang menang.
		if err := tx.QueryRow(ctx, `
			SELECT id FROM seller_orders WHERE parent_order_id=$1 AND seller_id=$2
		`, so.ParentOrderID, so.SellerID).Scan(&so.ID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	for _, it := range so.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO seller_order_items(seller_order_id, product_id, variant_id, title_snapshot, price_snapshot, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, so.ID, it.ProductID, it.VariantID, it.TitleSnapshot, it.PriceSnapshot, it.Quantity); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO seller_order_history(seller_order_id, status) VALUES ($1,$2)
	`, so.ID, so.Status); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetStatus: no-op kalau status sudah sama (replay); selain itu set + append
// history. Mapping vocab sudah diurus caller.
func (r *Repo) SetStatus(ctx context.Context, id string, to status.SellerOrder) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur status.SellerOrder
	err = tx.QueryRow(ctx, `SELECT status FROM seller_orders WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if cur == to || cur == status.SellerOrderCancelled {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE seller_orders SET status=$1, updated_at=now() WHERE id=$2`, to, id); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO seller_order_history(seller_order_id, status) VALUES ($1,$2)`, id, to); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id string) (SellerOrder, error) {
	var so SellerOrder
	err := r.DB.QueryRow(ctx, `
		SELECT id, parent_order_id, seller_id, user_id, status, created_at, updated_at
		FROM seller_orders WHERE id=$1
	`, id).Scan(&so.ID, &so.ParentOrderID, &so.SellerID, &so.UserID, &so.Status, &so.CreatedAt, &so.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SellerOrder{}, ErrNotFound
	}
	if err != nil {
		return SellerOrder{}, err
	}

	if so.Items, err = r.items(ctx, id); err != nil {
		return SellerOrder{}, err
	}
	so.History, err = r.history(ctx, id)
	return so, err
}

func (r *Repo) ListBySeller(ctx context.Context, sellerID string) ([]SellerOrder, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, parent_order_id, seller_id, user_id, status, created_at, updated_at
		FROM seller_orders WHERE seller_id=$1 ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SellerOrder
	for rows.Next() {
		var so SellerOrder
		if err := rows.Scan(&so.ID, &so.ParentOrderID, &so.SellerID, &so.UserID,
			&so.Status, &so.CreatedAt, &so.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, so)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Items, err = r.items(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) items(ctx context.Context, sellerOrderID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, variant_id, title_snapshot, price_snapshot, quantity
		FROM seller_order_items WHERE seller_order_id=$1
	`, sellerOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.TitleSnapshot, &it.PriceSnapshot, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) history(ctx context.Context, sellerOrderID string) ([]StatusChange, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, created_at FROM seller_order_history
		WHERE seller_order_id=$1 ORDER BY created_at
	`, sellerOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.Status, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
