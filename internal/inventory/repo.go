package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("inventory record not found")

type ItemQty struct {
	ProductID string
	Qty       int
}

type Repository interface {
	AllReserved(ctx context.Context, orderID string, itemCount int) (bool, error)
	ReserveAll(ctx context.Context, orderID string, items []ItemQty) (ok bool, reason string, err error)
	Release(ctx context.Context, orderID, productID string, qty int) error
	Upsert(ctx context.Context, rec *Record) error
	GetByProduct(ctx context.Context, productID string) (Record, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

// AllReserved: idempotency short-circuit, replay ORDER_CREATED yang sudah beres.
func (r *Repo) AllReserved(ctx context.Context, orderID string, itemCount int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id=$1 AND status='RESERVED'`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == itemCount, nil
}

// ReserveAll: all-or-nothing dalam satu tx. Decrement pakai conditional UPDATE
// (current_stock >= qty), bukan read-modify-write, supaya benar saat order
// concurrent rebutan product yang sama. Satu item kurang -> rollback semua,
// return reason tanpa error.
func (r *Repo) ReserveAll(ctx context.Context, orderID string, items []ItemQty) (bool, string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		// Reservation row dulu. Conflict = replay yang sudah decrement stok
		// pada delivery sebelumnya; jangan decrement dua kali.
		ct, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, product_id, qty, status)
			VALUES ($1,$2,$3,'RESERVED')
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, orderID, it.ProductID, it.Qty)
		if err != nil {
			return false, "", err
		}
		if ct.RowsAffected() == 0 {
			continue
		}

		ct, err = tx.Exec(ctx, `
			UPDATE inventory
			SET current_stock = current_stock - $2,
			    reserved_stock = reserved_stock + $2,
			    updated_at = now()
			WHERE product_id=$1 AND current_stock >= $2
		`, it.ProductID, it.Qty)
		if err != nil {
			return false, "", err
		}
		if ct.RowsAffected() == 0 {
			// Tidak ada record atau stok kurang; dua-duanya gagalkan batch.
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM inventory WHERE product_id=$1)`, it.ProductID).Scan(&exists); err != nil {
				return false, "", err
			}
			if !exists {
				return false, fmt.Sprintf("Product %s not found", it.ProductID), nil
			}
			return false, fmt.Sprintf("Insufficient stock for Product %s", it.ProductID), nil
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_logs(id, product_id, change, type, order_id)
			VALUES ($1,$2,$3,$4,$5)
		`, uuid.NewString(), it.ProductID, -it.Qty, LogOrderPlaced, orderID); err != nil {
			return false, "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, "", err
	}
	return true, "", nil
}

// Release: compensating action saat item batal. reserved difloor di 0 (replay
// release tidak bikin negatif), current naik.
func (r *Repo) Release(ctx context.Context, orderID, productID string, qty int) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Reservation jadi idempotency key release juga: cuma release yang masih RESERVED.
	if orderID != "" {
		ct, err := tx.Exec(ctx, `
			UPDATE reservations SET status='RELEASED'
			WHERE order_id=$1 AND product_id=$2 AND status='RESERVED'
		`, orderID, productID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil // sudah pernah di-release, atau tidak pernah reserved
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE inventory
		SET reserved_stock = GREATEST(reserved_stock - $2, 0),
		    current_stock = current_stock + $2,
		    updated_at = now()
		WHERE product_id=$1
	`, productID, qty); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_logs(id, product_id, change, type, order_id)
		VALUES ($1,$2,$3,$4,$5)
	`, uuid.NewString(), productID, qty, LogCancelled, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Upsert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory(id, product_id, seller_id, variant_id, current_stock, reserved_stock, warehouse_location)
		VALUES ($1,$2,$3,$4,$5,0,$6)
		ON CONFLICT (product_id, seller_id, variant_id)
		DO UPDATE SET current_stock = inventory.current_stock + EXCLUDED.current_stock, updated_at = now()
	`, rec.ID, rec.ProductID, rec.SellerID, rec.VariantID, rec.CurrentStock, rec.WarehouseLocation); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_logs(id, product_id, change, type, order_id)
		VALUES ($1,$2,$3,$4,'')
	`, uuid.NewString(), rec.ProductID, rec.CurrentStock, LogInitialStock); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetByProduct(ctx context.Context, productID string) (Record, error) {
	var rec Record
	err := r.DB.QueryRow(ctx, `
		SELECT id, product_id, seller_id, variant_id, current_stock, reserved_stock, warehouse_location, created_at, updated_at
		FROM inventory WHERE product_id=$1
	`, productID).Scan(&rec.ID, &rec.ProductID, &rec.SellerID, &rec.VariantID,
		&rec.CurrentStock, &rec.ReservedStock, &rec.WarehouseLocation, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}
