package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

var ErrNotFound = errors.New("order not found")

// Repository: dipisah interface supaya handler bisa dites pakai fake tanpa postgres.
type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	AttachSellerOrders(ctx context.Context, orderID string, refs []events.SellerOrderRef) error
	LinkPayment(ctx context.Context, orderID, paymentID string) error
	AdvanceStatus(ctx context.Context, orderID string, to Status) (bool, error)
	GetItem(ctx context.Context, itemID string) (OrderItem, error)
	ItemHistory(ctx context.Context, itemID string) ([]StatusChange, error)
	SetItemStatus(ctx context.Context, itemID string, to status.Item) (bool, error)
	SetItemStatusBySellerOrder(ctx context.Context, sellerOrderID string, to status.Item) (int, error)
	ItemStatuses(ctx context.Context, orderID string) ([]status.Item, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

// CreateOrder: order + items + history awal dalam satu tx. ID di-generate di sini.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o.ID = uuid.NewString()
	o.Status = StatusPending

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, shipping_address_id, payment_method, status, total_amount, final_amount, seller_order_ids, payment_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'{}','')
	`, o.ID, o.UserID, o.ShippingAddressID, o.PaymentMethod, o.Status, o.TotalAmount, o.FinalAmount)
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.NewString()
		it.ParentOrderID = o.ID
		it.Status = status.ItemPlaced

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, parent_order_id, seller_order_id, product_id, seller_id, title_snapshot, price, quantity, status, refund_amount)
			VALUES ($1,$2,'',$3,$4,$5,$6,$7,$8,0)
		`, it.ID, o.ID, it.ProductID, it.SellerID, it.TitleSnapshot, it.Price, it.Quantity, it.Status)
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_item_history(order_item_id, status) VALUES ($1,$2)
		`, it.ID, it.Status); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, shipping_address_id, payment_method, status, total_amount, final_amount, seller_order_ids, payment_id, created_at, updated_at
		FROM orders WHERE id=$1
	`, id).Scan(&o.ID, &o.UserID, &o.ShippingAddressID, &o.PaymentMethod, &o.Status,
		&o.TotalAmount, &o.FinalAmount, &o.SellerOrderIDs, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	o.Items, err = r.itemsByOrder(ctx, id)
	return o, err
}

func (r *Repo) itemsByOrder(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, parent_order_id, seller_order_id, product_id, seller_id, title_snapshot, price, quantity, status, refund_amount, created_at, updated_at
		FROM order_items WHERE parent_order_id=$1 ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.ParentOrderID, &it.SellerOrderID, &it.ProductID, &it.SellerID,
			&it.TitleSnapshot, &it.Price, &it.Quantity, &it.Status, &it.RefundAmount, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, shipping_address_id, payment_method, status, total_amount, final_amount, seller_order_ids, payment_id, created_at, updated_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.ShippingAddressID, &o.PaymentMethod, &o.Status,
			&o.TotalAmount, &o.FinalAmount, &o.SellerOrderIDs, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AttachSellerOrders: set seller_order_id per item (match product dalam scope
// order ini) + simpan daftar distinct id di parent. Replay dengan id sama
// menghasilkan state identik.
func (r *Repo) AttachSellerOrders(ctx context.Context, orderID string, refs []events.SellerOrderRef) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	seen := map[string]bool{}
	var ids []string
	for _, ref := range refs {
		if _, err := tx.Exec(ctx, `
			UPDATE order_items SET seller_order_id=$1, updated_at=now()
			WHERE parent_order_id=$2 AND product_id=$3
		`, ref.SellerOrderID, orderID, ref.ProductID); err != nil {
			return err
		}
		if !seen[ref.SellerOrderID] {
			seen[ref.SellerOrderID] = true
			ids = append(ids, ref.SellerOrderID)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET seller_order_ids=$1, updated_at=now() WHERE id=$2
	`, ids, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LinkPayment: idempotent, hanya isi kalau kosong atau sama.
func (r *Repo) LinkPayment(ctx context.Context, orderID, paymentID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_id=$1, updated_at=now()
		WHERE id=$2 AND (payment_id='' OR payment_id=$1)
	`, paymentID, orderID)
	return err
}

// AdvanceStatus: guarded transition. false = transisi ditolak (bukan error),
// misal event datang terlambat setelah order sudah lebih maju.
func (r *Repo) AdvanceStatus(ctx context.Context, orderID string, to Status) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	if !CanTransition(cur, to) {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$1, updated_at=now() WHERE id=$2`, to, orderID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *Repo) GetItem(ctx context.Context, itemID string) (OrderItem, error) {
	var it OrderItem
	err := r.DB.QueryRow(ctx, `
		SELECT id, parent_order_id, seller_order_id, product_id, seller_id, title_snapshot, price, quantity, status, refund_amount, created_at, updated_at
		FROM order_items WHERE id=$1
	`, itemID).Scan(&it.ID, &it.ParentOrderID, &it.SellerOrderID, &it.ProductID, &it.SellerID,
		&it.TitleSnapshot, &it.Price, &it.Quantity, &it.Status, &it.RefundAmount, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, ErrNotFound
	}
	return it, err
}

// SetItemStatus: guarded per item + append history.
func (r *Repo) SetItemStatus(ctx context.Context, itemID string, to status.Item) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed, err := setItemStatusTx(ctx, tx, itemID, to)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	return true, tx.Commit(ctx)
}

// SetItemStatusBySellerOrder: shipment/return event menyasar seluruh item
// di satu seller order. Return jumlah item yang berubah.
func (r *Repo) SetItemStatusBySellerOrder(ctx context.Context, sellerOrderID string, to status.Item) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT id FROM order_items WHERE seller_order_id=$1`, sellerOrderID)
	if err != nil {
		return 0, err
	}
	var itemIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		itemIDs = append(itemIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	n := 0
	for _, id := range itemIDs {
		changed, err := setItemStatusTx(ctx, tx, id, to)
		if err != nil {
			return 0, err
		}
		if changed {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, tx.Commit(ctx)
}

func setItemStatusTx(ctx context.Context, tx pgx.Tx, itemID string, to status.Item) (bool, error) {
	var cur status.Item
	err := tx.QueryRow(ctx, `SELECT status FROM order_items WHERE id=$1 FOR UPDATE`, itemID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if !CanTransitionItem(cur, to) {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE order_items SET status=$1, updated_at=now() WHERE id=$2`, to, itemID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO order_item_history(order_item_id, status) VALUES ($1,$2)`, itemID, to); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) ItemStatuses(ctx context.Context, orderID string) ([]status.Item, error) {
	rows, err := r.DB.Query(ctx, `SELECT status FROM order_items WHERE parent_order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []status.Item
	for rows.Next() {
		var s status.Item
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ItemHistory buat tampilan timeline di API.
func (r *Repo) ItemHistory(ctx context.Context, itemID string) ([]StatusChange, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, created_at FROM order_item_history
		WHERE order_item_id=$1 ORDER BY created_at
	`, itemID)
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
