package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("payment not found")
	ErrRefundExists = errors.New("refund already exists")
)

type Repository interface {
	// CreateIfAbsent insert payment baru; kalau order_id sudah ada,
	// return baris existing dan created=false.
	CreateIfAbsent(ctx context.Context, p *Payment) (created bool, err error)
	GetByOrder(ctx context.Context, orderID string) (Payment, error)

	// MarkCollected: full amount masuk + append transaksi SUCCESS.
	// changed=false kalau payment sudah COMPLETED (replay).
	MarkCollected(ctx context.Context, orderID string, txn Transaction) (Payment, bool, error)

	HasSuccessTransaction(ctx context.Context, paymentID, sellerOrderID string) (bool, error)

	// CreateRefund gagal dengan ErrRefundExists kalau natural key
	// (seller_order_id / order_item_id) sudah punya refund.
	CreateRefund(ctx context.Context, r *Refund) error
	SetRefundStatus(ctx context.Context, refundID, to string) error

	// ReduceForCancelledItem kurangi amount+pending (floor 0) dan append
	// transaksi ORDER_CANCELLED, sekali per order item.
	ReduceForCancelledItem(ctx context.Context, orderID, orderItemID string, amount int64) (Payment, bool, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func (r *Repo) CreateIfAbsent(ctx context.Context, p *Payment) (bool, error) {
	p.ID = uuid.NewString()
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, user_id, gateway, currency, amount, collected_amount, pending_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6,0,$6,$7)
		ON CONFLICT (order_id) DO NOTHING
	`, p.ID, p.OrderID, p.UserID, p.Gateway, p.Currency, p.Amount, p.Status)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() > 0 {
		p.CollectedAmount = 0
		p.PendingAmount = p.Amount
		return true, nil
	}
	existing, err := r.GetByOrder(ctx, p.OrderID)
	if err != nil {
		return false, err
	}
	*p = existing
	return false, nil
}

func (r *Repo) GetByOrder(ctx context.Context, orderID string) (Payment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, user_id, gateway, currency, amount, collected_amount, pending_amount, status, created_at, updated_at
		FROM payments WHERE order_id=$1
	`, orderID).Scan(&p.ID, &p.OrderID, &p.UserID, &p.Gateway, &p.Currency,
		&p.Amount, &p.CollectedAmount, &p.PendingAmount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Transactions, err = r.transactions(ctx, p.ID)
	return p, err
}

func (r *Repo) transactions(ctx context.Context, paymentID string) ([]Transaction, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT transaction_id, payment_id, seller_order_id, order_item_id, amount, method, status, created_at
		FROM payment_transactions WHERE payment_id=$1 ORDER BY created_at
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.TransactionID, &t.PaymentID, &t.SellerOrderID, &t.OrderItemID,
			&t.Amount, &t.Method, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) MarkCollected(ctx context.Context, orderID string, txn Transaction) (Payment, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Payment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var p Payment
	err = tx.QueryRow(ctx, `
		SELECT id, order_id, user_id, gateway, currency, amount, collected_amount, pending_amount, status
		FROM payments WHERE order_id=$1 FOR UPDATE
	`, orderID).Scan(&p.ID, &p.OrderID, &p.UserID, &p.Gateway, &p.Currency,
		&p.Amount, &p.CollectedAmount, &p.PendingAmount, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, false, ErrNotFound
	}
	if err != nil {
		return Payment{}, false, err
	}
	changed := p.Status != StatusCompleted
	if changed {
		p.Status = StatusCompleted
		p.CollectedAmount = p.Amount
		p.PendingAmount = 0
		if _, err := tx.Exec(ctx, `
			UPDATE payments SET status=$2, collected_amount=amount, pending_amount=0, updated_at=now()
			WHERE id=$1
		`, p.ID, p.Status); err != nil {
			return Payment{}, false, err
		}
		if txn.Amount == 0 {
			txn.Amount = p.Amount
		}
	}

	// Transaksi SUCCESS dicatat per seller order (unik per payment+seller
	// order untuk COD); refund nanti cek keberadaan baris ini.
	if changed || txn.SellerOrderID != "" {
		txn.PaymentID = p.ID
		if err := insertCODTransaction(ctx, tx, txn); err != nil {
			return Payment{}, false, err
		}
	}
	return p, changed, tx.Commit(ctx)
}

func insertCODTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	if t.TransactionID == "" {
		t.TransactionID = NewTransactionID(t.Method)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_transactions(transaction_id, payment_id, seller_order_id, order_item_id, amount, method, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (payment_id, seller_order_id) WHERE method='COD' AND seller_order_id <> '' DO NOTHING
	`, t.TransactionID, t.PaymentID, t.SellerOrderID, t.OrderItemID, t.Amount, t.Method, t.Status)
	return err
}

func NewTransactionID(method string) string {
	return fmt.Sprintf("%s-%d-%d", method, time.Now().UnixMilli(), rand.Intn(1000))
}

func (r *Repo) HasSuccessTransaction(ctx context.Context, paymentID, sellerOrderID string) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT count(*) FROM payment_transactions
		WHERE payment_id=$1 AND seller_order_id=$2 AND status=$3
	`, paymentID, sellerOrderID, TxnSuccess).Scan(&n)
	return n > 0, err
}

// CreateRefund: partial unique index di seller_order_id dan order_item_id
// (keduanya where != ”) jadi satu-satunya pintu idempotency refund.
func (r *Repo) CreateRefund(ctx context.Context, rf *Refund) error {
	rf.ID = uuid.NewString()
	if rf.Status == "" {
		rf.Status = RefundInitiated
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO refunds(id, payment_id, order_id, seller_order_id, order_item_id, user_id, amount, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT DO NOTHING
	`, rf.ID, rf.PaymentID, rf.OrderID, rf.SellerOrderID, rf.OrderItemID, rf.UserID, rf.Amount, rf.Reason, rf.Status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRefundExists
	}
	return nil
}

func (r *Repo) SetRefundStatus(ctx context.Context, refundID, to string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE refunds SET status=$2, updated_at=now() WHERE id=$1
	`, refundID, to)
	return err
}

func (r *Repo) ReduceForCancelledItem(ctx context.Context, orderID, orderItemID string, amount int64) (Payment, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Payment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var p Payment
	err = tx.QueryRow(ctx, `
		SELECT id, order_id, user_id, gateway, currency, amount, collected_amount, pending_amount, status
		FROM payments WHERE order_id=$1 FOR UPDATE
	`, orderID).Scan(&p.ID, &p.OrderID, &p.UserID, &p.Gateway, &p.Currency,
		&p.Amount, &p.CollectedAmount, &p.PendingAmount, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, false, ErrNotFound
	}
	if err != nil {
		return Payment{}, false, err
	}

	// Satu transaksi pembatalan per order item; replay berhenti di sini.
	ct, err := tx.Exec(ctx, `
		INSERT INTO payment_transactions(transaction_id, payment_id, seller_order_id, order_item_id, amount, method, status)
		VALUES ($1,$2,'',$3,$4,$5,$6)
		ON CONFLICT (payment_id, order_item_id) WHERE method='ORDER_CANCELLED' DO NOTHING
	`, NewTransactionID("CANCEL"), p.ID, orderItemID, amount, MethodOrderCancelled, TxnSuccess)
	if err != nil {
		return Payment{}, false, err
	}
	if ct.RowsAffected() == 0 {
		return p, false, tx.Commit(ctx)
	}

	cut := amount
	if cut > p.PendingAmount {
		cut = p.PendingAmount
	}
	p.Amount -= cut
	p.PendingAmount -= cut
	if p.PendingAmount == 0 && p.Status != StatusCompleted {
		p.Status = StatusCompleted
	}
	if _, err := tx.Exec(ctx, `
		UPDATE payments SET amount=$2, pending_amount=$3, status=$4, updated_at=now() WHERE id=$1
	`, p.ID, p.Amount, p.PendingAmount, p.Status); err != nil {
		return Payment{}, false, err
	}
	return p, true, tx.Commit(ctx)
}
