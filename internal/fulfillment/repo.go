package fulfillment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

var (
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrReturnNotFound   = errors.New("return request not found")
)

type Repository interface {
	CreateShipment(ctx context.Context, sh *Shipment) error
	GetShipment(ctx context.Context, id string) (Shipment, error)
	GetShipmentBySellerOrder(ctx context.Context, sellerOrderID string) (Shipment, error)
	ListShipmentsByOrder(ctx context.Context, parentOrderID string) ([]Shipment, error)
	// AppendShipmentStatus set status baru + satu entry history dalam satu tx.
	AppendShipmentStatus(ctx context.Context, id string, ev TrackingEvent) (Shipment, error)

	CreateReturn(ctx context.Context, rr *ReturnRequest) error
	GetReturn(ctx context.Context, id string) (ReturnRequest, error)
	ListReturns(ctx context.Context, userID string) ([]ReturnRequest, error)
	AppendReturnStatus(ctx context.Context, id string, to status.Return, remark string) (ReturnRequest, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func (r *Repo) CreateShipment(ctx context.Context, sh *Shipment) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sh.ID = uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO shipments(id, seller_order_id, parent_order_id, seller_id, courier_name, tracking_number, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sh.ID, sh.SellerOrderID, sh.ParentOrderID, sh.SellerID, sh.Courier, sh.TrackingNumber, sh.Status); err != nil {
		return err
	}
	for _, ev := range sh.History {
		if err := insertTrackingEvent(ctx, tx, sh.ID, ev); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertTrackingEvent(ctx context.Context, tx pgx.Tx, shipmentID string, ev TrackingEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO shipment_tracking_events(shipment_id, status, slug, location, remark)
		VALUES ($1,$2,$3,$4,$5)
	`, shipmentID, ev.Status, ev.Slug, ev.Location, ev.Remark)
	return err
}

func (r *Repo) GetShipment(ctx context.Context, id string) (Shipment, error) {
	return r.shipmentBy(ctx, "id", id)
}

func (r *Repo) GetShipmentBySellerOrder(ctx context.Context, sellerOrderID string) (Shipment, error) {
	return r.shipmentBy(ctx, "seller_order_id", sellerOrderID)
}

func (r *Repo) shipmentBy(ctx context.Context, col, val string) (Shipment, error) {
	var sh Shipment
	err := r.DB.QueryRow(ctx, `
		SELECT id, seller_order_id, parent_order_id, seller_id, courier_name, tracking_number, status, created_at, updated_at
		FROM shipments WHERE `+col+`=$1
	`, val).Scan(&sh.ID, &sh.SellerOrderID, &sh.ParentOrderID, &sh.SellerID,
		&sh.Courier, &sh.TrackingNumber, &sh.Status, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, ErrShipmentNotFound
	}
	if err != nil {
		return Shipment{}, err
	}
	sh.History, err = r.trackingHistory(ctx, sh.ID)
	return sh, err
}

func (r *Repo) trackingHistory(ctx context.Context, shipmentID string) ([]TrackingEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, slug, location, remark, created_at
		FROM shipment_tracking_events WHERE shipment_id=$1 ORDER BY created_at, id
	`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackingEvent
	for rows.Next() {
		var ev TrackingEvent
		if err := rows.Scan(&ev.Status, &ev.Slug, &ev.Location, &ev.Remark, &ev.At); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repo) ListShipmentsByOrder(ctx context.Context, parentOrderID string) ([]Shipment, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, seller_order_id, parent_order_id, seller_id, courier_name, tracking_number, status, created_at, updated_at
		FROM shipments WHERE parent_order_id=$1 ORDER BY created_at
	`, parentOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Shipment
	for rows.Next() {
		var sh Shipment
		if err := rows.Scan(&sh.ID, &sh.SellerOrderID, &sh.ParentOrderID, &sh.SellerID,
			&sh.Courier, &sh.TrackingNumber, &sh.Status, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (r *Repo) AppendShipmentStatus(ctx context.Context, id string, ev TrackingEvent) (Shipment, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Shipment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE shipments SET status=$2, updated_at=now() WHERE id=$1
	`, id, ev.Status)
	if err != nil {
		return Shipment{}, err
	}
	if ct.RowsAffected() == 0 {
		return Shipment{}, ErrShipmentNotFound
	}
	if err := insertTrackingEvent(ctx, tx, id, ev); err != nil {
		return Shipment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Shipment{}, err
	}
	return r.GetShipment(ctx, id)
}

func (r *Repo) CreateReturn(ctx context.Context, rr *ReturnRequest) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rr.ID = uuid.NewString()
	rr.Status = status.ReturnRequested
	if _, err := tx.Exec(ctx, `
		INSERT INTO return_requests(id, seller_order_id, shipment_id, user_id, reason, description, images, refund_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rr.ID, rr.SellerOrderID, rr.ShipmentID, rr.UserID, rr.Reason, rr.Description,
		rr.Images, rr.RefundAmount, rr.Status); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO return_events(return_id, status, remark) VALUES ($1,$2,$3)
	`, rr.ID, rr.Status, "Return requested"); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetReturn(ctx context.Context, id string) (ReturnRequest, error) {
	var rr ReturnRequest
	err := r.DB.QueryRow(ctx, `
		SELECT id, seller_order_id, shipment_id, user_id, reason, description, images, refund_amount, status, created_at, updated_at
		FROM return_requests WHERE id=$1
	`, id).Scan(&rr.ID, &rr.SellerOrderID, &rr.ShipmentID, &rr.UserID, &rr.Reason,
		&rr.Description, &rr.Images, &rr.RefundAmount, &rr.Status, &rr.CreatedAt, &rr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReturnRequest{}, ErrReturnNotFound
	}
	if err != nil {
		return ReturnRequest{}, err
	}
	rr.Events, err = r.returnEvents(ctx, rr.ID)
	return rr, err
}

func (r *Repo) returnEvents(ctx context.Context, returnID string) ([]ReturnEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, remark, created_at FROM return_events
		WHERE return_id=$1 ORDER BY created_at, id
	`, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReturnEvent
	for rows.Next() {
		var ev ReturnEvent
		if err := rows.Scan(&ev.Status, &ev.Remark, &ev.At); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repo) ListReturns(ctx context.Context, userID string) ([]ReturnRequest, error) {
	q := `SELECT id, seller_order_id, shipment_id, user_id, reason, description, images, refund_amount, status, created_at, updated_at
		FROM return_requests`
	args := []any{}
	if userID != "" {
		q += ` WHERE user_id=$1`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReturnRequest
	for rows.Next() {
		var rr ReturnRequest
		if err := rows.Scan(&rr.ID, &rr.SellerOrderID, &rr.ShipmentID, &rr.UserID, &rr.Reason,
			&rr.Description, &rr.Images, &rr.RefundAmount, &rr.Status, &rr.CreatedAt, &rr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (r *Repo) AppendReturnStatus(ctx context.Context, id string, to status.Return, remark string) (ReturnRequest, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ReturnRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE return_requests SET status=$2, updated_at=now() WHERE id=$1
	`, id, to)
	if err != nil {
		return ReturnRequest{}, err
	}
	if ct.RowsAffected() == 0 {
		return ReturnRequest{}, ErrReturnNotFound
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO return_events(return_id, status, remark) VALUES ($1,$2,$3)
	`, id, to, remark); err != nil {
		return ReturnRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ReturnRequest{}, err
	}
	return r.GetReturn(ctx, id)
}
