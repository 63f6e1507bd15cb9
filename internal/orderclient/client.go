// Package orderclient adalah client HTTP ke order service. Dipakai fulfillment
// saat delivery: butuh tahu payment method (COD atau bukan) dan userId pemilik order.
package orderclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type OrderDetail struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	PaymentMethod string  `json:"paymentMethod"`
	Status        string  `json:"status"`
	FinalAmount   float64 `json:"finalAmount"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (OrderDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("orderclient: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("orderclient: get order %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return OrderDetail{}, fmt.Errorf("orderclient: order %s not found", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return OrderDetail{}, fmt.Errorf("orderclient: get order %s: status %d", orderID, resp.StatusCode)
	}

	var payload struct {
		Data OrderDetail `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return OrderDetail{}, fmt.Errorf("orderclient: decode response: %w", err)
	}
	return payload.Data, nil
}
