// Package catalog adalah client HTTP ke product service (collaborator eksternal).
// Order service cuma butuh batch lookup buat snapshot harga saat checkout.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Product struct {
	ID            string  `json:"_id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	DiscountPrice float64 `json:"discountPrice"`
	Stock         int     `json:"stock"`
	SellerID      string  `json:"sellerId"`
}

// EffectivePrice: harga diskon menang kalau ada.
func (p Product) EffectivePrice() float64 {
	if p.DiscountPrice > 0 {
		return p.DiscountPrice
	}
	return p.Price
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

// ListByIDs ambil banyak produk sekaligus. Produk yang tidak ketemu
// tidak ada di map hasil; caller yang memutuskan itu fatal atau bukan.
func (c *Client) ListByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	body, err := json.Marshal(map[string]any{
		"filter": map[string]any{"_id": map[string]any{"$in": ids}},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal filter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products/p/list", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: list products: status %d", resp.StatusCode)
	}

	var products []Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}

	out := make(map[string]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}
