package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Marketplace string

const (
	MarketplaceDE Marketplace = "DE"
	MarketplaceFR Marketplace = "FR"
	MarketplaceES Marketplace = "ES"
	MarketplaceIT Marketplace = "IT"
	MarketplaceUK Marketplace = "UK"
)

// ProductListing is an immutable snapshot of a scraped listing. A new value is
// produced on every scrape cycle; nothing in the pipeline mutates it.
type ProductListing struct {
	ID          string          `json:"id"`
	EAN         string          `json:"ean,omitempty"`
	ASIN        string          `json:"asin,omitempty"`
	Title       string          `json:"title"`
	Brand       string          `json:"brand,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Marketplace Marketplace     `json:"marketplace"`
	URL         string          `json:"url,omitempty"`
	Available   bool            `json:"available"`
	ScrapedAt   time.Time       `json:"scraped_at"`
}

// Validate rejects malformed listings at the item boundary.
func (l *ProductListing) Validate() error {
	if l.Title == "" {
		return ErrInvalidInput
	}
	if l.Price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidInput
	}
	return nil
}

// PricePoint is one observation in a counterpart's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Available bool      `json:"available"`
}
