package models

import "time"

// WindowStats summarizes a trailing slice of a counterpart's price history.
// Discount is the fraction the current price sits below the window average,
// floored at zero.
type WindowStats struct {
	Average  float64 `json:"average"`
	Median   float64 `json:"median"`
	Discount float64 `json:"discount"`
	Points   int     `json:"points"`
}

type PriceStatistics struct {
	Window30  WindowStats `json:"window_30d"`
	Window90  WindowStats `json:"window_90d"`
	Window180 WindowStats `json:"window_180d"`
	AllTime   WindowStats `json:"all_time"`
	Min       float64     `json:"min"`
	Max       float64     `json:"max"`
	StdDev    float64     `json:"std_dev"`
}

// PriceAnalysis is the anomaly verdict for one listing against one
// counterpart price series. DiscountPct compares against the preferred
// window average (90d, falling back to 30d, 180d, then all-time).
type PriceAnalysis struct {
	CurrentPrice float64         `json:"current_price"`
	Marketplace  Marketplace     `json:"marketplace,omitempty"`
	Stats        PriceStatistics `json:"stats"`
	DiscountPct  float64         `json:"discount_pct"`
	AnomalyScore float64         `json:"anomaly_score"`
	IsAnomaly    bool            `json:"is_anomaly"`
	Confidence   float64         `json:"confidence"`
	PricePoints  int             `json:"price_points"`
	AnalyzedAt   time.Time       `json:"analyzed_at"`
}
