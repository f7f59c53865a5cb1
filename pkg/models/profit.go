package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// worse orders risk levels for combining independent factors.
func (r RiskLevel) worse(other RiskLevel) RiskLevel {
	rank := map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}
	if rank[other] > rank[r] {
		return other
	}
	return r
}

// Worst returns the most severe of the given risk levels.
func WorstRisk(levels ...RiskLevel) RiskLevel {
	worst := RiskLow
	for _, l := range levels {
		worst = worst.worse(l)
	}
	return worst
}

// ShippingCosts is the logistics side of a profit calculation. All amounts
// are rounded half-up to cents.
type ShippingCosts struct {
	ToCustomer     decimal.Decimal `json:"to_customer"`
	ReturnShipping decimal.Decimal `json:"return_shipping"`
	Packaging      decimal.Decimal `json:"packaging"`
	Total          decimal.Decimal `json:"total"`
}

// MarketplaceFees is the fee side: referral, fulfillment, storage and
// estimated advertising spend.
type MarketplaceFees struct {
	Referral    decimal.Decimal `json:"referral"`
	Fulfillment decimal.Decimal `json:"fulfillment"`
	Storage     decimal.Decimal `json:"storage"`
	Advertising decimal.Decimal `json:"advertising"`
	Total       decimal.Decimal `json:"total"`
}

// TaxInfo carries the VAT backed out of the price-inclusive selling price and
// the income tax on gross profit. Rates are percentages.
type TaxInfo struct {
	VATRate         decimal.Decimal `json:"vat_rate"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	IncomeTaxRate   decimal.Decimal `json:"income_tax_rate"`
	IncomeTaxAmount decimal.Decimal `json:"income_tax_amount"`
	Total           decimal.Decimal `json:"total"`
}

// ProfitBreakdown is the fully costed verdict for one opportunity.
type ProfitBreakdown struct {
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Marketplace   Marketplace     `json:"marketplace"`
	Category      string          `json:"category"`

	Shipping ShippingCosts   `json:"shipping"`
	Fees     MarketplaceFees `json:"fees"`
	Taxes    TaxInfo         `json:"taxes"`

	GrossProfit decimal.Decimal `json:"gross_profit"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	ROIPct      decimal.Decimal `json:"roi_pct"`
	MarginPct   decimal.Decimal `json:"margin_pct"`

	CompetitionRisk RiskLevel `json:"competition_risk"`
	DemandRisk      RiskLevel `json:"demand_risk"`
	OverallRisk     RiskLevel `json:"overall_risk"`

	CalculatedAt time.Time `json:"calculated_at"`
}
