package analyzer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// Product categories recognized by the fee tables. Unknown categories fall
// back to CategoryOther.
const (
	CategoryElectronics = "Electronics"
	CategoryComputers   = "Computers"
	CategoryVideoGames  = "Video Games"
	CategoryBooks       = "Books"
	CategoryClothing    = "Clothing"
	CategoryHome        = "Home"
	CategoryHealth      = "Health"
	CategorySports      = "Sports"
	CategoryOther       = "Other"
)

// Referral fee percentages by category.
var referralRates = map[string]decimal.Decimal{
	CategoryElectronics: decimal.NewFromFloat(8),
	CategoryComputers:   decimal.NewFromFloat(6),
	CategoryVideoGames:  decimal.NewFromFloat(15),
	CategoryBooks:       decimal.NewFromFloat(15),
	CategoryClothing:    decimal.NewFromFloat(17),
	CategoryHome:        decimal.NewFromFloat(15),
	CategoryHealth:      decimal.NewFromFloat(8),
	CategorySports:      decimal.NewFromFloat(15),
	CategoryOther:       decimal.NewFromFloat(15),
}

// VAT percentages by marketplace.
var vatRates = map[models.Marketplace]decimal.Decimal{
	models.MarketplaceDE: decimal.NewFromFloat(19),
	models.MarketplaceFR: decimal.NewFromFloat(20),
	models.MarketplaceES: decimal.NewFromFloat(21),
	models.MarketplaceIT: decimal.NewFromFloat(22),
	models.MarketplaceUK: decimal.NewFromFloat(20),
}

// Base fulfillment fee per unit, EUR.
var fulfillmentFees = map[models.Marketplace]decimal.Decimal{
	models.MarketplaceDE: decimal.NewFromFloat(3.50),
	models.MarketplaceFR: decimal.NewFromFloat(3.50),
	models.MarketplaceES: decimal.NewFromFloat(3.50),
	models.MarketplaceIT: decimal.NewFromFloat(3.50),
	models.MarketplaceUK: decimal.NewFromFloat(3.20),
}

// Monthly storage fee per cubic meter, EUR.
var storageFees = map[models.Marketplace]decimal.Decimal{
	models.MarketplaceDE: decimal.NewFromFloat(26),
	models.MarketplaceFR: decimal.NewFromFloat(26),
	models.MarketplaceES: decimal.NewFromFloat(26),
	models.MarketplaceIT: decimal.NewFromFloat(26),
	models.MarketplaceUK: decimal.NewFromFloat(24),
}

var highCompetitionCategories = map[string]struct{}{
	CategoryElectronics: {},
	CategoryVideoGames:  {},
	CategoryBooks:       {},
}

// Assumptions are the hand-tuned operating estimates behind a calculation.
// They are exposed so callers can override any of them per run.
type Assumptions struct {
	StorageMonths   decimal.Decimal
	AdSpendRate     decimal.Decimal
	PackagingCost   decimal.Decimal
	ReturnRate      decimal.Decimal
	AvgReturnCost   decimal.Decimal
	IncomeTaxRate   decimal.Decimal
	ProductVolumeM3 decimal.Decimal
}

func DefaultAssumptions() Assumptions {
	return Assumptions{
		StorageMonths:   decimal.NewFromInt(2),
		AdSpendRate:     decimal.NewFromFloat(0.05),
		PackagingCost:   decimal.NewFromFloat(2.00),
		ReturnRate:      decimal.NewFromFloat(0.05),
		AvgReturnCost:   decimal.NewFromFloat(8.00),
		IncomeTaxRate:   decimal.NewFromFloat(0.25),
		ProductVolumeM3: decimal.NewFromFloat(0.01),
	}
}

// ProfitCalculator costs out an opportunity end to end. Pure function of its
// inputs; all money math stays in decimals, rounding half-up to cents only at
// output boundaries.
type ProfitCalculator struct{}

func NewProfitCalculator() *ProfitCalculator {
	return &ProfitCalculator{}
}

func (c *ProfitCalculator) Calculate(
	purchasePrice, sellingPrice decimal.Decimal,
	marketplace models.Marketplace,
	category string,
	assumptions Assumptions,
) (*models.ProfitBreakdown, error) {
	if purchasePrice.LessThanOrEqual(decimal.Zero) || sellingPrice.LessThanOrEqual(decimal.Zero) {
		return nil, models.ErrInvalidInput
	}
	if _, ok := vatRates[marketplace]; !ok {
		marketplace = models.MarketplaceDE
	}
	if _, ok := referralRates[category]; !ok {
		category = CategoryOther
	}

	shipping := calcShipping(purchasePrice, assumptions)
	fees := calcFees(sellingPrice, marketplace, category, assumptions)

	grossProfit := sellingPrice.Sub(purchasePrice).Sub(shipping.Total).Sub(fees.Total)
	taxes := calcTaxes(grossProfit, sellingPrice, marketplace, assumptions)
	netProfit := grossProfit.Sub(taxes.Total)

	roi := netProfit.Div(purchasePrice).Mul(decimal.NewFromInt(100))
	margin := netProfit.Div(sellingPrice).Mul(decimal.NewFromInt(100))

	competition, demand := assessRisk(sellingPrice, category)
	overall := models.WorstRisk(competition, demand)
	// Triple-digit ROI on a retail spread usually means bad data, not a
	// bargain.
	if roi.GreaterThan(decimal.NewFromInt(100)) {
		overall = models.RiskHigh
	}

	return &models.ProfitBreakdown{
		PurchasePrice:   purchasePrice.Round(2),
		SellingPrice:    sellingPrice.Round(2),
		Marketplace:     marketplace,
		Category:        category,
		Shipping:        shipping,
		Fees:            fees,
		Taxes:           taxes,
		GrossProfit:     grossProfit.Round(2),
		NetProfit:       netProfit.Round(2),
		ROIPct:          roi.Round(1),
		MarginPct:       margin.Round(1),
		CompetitionRisk: competition,
		DemandRisk:      demand,
		OverallRisk:     overall,
		CalculatedAt:    time.Now().UTC(),
	}, nil
}

func calcShipping(purchasePrice decimal.Decimal, a Assumptions) models.ShippingCosts {
	// Delivery to the customer is covered by the fulfillment fee.
	toCustomer := decimal.Zero
	returnShipping := a.ReturnRate.Mul(a.AvgReturnCost)
	packaging := a.PackagingCost

	return models.ShippingCosts{
		ToCustomer:     toCustomer.Round(2),
		ReturnShipping: returnShipping.Round(2),
		Packaging:      packaging.Round(2),
		Total:          toCustomer.Add(returnShipping).Add(packaging).Round(2),
	}
}

func calcFees(sellingPrice decimal.Decimal, marketplace models.Marketplace, category string, a Assumptions) models.MarketplaceFees {
	hundred := decimal.NewFromInt(100)

	referral := sellingPrice.Mul(referralRates[category]).Div(hundred)

	fulfillment := fulfillmentFees[marketplace]
	// Expensive items skew heavy; bump the fulfillment fee as a weight
	// proxy.
	if sellingPrice.GreaterThan(hundred) {
		fulfillment = fulfillment.Mul(decimal.NewFromFloat(1.5))
	}

	storage := storageFees[marketplace].Mul(a.StorageMonths).Mul(a.ProductVolumeM3)
	advertising := sellingPrice.Mul(a.AdSpendRate)

	return models.MarketplaceFees{
		Referral:    referral.Round(2),
		Fulfillment: fulfillment.Round(2),
		Storage:     storage.Round(2),
		Advertising: advertising.Round(2),
		Total:       referral.Add(fulfillment).Add(storage).Add(advertising).Round(2),
	}
}

func calcTaxes(grossProfit, sellingPrice decimal.Decimal, marketplace models.Marketplace, a Assumptions) models.TaxInfo {
	hundred := decimal.NewFromInt(100)
	vatRate := vatRates[marketplace].Div(hundred)

	// Selling prices are VAT-inclusive; back the tax out.
	vat := sellingPrice.Mul(vatRate).Div(decimal.NewFromInt(1).Add(vatRate))
	incomeTax := grossProfit.Mul(a.IncomeTaxRate)

	return models.TaxInfo{
		VATRate:         vatRates[marketplace],
		VATAmount:       vat.Round(2),
		IncomeTaxRate:   a.IncomeTaxRate.Mul(hundred),
		IncomeTaxAmount: incomeTax.Round(2),
		Total:           vat.Add(incomeTax).Round(2),
	}
}

func assessRisk(sellingPrice decimal.Decimal, category string) (competition, demand models.RiskLevel) {
	switch {
	case isHighCompetition(category):
		competition = models.RiskHigh
	case sellingPrice.LessThan(decimal.NewFromInt(50)):
		competition = models.RiskMedium
	default:
		competition = models.RiskLow
	}

	switch {
	case sellingPrice.GreaterThan(decimal.NewFromInt(500)):
		// Expensive items turn over slowly.
		demand = models.RiskHigh
	case sellingPrice.LessThan(decimal.NewFromInt(20)):
		demand = models.RiskMedium
	default:
		demand = models.RiskLow
	}
	return competition, demand
}

func isHighCompetition(category string) bool {
	_, ok := highCompetitionCategories[category]
	return ok
}

// IsProfitable applies the acceptance gate: enough ROI, enough absolute
// profit, and no high-risk verdict.
func (c *ProfitCalculator) IsProfitable(b *models.ProfitBreakdown, minROI, minProfit decimal.Decimal) bool {
	return b.ROIPct.GreaterThanOrEqual(minROI) &&
		b.NetProfit.GreaterThanOrEqual(minProfit) &&
		b.OverallRisk != models.RiskHigh
}

// Summary renders a human-readable one-screen breakdown for alerts and logs.
func (c *ProfitCalculator) Summary(b *models.ProfitBreakdown) string {
	return fmt.Sprintf(
		"Profit Analysis (%s/%s)\n"+
			"  Purchase: %s EUR  Selling: %s EUR\n"+
			"  Shipping: %s  Fees: %s  Taxes: %s\n"+
			"  Gross: %s  Net: %s\n"+
			"  ROI: %s%%  Margin: %s%%  Risk: %s",
		b.Marketplace, b.Category,
		b.PurchasePrice.StringFixed(2), b.SellingPrice.StringFixed(2),
		b.Shipping.Total.StringFixed(2), b.Fees.Total.StringFixed(2), b.Taxes.Total.StringFixed(2),
		b.GrossProfit.StringFixed(2), b.NetProfit.StringFixed(2),
		b.ROIPct.StringFixed(1), b.MarginPct.StringFixed(1), b.OverallRisk,
	)
}
