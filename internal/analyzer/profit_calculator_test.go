package analyzer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

type ProfitCalculatorTestSuite struct {
	suite.Suite
	calc *ProfitCalculator
}

func (s *ProfitCalculatorTestSuite) SetupTest() {
	s.calc = NewProfitCalculator()
}

func TestProfitCalculatorTestSuite(t *testing.T) {
	suite.Run(t, new(ProfitCalculatorTestSuite))
}

func (s *ProfitCalculatorTestSuite) calculate(purchase, selling float64, marketplace models.Marketplace, category string) *models.ProfitBreakdown {
	b, err := s.calc.Calculate(
		decimal.NewFromFloat(purchase),
		decimal.NewFromFloat(selling),
		marketplace,
		category,
		DefaultAssumptions(),
	)
	s.Require().NoError(err)
	return b
}

func (s *ProfitCalculatorTestSuite) TestCalculate_ElectronicsDE() {
	b := s.calculate(100, 200, models.MarketplaceDE, CategoryElectronics)

	s.Equal("2.40", b.Shipping.Total.StringFixed(2))
	s.Equal("16.00", b.Fees.Referral.StringFixed(2))
	s.Equal("5.25", b.Fees.Fulfillment.StringFixed(2))
	s.Equal("0.52", b.Fees.Storage.StringFixed(2))
	s.Equal("10.00", b.Fees.Advertising.StringFixed(2))
	s.Equal("31.77", b.Fees.Total.StringFixed(2))
	s.Equal("65.83", b.GrossProfit.StringFixed(2))
	s.Equal("31.93", b.Taxes.VATAmount.StringFixed(2))
	s.Equal("16.46", b.Taxes.IncomeTaxAmount.StringFixed(2))
	s.Equal("17.44", b.NetProfit.StringFixed(2))

	s.True(b.NetProfit.GreaterThan(decimal.Zero))

	// ROI is exactly net profit over purchase price.
	expectedROI := b.NetProfit.
		Div(b.PurchasePrice).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	s.True(b.ROIPct.Equal(expectedROI))
}

func (s *ProfitCalculatorTestSuite) TestCalculate_UKRates() {
	b := s.calculate(50, 80, models.MarketplaceUK, CategoryHome)

	// Below the 100 threshold, no weight surcharge.
	s.Equal("3.20", b.Fees.Fulfillment.StringFixed(2))
	// 24 EUR/month * 2 months * 0.01 m3
	s.Equal("0.48", b.Fees.Storage.StringFixed(2))
	s.True(b.Taxes.VATRate.Equal(decimal.NewFromInt(20)))
}

func (s *ProfitCalculatorTestSuite) TestCalculate_UnknownFallbacks() {
	b := s.calculate(40, 80, models.Marketplace("BR"), "Gardening")

	s.Equal(models.MarketplaceDE, b.Marketplace)
	s.Equal(CategoryOther, b.Category)
	// Other referral rate is 15%.
	s.Equal("12.00", b.Fees.Referral.StringFixed(2))
}

func (s *ProfitCalculatorTestSuite) TestCalculate_InvalidInput() {
	_, err := s.calc.Calculate(decimal.Zero, decimal.NewFromInt(10), models.MarketplaceDE, CategoryHome, DefaultAssumptions())
	s.ErrorIs(err, models.ErrInvalidInput)

	_, err = s.calc.Calculate(decimal.NewFromInt(10), decimal.NewFromInt(-5), models.MarketplaceDE, CategoryHome, DefaultAssumptions())
	s.ErrorIs(err, models.ErrInvalidInput)
}

func (s *ProfitCalculatorTestSuite) TestRisk_HighCompetitionCategory() {
	b := s.calculate(100, 200, models.MarketplaceDE, CategoryElectronics)
	s.Equal(models.RiskHigh, b.CompetitionRisk)
	s.Equal(models.RiskHigh, b.OverallRisk)
}

func (s *ProfitCalculatorTestSuite) TestRisk_ExcessiveROIForcedHigh() {
	b := s.calculate(10, 90, models.MarketplaceDE, CategoryHome)

	s.Equal(models.RiskLow, b.CompetitionRisk)
	s.Equal(models.RiskLow, b.DemandRisk)
	s.True(b.ROIPct.GreaterThan(decimal.NewFromInt(100)))
	s.Equal(models.RiskHigh, b.OverallRisk)
}

func (s *ProfitCalculatorTestSuite) TestRisk_PriceTiers() {
	expensive := s.calculate(400, 600, models.MarketplaceDE, CategoryHome)
	s.Equal(models.RiskHigh, expensive.DemandRisk)

	cheap := s.calculate(8, 15, models.MarketplaceDE, CategoryHome)
	s.Equal(models.RiskMedium, cheap.CompetitionRisk)
	s.Equal(models.RiskMedium, cheap.DemandRisk)
}

func (s *ProfitCalculatorTestSuite) TestIsProfitable() {
	minROI := decimal.NewFromInt(30)
	minProfit := decimal.NewFromInt(10)

	good := s.calculate(40, 120, models.MarketplaceDE, CategoryHome)
	s.True(good.ROIPct.GreaterThanOrEqual(minROI))
	s.True(s.calc.IsProfitable(good, minROI, minProfit))

	// High overall risk vetoes regardless of the numbers.
	risky := s.calculate(100, 200, models.MarketplaceDE, CategoryElectronics)
	s.False(s.calc.IsProfitable(risky, decimal.Zero, decimal.Zero))

	// Thin profit fails the gates.
	thin := s.calculate(100, 130, models.MarketplaceDE, CategoryHome)
	s.False(s.calc.IsProfitable(thin, minROI, minProfit))
}

func (s *ProfitCalculatorTestSuite) TestSummary() {
	breakdown := s.calculate(100, 200, models.MarketplaceDE, CategoryElectronics)
	summary := s.calc.Summary(breakdown)

	s.Contains(summary, "DE/Electronics")
	s.Contains(summary, "17.44")
	s.Contains(summary, "HIGH")
}
