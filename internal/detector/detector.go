package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/internal/analyzer"
	"github.com/fraudshield/arbitrage-mediamrkt/internal/matcher"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

type Status string

const (
	StatusOpportunity      Status = "opportunity"
	StatusNotProfitable    Status = "not_profitable"
	StatusNotAnomaly       Status = "not_anomaly"
	StatusLowConfidence    Status = "low_confidence"
	StatusInsufficientData Status = "insufficient_data"
	StatusNoMatch          Status = "no_match"
	StatusInvalidInput     Status = "invalid_input"
)

// Report is the per-listing outcome handed to the alert/persistence layer.
// Match, Analysis and Profit are filled in as far as the pipeline got.
type Report struct {
	ID       string                  `json:"id"`
	Listing  models.ProductListing   `json:"listing"`
	Match    *models.MatchResult     `json:"match,omitempty"`
	Analysis *models.PriceAnalysis   `json:"analysis,omitempty"`
	Profit   *models.ProfitBreakdown `json:"profit,omitempty"`
	Status   Status                  `json:"status"`
	Reason   string                  `json:"reason,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// CandidateSource supplies target-marketplace listings to match against.
type CandidateSource interface {
	Candidates(ctx context.Context, listing models.ProductListing) ([]models.ProductListing, error)
}

// PriceHistoryProvider supplies counterpart price series keyed by
// marketplace for a matched target identifier.
type PriceHistoryProvider interface {
	History(ctx context.Context, asin string, lookbackDays int) (map[models.Marketplace][]models.PricePoint, error)
}

// AlertSink receives confirmed opportunities.
type AlertSink interface {
	Publish(ctx context.Context, report Report) error
}

// Detector runs the full pipeline: identity match, anomaly analysis, profit
// calculation. One in-flight task per listing across a bounded worker pool;
// per-item failures never abort the batch.
type Detector struct {
	cascade  *matcher.Cascade
	analyzer *analyzer.PriceAnalyzer
	calc     *analyzer.ProfitCalculator

	source  CandidateSource
	history PriceHistoryProvider
	sink    AlertSink

	workers      int
	lookbackDays int
	minROI       decimal.Decimal
	minProfit    decimal.Decimal
	assumptions  analyzer.Assumptions

	logger *logrus.Logger
}

func New(
	cascade *matcher.Cascade,
	priceAnalyzer *analyzer.PriceAnalyzer,
	calc *analyzer.ProfitCalculator,
	source CandidateSource,
	history PriceHistoryProvider,
	sink AlertSink,
	cfg *config.Config,
	log *logrus.Logger,
) *Detector {
	workers := cfg.Detector.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Detector{
		cascade:      cascade,
		analyzer:     priceAnalyzer,
		calc:         calc,
		source:       source,
		history:      history,
		sink:         sink,
		workers:      workers,
		lookbackDays: cfg.Analyzer.LookbackDays,
		minROI:       decimal.NewFromFloat(cfg.Profit.MinROI),
		minProfit:    decimal.NewFromFloat(cfg.Profit.MinProfit),
		assumptions:  analyzer.DefaultAssumptions(),
		logger:       log,
	}
}

// Run processes a batch of listings and returns one report per listing, in
// no particular order. Confirmed opportunities are also published to the
// sink. Returns early only on context cancellation.
func (d *Detector) Run(ctx context.Context, listings []models.ProductListing) ([]Report, error) {
	sem := make(chan struct{}, d.workers)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports []Report
	)

	for _, listing := range listings {
		select {
		case <-ctx.Done():
			wg.Wait()
			return reports, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(listing models.ProductListing) {
			defer wg.Done()
			defer func() { <-sem }()

			report := d.process(ctx, listing)
			recordReport(string(report.Status))

			if report.Status == StatusOpportunity {
				if err := d.sink.Publish(ctx, report); err != nil {
					d.logger.WithFields(logrus.Fields{
						"report_id": report.ID,
						"error":     err.Error(),
					}).Error("Failed to publish opportunity")
				}
			}

			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
		}(listing)
	}

	wg.Wait()
	return reports, nil
}

func (d *Detector) process(ctx context.Context, listing models.ProductListing) Report {
	started := time.Now()
	report := Report{
		ID:          uuid.New().String(),
		Listing:     listing,
		ProcessedAt: started.UTC(),
	}
	defer func() {
		observeProcessing(time.Since(started))
	}()

	if err := listing.Validate(); err != nil {
		return d.finish(report, StatusInvalidInput, "malformed listing: missing title or non-positive price")
	}

	candidates, err := d.source.Candidates(ctx, listing)
	if err != nil {
		return d.finish(report, StatusNoMatch, "candidate lookup failed: "+err.Error())
	}

	match, err := d.cascade.Match(listing, candidates)
	if err != nil {
		if errors.Is(err, models.ErrNoMatch) {
			return d.finish(report, StatusNoMatch, "no candidate cleared any matching stage")
		}
		return d.finish(report, StatusNoMatch, "matching failed: "+err.Error())
	}
	report.Match = match

	series, err := d.history.History(ctx, match.TargetASIN, d.lookbackDays)
	if err != nil {
		return d.finish(report, StatusInsufficientData, "price history lookup failed: "+err.Error())
	}

	currentPrice, _ := listing.Price.Float64()
	analysis, err := d.analyzer.AnalyzeBest(currentPrice, series)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInsufficientData):
			return d.finish(report, StatusInsufficientData, "not enough price points in any counterpart series")
		case errors.Is(err, models.ErrLowConfidence):
			return d.finish(report, StatusLowConfidence, "price history too thin or stale to trust")
		default:
			return d.finish(report, StatusInsufficientData, "analysis failed: "+err.Error())
		}
	}
	report.Analysis = analysis

	if !analysis.IsAnomaly {
		return d.finish(report, StatusNotAnomaly, "current price within normal range of counterpart history")
	}

	sellingPrice := estimatedSellingPrice(analysis)
	breakdown, err := d.calc.Calculate(listing.Price, sellingPrice, analysis.Marketplace, listing.Category, d.assumptions)
	if err != nil {
		return d.finish(report, StatusInvalidInput, "profit calculation failed: "+err.Error())
	}
	report.Profit = breakdown

	if !d.calc.IsProfitable(breakdown, d.minROI, d.minProfit) {
		return d.finish(report, StatusNotProfitable, "fails ROI, absolute-profit or risk gate")
	}

	d.logger.WithFields(logrus.Fields{
		"report_id":  report.ID,
		"listing_id": listing.ID,
		"asin":       match.TargetASIN,
		"net_profit": breakdown.NetProfit.StringFixed(2),
		"roi_pct":    breakdown.ROIPct.StringFixed(1),
	}).Info("Arbitrage opportunity detected")

	report.Status = StatusOpportunity
	return report
}

func (d *Detector) finish(report Report, status Status, reason string) Report {
	report.Status = status
	report.Reason = reason

	d.logger.WithFields(logrus.Fields{
		"report_id":  report.ID,
		"listing_id": report.Listing.ID,
		"status":     status,
	}).Debug("Listing processed")
	return report
}

// estimatedSellingPrice is the counterpart's preferred window average: what
// the item realistically resells for on the target marketplace.
func estimatedSellingPrice(analysis *models.PriceAnalysis) decimal.Decimal {
	for _, w := range []models.WindowStats{
		analysis.Stats.Window90,
		analysis.Stats.Window30,
		analysis.Stats.Window180,
		analysis.Stats.AllTime,
	} {
		if w.Points > 0 && w.Average > 0 {
			return decimal.NewFromFloat(w.Average)
		}
	}
	return decimal.NewFromFloat(analysis.CurrentPrice)
}
