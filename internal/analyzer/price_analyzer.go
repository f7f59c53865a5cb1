package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// PriceAnalyzer flags listings whose current price sits anomalously far below
// the counterpart's historical averages. It is pure and side-effect-free;
// concurrent calls share no state.
type PriceAnalyzer struct {
	cfg    config.AnalyzerConfig
	logger *logrus.Logger
	now    func() time.Time
}

func NewPriceAnalyzer(cfg config.AnalyzerConfig, log *logrus.Logger) *PriceAnalyzer {
	return &PriceAnalyzer{
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// Analyze evaluates the current price against one counterpart price series.
// Returns ErrInsufficientData below the minimum point count and
// ErrLowConfidence when the series is too thin or stale to trust. A verdict
// with IsAnomaly=false is a normal result, not an error.
func (a *PriceAnalyzer) Analyze(currentPrice float64, history []models.PricePoint) (*models.PriceAnalysis, error) {
	if currentPrice <= 0 {
		return nil, models.ErrInvalidInput
	}

	points := usablePoints(history)
	if len(points) < a.cfg.MinPricePoints {
		return nil, models.ErrInsufficientData
	}

	now := a.now()
	stats := a.computeStatistics(points, currentPrice, now)
	score := a.anomalyScore(currentPrice, stats)
	isAnomaly := score >= 0.5 && a.anyWindowDiscountAtThreshold(stats)

	confidence := a.confidence(points, stats, now)
	if confidence < a.cfg.MinConfidence {
		return nil, models.ErrLowConfidence
	}

	return &models.PriceAnalysis{
		CurrentPrice: currentPrice,
		Stats:        stats,
		DiscountPct:  preferredDiscount(stats),
		AnomalyScore: score,
		IsAnomaly:    isAnomaly,
		Confidence:   confidence,
		PricePoints:  len(points),
		AnalyzedAt:   now.UTC(),
	}, nil
}

// AnalyzeBest evaluates each counterpart series independently and returns the
// one with the highest discount. Series that fail analysis are skipped; only
// when every series fails does the last error surface.
func (a *PriceAnalyzer) AnalyzeBest(currentPrice float64, series map[models.Marketplace][]models.PricePoint) (*models.PriceAnalysis, error) {
	var (
		best    *models.PriceAnalysis
		lastErr error = models.ErrInsufficientData
	)

	for marketplace, history := range series {
		analysis, err := a.Analyze(currentPrice, history)
		if err != nil {
			lastErr = err
			a.logger.WithFields(logrus.Fields{
				"marketplace": marketplace,
				"error":       err.Error(),
			}).Debug("Counterpart series not analyzable")
			continue
		}
		analysis.Marketplace = marketplace

		if best == nil || analysis.DiscountPct > best.DiscountPct {
			best = analysis
		}
	}

	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

// usablePoints drops non-positive prices and returns the rest sorted by
// timestamp ascending.
func usablePoints(history []models.PricePoint) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(history))
	for _, p := range history {
		if p.Price > 0 {
			points = append(points, p)
		}
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

func (a *PriceAnalyzer) computeStatistics(points []models.PricePoint, currentPrice float64, now time.Time) models.PriceStatistics {
	var stats models.PriceStatistics

	stats.Window30 = windowStats(points, currentPrice, now.AddDate(0, 0, -30))
	stats.Window90 = windowStats(points, currentPrice, now.AddDate(0, 0, -90))
	stats.Window180 = windowStats(points, currentPrice, now.AddDate(0, 0, -180))
	stats.AllTime = windowStats(points, currentPrice, time.Time{})

	all := prices(points, time.Time{})
	stats.Min = all[0]
	stats.Max = all[0]
	for _, p := range all {
		stats.Min = math.Min(stats.Min, p)
		stats.Max = math.Max(stats.Max, p)
	}
	if len(all) > 1 {
		stats.StdDev = stat.StdDev(all, nil)
	}

	return stats
}

func windowStats(points []models.PricePoint, currentPrice float64, cutoff time.Time) models.WindowStats {
	window := prices(points, cutoff)
	if len(window) == 0 {
		return models.WindowStats{}
	}

	avg := stat.Mean(window, nil)
	ws := models.WindowStats{
		Average: avg,
		Median:  median(window),
		Points:  len(window),
	}
	if avg > 0 {
		ws.Discount = math.Max(0, (avg-currentPrice)/avg)
	}
	return ws
}

func prices(points []models.PricePoint, cutoff time.Time) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if cutoff.IsZero() || !p.Timestamp.Before(cutoff) {
			out = append(out, p.Price)
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// anomalyScore is the max over per-window discount terms and a z-score term.
// A window term is discount/(2*threshold) capped at 1, which puts a discount
// exactly at the configured threshold right on the 0.5 anomaly boundary. The
// z-score term starts contributing beyond two standard deviations.
func (a *PriceAnalyzer) anomalyScore(currentPrice float64, stats models.PriceStatistics) float64 {
	score := 0.0

	for _, w := range []models.WindowStats{stats.Window30, stats.Window90, stats.Window180} {
		if w.Points == 0 || a.cfg.AnomalyThreshold <= 0 {
			continue
		}
		score = math.Max(score, math.Min(1, w.Discount/(2*a.cfg.AnomalyThreshold)))
	}

	if stats.StdDev > 0 && stats.AllTime.Average > 0 {
		z := math.Abs(currentPrice-stats.AllTime.Average) / stats.StdDev
		if z > 2 {
			score = math.Max(score, math.Min(1, (z-2)/3))
		}
	}
	return score
}

func (a *PriceAnalyzer) anyWindowDiscountAtThreshold(stats models.PriceStatistics) bool {
	for _, w := range []models.WindowStats{stats.Window30, stats.Window90, stats.Window180} {
		if w.Points > 0 && w.Discount >= a.cfg.AnomalyThreshold {
			return true
		}
	}
	return false
}

// confidence grades the evidence quality: recent data, enough points, stable
// prices and a history that actually spans time.
func (a *PriceAnalyzer) confidence(points []models.PricePoint, stats models.PriceStatistics, now time.Time) float64 {
	confidence := 0.0

	latest := points[len(points)-1].Timestamp
	daysOld := now.Sub(latest).Hours() / 24
	confidence += math.Max(0, 1-daysOld/30) * 0.3

	confidence += math.Min(1, float64(len(points))/50) * 0.3

	if stats.AllTime.Average > 0 {
		cv := stats.StdDev / stats.AllTime.Average
		confidence += math.Max(0, 1-cv) * 0.2
	}

	if len(points) > 1 {
		span := points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Hours() / 24
		confidence += math.Min(1, span/90) * 0.2
	}

	return confidence
}

// preferredDiscount picks the headline discount figure: the 90-day window
// when populated, then 30-day, 180-day, all-time.
func preferredDiscount(stats models.PriceStatistics) float64 {
	for _, w := range []models.WindowStats{stats.Window90, stats.Window30, stats.Window180, stats.AllTime} {
		if w.Points > 0 && w.Average > 0 {
			return w.Discount
		}
	}
	return 0
}
