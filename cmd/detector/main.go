package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/internal/analyzer"
	"github.com/fraudshield/arbitrage-mediamrkt/internal/detector"
	"github.com/fraudshield/arbitrage-mediamrkt/internal/governor"
	"github.com/fraudshield/arbitrage-mediamrkt/internal/matcher"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/logger"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// batchInput is the offline work unit: scraped listings plus the candidate
// pools and counterpart price histories fetched for them.
type batchInput struct {
	Listings   []models.ProductListing                               `json:"listings"`
	Candidates map[string][]models.ProductListing                    `json:"candidates"`
	Histories  map[string]map[models.Marketplace][]models.PricePoint `json:"histories"`
}

type batchSource struct {
	candidates map[string][]models.ProductListing
}

func (b *batchSource) Candidates(_ context.Context, listing models.ProductListing) ([]models.ProductListing, error) {
	return b.candidates[listing.ID], nil
}

type batchHistory struct {
	histories map[string]map[models.Marketplace][]models.PricePoint
}

func (b *batchHistory) History(_ context.Context, asin string, _ int) (map[models.Marketplace][]models.PricePoint, error) {
	return b.histories[asin], nil
}

// logSink writes confirmed opportunities to the structured log; a messaging
// or persistence sink slots in behind the same interface.
type logSink struct {
	log *logrus.Logger
}

func (s *logSink) Publish(_ context.Context, report detector.Report) error {
	s.log.WithFields(logrus.Fields{
		"report_id":  report.ID,
		"listing_id": report.Listing.ID,
		"asin":       report.Match.TargetASIN,
		"method":     report.Match.Method,
		"discount":   fmt.Sprintf("%.1f%%", report.Analysis.DiscountPct*100),
		"net_profit": report.Profit.NetProfit.StringFixed(2),
		"roi_pct":    report.Profit.ROIPct.StringFixed(1),
	}).Info("Opportunity published")
	return nil
}

func main() {
	inputPath := flag.String("input", "", "path to a batch input JSON file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.App.LogLevel, cfg.App.LogFormat)

	if *inputPath == "" {
		log.Fatal("No input batch given, use -input")
	}

	input, err := readBatch(*inputPath)
	if err != nil {
		log.Fatal("Failed to read batch input: ", err)
	}

	pool := governor.NewPool(cfg.Proxy, log)
	healthChecker := governor.NewHealthChecker(pool, cfg.Proxy, log)
	rateLimiter := governor.NewRateLimiter(cfg.RateLimit, log)

	embedder, err := matcher.NewHashingEmbedder(cfg.Matcher.EmbeddingDim)
	if err != nil {
		log.Fatal("Failed to create embedder: ", err)
	}
	cascade := matcher.NewCascade(cfg.Matcher, embedder, log)
	priceAnalyzer := analyzer.NewPriceAnalyzer(cfg.Analyzer, log)
	calc := analyzer.NewProfitCalculator()

	det := detector.New(
		cascade,
		priceAnalyzer,
		calc,
		&batchSource{candidates: input.Candidates},
		&batchHistory{histories: input.Histories},
		&logSink{log: log},
		cfg,
		log,
	)

	if len(cfg.Proxy.Proxies) > 0 {
		healthChecker.Start()
		defer healthChecker.Stop()
	}

	metricsServer := startMetricsServer(cfg.App.MetricsPort, log)
	defer shutdownMetricsServer(metricsServer, log)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()

	log.WithFields(logrus.Fields{
		"listings": len(input.Listings),
		"workers":  cfg.Detector.Workers,
		"proxies":  len(cfg.Proxy.Proxies),
	}).Info("Starting arbitrage detection run")

	reports, err := det.Run(ctx, input.Listings)
	if err != nil {
		log.WithError(err).Warn("Detection run interrupted")
	}

	logRunSummary(log, reports)
	logGovernorStats(log, pool, rateLimiter)

	if err := json.NewEncoder(os.Stdout).Encode(reports); err != nil {
		log.WithError(err).Error("Failed to write reports")
	}
}

func readBatch(path string) (*batchInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var input batchInput
	if err := json.NewDecoder(f).Decode(&input); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &input, nil
}

func startMetricsServer(port int, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.WithField("port", port).Info("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Metrics server shutdown failed")
	}
}

func logRunSummary(log *logrus.Logger, reports []detector.Report) {
	counts := map[detector.Status]int{}
	for _, r := range reports {
		counts[r.Status]++
	}

	log.WithFields(logrus.Fields{
		"total":             len(reports),
		"opportunities":     counts[detector.StatusOpportunity],
		"not_profitable":    counts[detector.StatusNotProfitable],
		"not_anomaly":       counts[detector.StatusNotAnomaly],
		"low_confidence":    counts[detector.StatusLowConfidence],
		"insufficient_data": counts[detector.StatusInsufficientData],
		"no_match":          counts[detector.StatusNoMatch],
		"invalid_input":     counts[detector.StatusInvalidInput],
	}).Info("Detection run complete")
}

func logGovernorStats(log *logrus.Logger, pool *governor.Pool, rl *governor.RateLimiter) {
	poolStats := pool.Stats()
	log.WithFields(logrus.Fields{
		"proxies_total":  poolStats.Total,
		"proxies_active": poolStats.Active,
		"proxies_banned": poolStats.Banned,
	}).Debug("Proxy pool state")

	for domain, stats := range rl.Stats() {
		log.WithFields(logrus.Fields{
			"domain":      domain,
			"recent":      stats.RecentRequests,
			"utilization": fmt.Sprintf("%.2f", stats.Utilization),
		}).Debug("Domain rate state")
	}
}
