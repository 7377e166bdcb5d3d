package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombar/communityanalyzer/internal/analyzer"
	"github.com/zombar/communityanalyzer/internal/database"
	"github.com/zombar/communityanalyzer/internal/metrics"
	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/patterns"
	"github.com/zombar/communityanalyzer/internal/scoring"
)

// ErrStorage marks failures of the backing store. They are retried.
var ErrStorage = errors.New("storage error")

// Store is the persistence the processor needs
type Store interface {
	ListPosts(ctx context.Context, campaignID, subreddit string) ([]models.Post, error)
	ListCustomPatterns(ctx context.Context, campaignID, subreddit string) ([]models.StoredPattern, error)
	ProfileExists(ctx context.Context, campaignID, subreddit string) (bool, error)
	GetProfile(ctx context.Context, campaignID, subreddit string) (*models.CommunityProfile, error)
	SaveAnalysis(ctx context.Context, scores []models.ScoredPost, profile *models.CommunityProfile) error
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
}

var _ Store = (*database.DB)(nil)

// ProcessorConfig configures a Processor
type ProcessorConfig struct {
	// Workers bounds feature extraction concurrency, 0 for NumCPU
	Workers int
	// CustomPatterns apply to every campaign
	CustomPatterns []patterns.CustomPattern
	Metrics        *metrics.BusinessMetrics
	Logger         *slog.Logger
}

// Processor runs and persists the analysis of one subreddit. It is shared by
// the queue worker and the synchronous API path.
type Processor struct {
	store   Store
	cfg     ProcessorConfig
	base    *analyzer.Analyzer
	logger  *slog.Logger
	metrics *metrics.BusinessMetrics
}

// NewProcessor creates a Processor backed by store
func NewProcessor(store Store, cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:   store,
		cfg:     cfg,
		base:    newAnalyzer(cfg, cfg.CustomPatterns, logger),
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

func newAnalyzer(cfg ProcessorConfig, custom []patterns.CustomPattern, logger *slog.Logger) *analyzer.Analyzer {
	return analyzer.New(
		analyzer.WithWorkers(cfg.Workers),
		analyzer.WithCustomPatterns(custom),
		analyzer.WithLogger(logger),
	)
}

// Analyzer returns the analyzer used when no campaign patterns are stored
func (p *Processor) Analyzer() *analyzer.Analyzer {
	return p.base
}

// Outcome reports what Process did
type Outcome struct {
	Profile *models.CommunityProfile
	// UpToDate is set when an existing profile was returned unchanged
	UpToDate bool
}

// Process analyzes the stored posts of one subreddit and replaces its
// scores and profile. Without forceRefresh an existing profile is returned
// as is. Fewer than scoring.MinPosts posts yield *scoring.InsufficientDataError
// and a skipped run.
func (p *Processor) Process(ctx context.Context, campaignID, subreddit string, forceRefresh bool) (*Outcome, error) {
	logger := p.logger.With("campaign_id", campaignID, "subreddit", subreddit)
	start := time.Now()

	if !forceRefresh {
		exists, err := p.store.ProfileExists(ctx, campaignID, subreddit)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to check profile: %w", ErrStorage, err)
		}
		if exists {
			prof, err := p.store.GetProfile(ctx, campaignID, subreddit)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to load profile: %w", ErrStorage, err)
			}
			logger.Info("profile up to date, skipping analysis")
			return &Outcome{Profile: prof, UpToDate: true}, nil
		}
	}

	run := &models.AnalysisRun{CampaignID: campaignID, Subreddit: subreddit, Status: models.RunRunning}
	p.saveRun(ctx, logger, run)

	prof, err := p.analyze(ctx, logger, run)
	if err != nil {
		var insufficient *scoring.InsufficientDataError
		status, label := models.RunFailed, metrics.StatusFailed
		if errors.As(err, &insufficient) {
			status, label = models.RunSkipped, metrics.StatusSkipped
		}
		run.Status = status
		run.Error = err.Error()
		p.saveRun(context.WithoutCancel(ctx), logger, run)
		p.record(ctx, label, start, nil)
		logger.Warn("subreddit analysis did not complete", "status", status, "error", err)
		return nil, err
	}

	run.Status = models.RunCompleted
	run.Stage = ""
	run.Error = ""
	p.saveRun(ctx, logger, run)
	p.record(ctx, metrics.StatusCompleted, start, prof)

	return &Outcome{Profile: prof}, nil
}

func (p *Processor) analyze(ctx context.Context, logger *slog.Logger, run *models.AnalysisRun) (*models.CommunityProfile, error) {
	posts, err := p.store.ListPosts(ctx, run.CampaignID, run.Subreddit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load posts: %w", ErrStorage, err)
	}
	if err := scoring.RequireMinPosts(len(posts)); err != nil {
		return nil, err
	}

	a, err := p.analyzerFor(ctx, run.CampaignID, run.Subreddit, logger)
	if err != nil {
		return nil, err
	}

	result, err := a.AnalyzeSubreddit(ctx, analyzer.Request{
		CampaignID: run.CampaignID,
		Subreddit:  run.Subreddit,
		Posts:      posts,
		Progress: func(stage string) {
			run.Stage = stage
			p.saveRun(ctx, logger, run)
		},
	})
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveAnalysis(ctx, result.Scores, result.Profile); err != nil {
		return nil, fmt.Errorf("%w: failed to save analysis: %w", ErrStorage, err)
	}
	return result.Profile, nil
}

// analyzerFor returns the base analyzer, or a new one when the campaign has
// stored patterns of its own
func (p *Processor) analyzerFor(ctx context.Context, campaignID, subreddit string, logger *slog.Logger) (*analyzer.Analyzer, error) {
	stored, err := p.store.ListCustomPatterns(ctx, campaignID, subreddit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load custom patterns: %w", ErrStorage, err)
	}
	if len(stored) == 0 {
		return p.base, nil
	}

	custom := make([]patterns.CustomPattern, 0, len(p.cfg.CustomPatterns)+len(stored))
	custom = append(custom, p.cfg.CustomPatterns...)
	for _, sp := range stored {
		custom = append(custom, patterns.CustomPattern{Category: sp.Category, Expr: sp.Pattern})
	}
	return newAnalyzer(p.cfg, custom, logger), nil
}

func (p *Processor) saveRun(ctx context.Context, logger *slog.Logger, run *models.AnalysisRun) {
	if err := p.store.SaveRun(ctx, run); err != nil {
		logger.Warn("failed to record analysis run", "status", run.Status, "stage", run.Stage, "error", err)
	}
}

func (p *Processor) record(ctx context.Context, status string, start time.Time, prof *models.CommunityProfile) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordAnalysis(ctx, status, time.Since(start))
	p.metrics.RecordProfile(ctx, prof)
}
