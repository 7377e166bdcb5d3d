package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zombar/communityanalyzer/internal/analyzer"
	"github.com/zombar/communityanalyzer/internal/models"
	"github.com/zombar/communityanalyzer/internal/patterns"
	"github.com/zombar/communityanalyzer/internal/scoring"
)

type analyzeOptions struct {
	input          string
	campaign       string
	subreddits     []string
	customPatterns string
	parallel       int
	workers        int
}

// subredditReport is the per-subreddit line of the analyze output
type subredditReport struct {
	Subreddit string                   `json:"subreddit"`
	Status    string                   `json:"status"`
	Posts     int                      `json:"posts"`
	Error     string                   `json:"error,omitempty"`
	Profile   *models.CommunityProfile `json:"profile,omitempty"`
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build community profiles from a JSON post dump",
		Long: `Analyze groups posts by subreddit and builds one profile per subreddit.

The input is a JSON array of posts. Subreddits with fewer than the
minimum number of posts are reported as skipped.

Examples:
  communityctl analyze --input posts.json
  communityctl analyze --input - --subreddit gardening < posts.json
  communityctl analyze --input posts.json --custom-patterns forbidden.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Path to a JSON array of posts (- for stdin)")
	cmd.Flags().StringVar(&opts.campaign, "campaign", "local", "Campaign ID stamped on the profiles")
	cmd.Flags().StringSliceVarP(&opts.subreddits, "subreddit", "s", nil, "Only analyze these subreddits")
	cmd.Flags().StringVar(&opts.customPatterns, "custom-patterns", "", "YAML file of extra forbidden patterns")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 2, "Subreddits analyzed concurrently")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Feature extraction workers per subreddit (0 = NumCPU)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions) error {
	data, err := readInput(cmd, opts.input)
	if err != nil {
		return fmt.Errorf("failed to read posts: %w", err)
	}
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return fmt.Errorf("invalid posts file: %w", err)
	}

	var custom []patterns.CustomPattern
	if opts.customPatterns != "" {
		raw, err := os.ReadFile(opts.customPatterns)
		if err != nil {
			return fmt.Errorf("failed to read custom patterns: %w", err)
		}
		if custom, err = patterns.LoadCustomPatterns(raw); err != nil {
			return err
		}
	}

	logger := root.logger(cmd)
	a := analyzer.New(
		analyzer.WithWorkers(opts.workers),
		analyzer.WithCustomPatterns(custom),
		analyzer.WithLogger(logger),
	)

	groups := analyzer.GroupBySubreddit(posts)
	names := analyzer.Subreddits(groups)
	if len(opts.subreddits) > 0 {
		names = opts.subreddits
	}
	if len(names) == 0 {
		return errors.New("no posts to analyze")
	}

	reports := make([]subredditReport, len(names))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(opts.parallel, 1))
	for i, name := range names {
		g.Go(func() error {
			batch := groups[name]
			report := subredditReport{Subreddit: name, Posts: len(batch)}
			res, err := a.AnalyzeSubreddit(ctx, analyzer.Request{
				CampaignID: opts.campaign,
				Subreddit:  name,
				Posts:      batch,
			})
			switch {
			case errors.Is(err, scoring.ErrInsufficientData):
				report.Status = "skipped"
				report.Error = err.Error()
			case err != nil:
				return fmt.Errorf("%s: %w", name, err)
			default:
				report.Status = "completed"
				report.Profile = res.Profile
			}
			reports[i] = report
			logger.Debug("subreddit finished", "subreddit", name, "status", report.Status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return root.writeJSON(cmd.OutOrStdout(), reports)
}
