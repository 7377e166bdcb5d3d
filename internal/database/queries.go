package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zombar/communityanalyzer/internal/models"
)

type postRow struct {
	ID           string        `db:"id"`
	CampaignID   string        `db:"campaign_id"`
	Subreddit    string        `db:"subreddit"`
	Title        string        `db:"title"`
	Body         string        `db:"body"`
	CommentCount sql.NullInt64 `db:"comment_count"`
	Upvotes      int           `db:"upvotes"`
	Archetype    string        `db:"archetype"`
	CreatedAt    time.Time     `db:"created_at"`
}

func (r postRow) toModel() models.Post {
	p := models.Post{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Subreddit:  r.Subreddit,
		Title:      r.Title,
		Body:       r.Body,
		Upvotes:    r.Upvotes,
		Archetype:  r.Archetype,
		CreatedAt:  r.CreatedAt,
	}
	if r.CommentCount.Valid {
		n := int(r.CommentCount.Int64)
		p.CommentCount = &n
	}
	return p
}

// SavePosts inserts posts or replaces existing ones with the same ID.
// Posts without an ID or timestamp get one.
func (db *DB) SavePosts(ctx context.Context, posts []models.Post) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO posts (id, campaign_id, subreddit, title, body, comment_count, upvotes, archetype, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = excluded.campaign_id,
			subreddit = excluded.subreddit,
			title = excluded.title,
			body = excluded.body,
			comment_count = excluded.comment_count,
			upvotes = excluded.upvotes,
			archetype = excluded.archetype
	`)
	for i := range posts {
		p := &posts[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		var comments sql.NullInt64
		if p.CommentCount != nil {
			comments = sql.NullInt64{Int64: int64(*p.CommentCount), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query,
			p.ID, p.CampaignID, p.Subreddit, p.Title, p.Body, comments, p.Upvotes, p.Archetype, p.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert post %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListPosts returns a campaign's posts in ingestion order, optionally
// restricted to one subreddit
func (db *DB) ListPosts(ctx context.Context, campaignID, subreddit string) ([]models.Post, error) {
	query := `
		SELECT id, campaign_id, subreddit, title, body, comment_count, upvotes, archetype, created_at
		FROM posts
		WHERE campaign_id = ?`
	args := []any{campaignID}
	if subreddit != "" {
		query += ` AND subreddit = ?`
		args = append(args, subreddit)
	}
	query += ` ORDER BY created_at, id`

	var rows []postRow
	if err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts := make([]models.Post, len(rows))
	for i, r := range rows {
		posts[i] = r.toModel()
	}
	return posts, nil
}

// GetPost retrieves a post by ID
func (db *DB) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var row postRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT id, campaign_id, subreddit, title, body, comment_count, upvotes, archetype, created_at
		FROM posts
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	p := row.toModel()
	return &p, nil
}

// SaveAnalysis stores the scores and profile of one subreddit run in a
// single transaction. Earlier scores and the earlier profile for the same
// (campaign, subreddit) are replaced wholesale.
func (db *DB) SaveAnalysis(ctx context.Context, scores []models.ScoredPost, profile *models.CommunityProfile) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM post_scores WHERE campaign_id = ? AND subreddit = ?`),
		profile.CampaignID, profile.Subreddit); err != nil {
		return fmt.Errorf("failed to clear scores: %w", err)
	}

	insert := tx.Rebind(`
		INSERT INTO post_scores (post_id, campaign_id, subreddit, total_score, features, score, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET
			campaign_id = excluded.campaign_id,
			subreddit = excluded.subreddit,
			total_score = excluded.total_score,
			features = excluded.features,
			score = excluded.score,
			scored_at = excluded.scored_at
	`)
	for _, s := range scores {
		if s.PostID == "" {
			continue
		}
		featuresJSON, err := json.Marshal(s.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal features: %w", err)
		}
		scoreJSON, err := json.Marshal(s.Score)
		if err != nil {
			return fmt.Errorf("failed to marshal score: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, s.PostID, profile.CampaignID, profile.Subreddit,
			s.Score.TotalScore, string(featuresJSON), string(scoreJSON), profile.AnalyzedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert score for post %s: %w", s.PostID, err)
		}
	}

	if err := upsertProfile(ctx, tx, profile); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveProfile inserts a profile or replaces the one for the same (campaign, subreddit)
func (db *DB) SaveProfile(ctx context.Context, profile *models.CommunityProfile) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertProfile(ctx, tx, profile); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertProfile(ctx context.Context, tx *sqlx.Tx, profile *models.CommunityProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO community_profiles (id, campaign_id, subreddit, isc_score, isc_tier, sample_size, profile, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, subreddit) DO UPDATE SET
			id = excluded.id,
			isc_score = excluded.isc_score,
			isc_tier = excluded.isc_tier,
			sample_size = excluded.sample_size,
			profile = excluded.profile,
			analyzed_at = excluded.analyzed_at
	`), profile.ID, profile.CampaignID, profile.Subreddit, profile.ISCScore, profile.ISCTier,
		profile.SampleSize, string(data), profile.AnalyzedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the profile of a subreddit within a campaign
func (db *DB) GetProfile(ctx context.Context, campaignID, subreddit string) (*models.CommunityProfile, error) {
	var data string
	err := db.conn.GetContext(ctx, &data, db.conn.Rebind(`
		SELECT profile FROM community_profiles WHERE campaign_id = ? AND subreddit = ?
	`), campaignID, subreddit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s/%s: %w", campaignID, subreddit, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return decodeProfile(data)
}

// ListProfiles returns every profile of a campaign ordered by subreddit
func (db *DB) ListProfiles(ctx context.Context, campaignID string) ([]*models.CommunityProfile, error) {
	var rows []string
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
		SELECT profile FROM community_profiles WHERE campaign_id = ? ORDER BY subreddit
	`), campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	profiles := make([]*models.CommunityProfile, 0, len(rows))
	for _, data := range rows {
		p, err := decodeProfile(data)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// ProfileExists reports whether a profile is stored for (campaign, subreddit)
func (db *DB) ProfileExists(ctx context.Context, campaignID, subreddit string) (bool, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, db.conn.Rebind(`
		SELECT COUNT(*) FROM community_profiles WHERE campaign_id = ? AND subreddit = ?
	`), campaignID, subreddit)
	if err != nil {
		return false, fmt.Errorf("failed to check profile: %w", err)
	}
	return n > 0, nil
}

func decodeProfile(data string) (*models.CommunityProfile, error) {
	var p models.CommunityProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &p, nil
}

// GetPostScore retrieves the stored score of a post
func (db *DB) GetPostScore(ctx context.Context, postID string) (*models.PostScore, error) {
	var data string
	err := db.conn.GetContext(ctx, &data, db.conn.Rebind(`SELECT score FROM post_scores WHERE post_id = ?`), postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("score for post %s: %w", postID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post score: %w", err)
	}

	var score models.PostScore
	if err := json.Unmarshal([]byte(data), &score); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score: %w", err)
	}
	return &score, nil
}

type patternRow struct {
	ID         string    `db:"id"`
	CampaignID string    `db:"campaign_id"`
	Subreddit  string    `db:"subreddit"`
	Category   string    `db:"category"`
	Pattern    string    `db:"pattern"`
	CreatedAt  time.Time `db:"created_at"`
}

// AddCustomPattern stores a user-added pattern. An empty subreddit applies
// the pattern to every subreddit of the campaign. Adding an existing
// pattern is a no-op.
func (db *DB) AddCustomPattern(ctx context.Context, p *models.StoredPattern) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO custom_patterns (id, campaign_id, subreddit, category, pattern, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, subreddit, category, pattern) DO NOTHING
	`), p.ID, p.CampaignID, p.Subreddit, p.Category, p.Pattern, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert custom pattern: %w", err)
	}
	return nil
}

// ListCustomPatterns returns the campaign's user-added patterns. With a
// subreddit, only campaign-wide patterns and that subreddit's are returned.
func (db *DB) ListCustomPatterns(ctx context.Context, campaignID, subreddit string) ([]models.StoredPattern, error) {
	query := `
		SELECT id, campaign_id, subreddit, category, pattern, created_at
		FROM custom_patterns
		WHERE campaign_id = ?`
	args := []any{campaignID}
	if subreddit != "" {
		query += ` AND (subreddit = '' OR subreddit = ?)`
		args = append(args, subreddit)
	}
	query += ` ORDER BY created_at, id`

	var rows []patternRow
	if err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query custom patterns: %w", err)
	}

	out := make([]models.StoredPattern, len(rows))
	for i, r := range rows {
		out[i] = models.StoredPattern(r)
	}
	return out, nil
}

// DeleteCustomPattern removes a user-added pattern
func (db *DB) DeleteCustomPattern(ctx context.Context, campaignID, id string) error {
	result, err := db.conn.ExecContext(ctx, db.conn.Rebind(`DELETE FROM custom_patterns WHERE campaign_id = ? AND id = ?`), campaignID, id)
	if err != nil {
		return fmt.Errorf("failed to delete custom pattern: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("custom pattern %s: %w", id, ErrNotFound)
	}
	return nil
}

type runRow struct {
	CampaignID string    `db:"campaign_id"`
	Subreddit  string    `db:"subreddit"`
	Status     string    `db:"status"`
	Stage      string    `db:"stage"`
	Error      string    `db:"error"`
	EnqueuedAt time.Time `db:"enqueued_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// SaveRun records the state of a subreddit analysis
func (db *DB) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	run.UpdatedAt = time.Now().UTC()
	if run.EnqueuedAt.IsZero() {
		run.EnqueuedAt = run.UpdatedAt
	}
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO analysis_runs (campaign_id, subreddit, status, stage, error, enqueued_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, subreddit) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			error = excluded.error,
			enqueued_at = excluded.enqueued_at,
			updated_at = excluded.updated_at
	`), run.CampaignID, run.Subreddit, string(run.Status), run.Stage, run.Error, run.EnqueuedAt.UTC(), run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}
	return nil
}

// ListRuns returns the analysis runs of a campaign ordered by subreddit
func (db *DB) ListRuns(ctx context.Context, campaignID string) ([]models.AnalysisRun, error) {
	var rows []runRow
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
		SELECT campaign_id, subreddit, status, stage, error, enqueued_at, updated_at
		FROM analysis_runs
		WHERE campaign_id = ?
		ORDER BY subreddit
	`), campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}

	runs := make([]models.AnalysisRun, len(rows))
	for i, r := range rows {
		runs[i] = models.AnalysisRun{
			CampaignID: r.CampaignID,
			Subreddit:  r.Subreddit,
			Status:     models.RunStatus(r.Status),
			Stage:      r.Stage,
			Error:      r.Error,
			EnqueuedAt: r.EnqueuedAt,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return runs, nil
}
