package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/communityanalyzer/internal/models"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func postsJSON(t *testing.T, counts map[string]int) string {
	t.Helper()
	bodies := []string{
		"I struggled with my tomatoes this year. The leaves kept curling and I felt lost.",
		"My journey with raised beds has been slow. I learned a lot about drainage though.",
		"Does anyone know why my basil wilts in the afternoon? It gets plenty of water.",
	}
	var posts []models.Post
	for sub, n := range counts {
		for i := 0; i < n; i++ {
			comments := i
			posts = append(posts, models.Post{
				ID:           fmt.Sprintf("%s-%d", sub, i),
				Subreddit:    sub,
				Title:        fmt.Sprintf("Update %d", i),
				Body:         bodies[i%len(bodies)],
				CommentCount: &comments,
			})
		}
	}
	data, err := json.Marshal(posts)
	require.NoError(t, err)
	return string(data)
}

func TestAnalyzeCommand(t *testing.T) {
	input := writeFile(t, "posts.json", postsJSON(t, map[string]int{"gardening": 12, "tiny": 3}))

	out, err := execute(t, "", "analyze", "--input", input, "--campaign", "camp-1")
	require.NoError(t, err)

	var reports []subredditReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)

	bySub := map[string]subredditReport{}
	for _, r := range reports {
		bySub[r.Subreddit] = r
	}

	garden := bySub["gardening"]
	assert.Equal(t, "completed", garden.Status)
	assert.Equal(t, 12, garden.Posts)
	require.NotNil(t, garden.Profile)
	assert.Equal(t, "camp-1", garden.Profile.CampaignID)
	assert.Equal(t, 12, garden.Profile.SampleSize)

	tiny := bySub["tiny"]
	assert.Equal(t, "skipped", tiny.Status)
	assert.Nil(t, tiny.Profile)
	assert.Contains(t, tiny.Error, "insufficient data")
}

func TestAnalyzeCommandStdinAndFilter(t *testing.T) {
	stdin := postsJSON(t, map[string]int{"gardening": 10, "cooking": 10})

	out, err := execute(t, stdin, "analyze", "--input", "-", "--subreddit", "cooking")
	require.NoError(t, err)

	var reports []subredditReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "cooking", reports[0].Subreddit)
	assert.Equal(t, "completed", reports[0].Status)
}

func TestAnalyzeCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"missing input flag", "", []string{"analyze"}},
		{"invalid json", "{not json", []string{"analyze", "--input", "-"}},
		{"no posts", "[]", []string{"analyze", "--input", "-"}},
		{"missing patterns file", "[]", []string{"analyze", "--input", "-", "--custom-patterns", "/nonexistent.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	draft := writeFile(t, "draft.txt", "Honestly my peppers did great this year. Buy now before stock runs out.")
	forbidden := writeFile(t, "forbidden.txt", "# promo\n[CAT:Promotional]buy now\n\n")

	out, err := execute(t, "", "validate", "--draft", draft, "--forbidden", forbidden)
	require.NoError(t, err)

	var result models.DraftValidation
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ForbiddenChecked)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "Promotional", result.Violations[0].Category)
	assert.Equal(t, "Buy now", result.Violations[0].MatchedText)

	_, err = execute(t, "", "validate", "--draft", draft, "--forbidden", forbidden, "--strict")
	assert.ErrorIs(t, err, errDraftFailed)
}

func TestValidateCommandPasses(t *testing.T) {
	out, err := execute(t, "My peppers did great this year.", "validate", "--draft", "-", "--pattern", "coupon", "--strict")
	require.NoError(t, err)

	var result models.DraftValidation
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Passed)
	assert.Empty(t, result.Violations)
}

func TestValidateCommandEmptyDraft(t *testing.T) {
	_, err := execute(t, "   ", "validate", "--draft", "-")
	assert.Error(t, err)
}

func TestTaxonomyCommand(t *testing.T) {
	out, err := execute(t, "", "taxonomy")
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "Promotional")

	out, err = execute(t, "", "taxonomy", "--json", "--indent=false")
	require.NoError(t, err)
	var tax struct {
		Version    int `json:"version"`
		Categories []struct {
			Name string `json:"name"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tax))
	assert.Equal(t, 1, tax.Version)
	assert.NotEmpty(t, tax.Categories)
}

func TestReadPatternLines(t *testing.T) {
	lines := readPatternLines([]byte("# comment\n  foo  \n\n[CAT:Spam]bar\n"))
	assert.Equal(t, []string{"foo", "[CAT:Spam]bar"}, lines)
}
