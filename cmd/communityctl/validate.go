package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zombar/communityanalyzer/internal/validator"
)

type validateOptions struct {
	draft     string
	forbidden string
	patterns  []string
	strict    bool
}

// errDraftFailed makes the command exit non-zero without printing usage
var errDraftFailed = errors.New("draft matched forbidden patterns")

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a draft for forbidden patterns and AI tells",
		Long: `Validate checks a draft against forbidden patterns and reports
AI-sounding phrasing, jargon, sentence length and link density.

Forbidden patterns come from --pattern flags and from a file with one
pattern per line. Lines may carry a [CAT:name] prefix; blank lines and
lines starting with # are ignored.

Examples:
  communityctl validate --draft reply.txt --pattern "(?i)buy now"
  communityctl validate --draft - --forbidden forbidden.txt --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.draft, "draft", "d", "", "Path to the draft text (- for stdin)")
	cmd.Flags().StringVar(&opts.forbidden, "forbidden", "", "File with one forbidden pattern per line")
	cmd.Flags().StringArrayVar(&opts.patterns, "pattern", nil, "Forbidden pattern (repeatable)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when the draft does not pass")
	_ = cmd.MarkFlagRequired("draft")
	return cmd
}

func runValidate(cmd *cobra.Command, root *rootOptions, opts *validateOptions) error {
	draft, err := readInput(cmd, opts.draft)
	if err != nil {
		return fmt.Errorf("failed to read draft: %w", err)
	}
	if strings.TrimSpace(string(draft)) == "" {
		return errors.New("draft is empty")
	}

	forbidden := append([]string(nil), opts.patterns...)
	if opts.forbidden != "" {
		raw, err := os.ReadFile(opts.forbidden)
		if err != nil {
			return fmt.Errorf("failed to read forbidden patterns: %w", err)
		}
		forbidden = append(forbidden, readPatternLines(raw)...)
	}

	result := validator.ValidateDraft(string(draft), forbidden)
	if err := root.writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if opts.strict && !result.Passed {
		return errDraftFailed
	}
	return nil
}

func readPatternLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
