package scoring

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed signals.yaml
var signalsYAML []byte

type signalDef struct {
	Name          string `yaml:"name"`
	Expr          string `yaml:"expr"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

type signalFile struct {
	Version       int         `yaml:"version"`
	Vulnerability []signalDef `yaml:"vulnerability"`
	Jargon        []signalDef `yaml:"jargon"`
	URLs          []signalDef `yaml:"urls"`
}

// signalSet holds the compiled, read-only scoring expressions
type signalSet struct {
	vulnerability []*regexp.Regexp
	jargon        []*regexp.Regexp
	urls          []*regexp.Regexp
}

var (
	signalsOnce sync.Once
	signalsSet  *signalSet
)

// signals returns the compiled built-in signal set
func signals() *signalSet {
	signalsOnce.Do(func() {
		set, err := parseSignals(signalsYAML)
		if err != nil {
			panic(fmt.Sprintf("invalid built-in scoring signals: %v", err))
		}
		signalsSet = set
	})
	return signalsSet
}

func parseSignals(data []byte) (*signalSet, error) {
	var f signalFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse signals: %w", err)
	}

	compile := func(defs []signalDef) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(defs))
		for _, d := range defs {
			expr := d.Expr
			if !d.CaseSensitive {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("failed to compile signal %q: %w", d.Expr, err)
			}
			out = append(out, re)
		}
		return out, nil
	}

	var (
		set signalSet
		err error
	)
	if set.vulnerability, err = compile(f.Vulnerability); err != nil {
		return nil, err
	}
	if set.jargon, err = compile(f.Jargon); err != nil {
		return nil, err
	}
	if set.urls, err = compile(f.URLs); err != nil {
		return nil, err
	}
	if len(set.jargon) == 0 || len(set.urls) == 0 {
		return nil, fmt.Errorf("signals need jargon and url expressions")
	}
	return &set, nil
}
