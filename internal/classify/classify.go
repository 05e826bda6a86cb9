// Package classify turns raw vision model responses into verdicts by
// applying the rule set configured for the task.
package classify

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
)

// Verdict is the outcome of classifying a single item.
type Verdict string

const (
	VerdictMatch   Verdict = "match"
	VerdictNoMatch Verdict = "no_match"
	VerdictError   Verdict = "error"
)

type compiledPattern struct {
	name  string
	field string
	re    *regexp.Regexp
}

// Classifier evaluates responses against one task's rules. Regex patterns
// are compiled once at construction.
type Classifier struct {
	rules    config.Rules
	patterns []compiledPattern
	log      *zap.Logger
}

func New(rules config.Rules, log *zap.Logger) (*Classifier, error) {
	if rules.Type == "" {
		rules.Type = config.RuleRegexMatch
	}

	c := &Classifier{rules: rules, log: log}
	for _, p := range rules.Patterns {
		if p.Pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p.Pattern, err)
		}
		name := p.Name
		if name == "" {
			name = truncatePattern(p.Pattern)
		}
		field := p.Field
		if field == "" {
			field = "response"
		}
		c.patterns = append(c.patterns, compiledPattern{name: name, field: field, re: re})
	}
	return c, nil
}

// Classify maps a model response to a verdict. An empty response means the
// provider gave up, which is an error rather than a no-match.
func (c *Classifier) Classify(response string) Verdict {
	if response == "" {
		return VerdictError
	}

	switch c.rules.Type {
	case config.RuleRegexMatch:
		return c.applyPatterns(response)
	case config.RuleKeywordMatch:
		return c.applyKeywords(response)
	case config.RuleAlwaysYes:
		return VerdictMatch
	case config.RuleAlwaysNo:
		return VerdictNoMatch
	default:
		c.log.Warn("unknown rules type", zap.String("type", string(c.rules.Type)))
		return VerdictNoMatch
	}
}

func (c *Classifier) applyPatterns(response string) Verdict {
	normalized := Normalize(response)

	var matches []bool
	for _, p := range c.patterns {
		text := response
		if p.field == "normalized_response" {
			text = normalized
		}
		matched := p.re.MatchString(text)
		matches = append(matches, matched)
		c.log.Debug("pattern evaluated",
			zap.String("rule", p.name),
			zap.Bool("matched", matched))
	}
	if len(matches) == 0 {
		return VerdictNoMatch
	}
	return combine(matches, c.rules.MatchAll)
}

func (c *Classifier) applyKeywords(response string) Verdict {
	if len(c.rules.Keywords) == 0 {
		return VerdictNoMatch
	}
	normalized := Normalize(response)

	matches := make([]bool, 0, len(c.rules.Keywords))
	for _, keyword := range c.rules.Keywords {
		matches = append(matches, containsKeyword(normalized, keyword))
	}
	return combine(matches, c.rules.MatchAll)
}

func combine(matches []bool, matchAll bool) Verdict {
	if matchAll {
		for _, m := range matches {
			if !m {
				return VerdictNoMatch
			}
		}
		return VerdictMatch
	}
	for _, m := range matches {
		if m {
			return VerdictMatch
		}
	}
	return VerdictNoMatch
}

func truncatePattern(pattern string) string {
	if len(pattern) > 20 {
		return pattern[:20]
	}
	return pattern
}
