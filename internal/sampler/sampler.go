// Package sampler implements the pass/drop predicate for log messages.
// It is supplied by configuration, not hardcoded into the worker.
package sampler

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/mobystash/mobystash/internal/domain"
)

// Sampler decides, for a message, whether it should be forwarded and
// what sampling metadata (if any) to merge into the event.
type Sampler interface {
	Sample(message string) (passed bool, metadata domain.Tags)
}

// Always passes every message through with no metadata. It is the
// default when no sampling is configured.
type Always struct{}

func (Always) Sample(string) (bool, domain.Tags) { return true, domain.Tags{} }

// Ratio keeps a message deterministically based on a hash of its
// content, so the same message content is never "sometimes sampled,
// sometimes not" at a fixed ratio — this keeps the behavior testable
// and avoids needing a seeded PRNG thread through the worker.
type Ratio struct {
	Ratio float64
}

func (r Ratio) Sample(message string) (bool, domain.Tags) {
	if r.Ratio >= 1 {
		return true, domain.Tags{}
	}
	if r.Ratio <= 0 {
		return false, nil
	}
	if hashUnit(message) >= r.Ratio {
		return false, nil
	}
	return true, domain.Tags{
		"sampled":      true,
		"sample_ratio": r.Ratio,
	}
}

// Rule is one entry of the free-form MOBYSTASH_SAMPLE_RULES list: any
// message containing Substring is sampled at Ratio instead of the
// sampler's default ratio.
type Rule struct {
	Substring string
	Ratio     float64
}

// Rules layers per-substring overrides on top of a default ratio.
type Rules struct {
	Default Ratio
	Rules   []Rule
}

func (rs Rules) Sample(message string) (bool, domain.Tags) {
	for _, rule := range rs.Rules {
		if strings.Contains(message, rule.Substring) {
			return Ratio{Ratio: rule.Ratio}.Sample(message)
		}
	}
	return rs.Default.Sample(message)
}

// ParseRules parses the MOBYSTASH_SAMPLE_RULES config value, a
// comma-separated list of "substring:ratio" pairs. Malformed entries are
// skipped.
func ParseRules(raw string, defaultRatio float64) Rules {
	rs := Rules{Default: Ratio{Ratio: defaultRatio}}
	if raw == "" {
		return rs
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.LastIndex(entry, ":")
		if idx < 0 {
			continue
		}
		substr := entry[:idx]
		if substr == "" {
			continue
		}
		ratio, err := strconv.ParseFloat(entry[idx+1:], 64)
		if err != nil {
			continue
		}
		rs.Rules = append(rs.Rules, Rule{Substring: substr, Ratio: ratio})
	}
	return rs
}

// hashUnit maps message to a deterministic value in [0, 1).
func hashUnit(message string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(message))
	return float64(h.Sum32()) / float64(1<<32)
}
