// Package intelligence fuses perception output into a threat assessment
// and matches extracted indicators against known attack patterns.
package intelligence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/models"
)

// ErrDuplicatePattern is returned by AddPattern for a reused pattern id.
var ErrDuplicatePattern = errors.New("duplicate pattern id")

// DefaultConfidenceThreshold filters matches when the caller passes no
// threshold.
const DefaultConfidenceThreshold = 0.6

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeIndicator lowercases an indicator string and collapses runs of
// non-alphanumeric characters to a single underscore.
func NormalizeIndicator(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// PatternMatcher holds the process-wide threat pattern catalog. Reads are
// concurrent; AddPattern takes the write lock.
type PatternMatcher struct {
	mu       sync.RWMutex
	patterns map[string]models.ThreatPattern
	logger   *logrus.Logger
}

// NewPatternMatcher creates a matcher seeded with the built-in catalog.
func NewPatternMatcher(logger *logrus.Logger) *PatternMatcher {
	if logger == nil {
		logger = logrus.New()
	}
	m := &PatternMatcher{
		patterns: make(map[string]models.ThreatPattern),
		logger:   logger,
	}
	for _, p := range seedPatterns() {
		m.patterns[p.PatternID] = p
	}
	return m
}

func seedPatterns() []models.ThreatPattern {
	return []models.ThreatPattern{
		{
			PatternID:      "ceo_fraud_001",
			PatternType:    "business_email_compromise",
			Indicators:     []string{"urgent", "wire_transfer", "confidential", "executive_impersonation"},
			AttackCategory: "ceo_fraud",
			Severity:       "critical",
			Description:    "Executive impersonation demanding an urgent confidential wire transfer",
		},
		{
			PatternID:      "bec_payroll_update",
			PatternType:    "business_email_compromise",
			Indicators:     []string{"payroll", "update_account", "direct_deposit", "urgent"},
			AttackCategory: "payroll_diversion",
			Severity:       "high",
			Description:    "Payroll diversion request changing direct deposit details",
		},
		{
			PatternID:      "credential_phish_001",
			PatternType:    "phishing",
			Indicators:     []string{"verify", "password", "click_here", "account_suspended"},
			AttackCategory: "credential_harvesting",
			Severity:       "high",
			Description:    "Credential harvesting lure with account suspension pretext",
		},
		{
			PatternID:      "invoice_fraud_001",
			PatternType:    "business_email_compromise",
			Indicators:     []string{"invoice", "payment", "overdue", "bank_account"},
			AttackCategory: "invoice_fraud",
			Severity:       "high",
			Description:    "Fraudulent invoice redirecting payment to an attacker account",
		},
	}
}

// AddPattern registers a new pattern and returns its id. The id must be
// unique.
func (m *PatternMatcher) AddPattern(p models.ThreatPattern) (string, error) {
	if p.PatternID == "" {
		return "", fmt.Errorf("pattern id must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.patterns[p.PatternID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicatePattern, p.PatternID)
	}
	m.patterns[p.PatternID] = p
	return p.PatternID, nil
}

// FindMatchingPatterns scores the input indicator set against every catalog
// pattern. Matches at or above threshold are returned sorted by descending
// similarity, ties broken by ascending pattern id. A threshold at or below
// zero falls back to DefaultConfidenceThreshold.
func (m *PatternMatcher) FindMatchingPatterns(indicators []string, threshold float64) []models.PatternMatch {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	input := make(map[string]bool, len(indicators))
	for _, ind := range indicators {
		if n := NormalizeIndicator(ind); n != "" {
			input[n] = true
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []models.PatternMatch
	for _, p := range m.patterns {
		if len(p.Indicators) == 0 {
			continue
		}
		var matched []string
		for _, pi := range p.Indicators {
			if input[NormalizeIndicator(pi)] {
				matched = append(matched, NormalizeIndicator(pi))
			}
		}
		if len(matched) == 0 {
			continue
		}
		similarity := float64(len(matched)) / float64(len(p.Indicators))
		if len(matched) == len(p.Indicators) {
			similarity += 0.1
			if similarity > 1.0 {
				similarity = 1.0
			}
		}
		if similarity < threshold {
			continue
		}
		sort.Strings(matched)
		matches = append(matches, models.PatternMatch{
			PatternID:         p.PatternID,
			SimilarityScore:   similarity,
			MatchedIndicators: matched,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].SimilarityScore != matches[j].SimilarityScore {
			return matches[i].SimilarityScore > matches[j].SimilarityScore
		}
		return matches[i].PatternID < matches[j].PatternID
	})
	return matches
}

// Patterns returns a snapshot of the catalog.
func (m *PatternMatcher) Patterns() []models.ThreatPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ThreatPattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatternID < out[j].PatternID })
	return out
}

// LoadSeedFile merges newline-delimited JSON ThreatPattern records into the
// catalog. A missing file is not an error; malformed lines are skipped with
// a warning, and duplicate ids keep the existing entry.
func (m *PatternMatcher) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening pattern seed file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p models.ThreatPattern
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			m.logger.WithFields(logrus.Fields{"file": path, "line": line}).
				WithError(err).Warn("skipping malformed pattern record")
			continue
		}
		if _, err := m.AddPattern(p); err != nil {
			m.logger.WithFields(logrus.Fields{"file": path, "line": line}).
				WithError(err).Warn("skipping pattern record")
		}
	}
	return scanner.Err()
}
