// Package perception converts raw content into structured risk records.
// Each analyzer degrades gracefully: upstream model failures produce a
// rules-only or neutral result, never an error that aborts the analysis.
package perception

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/llm"
	"github.com/surakshanet/surakshanet/internal/models"
)

// ruleCategory couples a pattern set with the indicator weight its matches
// carry.
type ruleCategory struct {
	name     string
	weight   float64
	patterns []*regexp.Regexp
}

func compileRules(name string, weight float64, exprs ...string) ruleCategory {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(`(?i)\b(?:` + expr + `)\b`)
	}
	return ruleCategory{name: name, weight: weight, patterns: patterns}
}

var ruleCategories = []ruleCategory{
	compileRules("urgency", 0.7,
		`urgent(?:ly)?`, `immediately`, `asap`, `right away`, `act now`,
		`within 24 hours`, `expires? (?:today|soon)`, `final notice`),
	compileRules("financial", 0.8,
		`wire transfer`, `payment`, `invoice`, `bank account`, `payroll`,
		`gift cards?`, `transfer of funds`, `routing number`),
	compileRules("credential_request", 0.9,
		`verify your (?:password|account|credentials|identity)`, `password`,
		`login credentials`, `click(?:ing)? here`, `confirm your account`,
		`update your (?:account|billing)`),
	compileRules("executive_impersonation", 0.85,
		`(?:this is|i am) the (?:ceo|cfo|president|director)`, `ceo`, `cfo`,
		`executive request`, `on behalf of the (?:ceo|board)`),
	compileRules("threats", 0.75,
		`account (?:will be )?(?:suspended|closed|terminated)`, `legal action`,
		`consequences`, `failure to comply`),
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

var urlShorteners = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd", "cutt.ly",
}

var riskyTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".zip", ".icu",
}

var brandDomains = []string{
	"paypal", "microsoft", "google", "amazon", "apple", "netflix",
	"facebook", "linkedin", "dropbox", "docusign",
}

var freeMailDomains = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "hotmail.com": true,
	"outlook.com": true, "aol.com": true, "proton.me": true,
}

var domainSyntax = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

var numericHeavyLocal = regexp.MustCompile(`\d{3,}`)

const textPromptTemplate = `You are an email security analyst. Analyze the following message for
social engineering, phishing and business email compromise signals.

Sender: %s
Subject: %s
Message:
%s

Respond ONLY with a JSON object in a fenced code block with these fields:
{"linguistic_score": 0-100, "sentiment": string, "intent": string,
"urgency_score": 0-100, "ai_generated_prob": 0.0-1.0, "confidence": 0.0-1.0}`

// textLLMOpinion mirrors the JSON blob requested from the model.
type textLLMOpinion struct {
	LinguisticScore float64  `json:"linguistic_score"`
	Sentiment       string   `json:"sentiment"`
	Intent          string   `json:"intent"`
	UrgencyScore    float64  `json:"urgency_score"`
	AIGeneratedProb float64  `json:"ai_generated_prob"`
	Confidence      *float64 `json:"confidence"`
}

// TextAnalyzer extracts linguistic indicators, URLs and sender signals from
// email-like text and fuses them with the model's opinion.
type TextAnalyzer struct {
	client llm.Client
	logger *logrus.Logger
}

// NewTextAnalyzer creates a text perception agent.
func NewTextAnalyzer(client llm.Client, logger *logrus.Logger) *TextAnalyzer {
	if logger == nil {
		logger = logrus.New()
	}
	return &TextAnalyzer{client: client, logger: logger}
}

// Analyze runs the rule scan, URL and sender heuristics, and the LLM
// opinion, then fuses them into a TextAnalysisResult. The rule scan is
// infallible; an unreachable model degrades to rules-only scoring with
// confidence 0.3.
func (a *TextAnalyzer) Analyze(ctx context.Context, content, sender, subject string) (*models.TextAnalysisResult, error) {
	indicators := scanRules(content + " " + subject + " " + sender)
	urls := extractURLs(content)
	senderAnalysis := analyzeSender(sender)

	ruleScore := 0.0
	for _, ind := range indicators {
		ruleScore += ind.Weight * 25
	}
	ruleScore = clamp(ruleScore, 0, 100)

	urlPenalty := 0.0
	for _, u := range urls {
		if u.IsSuspicious {
			urlPenalty += 50
		}
	}
	urlPenalty = clamp(urlPenalty, 0, 100)

	senderPenalty := (1 - senderAnalysis.Reputation) * 100

	result := &models.TextAnalysisResult{
		ThreatIndicators: indicators,
		SuspiciousURLs:   urls,
		SenderAnalysis:   senderAnalysis,
	}

	prompt := fmt.Sprintf(textPromptTemplate, sender, subject, content)
	res, err := a.client.AnalyzeText(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.WithError(err).Warn("text analyzer falling back to rules-only scoring")
		result.LinguisticRiskScore = clamp(0.6*ruleScore+0.2*urlPenalty+0.2*senderPenalty, 0, 100)
		result.Confidence = 0.3
		return result, nil
	}

	var opinion textLLMOpinion
	llm.DecodeJSON(res.Text, &opinion)

	result.LinguisticRiskScore = clamp(
		0.6*opinion.LinguisticScore+0.2*ruleScore+0.1*urlPenalty+0.1*senderPenalty, 0, 100)
	result.AIGeneratedProbability = opinion.AIGeneratedProb
	if opinion.Confidence != nil {
		result.Confidence = *opinion.Confidence
	} else {
		result.Confidence = 0.5
	}
	return result, nil
}

// NeutralResult returns the substitute used when the text task times out.
func (a *TextAnalyzer) NeutralResult() *models.TextAnalysisResult {
	return &models.TextAnalysisResult{
		SenderAnalysis: models.SenderAnalysis{Reputation: 0.5},
	}
}

func scanRules(text string) []models.Indicator {
	var indicators []models.Indicator
	for _, cat := range ruleCategories {
		for _, pattern := range cat.patterns {
			matches := pattern.FindAllString(text, -1)
			seen := map[string]bool{}
			for _, m := range matches {
				normalized := strings.ToLower(m)
				if seen[normalized] {
					continue
				}
				seen[normalized] = true
				indicators = append(indicators, models.Indicator{
					Type:   cat.name,
					Value:  normalized,
					Weight: cat.weight,
				})
			}
		}
	}
	return indicators
}

func extractURLs(content string) []models.SuspiciousURL {
	var results []models.SuspiciousURL
	for _, raw := range urlPattern.FindAllString(content, -1) {
		raw = strings.TrimRight(raw, ".,;:!?)")
		entry := models.SuspiciousURL{URL: raw}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			entry.IsSuspicious = true
			entry.Reason = "URL does not parse"
			results = append(results, entry)
			continue
		}
		host := strings.ToLower(parsed.Hostname())

		switch {
		case net.ParseIP(host) != nil:
			entry.IsSuspicious = true
			entry.Reason = "host is a raw IP address"
		case matchesShortener(host, parsed.Path):
			entry.IsSuspicious = true
			entry.Reason = "known URL shortener"
		case hasRiskyTLD(host):
			entry.IsSuspicious = true
			entry.Reason = "high-risk top-level domain"
		case lookAlikeBrand(host) != "":
			entry.IsSuspicious = true
			entry.Reason = "look-alike of brand domain " + lookAlikeBrand(host)
		}
		results = append(results, entry)
	}
	return results
}

func matchesShortener(host, path string) bool {
	for _, s := range urlShorteners {
		if host == s || strings.Contains(path, s) {
			return true
		}
	}
	return false
}

func hasRiskyTLD(host string) bool {
	for _, tld := range riskyTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}

// lookAlikeBrand returns the brand a registrable label imitates, or "" when
// the label either is the brand or is unrelated.
func lookAlikeBrand(host string) string {
	labels := strings.Split(host, ".")
	label := labels[0]
	if len(labels) >= 2 {
		// second-level label, so subdomains cannot mask the imitation
		label = labels[len(labels)-2]
	}
	for _, brand := range brandDomains {
		d := levenshtein(label, brand)
		if d > 0 && d <= 2 {
			return brand
		}
	}
	return ""
}

func analyzeSender(sender string) models.SenderAnalysis {
	at := strings.LastIndex(sender, "@")
	if at <= 0 || at == len(sender)-1 {
		return models.SenderAnalysis{IsValidDomain: false, Reputation: 0.3}
	}
	local := sender[:at]
	domain := strings.ToLower(sender[at+1:])

	analysis := models.SenderAnalysis{
		IsValidDomain: domainSyntax.MatchString(domain),
	}

	risk := 0.0
	if !analysis.IsValidDomain {
		risk += 0.3
	}
	if lookAlikeBrand(domain) != "" {
		risk += 0.4
	}
	if freeMailDomains[domain] {
		risk += 0.2
	}
	if numericHeavyLocal.MatchString(local) {
		risk += 0.2
	}
	analysis.Reputation = clamp(1-risk, 0, 1)
	return analysis
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
