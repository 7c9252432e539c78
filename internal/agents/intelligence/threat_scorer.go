package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/llm"
	"github.com/surakshanet/surakshanet/internal/models"
)

// Fusion weights. They sum to 1; missing modalities contribute 0 to their
// term and the remaining weights are not renormalized unless the scorer is
// configured to do so, keeping scores comparable across modality mixes.
const (
	weightLinguistic = 0.35
	weightVisual     = 0.20
	weightVideo      = 0.20
	weightSender     = 0.15
	weightLLMLevel   = 0.10
)

// Factor names used in risk breakdowns and contributing-factor lists.
const (
	factorLinguistic = "linguistic_risk"
	factorVisual     = "visual_threat"
	factorVideo      = "video_deepfake"
	factorSender     = "sender_risk"
	factorLLMLevel   = "llm_assessment"
)

const fusionPromptTemplate = `You are the senior analyst fusing multi-modal threat signals into a
final verdict. The perception stage produced this JSON:

%s

Respond ONLY with strict JSON:
{"threat_level": "LOW"|"MEDIUM"|"HIGH"|"CRITICAL", "attack_type": string,
"confidence": 0.0-1.0, "reasoning": string, "recommended_actions": [string]}`

type fusionVerdict struct {
	ThreatLevel        string   `json:"threat_level"`
	AttackType         string   `json:"attack_type"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
	RecommendedActions []string `json:"recommended_actions"`
}

func levelScore(level string) float64 {
	switch models.ThreatCategory(level) {
	case models.CategoryLow:
		return 20
	case models.CategoryMedium:
		return 50
	case models.CategoryHigh:
		return 75
	case models.CategoryCritical:
		return 95
	default:
		return 0
	}
}

// Categorize maps an overall score to its threat category. Boundary values
// land in the higher category.
func Categorize(score float64) models.ThreatCategory {
	switch {
	case score < 30:
		return models.CategoryLow
	case score < 60:
		return models.CategoryMedium
	case score < 85:
		return models.CategoryHigh
	default:
		return models.CategoryCritical
	}
}

// ThreatScorer fuses perception outputs and the model's own judgment into
// a weighted score and category.
type ThreatScorer struct {
	client      llm.Client
	renormalize bool
	logger      *logrus.Logger
}

// NewThreatScorer creates a scorer. When renormalize is true, weights of
// absent modalities are redistributed over the present ones instead of
// penalizing single-modality inputs.
func NewThreatScorer(client llm.Client, renormalize bool, logger *logrus.Logger) *ThreatScorer {
	if logger == nil {
		logger = logrus.New()
	}
	return &ThreatScorer{client: client, renormalize: renormalize, logger: logger}
}

// CalculateThreatScore computes the fused assessment. Scoring never fails
// on valid inputs: an unreachable model zeroes the llm term and lowers
// confidence.
func (s *ThreatScorer) CalculateThreatScore(ctx context.Context, pr *models.PerceptionResults, tc *models.ThreatContext) (*models.ThreatAssessment, error) {
	verdict := s.fusionOpinion(ctx, pr, tc)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	level := ""
	if verdict != nil {
		level = verdict.ThreatLevel
	}

	type term struct {
		name    string
		value   float64
		weight  float64
		present bool
	}
	terms := []term{
		{factorLinguistic, textScore(pr), weightLinguistic, pr.Text != nil},
		{factorVisual, imageScore(pr), weightVisual, pr.Image != nil},
		{factorVideo, videoScore(pr), weightVideo, pr.Video != nil},
		{factorSender, clamp01(1-pr.SenderReputation) * 100, weightSender, true},
		{factorLLMLevel, levelScore(level), weightLLMLevel, level != ""},
	}

	weightSum := 0.0
	if s.renormalize {
		for _, t := range terms {
			if t.present {
				weightSum += t.weight
			}
		}
	}

	breakdown := make(map[string]float64, len(terms))
	score := 0.0
	for _, t := range terms {
		w := t.weight
		if s.renormalize && weightSum > 0 {
			if !t.present {
				w = 0
			} else {
				w = t.weight / weightSum
			}
		}
		contribution := clampScore(t.value) * w
		breakdown[t.name] = contribution
		score += contribution
	}
	score = clampScore(score)

	assessment := &models.ThreatAssessment{
		OverallScore:        score,
		Category:            Categorize(score),
		Confidence:          0.4,
		ThreatType:          "unclassified",
		AttackVector:        dominantFactor(breakdown),
		ContributingFactors: topFactors(breakdown, 3),
		RiskBreakdown:       breakdown,
		Explanation:         "Heuristic fusion of perception signals; model opinion unavailable.",
	}

	if verdict != nil {
		if verdict.AttackType != "" {
			assessment.ThreatType = verdict.AttackType
		}
		if verdict.Confidence > 0 {
			assessment.Confidence = verdict.Confidence
		}
		if verdict.Reasoning != "" {
			assessment.Explanation = verdict.Reasoning
		}
		assessment.RecommendedActions = verdict.RecommendedActions
	}
	return assessment, nil
}

// fusionOpinion asks the model for its own threat level over the compact
// perception JSON. Failures return nil and are absorbed by the caller.
func (s *ThreatScorer) fusionOpinion(ctx context.Context, pr *models.PerceptionResults, tc *models.ThreatContext) *fusionVerdict {
	payload := map[string]interface{}{
		"sender_reputation": pr.SenderReputation,
	}
	if pr.Text != nil {
		payload["text_analysis"] = pr.Text
	}
	if pr.Image != nil {
		payload["image_analysis"] = pr.Image
	}
	if pr.Video != nil {
		payload["video_analysis"] = pr.Video
	}
	if tc != nil {
		payload["context"] = tc
	}
	compact, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	res, err := s.client.AnalyzeText(ctx, fmt.Sprintf(fusionPromptTemplate, string(compact)))
	if err != nil {
		s.logger.WithError(err).Warn("threat scorer proceeding without model opinion")
		return nil
	}

	var verdict fusionVerdict
	if !llm.DecodeJSON(res.Text, &verdict) {
		return nil
	}
	return &verdict
}

func textScore(pr *models.PerceptionResults) float64 {
	if pr.Text == nil {
		return 0
	}
	return pr.Text.LinguisticRiskScore
}

func imageScore(pr *models.PerceptionResults) float64 {
	if pr.Image == nil {
		return 0
	}
	return pr.Image.VisualThreatScore
}

func videoScore(pr *models.PerceptionResults) float64 {
	if pr.Video == nil {
		return 0
	}
	return pr.Video.DeepfakeScore
}

func topFactors(breakdown map[string]float64, n int) []string {
	type kv struct {
		name  string
		value float64
	}
	sorted := make([]kv, 0, len(breakdown))
	for name, value := range breakdown {
		sorted = append(sorted, kv{name, value})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].value != sorted[j].value {
			return sorted[i].value > sorted[j].value
		}
		return sorted[i].name < sorted[j].name
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	names := make([]string, len(sorted))
	for i, f := range sorted {
		names[i] = f.name
	}
	return names
}

func dominantFactor(breakdown map[string]float64) string {
	top := topFactors(breakdown, 1)
	if len(top) == 0 {
		return "unknown"
	}
	return top[0]
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
