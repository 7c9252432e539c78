package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surakshanet/surakshanet/internal/agents/defense"
	"github.com/surakshanet/surakshanet/internal/agents/perception"
	"github.com/surakshanet/surakshanet/internal/models"
	"github.com/surakshanet/surakshanet/internal/store"
)

type stubText struct {
	result *models.TextAnalysisResult
	err    error
	calls  int
}

func (s *stubText) Analyze(ctx context.Context, content, sender, subject string) (*models.TextAnalysisResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubText) NeutralResult() *models.TextAnalysisResult {
	return &models.TextAnalysisResult{SenderAnalysis: models.SenderAnalysis{Reputation: 0.5}}
}

type stubImage struct {
	result *models.ImageAnalysisResult
	err    error
	calls  int
}

func (s *stubImage) AnalyzeImage(ctx context.Context, data []byte, note string) (*models.ImageAnalysisResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubImage) NeutralResult() *models.ImageAnalysisResult { return &models.ImageAnalysisResult{} }

type stubVideo struct {
	result *models.VideoAnalysisResult
	err    error
	calls  int
}

func (s *stubVideo) AnalyzeVideo(ctx context.Context, src perception.FrameSource, interval int) (*models.VideoAnalysisResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubVideo) NeutralResult() *models.VideoAnalysisResult {
	return &models.VideoAnalysisResult{ManipulationType: "unknown"}
}

// blockedText never answers; it holds until the perception context ends.
type blockedText struct {
	calls int
}

func (s *blockedText) Analyze(ctx context.Context, content, sender, subject string) (*models.TextAnalysisResult, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockedText) NeutralResult() *models.TextAnalysisResult {
	return &models.TextAnalysisResult{SenderAnalysis: models.SenderAnalysis{Reputation: 0.5}}
}

type stubScorer struct {
	assessment *models.ThreatAssessment
	err        error
	got        *models.PerceptionResults
}

func (s *stubScorer) CalculateThreatScore(ctx context.Context, pr *models.PerceptionResults, tc *models.ThreatContext) (*models.ThreatAssessment, error) {
	s.got = pr
	if s.err != nil {
		return nil, s.err
	}
	a := *s.assessment
	return &a, nil
}

type stubMatcher struct {
	matches []models.PatternMatch
	got     []string
}

func (s *stubMatcher) FindMatchingPatterns(indicators []string, threshold float64) []models.PatternMatch {
	s.got = indicators
	return s.matches
}

type stubDefense struct {
	executed int
}

func (s *stubDefense) DetermineActions(a *models.ThreatAssessment, autoExecute bool) []models.Action {
	switch a.Category {
	case models.CategoryCritical:
		return []models.Action{
			{Type: models.ActionQuarantine, Priority: 4},
			{Type: models.ActionBlockSender, Priority: 3},
		}
	default:
		return []models.Action{{Type: models.ActionLog, Priority: 1}}
	}
}

func (s *stubDefense) ExecuteActions(ctx context.Context, actions []models.Action, execCtx defense.ExecutionContext) []models.ActionResult {
	s.executed++
	results := make([]models.ActionResult, len(actions))
	for i, a := range actions {
		results[i] = models.ActionResult{Action: a, Success: true}
	}
	return results
}

type stubDecoys struct {
	deployed int
}

func (s *stubDecoys) DeployDecoy(ctx context.Context, threatID, sender, msg, decoyType string) (*models.DecoyDeployment, error) {
	s.deployed++
	return &models.DecoyDeployment{DecoyID: "d-1", ThreatID: threatID, Active: true}, nil
}

type fixture struct {
	text    *stubText
	image   *stubImage
	video   *stubVideo
	scorer  *stubScorer
	matcher *stubMatcher
	defense *stubDefense
	decoys  *stubDecoys
	store   *store.MemoryStore
	orch    *Orchestrator
}

func newFixture(score float64, category models.ThreatCategory) *fixture {
	f := &fixture{
		text: &stubText{result: &models.TextAnalysisResult{
			LinguisticRiskScore: score,
			ThreatIndicators: []models.Indicator{
				{Type: "urgency", Value: "urgent", Weight: 0.7},
				{Type: "financial", Value: "wire transfer", Weight: 0.8},
			},
			SenderAnalysis: models.SenderAnalysis{Reputation: 0.4},
		}},
		image:   &stubImage{result: &models.ImageAnalysisResult{VisualThreatScore: 20}},
		video:   &stubVideo{result: &models.VideoAnalysisResult{DeepfakeScore: 10}},
		scorer:  &stubScorer{assessment: &models.ThreatAssessment{OverallScore: score, Category: category, ThreatType: "phishing"}},
		matcher: &stubMatcher{},
		defense: &stubDefense{},
		decoys:  &stubDecoys{},
		store:   store.NewMemoryStore(0),
	}
	f.orch = NewOrchestrator(f.text, f.image, f.video, f.scorer, f.matcher, f.defense, f.decoys, nil,
		WithStore(f.store))
	return f
}

func emailContent() *models.ContentData {
	return &models.ContentData{
		ContentType: models.ContentTypeEmail,
		TextContent: "Urgent wire transfer needed",
		Sender:      "ceo@fake-company.com",
		Subject:     "Urgent",
	}
}

func TestAnalyzeCompleteEmailFlow(t *testing.T) {
	f := newFixture(72, models.CategoryHigh)

	result, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, result.AnalysisID)
	assert.Equal(t, 72.0, result.ThreatScore)
	assert.Equal(t, models.CategoryHigh, result.ThreatCategory)
	assert.Equal(t, "phishing", result.ThreatType)
	assert.NotEmpty(t, result.Summary)
	assert.NotEmpty(t, result.DetailedReport)
	assert.GreaterOrEqual(t, result.AnalysisDurationMS, int64(0))

	assert.Equal(t, 1, f.text.calls)
	assert.Zero(t, f.image.calls, "no image part submitted")
	assert.Zero(t, f.video.calls, "no video part submitted")
	assert.Equal(t, 0.4, f.scorer.got.SenderReputation, "sender reputation flows from text analysis")

	stored, err := f.store.GetAnalysis(context.Background(), result.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, result.ThreatScore, stored.ThreatScore)
}

func TestAnalyzeCompleteDeterministicScore(t *testing.T) {
	f := newFixture(72, models.CategoryHigh)

	first, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)
	second, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)

	assert.Equal(t, first.ThreatScore, second.ThreatScore)
	assert.Equal(t, first.ThreatCategory, second.ThreatCategory)
	assert.NotEqual(t, first.AnalysisID, second.AnalysisID)
}

func TestAnalyzeCompleteInvalidInput(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	ctx := context.Background()

	_, err := f.orch.AnalyzeComplete(ctx, nil, models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.orch.AnalyzeComplete(ctx, &models.ContentData{ContentType: "spreadsheet", TextContent: "x"}, models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.orch.AnalyzeComplete(ctx, &models.ContentData{ContentType: models.ContentTypeEmail}, models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, ErrInvalidInput, "no analyzable content")
}

func TestAnalyzeCompleteModalityGating(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	content := &models.ContentData{
		ContentType: models.ContentTypeMultimodal,
		TextContent: "caption",
		ImageBytes:  []byte{1, 2, 3},
		VideoBytes:  []byte{4, 5, 6},
	}

	_, err := f.orch.AnalyzeComplete(context.Background(), content, models.DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, f.text.calls)
	assert.Equal(t, 1, f.image.calls)
	assert.Equal(t, 1, f.video.calls)
	assert.NotNil(t, f.scorer.got.Image)
	assert.NotNil(t, f.scorer.got.Video)
}

func TestAnalyzeCompletePerceptionDegradation(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	f.text.err = errors.New("upstream exploded")
	f.text.result = nil

	result, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err, "perception failure degrades to neutral, not an error")
	assert.NotNil(t, result)
	require.NotNil(t, f.scorer.got.Text)
	assert.Equal(t, 0.5, f.scorer.got.SenderReputation, "neutral result carries reputation 0.5")
}

func TestAnalyzeCompletePerceptionDeadline(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	blocked := &blockedText{}
	orch := NewOrchestrator(blocked, f.image, f.video, f.scorer, f.matcher, f.defense, f.decoys, nil,
		WithPerceptionTimeout(20*time.Millisecond))
	content := &models.ContentData{
		ContentType: models.ContentTypeMultimodal,
		TextContent: "slow modality",
		ImageBytes:  []byte{1, 2, 3},
	}

	result, err := orch.AnalyzeComplete(context.Background(), content, models.DefaultAnalysisOptions())
	require.NoError(t, err, "a late perception task degrades, the analysis still completes")
	assert.NotNil(t, result)
	assert.Equal(t, 1, blocked.calls)

	require.NotNil(t, f.scorer.got.Text)
	assert.Zero(t, f.scorer.got.Text.Confidence, "late task is replaced by the neutral result")
	assert.Equal(t, 0.5, f.scorer.got.SenderReputation)
	require.NotNil(t, f.scorer.got.Image, "sibling task still completes")
	assert.Equal(t, 1, f.image.calls)
}

func TestAnalyzeCompleteCallerCancellation(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	blocked := &blockedText{}
	orch := NewOrchestrator(blocked, f.image, f.video, f.scorer, f.matcher, f.defense, f.decoys, nil)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(10*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := orch.AnalyzeComplete(ctx, emailContent(), models.DefaultAnalysisOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeCompleteIndicatorCollection(t *testing.T) {
	f := newFixture(80, models.CategoryHigh)
	f.image.result.DeepfakeAnalysis.Indicators = []string{"boundary artifacts"}
	f.video.result.TemporalInconsistencies = []string{"lighting shift"}
	content := &models.ContentData{
		ContentType: models.ContentTypeMultimodal,
		TextContent: "Urgent wire transfer",
		ImageBytes:  []byte{1},
		VideoBytes:  []byte{2},
	}

	_, err := f.orch.AnalyzeComplete(context.Background(), content, models.DefaultAnalysisOptions())
	require.NoError(t, err)

	assert.Contains(t, f.matcher.got, "urgency")
	assert.Contains(t, f.matcher.got, "urgent")
	assert.Contains(t, f.matcher.got, "wire transfer")
	assert.Contains(t, f.matcher.got, "boundary artifacts")
	assert.Contains(t, f.matcher.got, "lighting shift")
}

func TestAnalyzeCompleteAutoRespond(t *testing.T) {
	f := newFixture(90, models.CategoryCritical)
	opts := models.DefaultAnalysisOptions()
	opts.AutoRespond = true

	result, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, f.defense.executed)
	require.NotEmpty(t, result.ActionsTaken)
	assert.Equal(t, string(models.ActionQuarantine), result.ActionsTaken[0])
}

func TestAnalyzeCompleteNoAutoRespond(t *testing.T) {
	f := newFixture(90, models.CategoryCritical)

	result, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Zero(t, f.defense.executed)
	assert.Empty(t, result.ActionsTaken)
}

func TestAnalyzeCompleteExplicitDecoyOnCritical(t *testing.T) {
	f := newFixture(90, models.CategoryCritical)
	opts := models.DefaultAnalysisOptions()
	opts.DeployDecoy = true

	_, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, f.decoys.deployed)
}

func TestAnalyzeCompleteNoDecoyBelowCritical(t *testing.T) {
	f := newFixture(50, models.CategoryMedium)
	opts := models.DefaultAnalysisOptions()
	opts.DeployDecoy = true

	_, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), opts)
	require.NoError(t, err)
	assert.Zero(t, f.decoys.deployed)
}

func TestAnalyzeCompleteScorerFailure(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	f.scorer.err = errors.New("scoring broke")
	f.scorer.assessment = nil

	_, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	assert.Error(t, err)
}

func TestStatsCounters(t *testing.T) {
	f := newFixture(90, models.CategoryCritical)
	ctx := context.Background()

	_, err := f.orch.AnalyzeComplete(ctx, emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)
	_, err = f.orch.AnalyzeComplete(ctx, emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)

	stats := f.orch.Stats()
	assert.EqualValues(t, 2, stats["total_analyses"])
	assert.EqualValues(t, 2, stats["threats_detected"])
	assert.Contains(t, stats, "uptime")
	assert.Contains(t, stats, "uptime_s")
}

func TestStatsLowThreatNotCounted(t *testing.T) {
	f := newFixture(10, models.CategoryLow)
	_, err := f.orch.AnalyzeComplete(context.Background(), emailContent(), models.DefaultAnalysisOptions())
	require.NoError(t, err)

	stats := f.orch.Stats()
	assert.EqualValues(t, 1, stats["total_analyses"])
	assert.EqualValues(t, 0, stats["threats_detected"])
}
