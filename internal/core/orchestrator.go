// Package core coordinates the perception, intelligence and defense agents
// into a single analysis pipeline.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/agents/defense"
	"github.com/surakshanet/surakshanet/internal/agents/perception"
	"github.com/surakshanet/surakshanet/internal/models"
	"github.com/surakshanet/surakshanet/internal/observability"
	"github.com/surakshanet/surakshanet/internal/store"
)

// ErrInvalidInput is returned for requests that cannot be analyzed at all.
var ErrInvalidInput = errors.New("invalid input")

// DefaultPerceptionTimeout bounds the perception fan-out. Tasks that miss
// the deadline are replaced with neutral results instead of failing the
// analysis.
const DefaultPerceptionTimeout = 20 * time.Second

// TextAnalyzer is the text perception contract the orchestrator needs.
type TextAnalyzer interface {
	Analyze(ctx context.Context, content, sender, subject string) (*models.TextAnalysisResult, error)
	NeutralResult() *models.TextAnalysisResult
}

// ImageAnalyzer is the image perception contract.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, data []byte, contextNote string) (*models.ImageAnalysisResult, error)
	NeutralResult() *models.ImageAnalysisResult
}

// VideoAnalyzer is the video perception contract.
type VideoAnalyzer interface {
	AnalyzeVideo(ctx context.Context, src perception.FrameSource, frameIntervalS int) (*models.VideoAnalysisResult, error)
	NeutralResult() *models.VideoAnalysisResult
}

// ThreatScorer fuses perception output into an assessment.
type ThreatScorer interface {
	CalculateThreatScore(ctx context.Context, pr *models.PerceptionResults, tc *models.ThreatContext) (*models.ThreatAssessment, error)
}

// PatternMatcher compares indicator sets against the threat catalog.
type PatternMatcher interface {
	FindMatchingPatterns(indicators []string, threshold float64) []models.PatternMatch
}

// DefenseAgent selects and executes response actions.
type DefenseAgent interface {
	DetermineActions(assessment *models.ThreatAssessment, autoExecute bool) []models.Action
	ExecuteActions(ctx context.Context, actions []models.Action, execCtx defense.ExecutionContext) []models.ActionResult
}

// DecoyDeployer deploys deceptive replies for critical threats.
type DecoyDeployer interface {
	DeployDecoy(ctx context.Context, threatID, sender, originalMessage, decoyType string) (*models.DecoyDeployment, error)
}

// Orchestrator wires the agents together and owns the run counters.
type Orchestrator struct {
	text    TextAnalyzer
	image   ImageAnalyzer
	video   VideoAnalyzer
	scorer  ThreatScorer
	matcher PatternMatcher
	defense DefenseAgent
	decoys  DecoyDeployer

	store   store.AnalysisStore
	metrics *observability.Metrics
	logger  *logrus.Logger

	perceptionTimeout time.Duration
	startedAt         time.Time

	totalAnalyses   atomic.Int64
	threatsDetected atomic.Int64
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithStore enables persistence of completed analyses. Save failures are
// logged and never fail the analysis.
func WithStore(s store.AnalysisStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPerceptionTimeout overrides the perception fan-out deadline.
func WithPerceptionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.perceptionTimeout = d
		}
	}
}

// NewOrchestrator assembles the pipeline. decoys may be nil, disabling
// decoy deployment.
func NewOrchestrator(text TextAnalyzer, image ImageAnalyzer, video VideoAnalyzer,
	scorer ThreatScorer, matcher PatternMatcher, defenseAgent DefenseAgent,
	decoys DecoyDeployer, logger *logrus.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	o := &Orchestrator{
		text:              text,
		image:             image,
		video:             video,
		scorer:            scorer,
		matcher:           matcher,
		defense:           defenseAgent,
		decoys:            decoys,
		logger:            logger,
		perceptionTimeout: DefaultPerceptionTimeout,
		startedAt:         time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AnalyzeComplete runs the full pipeline over one content record: perception
// fan-out, scoring, pattern matching, and the defense response. Perception
// failures degrade to neutral results; only invalid input or a cancelled
// context abort the run.
func (o *Orchestrator) AnalyzeComplete(ctx context.Context, content *models.ContentData, opts models.AnalysisOptions) (*models.AnalysisResult, error) {
	if err := validate(content); err != nil {
		return nil, err
	}
	if opts.FrameIntervalS <= 0 {
		opts.FrameIntervalS = 1
	}

	analysisID := uuid.NewString()
	started := time.Now()
	log := o.logger.WithField("analysis_id", analysisID)
	log.WithField("content_type", content.ContentType).Info("analysis started")

	pr := o.runPerception(ctx, content, opts)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	threatCtx := &models.ThreatContext{Timestamp: started}
	assessment, err := o.scorer.CalculateThreatScore(ctx, pr, threatCtx)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	indicators := collectIndicators(pr)
	assessment.MatchedPatterns = o.matcher.FindMatchingPatterns(indicators, opts.ConfidenceThreshold)

	actions := o.defense.DetermineActions(assessment, opts.AutoRespond)
	var actionResults []models.ActionResult
	decoyDeployed := false
	if opts.AutoRespond {
		actionResults = o.defense.ExecuteActions(ctx, actions, defense.ExecutionContext{
			ThreatID:        analysisID,
			Sender:          content.Sender,
			OriginalMessage: content.TextContent,
		})
		for _, r := range actionResults {
			if r.Action.Type == models.ActionDeployDecoy && r.Success {
				decoyDeployed = true
			}
		}
	}

	if opts.DeployDecoy && !decoyDeployed && assessment.Category == models.CategoryCritical && o.decoys != nil {
		if _, err := o.decoys.DeployDecoy(ctx, analysisID, content.Sender, content.TextContent, ""); err != nil {
			log.WithError(err).Warn("explicit decoy deployment failed")
		}
	}

	result := &models.AnalysisResult{
		AnalysisID:         analysisID,
		ThreatScore:        assessment.OverallScore,
		ThreatCategory:     assessment.Category,
		ThreatType:         assessment.ThreatType,
		Summary:            summarize(assessment),
		DetailedReport:     detailedReport(assessment, pr),
		ActionsTaken:       actionNames(actionResults),
		AnalysisDurationMS: time.Since(started).Milliseconds(),
		ThreatAssessment:   *assessment,
		CreatedAt:          started,
	}

	o.totalAnalyses.Add(1)
	threat := assessment.Category == models.CategoryHigh || assessment.Category == models.CategoryCritical
	if threat {
		o.threatsDetected.Add(1)
	}
	if o.metrics != nil {
		o.metrics.AnalysesTotal.Inc()
		o.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
		if threat {
			o.metrics.ThreatsDetected.Inc()
		}
	}

	if o.store != nil {
		if err := o.store.SaveAnalysis(ctx, result); err != nil {
			log.WithError(err).Error("failed to persist analysis result")
		}
	}

	log.WithFields(logrus.Fields{
		"score":       result.ThreatScore,
		"category":    result.ThreatCategory,
		"duration_ms": result.AnalysisDurationMS,
	}).Info("analysis complete")
	return result, nil
}

// Stats reports run counters and process uptime.
func (o *Orchestrator) Stats() map[string]interface{} {
	uptime := time.Since(o.startedAt)
	return map[string]interface{}{
		"total_analyses":   o.totalAnalyses.Load(),
		"threats_detected": o.threatsDetected.Load(),
		"uptime":           uptime.Round(time.Second).String(),
		"uptime_s":         int64(uptime.Seconds()),
	}
}

func validate(content *models.ContentData) error {
	if content == nil {
		return fmt.Errorf("%w: missing content", ErrInvalidInput)
	}
	if !models.ValidContentType(content.ContentType) {
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, content.ContentType)
	}
	if !content.HasText() && !content.HasImage() && !content.HasVideo() {
		return fmt.Errorf("%w: no analyzable content", ErrInvalidInput)
	}
	return nil
}

// runPerception fans the modality tasks out concurrently under a shared
// soft deadline. A late or failed task is substituted with its analyzer's
// neutral result so the pipeline always proceeds.
func (o *Orchestrator) runPerception(ctx context.Context, content *models.ContentData, opts models.AnalysisOptions) *models.PerceptionResults {
	pctx, cancel := context.WithTimeout(ctx, o.perceptionTimeout)
	defer cancel()

	pr := &models.PerceptionResults{SenderReputation: 0.5}
	var mu sync.Mutex
	var wg sync.WaitGroup

	if content.HasText() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.text.Analyze(pctx, content.TextContent, content.Sender, content.Subject)
			if err != nil {
				o.recordPerceptionError("text", err)
				res = o.text.NeutralResult()
			}
			mu.Lock()
			pr.Text = res
			mu.Unlock()
		}()
	}
	if content.HasImage() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.image.AnalyzeImage(pctx, content.ImageBytes, content.Subject)
			if err != nil {
				o.recordPerceptionError("image", err)
				res = o.image.NeutralResult()
			}
			mu.Lock()
			pr.Image = res
			mu.Unlock()
		}()
	}
	if content.HasVideo() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := perception.FrameSource{Path: content.VideoPath, Data: content.VideoBytes}
			res, err := o.video.AnalyzeVideo(pctx, src, opts.FrameIntervalS)
			if err != nil {
				o.recordPerceptionError("video", err)
				res = o.video.NeutralResult()
			}
			mu.Lock()
			pr.Video = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	if pr.Text != nil {
		pr.SenderReputation = pr.Text.SenderAnalysis.Reputation
	}
	return pr
}

func (o *Orchestrator) recordPerceptionError(modality string, err error) {
	o.logger.WithError(err).WithField("modality", modality).
		Warn("perception task degraded to neutral result")
	if o.metrics != nil {
		o.metrics.PerceptionErrors.WithLabelValues(modality).Inc()
	}
}

// collectIndicators flattens every perception signal into the string set
// fed to the pattern matcher.
func collectIndicators(pr *models.PerceptionResults) []string {
	var out []string
	if pr.Text != nil {
		for _, ind := range pr.Text.ThreatIndicators {
			out = append(out, ind.Type, ind.Value)
		}
	}
	if pr.Image != nil {
		out = append(out, pr.Image.DeepfakeAnalysis.Indicators...)
	}
	if pr.Video != nil {
		out = append(out, pr.Video.TemporalInconsistencies...)
	}
	return out
}

func actionNames(results []models.ActionResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success {
			names = append(names, string(r.Action.Type))
		}
	}
	return names
}

func summarize(a *models.ThreatAssessment) string {
	return fmt.Sprintf("%s threat (%s), score %.1f/100", a.Category, a.ThreatType, a.OverallScore)
}

func detailedReport(a *models.ThreatAssessment, pr *models.PerceptionResults) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Threat score %.1f (%s), confidence %.2f.\n", a.OverallScore, a.Category, a.Confidence)
	if a.Explanation != "" {
		fmt.Fprintf(&b, "Assessment: %s\n", a.Explanation)
	}
	if len(a.ContributingFactors) > 0 {
		fmt.Fprintf(&b, "Dominant factors: %s.\n", strings.Join(a.ContributingFactors, ", "))
	}
	if pr.Text != nil && len(pr.Text.SuspiciousURLs) > 0 {
		for _, u := range pr.Text.SuspiciousURLs {
			if u.IsSuspicious {
				fmt.Fprintf(&b, "Suspicious URL %s: %s.\n", u.URL, u.Reason)
			}
		}
	}
	if len(a.MatchedPatterns) > 0 {
		for _, m := range a.MatchedPatterns {
			fmt.Fprintf(&b, "Matched pattern %s (similarity %.2f).\n", m.PatternID, m.SimilarityScore)
		}
	}
	return b.String()
}
