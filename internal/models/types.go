package models

import "time"

// ContentType identifies the modality mix of a submitted content record.
type ContentType string

const (
	ContentTypeEmail      ContentType = "email"
	ContentTypeImage      ContentType = "image"
	ContentTypeVideo      ContentType = "video"
	ContentTypeMultimodal ContentType = "multimodal"
)

// ValidContentType reports whether t is one of the accepted content types.
func ValidContentType(t ContentType) bool {
	switch t {
	case ContentTypeEmail, ContentTypeImage, ContentTypeVideo, ContentTypeMultimodal:
		return true
	}
	return false
}

// ContentData is the immutable input record for a single analysis.
type ContentData struct {
	ContentType ContentType       `json:"content_type"`
	TextContent string            `json:"text_content,omitempty"`
	ImageBytes  []byte            `json:"-"`
	VideoPath   string            `json:"video_path,omitempty"`
	VideoBytes  []byte            `json:"-"`
	Sender      string            `json:"sender"`
	Subject     string            `json:"subject"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// HasText reports whether a text perception task should run.
func (c *ContentData) HasText() bool { return c.TextContent != "" }

// HasImage reports whether an image perception task should run.
func (c *ContentData) HasImage() bool { return len(c.ImageBytes) > 0 }

// HasVideo reports whether a video perception task should run.
func (c *ContentData) HasVideo() bool { return c.VideoPath != "" || len(c.VideoBytes) > 0 }

// AnalysisOptions tunes a single analysis run.
type AnalysisOptions struct {
	AutoRespond         bool    `json:"auto_respond"`
	DeployDecoy         bool    `json:"deploy_decoy"`
	FrameIntervalS      int     `json:"frame_interval_s"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// DefaultAnalysisOptions returns the option values used when the caller
// leaves a field unset.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		FrameIntervalS:      1,
		ConfidenceThreshold: 0.6,
	}
}

// Indicator is a named, weighted signal of suspicious content emitted by a
// perception agent.
type Indicator struct {
	Type   string  `json:"type"`
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// SuspiciousURL records a URL found in text content and why it was flagged.
type SuspiciousURL struct {
	URL          string `json:"url"`
	IsSuspicious bool   `json:"is_suspicious"`
	Reason       string `json:"reason,omitempty"`
}

// SenderAnalysis summarizes the sender address heuristics.
type SenderAnalysis struct {
	IsValidDomain bool    `json:"is_valid_domain"`
	Reputation    float64 `json:"reputation"`
}

// TextAnalysisResult is the text perception agent output.
type TextAnalysisResult struct {
	LinguisticRiskScore    float64         `json:"linguistic_risk_score"`
	ThreatIndicators       []Indicator     `json:"threat_indicators"`
	SuspiciousURLs         []SuspiciousURL `json:"suspicious_urls"`
	SenderAnalysis         SenderAnalysis  `json:"sender_analysis"`
	AIGeneratedProbability float64         `json:"ai_generated_probability"`
	Confidence             float64         `json:"confidence"`
}

// DeepfakeAnalysis holds the vision model's manipulation verdict.
type DeepfakeAnalysis struct {
	Probability  float64  `json:"probability"`
	Authenticity string   `json:"authenticity"`
	Indicators   []string `json:"indicators"`
}

// ImageMetadata records decoded image properties.
type ImageMetadata struct {
	Format string `json:"format"`
	Size   [2]int `json:"size"`
	Mode   string `json:"mode"`
}

// ImageAnalysisResult is the image perception agent output.
type ImageAnalysisResult struct {
	VisualThreatScore float64          `json:"visual_threat_score"`
	DeepfakeAnalysis  DeepfakeAnalysis `json:"deepfake_analysis"`
	Metadata          ImageMetadata    `json:"metadata"`
	QRPayloads        []string         `json:"qr_payloads,omitempty"`
	Confidence        float64          `json:"confidence"`
}

// FrameAnalysis describes the model's verdict for one sampled frame.
type FrameAnalysis struct {
	FrameIndex int     `json:"frame_index"`
	Score      float64 `json:"score"`
	Notes      string  `json:"notes,omitempty"`
}

// VideoAnalysisResult is the video perception agent output.
type VideoAnalysisResult struct {
	DeepfakeScore           float64         `json:"deepfake_score"`
	ManipulationType        string          `json:"manipulation_type"`
	FrameAnalyses           []FrameAnalysis `json:"frame_analyses"`
	TemporalInconsistencies []string        `json:"temporal_inconsistencies"`
	OverallConfidence       float64         `json:"overall_confidence"`
}

// ThreatPattern is a stored fingerprint of a known attack.
type ThreatPattern struct {
	PatternID      string   `json:"pattern_id"`
	PatternType    string   `json:"pattern_type"`
	Indicators     []string `json:"indicators"`
	AttackCategory string   `json:"attack_category"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
}

// PatternMatch is a catalog hit above the similarity threshold.
type PatternMatch struct {
	PatternID         string   `json:"pattern_id"`
	SimilarityScore   float64  `json:"similarity_score"`
	MatchedIndicators []string `json:"matched_indicators"`
}

// ThreatCategory is the qualitative bucket derived from the overall score.
type ThreatCategory string

const (
	CategoryLow      ThreatCategory = "LOW"
	CategoryMedium   ThreatCategory = "MEDIUM"
	CategoryHigh     ThreatCategory = "HIGH"
	CategoryCritical ThreatCategory = "CRITICAL"
)

// ThreatAssessment is the fused scoring output.
type ThreatAssessment struct {
	OverallScore        float64            `json:"overall_score"`
	Category            ThreatCategory     `json:"category"`
	Confidence          float64            `json:"confidence"`
	ThreatType          string             `json:"threat_type"`
	AttackVector        string             `json:"attack_vector"`
	ContributingFactors []string           `json:"contributing_factors"`
	MatchedPatterns     []PatternMatch     `json:"matched_patterns"`
	RecommendedActions  []string           `json:"recommended_actions"`
	Explanation         string             `json:"explanation"`
	RiskBreakdown       map[string]float64 `json:"risk_breakdown"`
}

// ActionType enumerates the defensive responses the system can take.
type ActionType string

const (
	ActionLog         ActionType = "log"
	ActionAlertUser   ActionType = "alert_user"
	ActionQuarantine  ActionType = "quarantine"
	ActionBlockSender ActionType = "block_sender"
	ActionDeployDecoy ActionType = "deploy_decoy"
	ActionNotifyAdmin ActionType = "notify_admin"
)

// Action is one defensive response; higher priority fires first.
type Action struct {
	Type     ActionType        `json:"type"`
	Priority int               `json:"priority"`
	Params   map[string]string `json:"params,omitempty"`
}

// ActionResult records the outcome of executing a single action.
type ActionResult struct {
	Action  Action                 `json:"action"`
	Success bool                   `json:"success"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DecoyDeployment is a deceptive reply generated for an active threat.
type DecoyDeployment struct {
	DecoyID        string    `json:"decoy_id"`
	ThreatID       string    `json:"threat_id"`
	Sender         string    `json:"sender"`
	GeneratedReply string    `json:"generated_reply"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// DecoyIntel aggregates observed attacker behavior for one decoy.
type DecoyIntel struct {
	DecoyID         string      `json:"decoy_id"`
	AttackerActions []string    `json:"attacker_actions"`
	IPAddresses     []string    `json:"ip_addresses"`
	UserAgents      []string    `json:"user_agents"`
	Timestamps      []time.Time `json:"timestamps"`
}

// PerceptionResults bundles whatever the perception fan-out produced.
// Absent modalities are nil.
type PerceptionResults struct {
	Text             *TextAnalysisResult  `json:"text_analysis,omitempty"`
	Image            *ImageAnalysisResult `json:"image_analysis,omitempty"`
	Video            *VideoAnalysisResult `json:"video_analysis,omitempty"`
	SenderReputation float64              `json:"sender_reputation"`
}

// ThreatContext carries contextual signals into scoring.
type ThreatContext struct {
	Timestamp      time.Time `json:"timestamp"`
	PriorSightings int       `json:"prior_sightings"`
}

// AnalysisResult is the unified outcome of one analysis call.
type AnalysisResult struct {
	AnalysisID         string           `json:"analysis_id"`
	ThreatScore        float64          `json:"threat_score"`
	ThreatCategory     ThreatCategory   `json:"threat_category"`
	ThreatType         string           `json:"threat_type"`
	Summary            string           `json:"summary"`
	DetailedReport     string           `json:"detailed_report"`
	ActionsTaken       []string         `json:"actions_taken"`
	AnalysisDurationMS int64            `json:"analysis_duration_ms"`
	ThreatAssessment   ThreatAssessment `json:"threat_assessment"`
	CreatedAt          time.Time        `json:"created_at"`
}
