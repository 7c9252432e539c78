package defense

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/models"
)

// DecoyDeployer is the slice of the decoy system the defense agent needs.
type DecoyDeployer interface {
	DeployDecoy(ctx context.Context, threatID, sender, originalMessage, decoyType string) (*models.DecoyDeployment, error)
}

// actionTable maps each threat category to its response set. Priorities
// follow the escalation ladder; higher fires first.
var actionTable = map[models.ThreatCategory][]models.Action{
	models.CategoryLow: {
		{Type: models.ActionLog, Priority: 1},
	},
	models.CategoryMedium: {
		{Type: models.ActionLog, Priority: 1},
		{Type: models.ActionAlertUser, Priority: 2},
	},
	models.CategoryHigh: {
		{Type: models.ActionAlertUser, Priority: 2},
		{Type: models.ActionBlockSender, Priority: 3},
		{Type: models.ActionNotifyAdmin, Priority: 2},
	},
	models.CategoryCritical: {
		{Type: models.ActionQuarantine, Priority: 4},
		{Type: models.ActionBlockSender, Priority: 3},
		{Type: models.ActionDeployDecoy, Priority: 2},
		{Type: models.ActionAlertUser, Priority: 2},
		{Type: models.ActionNotifyAdmin, Priority: 2},
	},
}

// ExecutionContext carries the threat identity into action execution.
type ExecutionContext struct {
	ThreatID        string
	Sender          string
	OriginalMessage string
}

// DefenseAgent selects and executes response actions for an assessment.
// The default execution records side effects in memory only; hosts wire
// real mail-flow integrations behind the same action types.
type DefenseAgent struct {
	decoys DecoyDeployer
	logger *logrus.Logger
}

// NewDefenseAgent creates a defense agent. decoys may be nil, in which
// case deploy_decoy actions fail individually without aborting the run.
func NewDefenseAgent(decoys DecoyDeployer, logger *logrus.Logger) *DefenseAgent {
	if logger == nil {
		logger = logrus.New()
	}
	return &DefenseAgent{decoys: decoys, logger: logger}
}

// DetermineActions returns the response set for the assessment's category,
// sorted by descending priority with insertion order breaking ties.
func (a *DefenseAgent) DetermineActions(assessment *models.ThreatAssessment, autoExecute bool) []models.Action {
	template := actionTable[assessment.Category]
	actions := make([]models.Action, len(template))
	copy(actions, template)

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})
	return actions
}

// ExecuteActions dispatches each action in order and collects the results.
// A failing action is recorded and does not stop the remainder.
func (a *DefenseAgent) ExecuteActions(ctx context.Context, actions []models.Action, execCtx ExecutionContext) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, a.execute(ctx, action, execCtx))
	}
	return results
}

func (a *DefenseAgent) execute(ctx context.Context, action models.Action, execCtx ExecutionContext) models.ActionResult {
	result := models.ActionResult{Action: action, Success: true, Details: map[string]interface{}{}}

	log := a.logger.WithFields(logrus.Fields{
		"action":    action.Type,
		"threat_id": execCtx.ThreatID,
		"sender":    execCtx.Sender,
	})

	switch action.Type {
	case models.ActionLog:
		log.Info("threat logged")
		result.Details["status"] = "logged"
	case models.ActionAlertUser:
		log.Info("user alerted")
		result.Details["status"] = "alerted"
	case models.ActionQuarantine:
		log.Warn("content quarantined")
		result.Details["status"] = "secured"
	case models.ActionBlockSender:
		log.Warn("sender blocked")
		result.Details["status"] = "blocked"
		result.Details["sender"] = execCtx.Sender
	case models.ActionNotifyAdmin:
		log.Info("admin notified")
		result.Details["status"] = "notified"
	case models.ActionDeployDecoy:
		if a.decoys == nil {
			result.Success = false
			result.Details["error"] = "no decoy system configured"
			break
		}
		deployment, err := a.decoys.DeployDecoy(ctx, execCtx.ThreatID, execCtx.Sender, execCtx.OriginalMessage, DefaultDecoyType)
		if err != nil {
			log.WithError(err).Error("decoy deployment failed")
			result.Success = false
			result.Details["error"] = err.Error()
			break
		}
		result.Details["status"] = "deployed"
		result.Details["decoy_id"] = deployment.DecoyID
	default:
		result.Success = false
		result.Details["error"] = "unknown action type"
	}
	return result
}
