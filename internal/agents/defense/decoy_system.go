// Package defense selects and executes response actions for scored
// threats, including deployment of deceptive replies.
package defense

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/llm"
	"github.com/surakshanet/surakshanet/internal/models"
)

// ErrNotFound is returned for operations on an unknown decoy id.
var ErrNotFound = errors.New("decoy not found")

// DefaultDecoyType is the reply style used when the caller does not pick
// one.
const DefaultDecoyType = "information_request"

const decoyPromptTemplate = `You are assisting a defensive deception operation. Draft a short,
plausible reply to the message below, written in the victim's voice.
The reply must not reveal suspicion and should gently elicit more
information from the sender (style: %s). Do not include real personal
or financial data.

Sender: %s
Message:
%s

Respond with the reply text only.`

// decoyRecord pairs a deployment with its accumulated intelligence.
type decoyRecord struct {
	deployment models.DecoyDeployment
	actions    []string
	ips        []string
	ipSet      map[string]bool
	userAgents []string
	uaSet      map[string]bool
	timestamps []time.Time
}

// DecoySystem generates deceptive replies and tracks attacker interactions
// with them. The registry is process-wide; mutations are serialized.
type DecoySystem struct {
	client llm.Client
	logger *logrus.Logger

	mu      sync.Mutex
	records map[string]*decoyRecord
	now     func() time.Time
}

// NewDecoySystem creates an empty decoy registry.
func NewDecoySystem(client llm.Client, logger *logrus.Logger) *DecoySystem {
	if logger == nil {
		logger = logrus.New()
	}
	return &DecoySystem{
		client:  client,
		logger:  logger,
		records: make(map[string]*decoyRecord),
		now:     time.Now,
	}
}

// DeployDecoy drafts a deceptive reply for the given threat and registers
// the deployment as active.
func (d *DecoySystem) DeployDecoy(ctx context.Context, threatID, sender, originalMessage, decoyType string) (*models.DecoyDeployment, error) {
	if decoyType == "" {
		decoyType = DefaultDecoyType
	}

	prompt := fmt.Sprintf(decoyPromptTemplate, decoyType, sender, originalMessage)
	reply := "Thanks for reaching out. Could you share a few more details so I can process this?"
	if res, err := d.client.AnalyzeText(ctx, prompt); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.WithError(err).Warn("decoy generation degraded to canned reply")
	} else if res.Text != "" {
		reply = res.Text
	}

	deployment := models.DecoyDeployment{
		DecoyID:        uuid.NewString(),
		ThreatID:       threatID,
		Sender:         sender,
		GeneratedReply: reply,
		Active:         true,
		CreatedAt:      d.now(),
	}

	d.mu.Lock()
	d.records[deployment.DecoyID] = &decoyRecord{
		deployment: deployment,
		ipSet:      make(map[string]bool),
		uaSet:      make(map[string]bool),
	}
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"decoy_id":  deployment.DecoyID,
		"threat_id": threatID,
		"sender":    sender,
	}).Info("decoy deployed")
	return &deployment, nil
}

// TrackDecoyInteraction appends an observed attacker action to the decoy's
// intelligence record. meta may carry "ip" and "user_agent".
func (d *DecoySystem) TrackDecoyInteraction(decoyID, action string, meta map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[decoyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, decoyID)
	}

	rec.actions = append(rec.actions, action)
	if ip := meta["ip"]; ip != "" && !rec.ipSet[ip] {
		rec.ipSet[ip] = true
		rec.ips = append(rec.ips, ip)
	}
	if ua := meta["user_agent"]; ua != "" && !rec.uaSet[ua] {
		rec.uaSet[ua] = true
		rec.userAgents = append(rec.userAgents, ua)
	}
	rec.timestamps = append(rec.timestamps, d.now())
	return nil
}

// AnalyzeDecoyIntelligence returns the aggregated intelligence for a
// decoy.
func (d *DecoySystem) AnalyzeDecoyIntelligence(decoyID string) (*models.DecoyIntel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[decoyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, decoyID)
	}

	intel := &models.DecoyIntel{
		DecoyID:         decoyID,
		AttackerActions: append([]string(nil), rec.actions...),
		IPAddresses:     append([]string(nil), rec.ips...),
		UserAgents:      append([]string(nil), rec.userAgents...),
		Timestamps:      append([]time.Time(nil), rec.timestamps...),
	}
	return intel, nil
}

// Deactivate marks a decoy inactive, evicting it from consideration
// without discarding collected intelligence.
func (d *DecoySystem) Deactivate(decoyID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[decoyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, decoyID)
	}
	rec.deployment.Active = false
	return nil
}

// ActiveDecoys lists deployments currently marked active, sorted by
// creation time.
func (d *DecoySystem) ActiveDecoys() []models.DecoyDeployment {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.DecoyDeployment
	for _, rec := range d.records {
		if rec.deployment.Active {
			out = append(out, rec.deployment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
