package defense

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surakshanet/surakshanet/internal/llm"
)

type mockClient struct {
	response string
	err      error
}

func (m *mockClient) AnalyzeText(ctx context.Context, prompt string) (*llm.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Result{Text: m.response}, nil
}

func (m *mockClient) AnalyzeImage(ctx context.Context, data []byte, prompt string) (*llm.Result, error) {
	return m.AnalyzeText(ctx, prompt)
}

func (m *mockClient) AnalyzeMultimodal(ctx context.Context, parts []llm.Part, prompt string) (*llm.Result, error) {
	return m.AnalyzeText(ctx, prompt)
}

func (m *mockClient) Metrics() llm.Metrics { return llm.Metrics{} }

func TestDeployDecoyGeneratedReply(t *testing.T) {
	system := NewDecoySystem(&mockClient{response: "Happy to help, which account should I use?"}, nil)

	deployment, err := system.DeployDecoy(context.Background(),
		"threat-1", "attacker@evil.tk", "Send the payment now", "")
	require.NoError(t, err)

	assert.NotEmpty(t, deployment.DecoyID)
	assert.Equal(t, "threat-1", deployment.ThreatID)
	assert.Equal(t, "attacker@evil.tk", deployment.Sender)
	assert.Equal(t, "Happy to help, which account should I use?", deployment.GeneratedReply)
	assert.True(t, deployment.Active)
}

func TestDeployDecoyCannedFallback(t *testing.T) {
	system := NewDecoySystem(&mockClient{err: errors.New("upstream down")}, nil)

	deployment, err := system.DeployDecoy(context.Background(), "threat-1", "a@b.com", "msg", "")
	require.NoError(t, err, "model failure degrades to the canned reply")
	assert.NotEmpty(t, deployment.GeneratedReply)
}

func TestTrackDecoyInteraction(t *testing.T) {
	system := NewDecoySystem(&mockClient{response: "reply"}, nil)
	deployment, err := system.DeployDecoy(context.Background(), "t-1", "a@b.com", "msg", "")
	require.NoError(t, err)

	require.NoError(t, system.TrackDecoyInteraction(deployment.DecoyID, "opened_reply",
		map[string]string{"ip": "203.0.113.7", "user_agent": "curl/8.0"}))
	require.NoError(t, system.TrackDecoyInteraction(deployment.DecoyID, "clicked_link",
		map[string]string{"ip": "203.0.113.7"}))

	intel, err := system.AnalyzeDecoyIntelligence(deployment.DecoyID)
	require.NoError(t, err)
	assert.Equal(t, []string{"opened_reply", "clicked_link"}, intel.AttackerActions)
	assert.Equal(t, []string{"203.0.113.7"}, intel.IPAddresses, "repeat IPs are deduplicated")
	assert.Equal(t, []string{"curl/8.0"}, intel.UserAgents)
	assert.Len(t, intel.Timestamps, 2)
}

func TestTrackUnknownDecoy(t *testing.T) {
	system := NewDecoySystem(&mockClient{}, nil)
	err := system.TrackDecoyInteraction("nope", "opened", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyzeUnknownDecoy(t *testing.T) {
	system := NewDecoySystem(&mockClient{}, nil)
	_, err := system.AnalyzeDecoyIntelligence("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivateAndActiveDecoys(t *testing.T) {
	system := NewDecoySystem(&mockClient{response: "reply"}, nil)
	now := time.Now()
	system.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	first, err := system.DeployDecoy(context.Background(), "t-1", "a@b.com", "msg", "")
	require.NoError(t, err)
	second, err := system.DeployDecoy(context.Background(), "t-2", "c@d.com", "msg", "")
	require.NoError(t, err)

	active := system.ActiveDecoys()
	require.Len(t, active, 2)
	assert.Equal(t, first.DecoyID, active[0].DecoyID, "sorted by creation time")

	require.NoError(t, system.Deactivate(first.DecoyID))
	active = system.ActiveDecoys()
	require.Len(t, active, 1)
	assert.Equal(t, second.DecoyID, active[0].DecoyID)

	assert.ErrorIs(t, system.Deactivate("nope"), ErrNotFound)
}
