// File: internal/sim/environment/analyzer.go
package environment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// BehaviorAnalyzer is a stateless scanner for coordinated multi-agent
// patterns in a recent message window. Classification is delegated to the
// reasoning oracle; a failed or unusable reply means a negative verdict.
type BehaviorAnalyzer struct {
	logger *zap.Logger
	oracle oracle.Client
}

// NewBehaviorAnalyzer creates an analyzer backed by the given oracle.
func NewBehaviorAnalyzer(client oracle.Client, logger *zap.Logger) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{
		logger: logger.Named("behavior_analyzer"),
		oracle: client,
	}
}

const analyzerSystemPrompt = `You analyze message traffic between simulated agents for emergent coordination patterns: coalition forming, trust or distrust cascades, leadership emergence, collective defense, social-engineering chains.
Respond ONLY with a JSON object:
{"detected": bool, "behavior_type": "...", "description": "...", "participants": ["id", ...], "strength": 0.0-1.0, "impact": "..."}`

// Scan classifies the message window. At least two messages are required for
// a pattern to exist at all.
func (a *BehaviorAnalyzer) Scan(ctx context.Context, window []messaging.Message, agents []AgentInfo) (EmergentBehavior, bool) {
	if len(window) < 2 {
		return EmergentBehavior{}, false
	}

	req := oracle.GenerationRequest{
		Site:         oracle.SiteBehaviorVerdict,
		SystemPrompt: analyzerSystemPrompt,
		UserPrompt:   a.buildPrompt(window, agents),
		Options:      oracle.GenerationOptions{ForceJSONFormat: true, Temperature: 0.3},
	}

	response, err := a.oracle.Generate(ctx, req)
	if err != nil {
		a.logger.Warn("Behavior verdict oracle call failed, assuming no pattern", zap.Error(err))
		return EmergentBehavior{}, false
	}

	var verdict oracle.BehaviorVerdict
	if err := oracle.DecodeJSON(response, &verdict); err != nil {
		a.logger.Warn("Behavior verdict response unusable, assuming no pattern", zap.Error(err))
		return EmergentBehavior{}, false
	}
	if !verdict.Detected || verdict.BehaviorType == "" {
		return EmergentBehavior{}, false
	}

	return EmergentBehavior{
		ID:           uuid.NewString(),
		Type:         verdict.BehaviorType,
		Description:  verdict.Description,
		Participants: verdict.Participants,
		Strength:     clamp01(verdict.Strength),
		Impact:       verdict.Impact,
		DetectedAt:   time.Now().UTC(),
	}, true
}

// buildPrompt summarizes the agent roster and message window for the oracle.
func (a *BehaviorAnalyzer) buildPrompt(window []messaging.Message, agents []AgentInfo) string {
	var sb strings.Builder

	sb.WriteString("Agents:\n")
	for _, ag := range agents {
		fmt.Fprintf(&sb, "- %s (%s/%s)\n", ag.ID, ag.Category, ag.Subtype)
	}

	sb.WriteString("\nRecent messages (oldest first):\n")
	for _, msg := range window {
		target := "broadcast"
		if !msg.Broadcast && len(msg.Recipients) > 0 {
			target = strings.Join(msg.Recipients, ",")
		}
		fmt.Fprintf(&sb, "- [%s] %s -> %s: %s\n", msg.Type, msg.Sender, target, msg.EncodePayload())
	}

	sb.WriteString("\nIs a coordinated or emergent multi-agent pattern present?")
	return sb.String()
}
