package scheduler

import (
	"fmt"
	"strings"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/internal/util"
)

// StanceKeyPrefix is the active-memory key prefix for per-agent stance
// signals ("stance:<agentID>" -> string).
const StanceKeyPrefix = "stance:"

// stanceMarker is the leading line agents are instructed to open with so the
// core can extract a coarse stance without interpreting free text.
const stanceMarker = "STANCE:"

// BuildInstructions renders the role context for an agent: who it is, its
// persona bundle and the stance-marker convention.
func BuildInstructions(agent core.Agent, scenario string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s participating in a multi-agent debate.\n\n", agent.Name, agent.Role)
	if agent.Persona != "" {
		// Persona bundles may carry template markers referencing the
		// scenario or role. A malformed template falls back to raw text.
		persona, err := util.RenderTemplate(agent.Persona, map[string]any{
			"Scenario": scenario,
			"Name":     agent.Name,
			"Role":     agent.Role,
		})
		if err != nil {
			persona = agent.Persona
		}
		fmt.Fprintf(&b, "Your character:\n%s\n\n", persona)
	}
	if len(agent.Expertise) > 0 {
		fmt.Fprintf(&b, "Your expertise: %s\n\n", strings.Join(agent.Expertise, ", "))
	}
	fmt.Fprintf(&b, "Your initial stance: %s\n\n", agent.InitialStance)
	b.WriteString("Stay in character, engage constructively with the other participants ")
	b.WriteString("and work toward an eventual consensus without abandoning your goals.\n")
	fmt.Fprintf(&b, "Begin every response with a line of the form %q where <position> is agree, disagree or neutral.", stanceMarker+" <position>")
	return b.String()
}

// promptContext carries the material BuildPrompt renders into the
// conversation context for a single turn.
type promptContext struct {
	round         int
	recent        []core.HistoryRecord // other agents' recent contributions, oldest first
	own           []core.HistoryRecord // agent's own prior contributions
	interventions []string
	stance        core.Stance
}

// BuildPrompt renders the conversation context: scenario, recent debate
// history, the agent's own prior contributions and stance, and any user
// interventions injected since the last round.
func BuildPrompt(agent core.Agent, scenario string, pc promptContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DEBATE SCENARIO: %s\n\n", scenario)
	fmt.Fprintf(&b, "ROUND %d - it is your turn to contribute.\n\n", pc.round)

	b.WriteString("RECENT CONVERSATION:\n")
	if len(pc.recent) == 0 {
		b.WriteString("No previous contributions.\n")
	}
	for _, rec := range pc.recent {
		fmt.Fprintf(&b, "%s: %s\n", rec.AgentName, rec.Content)
	}
	b.WriteString("\n")

	if pc.stance.Valid() {
		fmt.Fprintf(&b, "YOUR CURRENT STANCE: %s\n", pc.stance)
	}
	if len(pc.own) > 0 {
		b.WriteString("YOUR PRIOR CONTRIBUTIONS:\n")
		for _, rec := range pc.own {
			fmt.Fprintf(&b, "- %s\n", rec.Content)
		}
	}
	for _, iv := range pc.interventions {
		fmt.Fprintf(&b, "\nMODERATOR NOTE: %s\n", iv)
	}

	fmt.Fprintf(&b, "\nRespond in character as %s (%s), addressing the debate directly.", agent.Name, agent.Role)
	return b.String()
}

// ParseStance extracts the self-reported stance from a contribution's leading
// marker line. Unparseable text leaves the prior stance in place.
func ParseStance(text string) (core.Stance, bool) {
	for _, line := range strings.SplitN(strings.TrimSpace(text), "\n", 3) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, stanceMarker) {
			return "", false
		}
		value := strings.TrimSpace(trimmed[len(stanceMarker):])
		value = strings.ToLower(strings.Trim(value, " .!*_"))
		stance := core.Stance(value)
		if stance.Valid() {
			return stance, true
		}
		return "", false
	}
	return "", false
}
