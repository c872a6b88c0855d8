package core

// Stance is the coarse agree/disagree/neutral signal an agent self-reports
// with each contribution. Consensus evaluation operates on stances only; the
// free text of a contribution stays opaque to the core.
type Stance string

const (
	// StanceAgree signals support for the leading proposal.
	StanceAgree Stance = "agree"
	// StanceDisagree signals opposition.
	StanceDisagree Stance = "disagree"
	// StanceNeutral signals no committed position yet.
	StanceNeutral Stance = "neutral"
)

// Valid reports whether s is one of the three recognized stance signals.
func (s Stance) Valid() bool {
	return s == StanceAgree || s == StanceDisagree || s == StanceNeutral
}

// Agent describes one debate participant. Descriptors are produced by an
// upstream persona-generation stage and are immutable in membership once a
// session starts, except for explicit removal by user intervention.
type Agent struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Persona       string   `json:"persona"` // opaque personality/goals/constraints bundle
	Expertise     []string `json:"expertise,omitempty"`
	InitialStance Stance   `json:"initial_stance"`
	Stance        Stance   `json:"stance"`             // current self-reported stance
	Provider      string   `json:"provider,omitempty"` // assigned reasoning provider id
	Weight        float64  `json:"weight,omitempty"`   // consensus weight, 1 if unset
	Removed       bool     `json:"removed,omitempty"`  // soft removal keeps history attribution
}

// EffectiveWeight returns the consensus weight, defaulting to 1.
func (a Agent) EffectiveWeight() float64 {
	if a.Weight <= 0 {
		return 1
	}
	return a.Weight
}
