// Package selector assigns reasoning providers to debate agents at session
// creation and computes minimal re-assignments when a provider becomes
// unavailable mid-session.
package selector

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

// Strategy selects the assignment algorithm.
type Strategy string

const (
	// StrategyRoleMatched assigns providers via the role affinity table,
	// falling back to round-robin for unmatched roles.
	StrategyRoleMatched Strategy = "role_matched"
	// StrategyRandom assigns uniformly at random.
	StrategyRandom Strategy = "random"
	// StrategyRoundRobin cycles providers in sorted order.
	StrategyRoundRobin Strategy = "round_robin"
)

// DefaultAffinity maps role keywords to provider families: structured and
// quantitative roles lean on a provider strong at analytical reasoning,
// normative roles on one strong at nuanced ethical reasoning. The table is a
// documented, overridable lookup, not free-form matching.
var DefaultAffinity = map[string]string{
	"analyst":    "openai",
	"technical":  "openai",
	"engineer":   "openai",
	"researcher": "openai",
	"finance":    "openai",
	"operations": "openai",
	"data":       "openai",
	"ethic":      "anthropic",
	"legal":      "anthropic",
	"policy":     "anthropic",
	"compliance": "anthropic",
	"safety":     "anthropic",
	"philosoph":  "anthropic",
}

// Options configures a Selector.
type Options struct {
	// Affinity overrides the default role keyword table.
	Affinity map[string]string
	// Rand seeds the random strategy; defaults to a time-seeded source.
	Rand *rand.Rand
	// Logger receives assignment diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Selector computes provider assignments. Safe for concurrent use as long as
// the random strategy is not exercised concurrently with itself.
type Selector struct {
	affinity map[string]string
	rnd      *rand.Rand
	logger   logging.Logger
}

// New creates a Selector with the default affinity table.
func New(optFns ...func(o *Options)) *Selector {
	opts := Options{
		Affinity: DefaultAffinity,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{affinity: opts.Affinity, rnd: opts.Rand, logger: opts.Logger}
}

// Assign maps every agent id to one of the available provider ids.
//
// The diversity preference in [0,1] biases role_matched toward spreading
// agents across providers when affinities collide: an agent whose affinity
// provider is already ahead of the least-used provider by more than
// round((1-diversity)*len(agents)) assignments is routed to the least-used
// provider instead. At 0 affinity always wins; at 1 any imbalance reroutes.
func (s *Selector) Assign(agents []core.Agent, providers []string, strategy Strategy, diversity float64) (map[string]string, error) {
	if len(providers) == 0 {
		return nil, &core.ValidationError{Field: "providers", Reason: "no reasoning providers registered"}
	}
	sorted := make([]string, len(providers))
	copy(sorted, providers)
	sort.Strings(sorted)

	assignment := make(map[string]string, len(agents))
	usage := make(map[string]int, len(sorted))
	for _, p := range sorted {
		usage[p] = 0
	}

	switch strategy {
	case StrategyRandom:
		for _, a := range agents {
			p := sorted[s.rnd.Intn(len(sorted))]
			assignment[a.ID] = p
			usage[p]++
		}
	case StrategyRoundRobin:
		for i, a := range agents {
			p := sorted[i%len(sorted)]
			assignment[a.ID] = p
			usage[p]++
		}
	case StrategyRoleMatched, "":
		allowedSkew := int(math.Round((1 - clamp01(diversity)) * float64(len(agents))))
		next := 0 // round-robin cursor for unmatched roles
		for _, a := range agents {
			want, matched := s.match(a.Role)
			if matched && !contains(sorted, want) {
				matched = false
			}
			var p string
			if matched {
				p = want
				if usage[want]-minUsage(usage, sorted) > allowedSkew {
					p = leastUsed(usage, sorted, "")
					s.logger.Debug("diversity tie-break", "agent", a.ID, "affinity", want, "provider", p)
				}
			} else {
				p = sorted[next%len(sorted)]
				next++
			}
			assignment[a.ID] = p
			usage[p]++
		}
	default:
		return nil, &core.ValidationError{Field: "strategy", Reason: "unknown strategy " + string(strategy)}
	}
	return assignment, nil
}

// Reassign computes a one-time replacement mapping after a provider became
// unavailable. Only agents assigned to the dead provider move; every other
// assignment is preserved to minimize churn. Moved agents go to the provider
// least used by the surviving assignment.
func (s *Selector) Reassign(current map[string]string, agents []core.Agent, dead string, providers []string) map[string]string {
	survivors := make([]string, 0, len(providers))
	for _, p := range providers {
		if p != dead {
			survivors = append(survivors, p)
		}
	}
	sort.Strings(survivors)

	next := make(map[string]string, len(current))
	usage := make(map[string]int, len(survivors))
	for _, p := range survivors {
		usage[p] = 0
	}
	for id, p := range current {
		next[id] = p
		if p != dead {
			usage[p]++
		}
	}
	if len(survivors) == 0 {
		return next
	}
	for _, a := range agents {
		if next[a.ID] != dead {
			continue
		}
		p := leastUsed(usage, survivors, "")
		next[a.ID] = p
		usage[p]++
		s.logger.Info("agent reassigned", "agent", a.ID, "from", dead, "to", p)
	}
	return next
}

// match finds the affinity provider for a role via keyword containment over
// the table, longest keyword first for determinism.
func (s *Selector) match(role string) (string, bool) {
	normalized := strings.ToLower(role)
	keys := make([]string, 0, len(s.affinity))
	for k := range s.affinity {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(normalized, k) {
			return s.affinity[k], true
		}
	}
	return "", false
}

func minUsage(usage map[string]int, providers []string) int {
	m := math.MaxInt
	for _, p := range providers {
		if usage[p] < m {
			m = usage[p]
		}
	}
	return m
}

// leastUsed picks the provider with the lowest usage count, first in sorted
// order among equals.
func leastUsed(usage map[string]int, providers []string, skip string) string {
	best := ""
	for _, p := range providers {
		if p == skip {
			continue
		}
		if best == "" || usage[p] < usage[best] {
			best = p
		}
	}
	return best
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
