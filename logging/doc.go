// Package logging provides a tiny abstraction over slog so the orchestration
// core can depend on a minimal interface (Logger) while callers plug in any
// structured logger. It also offers a richer DebateLogger with contextual
// helpers (component, session, round) and domain specific helpers for
// reasoning calls and round execution.
package logging
