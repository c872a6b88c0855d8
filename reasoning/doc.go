// Package reasoning implements core.ReasoningGateway: a registry of named
// reasoning providers invoked with a bounded per-call timeout and bounded
// exponential-backoff retry. Provider adapters for the Anthropic and OpenAI
// APIs live in the subpackages; MockProvider serves tests and offline demos.
package reasoning
