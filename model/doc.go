// Package model defines the model collaborator contract used by the runner
// together with helpers shared by all providers.
//
// A Model turns a Request (instructions, conversation history, tool
// definitions and an optional output schema) into a stream of partial text
// deltas followed by one final Response that is either a final answer or a
// batch of tool calls. Provider adapters live in the openai and anthropic
// subpackages.
//
// ScriptedModel is a deterministic fake for tests and examples, and
// WithRetry decorates any Model with exponential backoff for transient
// failures.
package model
