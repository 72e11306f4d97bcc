// Package generation wraps the LLM used by the retrieval loop for two
// operations: gap analysis (does the accumulated context answer the
// question, and if not, what follow-up searches would close the gap) and
// final answer synthesis over the collected sources.
//
// The client speaks to any OpenAI-compatible chat endpoint through
// langchaingo, rate-limited and retried. Both operations are optional
// collaborators: retrieval degrades to a single pass when no client is
// configured, and treats a failed call as "context is sufficient".
package generation
