// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX, CGO builds only) and OpenAI-compatible
// APIs. Provider selection happens at runtime with automatic dimension
// detection for common models, so the vector store can verify its configured
// vector size against the model actually in use.
package embeddings
