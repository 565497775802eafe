// Package gen defines the uniform provider contract for media generation:
// the request/response envelope shared by every generation kind, the
// per-call ProviderConfig produced by the resolver, and the process-wide
// registry mapping (kind, provider name) to a constructor plus static
// metadata.
//
// The registry is built once at process start (see gen/register) and is
// read-only afterwards; provider instances are constructed per call and are
// stateless apart from the task identifier an async provider holds between
// CreateTask, CheckStatus and GetResult.
package gen
