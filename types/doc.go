// Package types defines the shared vocabulary of the filmforge generation
// core: generation kinds, task statuses, and the structured error taxonomy
// used by every provider, the resolver, and the call wrapper.
package types
