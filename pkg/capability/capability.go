// Package capability defines what is common to all voxway capability modules:
// the lifecycle every module implements and the role names under which the
// process-wide registry keys them.
//
// The four concrete contracts live in the subpackages asr, llm, tts, and vad.
// The core pipeline depends only on those contracts; concrete adapters are
// wired in at startup through the config-driven factory registry.
package capability

import "context"

// Role names a pipeline capability slot. Exactly one module instance is
// registered per role for the whole process.
type Role string

const (
	RoleASR Role = "asr"
	RoleLLM Role = "llm"
	RoleTTS Role = "tts"
	RoleVAD Role = "vad"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleASR, RoleLLM, RoleTTS, RoleVAD:
		return true
	}
	return false
}

// Lifecycle is implemented by every capability module. Setup is called once
// at process startup before the module is registered; a Setup error is fatal.
// Close is called at shutdown and must be safe to call more than once.
type Lifecycle interface {
	Setup(ctx context.Context) error
	Close() error
}
