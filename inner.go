package imageintake

import "github.com/Skryldev/image-intake/core"

// Inner exposes the underlying core.Orchestrator for advanced use (e.g.,
// per-call dependency inspection in tests).  Prefer the high-level API for
// normal usage.
func (s *Service) Inner() *core.Orchestrator { return s.inner }

// TempStore exposes the scratch store for direct manipulation in tests.
func (s *Service) TempStore() core.TempStore { return s.temp }
