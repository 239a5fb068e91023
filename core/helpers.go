package core

import "sync"

var (
	engineOnce   sync.Once
	globalEngine *Engine
)

// InitEngine installs the process-wide Engine singleton used by the CLI
// layer via a lazy sync.Once-gated initialisation, so every command
// picks up the same shared instance.
func InitEngine(e *Engine) {
	engineOnce.Do(func() { globalEngine = e })
}

// CurrentEngine returns the global Engine instance, or nil if InitEngine
// has not run yet.
func CurrentEngine() *Engine { return globalEngine }
