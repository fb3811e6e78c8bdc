package common

import (
	"os"
	"runtime/debug"
	"strconv"

	"github.com/rs/zerolog/log"
)

const (
	// Swap execution is short-lived and allocation-light; a high GOGC keeps
	// the collector out of the request path. GOMEMLIMIT is the safety net.
	defaultGOGC     = 400
	defaultMemLimit = 2 * 1024 * 1024 * 1024
)

// InitRuntime applies GC settings tuned for the ledger's request profile.
// Environment variables GOGC and GOMEMLIMIT take precedence when set.
func InitRuntime() {
	gogc := defaultGOGC
	if v := os.Getenv("GOGC"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			gogc = parsed
		}
	}
	debug.SetGCPercent(gogc)

	var memLimit int64 = defaultMemLimit
	if v := os.Getenv("GOMEMLIMIT"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			memLimit = parsed
		}
	}
	debug.SetMemoryLimit(memLimit)

	log.Info().Int("gogc", gogc).Int64("mem_limit", memLimit).Msg("runtime tuned")
}
