package mailbox

import "fmt"

// FetchStrategy selects how message bodies are pulled from the server.
// Healthier mailboxes get faster strategies; the damaged end of the
// scale trades throughput for the chance of getting anything at all.
type FetchStrategy int

const (
	// StrategyStandard fetches each message individually by UID.
	StrategyStandard FetchStrategy = iota

	// StrategySequence fetches by sequence number, bypassing the
	// server's UID index entirely.
	StrategySequence

	// StrategyBatch fetches UIDs in chunks of ten, retrying each
	// member individually when a chunk fails.
	StrategyBatch

	// StrategyRecovery tries UID fetch, falls back to sequence fetch
	// per message, then sweeps remaining failures in small batches.
	StrategyRecovery

	// StrategySafe fetches one sequence number at a time with retries
	// and growing pauses between attempts.
	StrategySafe
)

func (s FetchStrategy) String() string {
	switch s {
	case StrategyStandard:
		return "standard"
	case StrategySequence:
		return "sequence"
	case StrategyBatch:
		return "batch"
	case StrategyRecovery:
		return "recovery"
	case StrategySafe:
		return "safe"
	default:
		return fmt.Sprintf("FetchStrategy(%d)", int(s))
	}
}

// StrategyFor picks the fetch strategy for a diagnosed corruption
// level. Minimal damage gets the batch strategy rather than sequence:
// most UIDs still work, so chunked UID fetches with per-item fallback
// stay fast while absorbing the occasional dead UID.
func StrategyFor(level CorruptionLevel) FetchStrategy {
	switch level {
	case CorruptionNone:
		return StrategyStandard
	case CorruptionMinimal:
		return StrategyBatch
	case CorruptionModerate:
		return StrategySequence
	case CorruptionSevere:
		return StrategyRecovery
	default:
		return StrategySafe
	}
}
