package mailbox

import (
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
)

// CorruptionLevel grades how badly a mailbox's UID index has diverged
// from its actual contents.
type CorruptionLevel int

const (
	CorruptionNone CorruptionLevel = iota
	CorruptionMinimal
	CorruptionModerate
	CorruptionSevere
	CorruptionCritical
)

func (l CorruptionLevel) String() string {
	switch l {
	case CorruptionNone:
		return "none"
	case CorruptionMinimal:
		return "minimal"
	case CorruptionModerate:
		return "moderate"
	case CorruptionSevere:
		return "severe"
	case CorruptionCritical:
		return "critical"
	default:
		return fmt.Sprintf("CorruptionLevel(%d)", int(l))
	}
}

// LevelFromRatio maps a probe failure ratio onto a corruption level.
// The bands are fixed: a single failed probe out of twenty is already
// "minimal", and anything at or above 90% is "critical".
func LevelFromRatio(ratio float64) CorruptionLevel {
	switch {
	case ratio == 0:
		return CorruptionNone
	case ratio < 0.1:
		return CorruptionMinimal
	case ratio < 0.5:
		return CorruptionModerate
	case ratio < 0.9:
		return CorruptionSevere
	default:
		return CorruptionCritical
	}
}

// DiagnosisSampleSize is how many UIDs a diagnosis probes at most.
const DiagnosisSampleSize = 10

// FlagsProber issues a UID FETCH (FLAGS) for one UID and reports how
// many messages came back. Zero means the UID is dead weight in the
// server's index.
type FlagsProber interface {
	ProbeFlags(uid imap.UID) (int, error)
}

// Diagnosis is the result of probing a mailbox for UID index damage.
type Diagnosis struct {
	Probed int
	Failed int
	Ratio  float64
	Level  CorruptionLevel
}

// Diagnose probes the first DiagnosisSampleSize UIDs of the given list
// and grades the mailbox. An empty UID list is a healthy
// mailbox by definition. Probe errors count as failures rather than
// aborting: an error is exactly the signal being measured.
func Diagnose(prober FlagsProber, uids []imap.UID, logger *slog.Logger) Diagnosis {
	if len(uids) == 0 {
		return Diagnosis{Level: CorruptionNone}
	}

	sample := sampleUIDs(uids, DiagnosisSampleSize)

	failed := 0
	for _, uid := range sample {
		n, err := prober.ProbeFlags(uid)
		if err != nil || n == 0 {
			failed++
			if err != nil {
				logger.Debug("corruption probe errored", "uid", uid, "error", err)
			}
		}
	}

	ratio := float64(failed) / float64(len(sample))
	d := Diagnosis{
		Probed: len(sample),
		Failed: failed,
		Ratio:  ratio,
		Level:  LevelFromRatio(ratio),
	}
	logger.Info("corruption diagnosis", "probed", d.Probed, "failed", d.Failed, "level", d.Level.String())
	return d
}

// sampleUIDs takes the first n UIDs. A prefix keeps the probe
// deterministic and cheap on large mailboxes.
func sampleUIDs(uids []imap.UID, n int) []imap.UID {
	if len(uids) < n {
		n = len(uids)
	}
	out := make([]imap.UID, n)
	copy(out, uids[:n])
	return out
}
