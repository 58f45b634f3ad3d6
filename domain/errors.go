package domain

import "errors"

var (
	// ErrUpdateOutdated marks a diff event that predates the snapshot the
	// current attempt is anchored on. Expected right after anchoring; skipped.
	ErrUpdateOutdated = errors.New("depth update is outdated")

	// ErrUpdateOutOfSequence marks a gap, overlap, or bad initial anchoring in
	// the diff stream. The local book can no longer be trusted and the only
	// safe recovery is a full restart from a fresh snapshot.
	ErrUpdateOutOfSequence = errors.New("depth update is out of sequence")
)

// IsStreamIntegrityErr reports whether err means the stream continuity
// contract was violated.
func IsStreamIntegrityErr(err error) bool {
	return errors.Is(err, ErrUpdateOutOfSequence)
}
