package domain

// DepthUpdateValidator enforces the exchange's stream continuity contract for
// one synchronization attempt:
//
//   - any event with u <= lastUpdateId of the snapshot is outdated and dropped;
//   - the first retained event must satisfy U <= lastUpdateId+1 <= u;
//   - every later event must satisfy U == previous u + 1.
//
// State is per attempt. A fresh validator is created alongside each fresh
// snapshot.
type DepthUpdateValidator struct {
	snapshotLastUpdateID int64
	prevFinalUpdateID    int64
	anchored             bool
}

func NewDepthUpdateValidator(snapshotLastUpdateID int64) *DepthUpdateValidator {
	return &DepthUpdateValidator{
		snapshotLastUpdateID: snapshotLastUpdateID,
	}
}

// Validate checks one event against the continuity rules. It returns
// ErrUpdateOutdated for events that predate the snapshot (skip, not a fault)
// and ErrUpdateOutOfSequence on a gap, overlap, or bad anchoring (stream
// integrity fault). On success the event becomes the new continuity reference.
func (v *DepthUpdateValidator) Validate(event *DepthUpdateEvent) error {
	if event.FinalUpdateID <= v.snapshotLastUpdateID {
		return ErrUpdateOutdated
	}

	if !v.anchored {
		if event.FirstUpdateID > v.snapshotLastUpdateID+1 || event.FinalUpdateID < v.snapshotLastUpdateID+1 {
			return ErrUpdateOutOfSequence
		}
	} else if event.FirstUpdateID != v.prevFinalUpdateID+1 {
		return ErrUpdateOutOfSequence
	}

	v.prevFinalUpdateID = event.FinalUpdateID
	v.anchored = true
	return nil
}
