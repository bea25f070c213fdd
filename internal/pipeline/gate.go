package pipeline

// IsEligible reports whether key may be triggered given snap.
//
// The baseline is eligible whenever it is pending. The first stage is eligible
// whenever it is pending. Every later stage must itself be pending and its
// predecessor in Order must be completed. The stage's own status is only ever
// checked for pending; nothing downstream is consulted.
func IsEligible(key StageKey, snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	if key == Baseline {
		return snap.Result(Baseline).Status == StatusPending
	}
	if !key.IsStage() {
		return false
	}
	if snap.Result(key).Status != StatusPending {
		return false
	}
	prev, ok := key.Previous()
	if !ok {
		return true
	}
	return snap.Result(prev).Status == StatusCompleted
}

// Eligible lists every eligible slot in display order.
func Eligible(snap *Snapshot) []StageKey {
	var keys []StageKey
	for _, key := range Keys() {
		if IsEligible(key, snap) {
			keys = append(keys, key)
		}
	}
	return keys
}
