package sync

// Stage is one sequential phase of a sync run's state machine.
type Stage string

const (
	// StageIdle is the state before a run begins.
	StageIdle Stage = "idle"
	// StagePreparingRemote creates the remote replica layout if missing.
	StagePreparingRemote Stage = "preparing_remote"
	// StageReadingSnapshots loads both replica snapshots.
	StageReadingSnapshots Stage = "reading_snapshots"
	// StageDetectingConflicts runs the diff engine.
	StageDetectingConflicts Stage = "detecting_conflicts"
	// StageResolvingConflicts waits on the resolver; skipped when the diff
	// found no conflicts.
	StageResolvingConflicts Stage = "resolving_conflicts"
	// StageApplyingRecords applies record copies, updates, and resolutions.
	StageApplyingRecords Stage = "applying_records"
	// StageApplyingCollections union-merges tag and collection associations.
	StageApplyingCollections Stage = "applying_collections"
	// StageApplyingPdfs copies and overwrites PDF files.
	StageApplyingPdfs Stage = "applying_pdfs"
	// StageFinalizing writes the new baseline and seals the result.
	StageFinalizing Stage = "finalizing"

	// StageCompleted, StageCancelled, and StageFailed are terminal.
	StageCompleted Stage = "completed"
	StageCancelled Stage = "cancelled"
	StageFailed    Stage = "failed"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageCancelled, StageFailed:
		return true
	default:
		return false
	}
}

// Stages returns the ordered working stages of a run. Callers compute a
// percentage as index/len; the engine itself never owns a percentage.
func Stages() []Stage {
	return []Stage{
		StagePreparingRemote,
		StageReadingSnapshots,
		StageDetectingConflicts,
		StageResolvingConflicts,
		StageApplyingRecords,
		StageApplyingCollections,
		StageApplyingPdfs,
		StageFinalizing,
	}
}

// StageIndex returns the position of a working stage in Stages(), or -1 for
// Idle and the terminal stages.
func StageIndex(s Stage) int {
	for i, stage := range Stages() {
		if stage == s {
			return i
		}
	}
	return -1
}

// Counts carries coarse item counts alongside stage transitions.
type Counts struct {
	Records    int
	Pdfs       int
	Conflicts  int
	Resolved   int
	ToRemote   int
	ToLocal    int
	Identical  int
	ItemErrors int
}

// ProgressFunc receives stage transitions and current counts. It must be
// fast and non-blocking; the engine calls it from the sync worker. A nil
// sink is legal.
type ProgressFunc func(stage Stage, counts Counts)

// report emits a stage transition, tolerating a missing sink.
func (f ProgressFunc) report(stage Stage, counts Counts) {
	if f == nil {
		return
	}
	f(stage, counts)
}
