package workflow

import "github.com/assetflow-io/assetflow/pkg/models"

// Phase classifies a record's position in its pipeline beyond the plain
// stage index.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseCompleted Phase = "completed"
	PhaseRejected  Phase = "rejected"
)

// StageRef is the result of resolving a record's current step.
type StageRef struct {
	// Index is the zero-based index of the stage currently awaiting action.
	// For completed and rejected records it is the index the record would be
	// at were the meta-state cleared.
	Index int
	Phase Phase
}

// ResolveStage derives a record's current stage from its signature state.
// It is pure and total: every reachable field combination maps to exactly
// one result. The cached Status string is never consulted; rejection is
// checked first because it can occur at any stage and overrides the forward
// progression.
func ResolveStage(def *Definition, record *models.Record) StageRef {
	index := nextStageIndex(def, record)

	if record.Rejection != nil {
		return StageRef{Index: index, Phase: PhaseRejected}
	}

	if index >= len(def.Stages) {
		return StageRef{Index: len(def.Stages), Phase: PhaseCompleted}
	}

	return StageRef{Index: index, Phase: PhasePending}
}

// nextStageIndex walks the stages in reverse and returns the index after the
// last completed stage, or 0 when nothing is signed yet.
func nextStageIndex(def *Definition, record *models.Record) int {
	for i := len(def.Stages) - 1; i >= 0; i-- {
		if stageComplete(def.Stages[i], record) {
			return i + 1
		}
	}

	return 0
}

func stageComplete(stage Stage, record *models.Record) bool {
	if record.SignatureFor(stage.Key) == nil {
		return false
	}

	for _, field := range stage.RequiredFields {
		if !record.FieldSet(field) {
			return false
		}
	}

	return true
}

// StatusFor projects the status label for a record's resolved stage. The
// projection is cached on the record after every transition; recomputing it
// here must always agree with the cache.
func StatusFor(def *Definition, record *models.Record) string {
	ref := ResolveStage(def, record)

	switch ref.Phase {
	case PhaseRejected:
		return def.RejectedStatus
	case PhaseCompleted:
		return def.CompletedStatus
	default:
		return def.Stages[ref.Index].PendingStatus
	}
}

// CurrentStage returns the stage awaiting action, or false for records in a
// terminal or rejected state.
func CurrentStage(def *Definition, record *models.Record) (Stage, bool) {
	ref := ResolveStage(def, record)
	if ref.Phase != PhasePending {
		return Stage{}, false
	}

	return def.Stages[ref.Index], true
}
