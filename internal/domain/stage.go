package domain

import "strings"

type Stage string

const (
	StageIntake    Stage = "intake"
	StageResearch  Stage = "research"
	StageExecution Stage = "execution"
	StageReview    Stage = "review"
	StageComplete  Stage = "complete"
)

var stageSequence = []Stage{StageIntake, StageResearch, StageExecution, StageReview, StageComplete}

// Stages returns the ordered stage sequence.
func Stages() []Stage {
	out := make([]Stage, len(stageSequence))
	copy(out, stageSequence)
	return out
}

func (s Stage) index() int {
	for i, st := range stageSequence {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.index() >= 0 }

// Label is the display form of the stage, e.g. "Execution".
func (s Stage) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// NextStage returns the stage after s. The second value is false for
// complete and for values outside the sequence.
func NextStage(s Stage) (Stage, bool) {
	i := s.index()
	if i < 0 || i >= len(stageSequence)-1 {
		return "", false
	}
	return stageSequence[i+1], true
}

// PrevStage returns the stage before s; false for intake and unknown values.
func PrevStage(s Stage) (Stage, bool) {
	i := s.index()
	if i <= 0 {
		return "", false
	}
	return stageSequence[i-1], true
}
