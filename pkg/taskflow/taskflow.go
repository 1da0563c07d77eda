// Package taskflow defines the per-task completion state machine: the closed
// set of flow stages, the condition ratings, the legal stage transitions, and
// the preconditions for finalizing a task. Keeping the stage set closed means
// an illegal stage value is an error at parse time, not a silently ignored
// default branch.
package taskflow

import (
	"fmt"
	"strings"
)

// Stage is one step of the task completion flow.
type Stage string

const (
	// StageNone means no task flow is in progress.
	StageNone Stage = ""
	// StageCondition awaits the 1-5 condition rating.
	StageCondition Stage = "condition"
	// StageCause awaits the fault cause (FAIR / UNSATISFACTORY only).
	StageCause Stage = "cause"
	// StageResolution awaits the recommended resolution.
	StageResolution Stage = "resolution"
	// StageMedia awaits at least one photo or video.
	StageMedia Stage = "media"
	// StageRemarks awaits optional free-text remarks.
	StageRemarks Stage = "remarks"
	// StageConfirm awaits the final yes/no completion confirmation.
	StageConfirm Stage = "confirm"
)

// ParseStage converts a stored stage string back into a Stage. Unknown values
// are an error rather than a silent fallthrough.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageNone, StageCondition, StageCause, StageResolution, StageMedia, StageRemarks, StageConfirm:
		return Stage(s), nil
	default:
		return StageNone, fmt.Errorf("unknown task flow stage %q", s)
	}
}

// String returns the wire form of the stage.
func (s Stage) String() string { return string(s) }

// Condition is the inspector's rating of a task.
type Condition string

const (
	ConditionNone           Condition = ""
	ConditionGood           Condition = "GOOD"
	ConditionFair           Condition = "FAIR"
	ConditionUnsatisfactory Condition = "UNSATISFACTORY"
	ConditionUnObservable   Condition = "UN_OBSERVABLE"
	ConditionNotApplicable  Condition = "NOT_APPLICABLE"
)

// conditionChoices maps the numbered menu 1-5 to conditions, in render order.
//
//nolint:gochecknoglobals // Fixed lookup table
var conditionChoices = []Condition{
	ConditionGood,
	ConditionFair,
	ConditionUnsatisfactory,
	ConditionUnObservable,
	ConditionNotApplicable,
}

// ConditionChoices returns the conditions in menu order ([1]..[5]).
func ConditionChoices() []Condition {
	out := make([]Condition, len(conditionChoices))
	copy(out, conditionChoices)
	return out
}

// ConditionFromChoice maps a menu ordinal 1-5 to a condition.
func ConditionFromChoice(n int) (Condition, error) {
	if n < 1 || n > len(conditionChoices) {
		return ConditionNone, fmt.Errorf("condition choice must be 1-%d, got %d", len(conditionChoices), n)
	}
	return conditionChoices[n-1], nil
}

// ParseCondition converts a stored condition string back into a Condition.
func ParseCondition(s string) (Condition, error) {
	switch Condition(strings.ToUpper(strings.TrimSpace(s))) {
	case ConditionNone:
		return ConditionNone, nil
	case ConditionGood:
		return ConditionGood, nil
	case ConditionFair:
		return ConditionFair, nil
	case ConditionUnsatisfactory:
		return ConditionUnsatisfactory, nil
	case ConditionUnObservable:
		return ConditionUnObservable, nil
	case ConditionNotApplicable:
		return ConditionNotApplicable, nil
	default:
		return ConditionNone, fmt.Errorf("unknown condition %q", s)
	}
}

// Label returns the human-readable menu label for a condition.
func (c Condition) Label() string {
	switch c {
	case ConditionGood:
		return "Good"
	case ConditionFair:
		return "Fair"
	case ConditionUnsatisfactory:
		return "Unsatisfactory"
	case ConditionUnObservable:
		return "Un-observable"
	case ConditionNotApplicable:
		return "Not applicable"
	default:
		return string(c)
	}
}

// RequiresCause reports whether the condition makes cause and resolution
// mandatory before the task may be completed.
func (c Condition) RequiresCause() bool {
	return c == ConditionFair || c == ConditionUnsatisfactory
}

// RequiresMedia reports whether the condition makes at least one photo
// mandatory before the task may be completed.
func (c Condition) RequiresMedia() bool {
	return c != ConditionNotApplicable
}

// Transitions is the legal stage transition table. A transition not listed
// here is rejected by Advance.
//
//nolint:gochecknoglobals // Fixed transition table
var Transitions = map[Stage][]Stage{
	StageNone:       {StageCondition},
	StageCondition:  {StageCause, StageMedia, StageRemarks},
	StageCause:      {StageResolution},
	StageResolution: {StageMedia},
	StageMedia:      {StageRemarks},
	StageRemarks:    {StageConfirm},
	StageConfirm:    {StageNone},
}

// CanTransition reports whether from -> to is a legal stage transition.
func CanTransition(from, to Stage) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next computes the stage that follows the given stage for a task with the
// given condition. Media is required unless the condition is NOT_APPLICABLE,
// in which case the flow jumps straight to remarks.
func Next(from Stage, condition Condition) (Stage, error) {
	var to Stage
	switch from {
	case StageCondition:
		switch {
		case condition.RequiresCause():
			to = StageCause
		case condition.RequiresMedia():
			to = StageMedia
		default:
			to = StageRemarks
		}
	case StageCause:
		to = StageResolution
	case StageResolution:
		to = StageMedia
	case StageMedia:
		to = StageRemarks
	case StageRemarks:
		to = StageConfirm
	case StageConfirm:
		to = StageNone
	case StageNone:
		to = StageCondition
	default:
		return StageNone, fmt.Errorf("no transition defined from stage %q", from)
	}

	if !CanTransition(from, to) {
		return StageNone, fmt.Errorf("illegal stage transition %q -> %q", from, to)
	}
	return to, nil
}

// FinalizeCheck validates the completion preconditions for a task:
//   - any condition other than NOT_APPLICABLE requires at least one photo;
//   - FAIR and UNSATISFACTORY additionally require a non-empty cause and
//     resolution.
//
// The returned error message doubles as the next user-facing prompt.
func FinalizeCheck(condition Condition, photoCount int, cause, resolution string) error {
	if condition == ConditionNone {
		return fmt.Errorf("please rate the condition before completing this task")
	}
	if condition.RequiresMedia() && photoCount < 1 {
		return fmt.Errorf("at least one photo is required before completing this task. Please send a photo")
	}
	if condition.RequiresCause() {
		if strings.TrimSpace(cause) == "" {
			return fmt.Errorf("please describe the cause of the %s condition before completing", strings.ToLower(string(condition)))
		}
		if strings.TrimSpace(resolution) == "" {
			return fmt.Errorf("please describe the recommended resolution before completing")
		}
	}
	return nil
}
