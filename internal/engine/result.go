package engine

// Statistics summarizes one solve for callers that don't want to walk the
// raw state and violation lists themselves.
type Statistics struct {
	TotalVariables     int
	AssignedCount      int
	UnassignedCount    int
	HardViolationCount int
	SoftViolationCount int
	TotalScore         float64
	Iterations         int
	ExecutionTimeMs    int64
}

// SchedulingResult is the single value solve() returns to its collaborators.
type SchedulingResult struct {
	Success      bool
	ScheduleState *ScheduleState
	Statistics   Statistics
	Conflicts    []ConflictInfo
	Violations   []ConstraintViolation
	Message      string
	Suggestions  []string
	StageResults []stageResult

	CappedByIterations bool
	CappedByTime       bool
}

func countHard(violations []ConstraintViolation) int {
	n := 0
	for _, v := range violations {
		if v.Hard {
			n++
		}
	}
	return n
}

func countSoft(violations []ConstraintViolation) int {
	return len(violations) - countHard(violations)
}

func suggestionsFor(result *SchedulingResult) []string {
	var out []string
	switch {
	case result.CappedByTime:
		out = append(out, "increase timeLimit or simplify the rule set; the search did not converge in time")
	case result.CappedByIterations:
		out = append(out, "raise maxIterations or backtrackLimit; the search exhausted its budget")
	}
	for _, c := range result.Conflicts {
		if c.Severity == SeverityCritical {
			out = append(out, "widen the domain for the affected variables; at least one has no feasible slot remaining")
			break
		}
	}
	if countHard(result.Violations) > 0 && len(out) == 0 {
		out = append(out, "review hard-constraint conflicts reported in violations before retrying")
	}
	return out
}
