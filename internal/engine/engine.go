package engine

import (
	"regexp"
	"time"

	"go.uber.org/zap"
)

// Engine is the constraint-satisfaction scheduler. One instance is
// disposable: it holds no state between Solve calls and shares no caches
// across concurrent callers.
type Engine struct {
	rules  Rules
	logger *zap.Logger
}

// New builds an Engine bound to an immutable rules bundle.
func New(rules Rules, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: rules, logger: logger}
}

var hexIDPattern = regexp.MustCompile(`^[0-9a-fA-F-]+$`)

// validateVariable reports why v should be filtered, or "" if it is usable.
func validateVariable(v ScheduleVariable) string {
	switch {
	case v.ID == "" || !hexIDPattern.MatchString(v.ID):
		return "missing or malformed id"
	case v.ClassID == "":
		return "missing class id"
	case v.TeacherID == "":
		return "missing teacher id"
	case v.CourseID == "":
		return "missing course id"
	default:
		return ""
	}
}

// Solve is the engine's single external operation: it consumes a variable
// snapshot and any caller-fixed assignments and returns a complete result,
// never an error — every failure path is folded into the returned
// SchedulingResult per the documented error taxonomy.
func (e *Engine) Solve(variables []ScheduleVariable, fixed []CourseAssignment, cfg AlgorithmConfig, collab Collaborators) *SchedulingResult {
	start := time.Now()

	valid := make([]ScheduleVariable, 0, len(variables))
	for _, v := range variables {
		if reason := validateVariable(v); reason != "" {
			e.logger.Warn("filtering invalid variable", zap.String("variableId", v.ID), zap.String("reason", reason))
			continue
		}
		valid = append(valid, v)
	}
	if len(variables) > 0 && len(valid) == 0 {
		return &SchedulingResult{
			Success: false,
			Message: "all variables invalid",
			Statistics: Statistics{
				TotalVariables:  len(variables),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
			},
		}
	}

	state, stages, staged := runStaged(e.rules, cfg, collab, e.logger, valid, fixed)

	hard := countHard(state.Violations)
	for _, id := range state.Unassigned {
		v := findVariable(valid, id)
		severity := SeverityMedium
		if v != nil && len(v.Domain) == 0 {
			severity = SeverityCritical
		}
		state.Conflicts = append(state.Conflicts, ConflictInfo{
			Severity:  severity,
			Variables: []string{id},
			Message:   "variable could not be placed within resource limits",
		})
	}

	success := len(state.Unassigned) == 0 && hard == 0

	result := &SchedulingResult{
		Success:       success,
		ScheduleState: state,
		Conflicts:     state.Conflicts,
		Violations:    state.Violations,
		StageResults:  stages,
		CappedByIterations: anyCapped(stages, func(s stageResult) bool { return s.CappedByIterations }),
		CappedByTime:       anyCapped(stages, func(s stageResult) bool { return s.CappedByTime }),
		Statistics: Statistics{
			TotalVariables:     len(valid),
			AssignedCount:      len(state.Assignments) - len(fixed),
			UnassignedCount:    len(state.Unassigned),
			HardViolationCount: hard,
			SoftViolationCount: countSoft(state.Violations),
			TotalScore:         state.Score,
			Iterations:         totalIterations(stages),
			ExecutionTimeMs:    time.Since(start).Milliseconds(),
		},
	}
	if !staged {
		result.Message = "solved as a single monolithic pass; classifier found no core-subject variables"
	}
	if success {
		if result.Message == "" {
			result.Message = "all variables scheduled without hard violations"
		}
	} else if result.Message == "" {
		result.Message = "some variables could not be scheduled without a hard violation"
	}
	result.Suggestions = suggestionsFor(result)
	return result
}

func anyCapped(stages []stageResult, pick func(stageResult) bool) bool {
	for _, s := range stages {
		if pick(s) {
			return true
		}
	}
	return false
}

// totalIterations sums each stage's iteration count (staged runs solve core
// and general subjects as separate backtracking passes, so the reported
// total is their combined search effort).
func totalIterations(stages []stageResult) int {
	total := 0
	for _, s := range stages {
		total += s.Iterations
	}
	return total
}

func findVariable(variables []ScheduleVariable, id string) *ScheduleVariable {
	for i := range variables {
		if variables[i].ID == id {
			return &variables[i]
		}
	}
	return nil
}
