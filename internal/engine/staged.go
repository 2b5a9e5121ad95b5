package engine

import "go.uber.org/zap"

// stageResult captures one stage's final state, reported back on the
// merged SchedulingResult so callers can see core-vs-general progress.
type stageResult struct {
	Stage              ProgressStage
	AssignedCount      int
	TotalCount         int
	IsComplete         bool
	Iterations         int
	CappedByIterations bool
	CappedByTime       bool
}

// runStaged implements §4.4: core variables are solved first under a tight
// budget, then general variables under a wider budget with the core
// assignments frozen as fixed, then the two states are merged. When the
// classifier finds no core variables it falls back to a single monolithic
// pass over everything.
func runStaged(rules Rules, cfg AlgorithmConfig, collab Collaborators, logger *zap.Logger, variables []ScheduleVariable, fixed []CourseAssignment) (*ScheduleState, []stageResult, bool) {
	core, general, ok := Classify(variables, rules.CoreSubjectNames)
	if !ok {
		ctx := newSearchContext(rules, monolithicConfig(cfg), collab, logger, variables, fixed, StageMonolithic)
		runBacktrackingSearch(ctx)
		if ctx.cfg.EnableLocalOptimization {
			localOptimize(ctx, ctx.cfg.LocalOptimizationIterations)
		}
		finalizeState(ctx)
		return ctx.state, []stageResult{stageFrom(ctx, StageMonolithic)}, false
	}

	coreCfg := cfg
	if coreCfg.MaxIterations == 0 || coreCfg.MaxIterations > 5000 {
		coreCfg.MaxIterations = 5000
	}
	if coreCfg.TimeLimitSeconds == 0 || coreCfg.TimeLimitSeconds > 120 {
		coreCfg.TimeLimitSeconds = 120
	}
	coreCfg.EnableLocalOptimization = true

	coreCtx := newSearchContext(rules, coreCfg, collab, logger, core, fixed, StageCore)
	runBacktrackingSearch(coreCtx)
	localOptimize(coreCtx, coreCtx.cfg.LocalOptimizationIterations)
	finalizeState(coreCtx)

	generalFixed := append([]CourseAssignment(nil), fixed...)
	for _, a := range coreCtx.state.Assignments {
		frozen := a
		frozen.IsFixed = true
		generalFixed = append(generalFixed, frozen)
	}

	generalCfg := cfg
	if generalCfg.MaxIterations == 0 || generalCfg.MaxIterations > 8000 {
		generalCfg.MaxIterations = 8000
	}
	if generalCfg.TimeLimitSeconds == 0 || generalCfg.TimeLimitSeconds > 180 {
		generalCfg.TimeLimitSeconds = 180
	}

	generalCtx := newSearchContext(rules, generalCfg, collab, logger, general, generalFixed, StageGeneral)
	runBacktrackingSearch(generalCtx)
	if generalCtx.cfg.EnableLocalOptimization {
		localOptimize(generalCtx, generalCtx.cfg.LocalOptimizationIterations)
	}
	finalizeState(generalCtx)

	merged := mergeStates(coreCtx.state, generalCtx.state)
	results := []stageResult{stageFrom(coreCtx, StageCore), stageFrom(generalCtx, StageGeneral)}
	return merged, results, true
}

func monolithicConfig(cfg AlgorithmConfig) AlgorithmConfig {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultAlgorithmConfig().MaxIterations
	}
	if cfg.TimeLimitSeconds == 0 {
		cfg.TimeLimitSeconds = DefaultAlgorithmConfig().TimeLimitSeconds
	}
	return cfg
}

func stageFrom(ctx *searchContext, stage ProgressStage) stageResult {
	total := len(ctx.order)
	return stageResult{
		Stage:              stage,
		AssignedCount:      total - len(ctx.state.Unassigned),
		TotalCount:         total,
		IsComplete:         len(ctx.state.Unassigned) == 0,
		Iterations:         ctx.iterations,
		CappedByIterations: ctx.cappedByIterations,
		CappedByTime:       ctx.cappedByTime,
	}
}

func finalizeState(ctx *searchContext) {
	ctx.state.IsComplete = len(ctx.state.Unassigned) == 0
	ctx.state.IsFeasible = true
	for _, id := range ctx.state.Unassigned {
		v := ctx.variable(id)
		if v != nil && len(v.Domain) == 0 {
			ctx.state.IsFeasible = false
			break
		}
	}
}

// mergeStates unions the two stages' assignments, unassigned lists,
// conflicts and violations.
func mergeStates(core, general *ScheduleState) *ScheduleState {
	merged := &ScheduleState{
		Assignments: make(map[string]CourseAssignment, len(core.Assignments)+len(general.Assignments)),
	}
	for k, v := range core.Assignments {
		merged.Assignments[k] = v
	}
	for k, v := range general.Assignments {
		if v.IsFixed {
			continue // frozen core assignment re-surfaced via generalFixed
		}
		merged.Assignments[k] = v
	}
	merged.Unassigned = append(append([]string(nil), core.Unassigned...), general.Unassigned...)
	merged.Conflicts = append(append([]ConflictInfo(nil), core.Conflicts...), general.Conflicts...)
	merged.Violations = append(append([]ConstraintViolation(nil), core.Violations...), general.Violations...)
	merged.Score = core.Score + general.Score
	merged.IsComplete = len(merged.Unassigned) == 0
	merged.IsFeasible = core.IsFeasible && general.IsFeasible
	return merged
}
