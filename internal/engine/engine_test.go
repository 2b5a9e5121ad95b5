package engine

import "testing"

// TestSolveBasicFeasibility is scenario S1: 3 variables (C1/Math/T1,
// C1/English/T2, C2/Math/T1), Mon-Fri, 8 periods, no preferences. All three
// must be assigned without any teacher or class sharing a slot.
func TestSolveBasicFeasibility(t *testing.T) {
	domain := weekDomain([]int{1, 2, 3, 4, 5}, 8)

	v1 := baseVariable("a0000001", "c1", "math1", "t1", domain)
	v1.SubjectName = "Math"
	v2 := baseVariable("a0000002", "c1", "english1", "t2", domain)
	v2.SubjectName = "English"
	v3 := baseVariable("a0000003", "c2", "math2", "t1", domain)
	v3.SubjectName = "Math"

	rules := Rules{Time: TimeRules{WorkingDays: []int{1, 2, 3, 4, 5}, DailyPeriods: 8}}
	engine := New(rules, nil)
	result := engine.Solve([]ScheduleVariable{v1, v2, v3}, nil, smallCfg(), Collaborators{})

	if !result.Success {
		t.Fatalf("expected success=true, got message=%q conflicts=%+v", result.Message, result.Conflicts)
	}
	if result.Statistics.HardViolationCount != 0 {
		t.Fatalf("expected 0 hard violations, got %d", result.Statistics.HardViolationCount)
	}

	a1, ok1 := result.ScheduleState.Assignments["a0000001"]
	a3, ok3 := result.ScheduleState.Assignments["a0000003"]
	if !ok1 || !ok3 {
		t.Fatalf("expected both of T1's variables to be assigned")
	}
	if a1.TimeSlot == a3.TimeSlot {
		t.Fatalf("T1's two assignments must not share a slot, both at %+v", a1.TimeSlot)
	}

	a2, ok2 := result.ScheduleState.Assignments["a0000002"]
	if !ok2 {
		t.Fatalf("expected C1/English to be assigned")
	}
	if a1.TimeSlot == a2.TimeSlot {
		t.Fatalf("C1's two assignments must not share a slot, both at %+v", a1.TimeSlot)
	}

	assertPartitionInvariant(t, result, []string{"a0000001", "a0000002", "a0000003"})
}

// TestSolveTeacherClashForced is scenario S2: two variables sharing a
// teacher and a class, each 1 hour, domain restricted to the single slot
// (Mon,1). Exactly one can be placed.
func TestSolveTeacherClashForced(t *testing.T) {
	domain := []TimeSlot{{DayOfWeek: 1, Period: 1}}
	v1 := baseVariable("a0000001", "c1", "course1", "t1", domain)
	v2 := baseVariable("a0000002", "c1", "course2", "t1", domain)

	rules := Rules{Time: TimeRules{WorkingDays: []int{1}, DailyPeriods: 1}}
	engine := New(rules, nil)
	result := engine.Solve([]ScheduleVariable{v1, v2}, nil, smallCfg(), Collaborators{})

	if result.Success {
		t.Fatalf("expected success=false when only one of two competing variables can be placed")
	}
	assignedCount := len(result.ScheduleState.Assignments)
	if assignedCount != 1 {
		t.Fatalf("expected exactly 1 of the 2 clashing variables assigned, got %d", assignedCount)
	}
	if len(result.ScheduleState.Unassigned) != 1 {
		t.Fatalf("expected exactly 1 unassigned variable, got %d", len(result.ScheduleState.Unassigned))
	}

	foundTeacherConflict := false
	for _, c := range result.Conflicts {
		if c.Kind == KindTeacherClash && c.TimeSlot == (TimeSlot{DayOfWeek: 1, Period: 1}) {
			foundTeacherConflict = true
		}
	}
	if !foundTeacherConflict {
		for _, v := range result.Violations {
			if v.Kind == KindTeacherClash {
				foundTeacherConflict = true
			}
		}
	}
	if !foundTeacherConflict {
		t.Fatalf("expected a teacher-clash conflict or violation at (Mon,1), got conflicts=%+v violations=%+v", result.Conflicts, result.Violations)
	}

	assertPartitionInvariant(t, result, []string{"a0000001", "a0000002"})
}

// TestSolveForbiddenSlot is scenario S3: one variable with domain
// {(Mon,1),(Mon,2)}; (Mon,1) is forbidden. Must be assigned to (Mon,2).
func TestSolveForbiddenSlot(t *testing.T) {
	domain := []TimeSlot{{DayOfWeek: 1, Period: 1}, {DayOfWeek: 1, Period: 2}}
	v := baseVariable("a0000001", "c1", "course1", "t1", domain)

	rules := Rules{Time: TimeRules{
		WorkingDays:    []int{1},
		DailyPeriods:   2,
		ForbiddenSlots: []ForbiddenSlot{{DayOfWeek: 1, Periods: []int{1}}},
	}}
	engine := New(rules, nil)
	result := engine.Solve([]ScheduleVariable{v}, nil, smallCfg(), Collaborators{})

	a, ok := result.ScheduleState.Assignments["a0000001"]
	if !ok {
		t.Fatalf("expected the variable to be assigned")
	}
	if a.TimeSlot != (TimeSlot{DayOfWeek: 1, Period: 2}) {
		t.Fatalf("expected assignment at (Mon,2), got %+v", a.TimeSlot)
	}
	if result.Statistics.HardViolationCount != 0 {
		t.Fatalf("expected 0 hard violations, got %d", result.Statistics.HardViolationCount)
	}
}

// TestSolveCoreGoldenTimePreference is scenario S5: one core variable with
// domain {(Mon,1),(Mon,7)}. Period 1 is golden time, period 7 is not, and
// nothing else competes for either slot, so the golden slot must win and
// score strictly higher than the non-golden alternative would have.
func TestSolveCoreGoldenTimePreference(t *testing.T) {
	domain := []TimeSlot{{DayOfWeek: 1, Period: 1}, {DayOfWeek: 1, Period: 7}}
	v := baseVariable("a0000001", "c1", "math1", "t1", domain)
	v.SubjectName = "Math"
	v.Priority = 9

	rules := Rules{Time: TimeRules{WorkingDays: []int{1}, DailyPeriods: 7}}
	engine := New(rules, nil)
	result := engine.Solve([]ScheduleVariable{v}, nil, smallCfg(), Collaborators{})

	a, ok := result.ScheduleState.Assignments["a0000001"]
	if !ok {
		t.Fatalf("expected the core variable to be assigned")
	}
	if a.TimeSlot.Period != 1 {
		t.Fatalf("expected the golden-time slot (Mon,1) to be preferred, got period %d", a.TimeSlot.Period)
	}

	altScore := float64(subjectProfileScore(&ScheduleVariable{IsCore: true}, TimeSlot{DayOfWeek: 1, Period: 7})) - 45
	if result.Statistics.TotalScore <= altScore {
		t.Fatalf("expected golden-slot score %v to strictly exceed the non-golden alternative %v", result.Statistics.TotalScore, altScore)
	}
}

// TestSolveNonCoreDailyCap is scenario S4: five 1-hour "Music" variables for
// the same class and teacher, each domain-restricted to Monday's 5 periods.
// The non-core daily cap allows at most one Music slot per class per day, so
// exactly one must be assigned and the other four must be left unassigned.
func TestSolveNonCoreDailyCap(t *testing.T) {
	domain := weekDomain([]int{1}, 5)
	ids := []string{"a0000001", "a0000002", "a0000003", "a0000004", "a0000005"}
	variables := make([]ScheduleVariable, 0, len(ids))
	for _, id := range ids {
		v := baseVariable(id, "c1", "music", "t1", domain)
		v.SubjectName = "Music"
		variables = append(variables, v)
	}

	rules := Rules{Time: TimeRules{WorkingDays: []int{1}, DailyPeriods: 5}}
	engine := New(rules, nil)
	result := engine.Solve(variables, nil, smallCfg(), Collaborators{})

	if result.Success {
		t.Fatalf("expected success=false when 4 of 5 variables must remain unassigned")
	}

	assignedCount := 0
	for _, id := range ids {
		if a, ok := result.ScheduleState.Assignments[id]; ok {
			assignedCount++
			if a.TimeSlot.DayOfWeek != 1 {
				t.Fatalf("expected the one assignment to fall on Monday, got %+v", a.TimeSlot)
			}
		}
	}
	if assignedCount != 1 {
		t.Fatalf("expected exactly 1 of the 5 same-day Music variables assigned, got %d", assignedCount)
	}
	if len(result.ScheduleState.Unassigned) != 4 {
		t.Fatalf("expected exactly 4 variables left unassigned, got %d: %v", len(result.ScheduleState.Unassigned), result.ScheduleState.Unassigned)
	}

	foundCap := false
	for _, v := range result.Violations {
		if v.Kind == KindNonCoreDailyCap {
			foundCap = true
		}
	}
	if !foundCap {
		t.Fatalf("expected at least one KindNonCoreDailyCap violation, got %+v", result.Violations)
	}

	assertPartitionInvariant(t, result, ids)
}

// TestSolveAllVariablesInvalid exercises the "invalid input" failure path
// (§7): when every variable is filtered out, Solve still never errors.
func TestSolveAllVariablesInvalid(t *testing.T) {
	v := ScheduleVariable{ID: "not-hex!"}
	rules := Rules{Time: TimeRules{WorkingDays: []int{1}, DailyPeriods: 1}}
	engine := New(rules, nil)

	result := engine.Solve([]ScheduleVariable{v}, nil, smallCfg(), Collaborators{})

	if result.Success {
		t.Fatalf("expected success=false when all variables are invalid")
	}
	if result.Message != "all variables invalid" {
		t.Fatalf("expected the documented 'all variables invalid' message, got %q", result.Message)
	}
}

// assertPartitionInvariant exercises invariant #1: every variable id is in
// exactly one of assignments or unassigned.
func assertPartitionInvariant(t *testing.T, result *SchedulingResult, ids []string) {
	t.Helper()
	unassigned := make(map[string]bool, len(result.ScheduleState.Unassigned))
	for _, id := range result.ScheduleState.Unassigned {
		unassigned[id] = true
	}
	for _, id := range ids {
		_, assigned := result.ScheduleState.Assignments[id]
		if assigned && unassigned[id] {
			t.Fatalf("variable %s is both assigned and unassigned", id)
		}
		if !assigned && !unassigned[id] {
			t.Fatalf("variable %s is neither assigned nor unassigned", id)
		}
	}
}

// TestSolveSuccessImpliesNoUnassignedOrHardViolations is invariant #5.
func TestSolveSuccessImpliesNoUnassignedOrHardViolations(t *testing.T) {
	domain := weekDomain([]int{1, 2, 3, 4, 5}, 8)
	v := baseVariable("a0000001", "c1", "course1", "t1", domain)

	rules := Rules{Time: TimeRules{WorkingDays: []int{1, 2, 3, 4, 5}, DailyPeriods: 8}}
	engine := New(rules, nil)
	result := engine.Solve([]ScheduleVariable{v}, nil, smallCfg(), Collaborators{})

	if !result.Success {
		t.Fatalf("expected this trivially feasible single-variable solve to succeed")
	}
	if len(result.ScheduleState.Unassigned) != 0 {
		t.Fatalf("success=true must imply unassigned=∅, got %v", result.ScheduleState.Unassigned)
	}
	if result.Statistics.HardViolationCount != 0 {
		t.Fatalf("success=true must imply 0 hard violations, got %d", result.Statistics.HardViolationCount)
	}
}

// TestSolvePopulatesIterations guards against the iteration count regressing
// to always-zero (the statistic must reflect real backtracking work).
func TestSolvePopulatesIterations(t *testing.T) {
	domain := weekDomain([]int{1, 2, 3, 4, 5}, 8)
	v := baseVariable("a0000001", "c1", "course1", "t1", domain)

	rules := Rules{Time: TimeRules{WorkingDays: []int{1, 2, 3, 4, 5}, DailyPeriods: 8}}
	engine := New(rules, nil)
	result := engine.Solve([]ScheduleVariable{v}, nil, smallCfg(), Collaborators{})

	if result.Statistics.Iterations < 1 {
		t.Fatalf("expected Statistics.Iterations to reflect at least one search iteration, got %d", result.Statistics.Iterations)
	}
}
