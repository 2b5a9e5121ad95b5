package engine

import (
	"testing"

	"go.uber.org/zap"
)

func newTestContext(rules Rules, variables []ScheduleVariable) *searchContext {
	return newSearchContext(rules, smallCfg(), Collaborators{}, zap.NewNop(), variables, nil, StageMonolithic)
}

func defaultTestRules() Rules {
	return Rules{
		Time: TimeRules{WorkingDays: []int{1, 2, 3, 4, 5}, DailyPeriods: 8},
	}
}

func TestTeacherClashConstraintDetectsSharedSlot(t *testing.T) {
	v1 := baseVariable("a0000001", "c1", "course1", "t1", nil)
	v2 := baseVariable("a0000002", "c2", "course2", "t1", nil)
	ctx := newTestContext(defaultTestRules(), []ScheduleVariable{v1, v2})

	ctx.assign(ctx.variable("a0000001"), TimeSlot{DayOfWeek: 1, Period: 1}, "")

	cand := Candidate{Variable: ctx.variable("a0000002"), Slot: TimeSlot{DayOfWeek: 1, Period: 1}}
	c := teacherClashConstraint{baseConstraint{KindTeacherClash, true}}

	violation := c.Check(cand, ctx)
	if violation == nil {
		t.Fatalf("expected a teacher-clash violation")
	}
	if violation.Kind != KindTeacherClash || !violation.Hard {
		t.Fatalf("expected a hard KindTeacherClash violation, got %+v", violation)
	}
}

func TestTeacherClashConstraintAllowsDistinctTeachers(t *testing.T) {
	v1 := baseVariable("a0000001", "c1", "course1", "t1", nil)
	v2 := baseVariable("a0000002", "c2", "course2", "t2", nil)
	ctx := newTestContext(defaultTestRules(), []ScheduleVariable{v1, v2})
	ctx.assign(ctx.variable("a0000001"), TimeSlot{DayOfWeek: 1, Period: 1}, "")

	cand := Candidate{Variable: ctx.variable("a0000002"), Slot: TimeSlot{DayOfWeek: 1, Period: 1}}
	c := teacherClashConstraint{baseConstraint{KindTeacherClash, true}}

	if v := c.Check(cand, ctx); v != nil {
		t.Fatalf("expected no violation for distinct teachers, got %+v", v)
	}
}

func TestClassClashConstraintDetectsSharedSlot(t *testing.T) {
	v1 := baseVariable("a0000001", "c1", "course1", "t1", nil)
	v2 := baseVariable("a0000002", "c1", "course2", "t2", nil)
	ctx := newTestContext(defaultTestRules(), []ScheduleVariable{v1, v2})
	ctx.assign(ctx.variable("a0000001"), TimeSlot{DayOfWeek: 1, Period: 1}, "")

	cand := Candidate{Variable: ctx.variable("a0000002"), Slot: TimeSlot{DayOfWeek: 1, Period: 1}}
	c := classClashConstraint{baseConstraint{KindClassClash, true}}

	violation := c.Check(cand, ctx)
	if violation == nil || violation.Kind != KindClassClash {
		t.Fatalf("expected a KindClassClash violation, got %+v", violation)
	}
}

func TestForbiddenTimeConstraint(t *testing.T) {
	rules := Rules{Time: TimeRules{
		WorkingDays:    []int{1},
		DailyPeriods:   2,
		ForbiddenSlots: []ForbiddenSlot{{DayOfWeek: 1, Periods: []int{1}}},
	}}
	v := baseVariable("a0000001", "c1", "course1", "t1", nil)
	ctx := newTestContext(rules, []ScheduleVariable{v})
	c := forbiddenTimeConstraint{baseConstraint{KindForbiddenTime, true}}

	forbidden := Candidate{Variable: ctx.variable("a0000001"), Slot: TimeSlot{DayOfWeek: 1, Period: 1}}
	if v := c.Check(forbidden, ctx); v == nil {
		t.Fatalf("expected forbidden slot to be rejected")
	}

	allowed := Candidate{Variable: ctx.variable("a0000001"), Slot: TimeSlot{DayOfWeek: 1, Period: 2}}
	if v := c.Check(allowed, ctx); v != nil {
		t.Fatalf("expected non-forbidden slot to pass, got %+v", v)
	}
}

// TestNonCoreDailyCapConstraint exercises invariant #4: a non-core subject
// may appear at most once per class per day.
func TestNonCoreDailyCapConstraint(t *testing.T) {
	v1 := baseVariable("a0000001", "c1", "music", "t1", nil)
	v1.SubjectName = "Music"
	v2 := baseVariable("a0000002", "c1", "music", "t1", nil)
	v2.SubjectName = "Music"
	ctx := newTestContext(defaultTestRules(), []ScheduleVariable{v1, v2})
	ctx.assign(ctx.variable("a0000001"), TimeSlot{DayOfWeek: 1, Period: 1}, "")

	c := nonCoreDailyCapConstraint{baseConstraint{KindNonCoreDailyCap, true}}
	cand := Candidate{Variable: ctx.variable("a0000002"), Slot: TimeSlot{DayOfWeek: 1, Period: 5}}

	violation := c.Check(cand, ctx)
	if violation == nil || violation.Kind != KindNonCoreDailyCap {
		t.Fatalf("expected a KindNonCoreDailyCap violation, got %+v", violation)
	}
}

func TestNonCoreDailyCapConstraintSkipsCoreVariables(t *testing.T) {
	v1 := baseVariable("a0000001", "c1", "math", "t1", nil)
	v1.SubjectName = "Math"
	v1.IsCore = true
	v2 := baseVariable("a0000002", "c1", "math", "t1", nil)
	v2.SubjectName = "Math"
	v2.IsCore = true
	ctx := newTestContext(defaultTestRules(), []ScheduleVariable{v1, v2})
	ctx.assign(ctx.variable("a0000001"), TimeSlot{DayOfWeek: 1, Period: 1}, "")

	c := nonCoreDailyCapConstraint{baseConstraint{KindNonCoreDailyCap, true}}
	cand := Candidate{Variable: ctx.variable("a0000002"), Slot: TimeSlot{DayOfWeek: 1, Period: 5}}

	if v := c.Check(cand, ctx); v != nil {
		t.Fatalf("expected core variables to be exempt from the non-core cap, got %+v", v)
	}
}

func TestDetectorHasHardViolationStopsAtFirstHardHit(t *testing.T) {
	v1 := baseVariable("a0000001", "c1", "course1", "t1", nil)
	v2 := baseVariable("a0000002", "c1", "course2", "t1", nil)
	rules := defaultTestRules()
	ctx := newTestContext(rules, []ScheduleVariable{v1, v2})
	ctx.detector = NewDetector(rules)
	ctx.assign(ctx.variable("a0000001"), TimeSlot{DayOfWeek: 1, Period: 1}, "")

	hard, violation := ctx.detector.HasHardViolation(Candidate{Variable: ctx.variable("a0000002"), Slot: TimeSlot{DayOfWeek: 1, Period: 1}}, ctx)
	if !hard || violation == nil || violation.Kind != KindTeacherClash {
		t.Fatalf("expected the first hard check in the catalogue (teacher clash) for a double-booked teacher and class, got %+v", violation)
	}
}
