package engine

import "testing"

func TestClassifyBySubjectAlias(t *testing.T) {
	v := baseVariable("a0000001", "c1", "math101", "t1", nil)
	v.SubjectName = "Math"

	core, general, ok := Classify([]ScheduleVariable{v}, nil)
	if !ok {
		t.Fatalf("expected ok=true, at least one core variable")
	}
	if len(core) != 1 || len(general) != 0 {
		t.Fatalf("expected 1 core / 0 general, got %d core / %d general", len(core), len(general))
	}
	if !core[0].IsCore {
		t.Fatalf("expected classified variable to have IsCore=true")
	}
}

func TestClassifyByConfiguredCoreNames(t *testing.T) {
	v := baseVariable("a0000001", "c1", "course1", "t1", nil)
	v.SubjectName = "Woodworking"

	_, general, ok := Classify([]ScheduleVariable{v}, []string{"woodworking"})
	if !ok {
		t.Fatalf("expected configured core name to classify as core")
	}
	if len(general) != 0 {
		t.Fatalf("expected no general variables, got %d", len(general))
	}
}

func TestClassifyByHighPriority(t *testing.T) {
	v := baseVariable("a0000001", "c1", "course1", "t1", nil)
	v.SubjectName = "Woodworking"
	v.Priority = 8

	core, _, ok := Classify([]ScheduleVariable{v}, nil)
	if !ok || len(core) != 1 {
		t.Fatalf("expected priority>=8 to classify as core regardless of subject name")
	}
}

func TestClassifyByIDHint(t *testing.T) {
	v := baseVariable("a0000001", "c1", "chi-101", "t1", nil)
	v.SubjectName = "Literature"

	core, _, ok := Classify([]ScheduleVariable{v}, nil)
	if !ok || len(core) != 1 {
		t.Fatalf("expected course-id hint 'chi' to classify as core")
	}
}

func TestClassifyFallsBackToGeneralWhenNothingQualifies(t *testing.T) {
	v := baseVariable("a0000001", "c1", "art1", "t1", nil)
	v.SubjectName = "Art"
	v.Priority = 2

	core, general, ok := Classify([]ScheduleVariable{v}, nil)
	if ok {
		t.Fatalf("expected ok=false when no variable qualifies as core")
	}
	if len(core) != 0 || len(general) != 1 {
		t.Fatalf("expected 0 core / 1 general, got %d core / %d general", len(core), len(general))
	}
}

func TestClassifyNeverMutatesInput(t *testing.T) {
	v := baseVariable("a0000001", "c1", "math1", "t1", nil)
	v.SubjectName = "Math"
	before := v.IsCore

	Classify([]ScheduleVariable{v}, nil)

	if v.IsCore != before {
		t.Fatalf("Classify must not mutate its input slice's IsCore field")
	}
}
