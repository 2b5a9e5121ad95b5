package engine

import "testing"

func TestTeacherRotationStateAssignAdvancesRound(t *testing.T) {
	rot := NewTeacherRotationState("t1", []string{"c1", "c2", "c3"})
	if rot.Round != 1 {
		t.Fatalf("expected initial round 1, got %d", rot.Round)
	}

	rot.Assign("c1")
	rot.Assign("c2")
	if rot.Round != 1 {
		t.Fatalf("round should not advance until every class reaches it, got %d", rot.Round)
	}

	rot.Assign("c3")
	if rot.Round != 2 {
		t.Fatalf("expected round to advance to 2 once every class reached round 1, got %d", rot.Round)
	}
}

// TestTeacherRotationStateUndoIsExactInverse exercises invariant #6 (assign/
// undo symmetry) against the rotation state machine specifically.
func TestTeacherRotationStateUndoIsExactInverse(t *testing.T) {
	rot := NewTeacherRotationState("t1", []string{"c1", "c2", "c3"})
	rot.Assign("c1")
	rot.Assign("c2")

	snapshotRound := rot.Round
	snapshotProgress := map[string]int{"c1": rot.Progress("c1"), "c2": rot.Progress("c2"), "c3": rot.Progress("c3")}

	rot.Assign("c3") // advances the round
	rot.Undo("c3")

	if rot.Round != snapshotRound {
		t.Fatalf("expected round to revert to %d, got %d", snapshotRound, rot.Round)
	}
	for class, want := range snapshotProgress {
		if got := rot.Progress(class); got != want {
			t.Fatalf("expected progress[%s]=%d after undo, got %d", class, want, got)
		}
	}
}

// TestTeacherRotationStateRotationLaw exercises invariant #9 after every
// Assign: round >= 1, and while min(progress) is below the round, no class
// whose own progress is below the round reports RoundComplete.
func TestTeacherRotationStateRotationLaw(t *testing.T) {
	rot := NewTeacherRotationState("t1", []string{"c1", "c2", "c3"})
	sequence := []string{"c1", "c2", "c1", "c3", "c2", "c3", "c1"}

	for _, class := range sequence {
		rot.Assign(class)

		if rot.Round < 1 {
			t.Fatalf("round must never drop below 1, got %d", rot.Round)
		}

		min := rot.Progress("c1")
		for _, c := range []string{"c2", "c3"} {
			if p := rot.Progress(c); p < min {
				min = p
			}
		}

		if min < rot.Round {
			for _, c := range []string{"c1", "c2", "c3"} {
				if rot.Progress(c) < rot.Round && rot.RoundComplete(c) {
					t.Fatalf("class %s reports RoundComplete with progress %d < round %d", c, rot.Progress(c), rot.Round)
				}
			}
		}
	}
}

func TestTeacherRotationStateSnapshotReflectsRoundCompletion(t *testing.T) {
	rot := NewTeacherRotationState("t1", []string{"c1", "c2"})
	rot.Assign("c1")

	snap := rot.Snapshot()
	if !snap.RoundComplete["c1"] {
		t.Fatalf("c1 should be round-complete after its one visit in round 1")
	}
	if snap.RoundComplete["c2"] {
		t.Fatalf("c2 should not be round-complete while still at progress 0")
	}
	if snap.LastClass != "c1" {
		t.Fatalf("expected LastClass c1, got %s", snap.LastClass)
	}
}
