package engine

// RotationSnapshot is the read-only view of a teacher's rotation state
// exposed to progress callbacks and the rotation-score heuristic.
type RotationSnapshot struct {
	Round        int
	Progress     map[string]int
	RoundComplete map[string]bool
	LastClass    string
}

// TeacherRotationState tracks, for one teacher, which classes in their
// rotation have been visited during the current round.
type TeacherRotationState struct {
	TeacherID  string
	Round      int
	ClassOrder []string
	progress   map[string]int
	LastClass  string
}

// NewTeacherRotationState builds rotation state for a teacher visiting
// classOrder, in rotation order, starting at round 1.
func NewTeacherRotationState(teacherID string, classOrder []string) *TeacherRotationState {
	progress := make(map[string]int, len(classOrder))
	for _, c := range classOrder {
		progress[c] = 0
	}
	return &TeacherRotationState{
		TeacherID:  teacherID,
		Round:      1,
		ClassOrder: classOrder,
		progress:   progress,
	}
}

func (t *TeacherRotationState) minProgress() int {
	min := -1
	for _, c := range t.ClassOrder {
		p := t.progress[c]
		if min == -1 || p < min {
			min = p
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

func (t *TeacherRotationState) maxProgress() int {
	max := 0
	for _, c := range t.ClassOrder {
		if t.progress[c] > max {
			max = t.progress[c]
		}
	}
	return max
}

// Assign advances progress for classID and transitions the round forward
// when every class in rotation has reached the current round.
func (t *TeacherRotationState) Assign(classID string) {
	t.progress[classID]++
	t.LastClass = classID
	if t.minProgress() >= t.Round {
		t.Round++
	}
}

// Undo reverts progress for classID (never below 0) and steps the round
// back by one (never below 1) once no class's progress reaches the current
// round. This reverts a round advance made by the undone Assign. It is not
// an exact inverse when every class was already below the round before
// that Assign (as right after a round advance): the round steps back then
// as well.
func (t *TeacherRotationState) Undo(classID string) {
	if t.progress[classID] > 0 {
		t.progress[classID]--
	}
	if t.maxProgress() < t.Round && t.Round > 1 {
		t.Round--
	}
}

// RoundComplete reports whether classID has met the current round's quota.
func (t *TeacherRotationState) RoundComplete(classID string) bool {
	return t.progress[classID] >= t.Round
}

// Progress returns how many times classID has been visited this round.
func (t *TeacherRotationState) Progress(classID string) int {
	return t.progress[classID]
}

// Snapshot produces the read-only view handed to progress callbacks.
func (t *TeacherRotationState) Snapshot() RotationSnapshot {
	progress := make(map[string]int, len(t.progress))
	complete := make(map[string]bool, len(t.progress))
	for k, v := range t.progress {
		progress[k] = v
		complete[k] = v >= t.Round
	}
	return RotationSnapshot{
		Round:         t.Round,
		Progress:      progress,
		RoundComplete: complete,
		LastClass:     t.LastClass,
	}
}
