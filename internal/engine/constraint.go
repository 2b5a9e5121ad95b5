package engine

// ConstraintKind is a native sum type standing in for the source's
// string-typed constraint tags ('hard_teacher_conflict' vs
// 'HARD_TEACHER_CONFLICT' and similar). Kinds are opaque; nothing in the
// engine branches on their string form.
type ConstraintKind int

const (
	KindTeacherClash ConstraintKind = iota
	KindClassClash
	KindRoomClash
	KindForbiddenTime
	KindNonCoreDailyCap
	KindPEAdjacency
	KindPEDailyCap
	KindCoreDistribution
	KindRoomRequirement

	KindTeacherWorkload
	KindTimePreference
	KindSubjectRule
	KindArtLabAdjacency
	KindCoreGoldenTime
	KindCoreSoftDistribution
	KindTeacherRotation
)

func (k ConstraintKind) String() string {
	names := [...]string{
		"teacher_clash", "class_clash", "room_clash", "forbidden_time",
		"non_core_daily_cap", "pe_adjacency", "pe_daily_cap", "core_distribution",
		"room_requirement", "teacher_workload", "time_preference", "subject_rule",
		"art_lab_adjacency", "core_golden_time", "core_soft_distribution", "teacher_rotation",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "unknown"
	}
	return names[k]
}

// Candidate is the (variable, slot, room) triple a constraint evaluates.
type Candidate struct {
	Variable *ScheduleVariable
	Slot     TimeSlot
	RoomID   string
}

// Constraint is the tagged-sum dispatch target: every hard and soft rule in
// §4.2 implements Check against a candidate assignment and the state it
// would be added to. A nil return means no violation.
type Constraint interface {
	Kind() ConstraintKind
	IsHard() bool
	Check(cand Candidate, ctx *searchContext) *ConstraintViolation
}

// baseConstraint factors the Kind/IsHard bookkeeping shared by every
// concrete constraint.
type baseConstraint struct {
	kind ConstraintKind
	hard bool
}

func (b baseConstraint) Kind() ConstraintKind { return b.kind }
func (b baseConstraint) IsHard() bool         { return b.hard }

// weighted carries the fixed penalty used by soft constraints.
type weighted struct {
	baseConstraint
	penalty int
}
