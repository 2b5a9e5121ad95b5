package engine

// RotationMode controls how a teacher's rotation-friendliness score is computed.
type RotationMode string

const (
	RotationRoundRobin RotationMode = "round_robin"
	RotationBalanced   RotationMode = "balanced"
)

// RotationOrder controls the order in which a teacher's classes are visited.
type RotationOrder string

const (
	RotationAlphabetical RotationOrder = "alphabetical"
	RotationGradeBased   RotationOrder = "grade_based"
	RotationCustom       RotationOrder = "custom"
)

// TeacherRotationRules configures the per-teacher rotation heuristic and soft
// constraint.
type TeacherRotationRules struct {
	Enable                    bool
	Order                     RotationOrder
	CustomOrder               []string
	Mode                      RotationMode
	RoundCompletion           bool
	MinIntervalBetweenClasses int
	MaxConsecutiveClasses     int
}

// TeacherRules bounds teacher workload.
type TeacherRules struct {
	MaxDailyHours     int
	MaxContinuousHours int
	Rotation          TeacherRotationRules
}

// TimeRules configures the working week shape.
type TimeRules struct {
	WorkingDays    []int // subset of 1..7
	DailyPeriods   int
	ForbiddenSlots []ForbiddenSlot
}

// ForbiddenSlot marks periods within a day that may never be scheduled.
type ForbiddenSlot struct {
	DayOfWeek int
	Periods   []int
}

func (t TimeRules) isWorkingDay(day int) bool {
	for _, d := range t.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

func (t TimeRules) isForbidden(slot TimeSlot) bool {
	if !t.isWorkingDay(slot.DayOfWeek) {
		return true
	}
	if slot.Period < 1 || slot.Period > t.DailyPeriods {
		return true
	}
	for _, f := range t.ForbiddenSlots {
		if f.DayOfWeek != slot.DayOfWeek {
			continue
		}
		for _, p := range f.Periods {
			if p == slot.Period {
				return true
			}
		}
	}
	return false
}

// RoomRules configures room-sharing policy.
type RoomRules struct {
	AllowRoomSharing bool
}

// CoreSubjectStrategy governs the hard/soft distribution rules for core
// subjects.
type CoreSubjectStrategy struct {
	Enable            bool
	MaxDailyOccurrences int
	AvoidTimeSlots    []int // periods, e.g. golden-time exclusions
}

// SpecialConstraints describes rest-period requirements for subjects such as
// physical education.
type SpecialConstraints struct {
	RequiresRest   bool
	MinRestPeriods int
}

// SubjectRule is a per-subject distribution rule.
type SubjectRule struct {
	SubjectName        string
	AvoidConsecutive   bool
	MinInterval        int
	MaxDailyOccurrences int
	Special            *SpecialConstraints
}

// CourseArrangementRules bundles subject-distribution rules.
type CourseArrangementRules struct {
	EnableSubjectConstraints bool
	SubjectSpecificRules     []SubjectRule
	CoreSubjectStrategy      CoreSubjectStrategy
}

func (c CourseArrangementRules) ruleFor(subjectName string) *SubjectRule {
	for i := range c.SubjectSpecificRules {
		if c.SubjectSpecificRules[i].SubjectName == subjectName {
			return &c.SubjectSpecificRules[i]
		}
	}
	return nil
}

// Rules is the read-only configuration bundle shared immutably across a solve.
type Rules struct {
	Time             TimeRules
	Teacher          TeacherRules
	Room             RoomRules
	CourseArrangement CourseArrangementRules

	// CoreSubjectNames and their common aliases, consulted by the classifier.
	CoreSubjectNames []string
}

// DebugLevel controls how verbosely the engine logs candidate rejections.
type DebugLevel string

const (
	DebugNone     DebugLevel = "none"
	DebugMinimal  DebugLevel = "minimal"
	DebugDetailed DebugLevel = "detailed"
)

// AlgorithmConfig tunes search behaviour.
type AlgorithmConfig struct {
	MaxIterations              int
	TimeLimitSeconds           int
	BacktrackLimit             int
	RandomSeed                 *int64
	EnableLocalOptimization    bool
	LocalOptimizationIterations int
	Verbose                    bool
	DebugLevel                 DebugLevel
}

// DefaultAlgorithmConfig returns sane defaults matching the staged
// controller's documented budgets for a monolithic pass.
func DefaultAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		MaxIterations:               8000,
		TimeLimitSeconds:            180,
		BacktrackLimit:              50000,
		EnableLocalOptimization:     true,
		LocalOptimizationIterations: 200,
		DebugLevel:                  DebugMinimal,
	}
}

// ProgressStage names the phase a progress callback invocation describes.
type ProgressStage string

const (
	StageCore       ProgressStage = "core"
	StageGeneral    ProgressStage = "general"
	StageMonolithic ProgressStage = "monolithic"
	StageOptimize   ProgressStage = "optimize"
)

// ProgressUpdate is delivered synchronously at the engine's cooperative
// points. The callback must not re-enter the engine.
type ProgressUpdate struct {
	Stage         ProgressStage
	Percentage    float64
	Message       string
	AssignedCount int
	TotalCount    int
	RotationData  map[string]RotationSnapshot
}

// ProgressCallback is invoked synchronously; it must not re-enter the engine.
type ProgressCallback func(ProgressUpdate)

// RoomResolver returns a class's homeroom id, if any. The engine fans out to
// this hook when selecting rooms; a returned error is treated as a
// transient, unresolved lookup (see searchContext.homeroom).
type RoomResolver func(classID string) (roomID string, ok bool, err error)

// NameResolver maps a course id to a human-readable subject name. The
// engine does not call it and runs no preload pass; classification reads
// only the SubjectName/CourseName already set on each variable.
type NameResolver func(courseID string) (subjectName string, ok bool)

// Collaborators bundles the hooks the engine consumes from its caller.
type Collaborators struct {
	Progress     ProgressCallback
	ResolveRoom  RoomResolver
	ResolveName  NameResolver
	Rooms        []Room
}
