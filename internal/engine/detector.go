package engine

import (
	"sort"
	"strings"
)

// Concrete constraints implementing the catalogue in §4.2. Each one answers
// "does this candidate violate me, given the assignments already in ctx?"
// The detector never mutates state; Check is a pure function of its inputs.

type teacherClashConstraint struct{ baseConstraint }

func (c teacherClashConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	for _, a := range ctx.assignmentsAt(cand.Slot) {
		if a.VariableID == cand.Variable.ID {
			continue
		}
		if a.TeacherID == cand.Variable.TeacherID {
			return &ConstraintViolation{
				Kind: c.kind, Hard: true, Penalty: 1000,
				Variables: []string{cand.Variable.ID, a.VariableID},
				Message:   "teacher already teaches another class at this time",
			}
		}
	}
	return nil
}

type classClashConstraint struct{ baseConstraint }

func (c classClashConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	for _, a := range ctx.assignmentsAt(cand.Slot) {
		if a.VariableID == cand.Variable.ID {
			continue
		}
		if a.ClassID == cand.Variable.ClassID {
			return &ConstraintViolation{
				Kind: c.kind, Hard: true, Penalty: 1000,
				Variables: []string{cand.Variable.ID, a.VariableID},
				Message:   "class already has a lesson at this time",
			}
		}
	}
	return nil
}

type roomClashConstraint struct{ baseConstraint }

func (c roomClashConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if ctx.rules.Room.AllowRoomSharing || cand.RoomID == "" {
		return nil
	}
	if home, ok := ctx.homeroom(cand.Variable.ClassID); ok && home == cand.RoomID {
		// Homeroom exemption: class-clash coverage already forbids
		// double-booking this class, so sharing its own homeroom is fine.
		return nil
	}
	for _, a := range ctx.assignmentsAt(cand.Slot) {
		if a.VariableID == cand.Variable.ID {
			continue
		}
		if a.RoomID == cand.RoomID {
			return &ConstraintViolation{
				Kind: c.kind, Hard: true, Penalty: 1000,
				Variables: []string{cand.Variable.ID, a.VariableID},
				Message:   "room already occupied at this time",
			}
		}
	}
	return nil
}

type forbiddenTimeConstraint struct{ baseConstraint }

func (c forbiddenTimeConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if ctx.rules.Time.isForbidden(cand.Slot) {
		return &ConstraintViolation{
			Kind: c.kind, Hard: true, Penalty: 1000,
			Variables: []string{cand.Variable.ID},
			Message:   "slot is outside working hours or explicitly forbidden",
		}
	}
	return nil
}

type nonCoreDailyCapConstraint struct{ baseConstraint }

func (c nonCoreDailyCapConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if cand.Variable.IsCore {
		return nil
	}
	count := 0
	for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
		if a.VariableID == cand.Variable.ID {
			continue
		}
		if a.TimeSlot.DayOfWeek != cand.Slot.DayOfWeek {
			continue
		}
		if av := ctx.variable(a.VariableID); av != nil && av.CourseID == cand.Variable.CourseID {
			count++
		}
	}
	if count >= 1 {
		return &ConstraintViolation{
			Kind: c.kind, Hard: true, Penalty: 1000,
			Variables: []string{cand.Variable.ID},
			Message:   "non-core subject already scheduled for this class today",
		}
	}
	return nil
}

type peAdjacencyConstraint struct{ baseConstraint }

func isPE(v *ScheduleVariable) bool {
	return containsFold(v.SubjectName, "pe") || containsFold(v.SubjectName, "physical education") || containsFold(v.CourseName, "pe")
}

func (c peAdjacencyConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if !isPE(cand.Variable) {
		return nil
	}
	dailyCount := 0
	for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
		if a.VariableID == cand.Variable.ID || a.TimeSlot.DayOfWeek != cand.Slot.DayOfWeek {
			continue
		}
		av := ctx.variable(a.VariableID)
		if av == nil || !isPE(av) {
			continue
		}
		dailyCount++
		if abs(a.TimeSlot.Period-cand.Slot.Period) == 1 {
			return &ConstraintViolation{
				Kind: c.kind, Hard: true, Penalty: 1000,
				Variables: []string{cand.Variable.ID, a.VariableID},
				Message:   "physical education cannot run in adjacent periods for the same class",
			}
		}
	}
	if dailyCount >= 1 {
		return &ConstraintViolation{
			Kind: KindPEDailyCap, Hard: true, Penalty: 1000,
			Variables: []string{cand.Variable.ID},
			Message:   "physical education already scheduled for this class today",
		}
	}
	return nil
}

type coreHardDistributionConstraint struct{ baseConstraint }

func (c coreHardDistributionConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	strategy := ctx.rules.CourseArrangement.CoreSubjectStrategy
	if !strategy.Enable || !cand.Variable.IsCore {
		return nil
	}
	for _, p := range strategy.AvoidTimeSlots {
		if p == cand.Slot.Period {
			return &ConstraintViolation{
				Kind: c.kind, Hard: true, Penalty: 1000,
				Variables: []string{cand.Variable.ID},
				Message:   "core subject period falls in an avoided time slot",
			}
		}
	}
	dailyCount := 0
	for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
		if a.VariableID == cand.Variable.ID || a.TimeSlot.DayOfWeek != cand.Slot.DayOfWeek {
			continue
		}
		av := ctx.variable(a.VariableID)
		if av == nil || av.CourseID != cand.Variable.CourseID {
			continue
		}
		dailyCount++
		if abs(a.TimeSlot.DayOfWeek-cand.Slot.DayOfWeek) == 1 {
			return &ConstraintViolation{
				Kind: c.kind, Hard: true, Penalty: 1000,
				Variables: []string{cand.Variable.ID, a.VariableID},
				Message:   "same core subject on directly adjacent weekdays",
			}
		}
	}
	if strategy.MaxDailyOccurrences > 0 && dailyCount >= strategy.MaxDailyOccurrences {
		return &ConstraintViolation{
			Kind: c.kind, Hard: true, Penalty: 1000,
			Variables: []string{cand.Variable.ID},
			Message:   "core subject exceeds max daily occurrences",
		}
	}
	return nil
}

type roomRequirementConstraint struct{ baseConstraint }

func (c roomRequirementConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if cand.Variable.RoomRequirement.empty() || cand.RoomID == "" {
		return nil
	}
	room, ok := ctx.room(cand.RoomID)
	if !ok || !room.satisfies(cand.Variable.RoomRequirement) {
		return &ConstraintViolation{
			Kind: c.kind, Hard: true, Penalty: 1000,
			Variables: []string{cand.Variable.ID},
			Message:   "assigned room does not satisfy capacity/equipment/type requirement",
		}
	}
	return nil
}

// --- soft constraints ---

type teacherWorkloadConstraint struct{ weighted }

func (c teacherWorkloadConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	dailyCount := 0
	continuousRun := 1
	periods := []int{cand.Slot.Period}
	for _, a := range ctx.teacherAssignments(cand.Variable.TeacherID) {
		if a.VariableID == cand.Variable.ID || a.TimeSlot.DayOfWeek != cand.Slot.DayOfWeek {
			continue
		}
		dailyCount++
		periods = append(periods, a.TimeSlot.Period)
	}
	continuousRun = longestRun(periods)
	max := ctx.rules.Teacher.MaxDailyHours
	maxCont := ctx.rules.Teacher.MaxContinuousHours
	if max > 0 && dailyCount+1 > max {
		return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "teacher daily load above configured max"}
	}
	if maxCont > 0 && continuousRun > maxCont {
		return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "teacher continuous run above configured max"}
	}
	return nil
}

type timePreferenceConstraint struct{ weighted }

func (c timePreferenceConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if len(cand.Variable.Preferences) == 0 {
		return nil
	}
	for _, p := range cand.Variable.Preferences {
		if p == cand.Slot {
			return nil
		}
	}
	return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "assigned slot is not one of the variable's preferred slots"}
}

type subjectRuleConstraint struct{ weighted }

func (c subjectRuleConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if !ctx.rules.CourseArrangement.EnableSubjectConstraints {
		return nil
	}
	rule := ctx.rules.CourseArrangement.ruleFor(cand.Variable.SubjectName)
	if rule == nil {
		return nil
	}
	dailyCount := 0
	for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
		if a.VariableID == cand.Variable.ID {
			continue
		}
		av := ctx.variable(a.VariableID)
		if av == nil || av.SubjectName != cand.Variable.SubjectName {
			continue
		}
		if a.TimeSlot.DayOfWeek == cand.Slot.DayOfWeek {
			dailyCount++
			if rule.AvoidConsecutive && abs(a.TimeSlot.Period-cand.Slot.Period) == 1 {
				return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID, a.VariableID}, Message: "subject scheduled on consecutive periods"}
			}
		}
		if rule.MinInterval > 0 && a.TimeSlot.DayOfWeek == cand.Slot.DayOfWeek {
			if abs(a.TimeSlot.Period-cand.Slot.Period) < rule.MinInterval {
				return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID, a.VariableID}, Message: "subject interval below configured minimum"}
			}
		}
	}
	if rule.MaxDailyOccurrences > 0 && dailyCount >= rule.MaxDailyOccurrences {
		return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "subject exceeds max daily occurrences"}
	}
	if rule.Special != nil && rule.Special.RequiresRest {
		for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
			if a.VariableID == cand.Variable.ID || a.TimeSlot.DayOfWeek != cand.Slot.DayOfWeek {
				continue
			}
			av := ctx.variable(a.VariableID)
			if av == nil || av.SubjectName != cand.Variable.SubjectName {
				continue
			}
			if abs(a.TimeSlot.Period-cand.Slot.Period) < rule.Special.MinRestPeriods {
				return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID, a.VariableID}, Message: "rest-period requirement not satisfied"}
			}
		}
	}
	return nil
}

type artLabAdjacencyConstraint struct{ weighted }

func (c artLabAdjacencyConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	isArt := containsFold(cand.Variable.SubjectName, "art")
	isLab := containsFold(cand.Variable.SubjectName, "lab") || containsFold(cand.Variable.SubjectName, "experiment")
	if !isArt && !isLab {
		return nil
	}
	for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
		if a.VariableID == cand.Variable.ID || a.TimeSlot.DayOfWeek != cand.Slot.DayOfWeek {
			continue
		}
		av := ctx.variable(a.VariableID)
		if av == nil {
			continue
		}
		if isArt && av.IsCore && abs(a.TimeSlot.Period-cand.Slot.Period) == 1 {
			return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID, a.VariableID}, Message: "art not adjacent to a core lesson"}
		}
		if isLab && av.CourseID == cand.Variable.CourseID && a.TimeSlot.Period >= cand.Slot.Period {
			return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID, a.VariableID}, Message: "lab should trail its theory lesson on the same day"}
		}
	}
	return nil
}

type coreGoldenTimeConstraint struct{ weighted }

func (c coreGoldenTimeConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if !cand.Variable.IsCore {
		return nil
	}
	if isGoldenPeriod(cand.Slot.Period) {
		return nil
	}
	return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "core subject placed outside golden time"}
}

type coreSoftDistributionConstraint struct{ weighted }

func (c coreSoftDistributionConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	if !cand.Variable.IsCore {
		return nil
	}
	days := map[int]bool{cand.Slot.DayOfWeek: true}
	for _, a := range ctx.classAssignments(cand.Variable.ClassID) {
		av := ctx.variable(a.VariableID)
		if av == nil || av.CourseID != cand.Variable.CourseID {
			continue
		}
		days[a.TimeSlot.DayOfWeek] = true
	}
	if len(days) < 3 && cand.Variable.RequiredHours > 2 {
		return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "core subject concentrated on too few distinct days"}
	}
	return nil
}

type teacherRotationConstraint struct{ weighted }

func (c teacherRotationConstraint) Check(cand Candidate, ctx *searchContext) *ConstraintViolation {
	rot := ctx.rules.Teacher.Rotation
	if !rot.Enable {
		return nil
	}
	state := ctx.rotationFor(cand.Variable.TeacherID)
	if state == nil {
		return nil
	}
	if rot.RoundCompletion && !state.RoundComplete(cand.Variable.ClassID) {
		return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "rotation round not yet complete for this class"}
	}
	if rot.MinIntervalBetweenClasses > 0 {
		for _, a := range ctx.teacherAssignments(cand.Variable.TeacherID) {
			if a.ClassID != cand.Variable.ClassID || a.VariableID == cand.Variable.ID {
				continue
			}
			interval := dayDistance(a.TimeSlot, cand.Slot)
			if interval < rot.MinIntervalBetweenClasses {
				return &ConstraintViolation{Kind: c.kind, Hard: false, Penalty: c.penalty, Variables: []string{cand.Variable.ID}, Message: "interval between same-class assignments below configured minimum"}
			}
		}
	}
	return nil
}

// BuildConstraints instantiates the full catalogue, bound to rules.
func BuildConstraints(rules Rules) []Constraint {
	return []Constraint{
		teacherClashConstraint{baseConstraint{KindTeacherClash, true}},
		classClashConstraint{baseConstraint{KindClassClash, true}},
		roomClashConstraint{baseConstraint{KindRoomClash, true}},
		forbiddenTimeConstraint{baseConstraint{KindForbiddenTime, true}},
		nonCoreDailyCapConstraint{baseConstraint{KindNonCoreDailyCap, true}},
		peAdjacencyConstraint{baseConstraint{KindPEAdjacency, true}},
		coreHardDistributionConstraint{baseConstraint{KindCoreDistribution, true}},
		roomRequirementConstraint{baseConstraint{KindRoomRequirement, true}},

		teacherWorkloadConstraint{weighted{baseConstraint{KindTeacherWorkload, false}, 60}},
		timePreferenceConstraint{weighted{baseConstraint{KindTimePreference, false}, 40}},
		subjectRuleConstraint{weighted{baseConstraint{KindSubjectRule, false}, 50}},
		artLabAdjacencyConstraint{weighted{baseConstraint{KindArtLabAdjacency, false}, 30}},
		coreGoldenTimeConstraint{weighted{baseConstraint{KindCoreGoldenTime, false}, 45}},
		coreSoftDistributionConstraint{weighted{baseConstraint{KindCoreSoftDistribution, false}, 35}},
		teacherRotationConstraint{weighted{baseConstraint{KindTeacherRotation, false}, 20}},
	}
}

// Detector evaluates a candidate against the full constraint catalogue.
type Detector struct {
	constraints []Constraint
}

// NewDetector builds a detector bound to rules's constraint catalogue.
func NewDetector(rules Rules) *Detector {
	return &Detector{constraints: BuildConstraints(rules)}
}

// Detect returns every violation a candidate triggers; an empty slice means
// the candidate is clean.
func (d *Detector) Detect(cand Candidate, ctx *searchContext) []ConstraintViolation {
	var violations []ConstraintViolation
	for _, c := range d.constraints {
		if v := c.Check(cand, ctx); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

// HasHardViolation reports whether any hard constraint rejects the candidate.
func (d *Detector) HasHardViolation(cand Candidate, ctx *searchContext) (bool, *ConstraintViolation) {
	for _, c := range d.constraints {
		if !c.IsHard() {
			continue
		}
		if v := c.Check(cand, ctx); v != nil {
			return true, v
		}
	}
	return false, nil
}

// --- small numeric/string helpers shared by constraints ---

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func isGoldenPeriod(period int) bool {
	return (period >= 1 && period <= 4) || period == 5 || period == 6
}

func dayDistance(a, b TimeSlot) int {
	return abs(a.DayOfWeek-b.DayOfWeek)*10 + abs(a.Period-b.Period)
}

func longestRun(periods []int) int {
	if len(periods) == 0 {
		return 0
	}
	sorted := append([]int(nil), periods...)
	sort.Ints(sorted)
	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			continue
		}
		if sorted[i] == sorted[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
