package engine

import (
	"sort"
	"strings"
)

// priorityScore implements the bucketed priority term of the MRV-plus
// formula: core subjects sort first, then decreasing priority buckets.
func priorityScore(v *ScheduleVariable) float64 {
	if v.IsCore {
		return 0
	}
	switch {
	case v.Priority >= 8:
		return 0
	case v.Priority == 6:
		return 20
	case v.Priority == 4:
		return 40
	case v.Priority == 2:
		return 60
	default:
		return 80
	}
}

func roomStringency(req RoomRequirement) float64 {
	var score float64
	if req.RoomType != "" {
		score += 20
	}
	if req.Capacity > 0 {
		score += 15
	}
	if len(req.Equipment) > 0 {
		score += 25
	}
	return score
}

func constraintDegree(v *ScheduleVariable, ctx *searchContext) float64 {
	score := float64(len(ctx.teacherAssignments(v.TeacherID))) * 10
	score += roomStringency(v.RoomRequirement)
	score += float64(len(v.Preferences)) * 5
	score += float64(len(v.Avoidances)) * 8
	if v.Continuous {
		score += 30
	}
	return score
}

func timeUrgency(v *ScheduleVariable) float64 {
	var score float64
	if len(v.Preferences) > 0 {
		score += 20
	}
	if len(v.Avoidances) > 0 {
		score += 25
	}
	if v.Continuous {
		score += 30
	}
	if v.TeacherID != "" {
		score += 15
	}
	return score
}

// variableScore implements the documented MRV-plus formula. Lower is
// selected first.
func variableScore(v *ScheduleVariable, ctx *searchContext) float64 {
	return 0.40*float64(len(v.Domain)) +
		0.25*priorityScore(v) +
		0.20*constraintDegree(v, ctx) +
		0.15*timeUrgency(v)
}

// selectVariable implements MRV-plus selection with a deterministic,
// stable tie-break by the variable's position in the original snapshot
// order (first minimal score wins, since we scan in that order).
func (ctx *searchContext) selectVariable() (string, bool) {
	return ctx.selectVariableExcluding(nil)
}

// selectVariableExcluding is selectVariable with a set of variable ids the
// caller has already given up on for this run (see runBacktrackingSearch's
// exhaustion handling), so they're never offered again.
func (ctx *searchContext) selectVariableExcluding(skip map[string]bool) (string, bool) {
	best := ""
	bestScore := 0.0
	found := false
	for _, id := range ctx.state.Unassigned {
		if skip[id] {
			continue
		}
		v := ctx.variable(id)
		if v == nil {
			continue
		}
		score := variableScore(v, ctx)
		if !found || score < bestScore {
			best, bestScore, found = id, score, true
		}
	}
	return best, found
}

// predictedAffected estimates how many other still-unassigned variables
// would lose slot from contention if v took it now, approximating the
// spec's "conflict prediction" signal.
func (ctx *searchContext) predictedAffected(v *ScheduleVariable, slot TimeSlot) int {
	count := 0
	for _, id := range ctx.state.Unassigned {
		if id == v.ID {
			continue
		}
		other := ctx.variable(id)
		if other == nil {
			continue
		}
		if other.TeacherID != v.TeacherID && other.ClassID != v.ClassID {
			continue
		}
		if other.hasDomainSlot(slot) {
			count++
		}
	}
	return count
}

type valueCandidate struct {
	Slot   TimeSlot
	RoomID string

	golden           bool
	conflicts        int
	consecutiveRatio float64
	rotationScore    float64
	preferenceScore  int
	profileScore     int
}

func slotIn(slots []TimeSlot, slot TimeSlot) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

func (ctx *searchContext) consecutiveAvailability(v *ScheduleVariable, slot TimeSlot) float64 {
	if v.RequiredHours <= 1 {
		return 1
	}
	need := v.RequiredHours - 1
	free := 0
	for step := 1; step <= need; step++ {
		candidate := TimeSlot{DayOfWeek: slot.DayOfWeek, Period: slot.Period + step}
		clash := false
		for _, a := range ctx.assignmentsAt(candidate) {
			if a.TeacherID == v.TeacherID || a.ClassID == v.ClassID {
				clash = true
				break
			}
		}
		if !clash {
			free++
		}
	}
	return float64(free) / float64(need)
}

func (ctx *searchContext) rotationFriendliness(v *ScheduleVariable) float64 {
	rot := ctx.rotationFor(v.TeacherID)
	if rot == nil {
		return 0
	}
	switch ctx.rules.Teacher.Rotation.Mode {
	case RotationBalanced:
		return -float64(rot.Progress(v.ClassID))
	default: // round_robin and unspecified
		if rot.RoundComplete(v.ClassID) {
			return 1
		}
		return 0
	}
}

func preferenceScore(v *ScheduleVariable, slot TimeSlot) int {
	if slotIn(v.Preferences, slot) {
		return 100
	}
	if slotIn(v.Avoidances, slot) {
		return -100
	}
	return 0
}

// subjectCategory classifies a variable into one of the subject-type
// preference profiles described in §4.3, or "" when none applies.
func subjectCategory(v *ScheduleVariable) string {
	if v.IsCore {
		return "core"
	}
	name := strings.ToLower(v.SubjectName + " " + v.CourseName)
	switch {
	case strings.Contains(name, "pe") || strings.Contains(name, "physical"):
		return "pe"
	case strings.Contains(name, "art"):
		return "art"
	case strings.Contains(name, "lab") || strings.Contains(name, "experiment"):
		return "lab"
	case strings.Contains(name, "language") || strings.Contains(name, "foreign"):
		return "foreign"
	case strings.Contains(name, "life skill") || strings.Contains(name, "class meeting") || strings.Contains(name, "homeroom"):
		return "lifeskills"
	default:
		return ""
	}
}

// subjectProfileScore implements the period-by-period point tables from
// §4.3's subject-type preference profiles.
func subjectProfileScore(v *ScheduleVariable, slot TimeSlot) int {
	p := slot.Period
	switch subjectCategory(v) {
	case "core":
		switch {
		case p == 1 || p == 2:
			return 150
		case p == 3:
			return 100
		case p == 4:
			return -20
		case p == 5:
			return 110
		case p == 6:
			return -15
		default:
			return -40
		}
	case "pe":
		switch {
		case p == 3 || p == 4 || p == 5 || p == 6:
			base := 100
			if v.Continuous {
				base += 50
			}
			return base
		case p == 2 || p == 7:
			return 70
		case p == 1, p == 8:
			if v.Continuous {
				return -1000
			}
			if p == 1 {
				return -80
			}
			return -90
		default:
			return 0
		}
	case "art":
		switch {
		case p == 3 || p == 4:
			return 80
		case p == 5 || p == 6:
			return 70
		case p == 1:
			return -30
		case p == 8:
			return -40
		default:
			return 0
		}
	case "lab":
		switch {
		case p >= 2 && p <= 4:
			return 90
		case p == 5:
			return 60
		case p == 1:
			return -50
		case p == 7 || p == 8:
			return -60
		default:
			return 0
		}
	case "foreign":
		switch {
		case p >= 1 && p <= 3:
			return 90
		case p == 4:
			return 70
		case p == 5:
			return 60
		case p >= 6:
			return -40
		default:
			return 0
		}
	case "lifeskills":
		switch {
		case p == 2 || p == 3:
			return 70
		case p == 5:
			return 60
		case p == 1 || p == 8:
			return -30
		default:
			return 0
		}
	default:
		return 0
	}
}

// buildValueCandidates computes and orders the candidate (slot, room) pairs
// for v per the §4.3 value-ordering rules. Candidates predicted to be
// critical-risk (affecting more than five other variables) are excluded
// entirely, matching the documented conflict-prediction cutoff.
func (ctx *searchContext) buildValueCandidates(v *ScheduleVariable) []valueCandidate {
	candidates := make([]valueCandidate, 0, len(v.Domain))
	for _, slot := range v.Domain {
		if ctx.predictedAffected(v, slot) > 5 {
			continue
		}
		roomID, ok := ctx.selectRoom(v, slot)
		if !ok {
			continue
		}
		conflicts := 0
		for _, a := range ctx.assignmentsAt(slot) {
			if a.TeacherID == v.TeacherID || a.ClassID == v.ClassID {
				conflicts++
			}
		}
		candidates = append(candidates, valueCandidate{
			Slot:             slot,
			RoomID:           roomID,
			golden:           v.IsCore && isGoldenPeriod(slot.Period),
			conflicts:        conflicts,
			consecutiveRatio: ctx.consecutiveAvailability(v, slot),
			rotationScore:    ctx.rotationFriendliness(v),
			preferenceScore:  preferenceScore(v, slot),
			profileScore:     subjectProfileScore(v, slot),
		})
	}
	sortValueCandidatesStable(candidates)
	return candidates
}

func betterCandidate(a, b valueCandidate) bool {
	if a.golden != b.golden {
		return a.golden
	}
	if a.conflicts != b.conflicts {
		return a.conflicts < b.conflicts
	}
	if a.consecutiveRatio != b.consecutiveRatio {
		return a.consecutiveRatio > b.consecutiveRatio
	}
	if a.rotationScore != b.rotationScore {
		return a.rotationScore > b.rotationScore
	}
	if a.preferenceScore != b.preferenceScore {
		return a.preferenceScore > b.preferenceScore
	}
	if a.profileScore != b.profileScore {
		return a.profileScore > b.profileScore
	}
	return false
}

// sortValueCandidatesStable orders candidates using Go's stable sort so
// that candidates equal on every rank key keep their original relative
// order, matching the documented stability law.
func sortValueCandidatesStable(c []valueCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		return betterCandidate(c[i], c[j])
	})
}
