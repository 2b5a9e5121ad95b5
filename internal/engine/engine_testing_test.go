package engine

// Shared fixture builders for the engine package's test suite. Kept in one
// file so each scenario/invariant test stays focused on what it asserts.

// weekDomain builds the TimeSlot domain for a set of working days and a
// daily period count, e.g. weekDomain([]int{1,2,3,4,5}, 8) for a Mon-Fri,
// 8-period week.
func weekDomain(days []int, periods int) []TimeSlot {
	var out []TimeSlot
	for _, d := range days {
		for p := 1; p <= periods; p++ {
			out = append(out, TimeSlot{DayOfWeek: d, Period: p})
		}
	}
	return out
}

// baseVariable returns a minimal, valid ScheduleVariable; callers override
// whichever fields the scenario cares about. IDs must satisfy the engine's
// hex-id validation, so fixtures use hex-only ids.
func baseVariable(id, classID, courseID, teacherID string, domain []TimeSlot) ScheduleVariable {
	return ScheduleVariable{
		ID:            id,
		ClassID:       classID,
		CourseID:      courseID,
		TeacherID:     teacherID,
		RequiredHours: 1,
		Domain:        domain,
	}
}

func smallCfg() AlgorithmConfig {
	return AlgorithmConfig{MaxIterations: 2000, TimeLimitSeconds: 5, BacktrackLimit: 20000}
}
