package engine

import "strings"

// defaultCoreAliases lists the common core-subject names and their English
// equivalents consulted when Rules.CoreSubjectNames is empty.
var defaultCoreAliases = []string{
	"chinese", "math", "mathematics", "english",
	"physics", "chemistry", "biology",
}

var coreIDHints = []string{"core", "main", "chi", "math", "eng"}

// classifyVariable decides whether v belongs in the core-subject set,
// trying each method in order and falling through to the next on failure.
func classifyVariable(v ScheduleVariable, coreNames []string) bool {
	names := coreNames
	if len(names) == 0 {
		names = defaultCoreAliases
	}
	subject := strings.ToLower(strings.TrimSpace(v.SubjectName))
	course := strings.ToLower(strings.TrimSpace(v.CourseName))

	// 1. configured core-subject names and aliases, matched against both
	// the subject hint and any grade-prefixed variant ("grade 7 math").
	for _, name := range names {
		lname := strings.ToLower(name)
		if subject != "" && (subject == lname || strings.Contains(subject, lname)) {
			return true
		}
		if course != "" && (course == lname || strings.Contains(course, lname)) {
			return true
		}
	}

	// 2. priority >= 8
	if v.Priority >= 8 {
		return true
	}

	// 3. course-id or variable-id substring hints
	id := strings.ToLower(v.ID + v.CourseID)
	for _, hint := range coreIDHints {
		if strings.Contains(id, hint) {
			return true
		}
	}

	// 4. fallback: priority >= 5
	return v.Priority >= 5
}

// Classify partitions variables into core and general sets. It is pure: it
// never mutates its input and depends only on the supplied core-subject
// names. When no variable qualifies, the caller should fall back to a
// monolithic pass (ok is false).
func Classify(variables []ScheduleVariable, coreNames []string) (core, general []ScheduleVariable, ok bool) {
	for _, v := range variables {
		if classifyVariable(v, coreNames) {
			v.IsCore = true
			core = append(core, v)
		} else {
			v.IsCore = false
			general = append(general, v)
		}
	}
	return core, general, len(core) > 0
}
