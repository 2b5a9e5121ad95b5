package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// searchContext is the mutable, single-owner context one Solve invocation
// threads through classification, detection, heuristics and search. It is
// never shared between concurrent solves.
type searchContext struct {
	rules  Rules
	cfg    AlgorithmConfig
	collab Collaborators
	logger *zap.Logger

	order     []string // master variable order, fixed for the lifetime of ctx
	variables map[string]*ScheduleVariable

	state         *ScheduleState
	unassignedSet map[string]bool

	rotations map[string]*TeacherRotationState
	rooms     map[string]Room
	homerooms map[string]string

	detector *Detector

	stage      ProgressStage
	startedAt  time.Time
	iterations int
	backtracks int

	warnedIterationCap bool
	warnedTimeCap      bool
	cappedByIterations bool
	cappedByTime       bool
}

// newSearchContext builds the per-solve context: fixed assignments are
// seeded into state up front and excluded from the master order, so they
// are never selected, undone, or counted as unassigned.
func newSearchContext(rules Rules, cfg AlgorithmConfig, collab Collaborators, logger *zap.Logger, variables []ScheduleVariable, fixed []CourseAssignment, stage ProgressStage) *searchContext {
	order := make([]string, 0, len(variables))
	varMap := make(map[string]*ScheduleVariable, len(variables))
	for i := range variables {
		v := variables[i]
		// Initial domain: slots the time rules forbid are dropped here, so
		// the search never proposes them.
		domain := make([]TimeSlot, 0, len(v.Domain))
		for _, s := range v.Domain {
			if !rules.Time.isForbidden(s) {
				domain = append(domain, s)
			}
		}
		v.Domain = domain
		varMap[v.ID] = &v
		order = append(order, v.ID)
	}

	rooms := make(map[string]Room, len(collab.Rooms))
	for _, r := range collab.Rooms {
		rooms[r.ID] = r
	}

	state := NewScheduleState(order)
	unassignedSet := make(map[string]bool, len(order))
	for _, id := range order {
		unassignedSet[id] = true
	}
	for _, a := range fixed {
		a.IsFixed = true
		state.Assignments[a.VariableID] = a
	}

	rotations := make(map[string]*TeacherRotationState)
	if rules.Teacher.Rotation.Enable {
		classesByTeacher := make(map[string][]string)
		seen := make(map[string]map[string]bool)
		for _, v := range variables {
			if seen[v.TeacherID] == nil {
				seen[v.TeacherID] = map[string]bool{}
			}
			if !seen[v.TeacherID][v.ClassID] {
				seen[v.TeacherID][v.ClassID] = true
				classesByTeacher[v.TeacherID] = append(classesByTeacher[v.TeacherID], v.ClassID)
			}
		}
		for teacherID, classes := range classesByTeacher {
			ordered := orderRotationClasses(classes, rules.Teacher.Rotation)
			rotations[teacherID] = NewTeacherRotationState(teacherID, ordered)
		}
		for _, a := range fixed {
			if rot := rotations[a.TeacherID]; rot != nil {
				rot.Assign(a.ClassID)
			}
		}
	}

	ctx := &searchContext{
		rules:         rules,
		cfg:           cfg,
		collab:        collab,
		logger:        logger,
		order:         order,
		variables:     varMap,
		state:         state,
		unassignedSet: unassignedSet,
		rotations:     rotations,
		rooms:         rooms,
		homerooms:     make(map[string]string),
		detector:      NewDetector(rules),
		stage:         stage,
	}
	ctx.refreshUnassigned()
	return ctx
}

// orderRotationClasses applies the configured rotation order to a
// teacher's class set; grade-based ordering falls back to alphabetical
// since no grade data reaches the engine.
func orderRotationClasses(classes []string, rules TeacherRotationRules) []string {
	switch rules.Order {
	case RotationCustom:
		if len(rules.CustomOrder) > 0 {
			ordered := make([]string, 0, len(classes))
			present := make(map[string]bool, len(classes))
			for _, c := range classes {
				present[c] = true
			}
			for _, c := range rules.CustomOrder {
				if present[c] {
					ordered = append(ordered, c)
					delete(present, c)
				}
			}
			for _, c := range classes {
				if present[c] {
					ordered = append(ordered, c)
				}
			}
			return ordered
		}
		fallthrough
	default:
		out := append([]string(nil), classes...)
		sort.Strings(out)
		return out
	}
}

func (ctx *searchContext) variable(id string) *ScheduleVariable {
	return ctx.variables[id]
}

func (ctx *searchContext) assignmentsAt(slot TimeSlot) []CourseAssignment {
	var out []CourseAssignment
	for _, a := range ctx.state.Assignments {
		if a.TimeSlot == slot {
			out = append(out, a)
		}
	}
	return out
}

func (ctx *searchContext) classAssignments(classID string) []CourseAssignment {
	var out []CourseAssignment
	for _, a := range ctx.state.Assignments {
		if a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out
}

func (ctx *searchContext) teacherAssignments(teacherID string) []CourseAssignment {
	var out []CourseAssignment
	for _, a := range ctx.state.Assignments {
		if a.TeacherID == teacherID {
			out = append(out, a)
		}
	}
	return out
}

func (ctx *searchContext) rotationFor(teacherID string) *TeacherRotationState {
	return ctx.rotations[teacherID]
}

func (ctx *searchContext) room(id string) (Room, bool) {
	r, ok := ctx.rooms[id]
	return r, ok
}

// homeroom resolves a class's homeroom id via the injected hook, caching
// the result (successful or not) for the lifetime of the solve. A
// collaborator failure is treated as a transient unresolved lookup: it is
// logged and the engine proceeds without the hint.
func (ctx *searchContext) homeroom(classID string) (string, bool) {
	if room, cached := ctx.homerooms[classID]; cached {
		return room, room != ""
	}
	if ctx.collab.ResolveRoom == nil {
		ctx.homerooms[classID] = ""
		return "", false
	}
	roomID, ok, err := ctx.collab.ResolveRoom(classID)
	if err != nil {
		ctx.logger.Warn("homeroom resolver failed; proceeding without hint",
			zap.String("classId", classID), zap.Error(err))
		ctx.homerooms[classID] = ""
		return "", false
	}
	if !ok {
		ctx.homerooms[classID] = ""
		return "", false
	}
	ctx.homerooms[classID] = roomID
	return roomID, true
}

func (ctx *searchContext) roomOccupied(roomID string, slot TimeSlot) bool {
	for _, a := range ctx.assignmentsAt(slot) {
		if a.RoomID == roomID {
			return true
		}
	}
	return false
}

// findCapableRoom returns a room satisfying v's requirement (and, when
// requireFree is set, unoccupied at slot). A variable with no room
// requirement is trivially satisfiable without binding a specific room.
func (ctx *searchContext) findCapableRoom(v *ScheduleVariable, slot TimeSlot, requireFree bool) (Room, bool) {
	if v.RoomRequirement.empty() {
		return Room{}, true
	}
	ids := make([]string, 0, len(ctx.rooms))
	for id := range ctx.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		room := ctx.rooms[id]
		if !room.satisfies(v.RoomRequirement) {
			continue
		}
		if requireFree && ctx.roomOccupied(id, slot) {
			continue
		}
		return room, true
	}
	return Room{}, false
}

// selectRoom implements §4.3's room-selection policy: the class's homeroom
// is preferred; otherwise, when room sharing is disallowed, a free
// matching room is required; when sharing is allowed, any matching room
// (or no room at all, when none is required) suffices.
func (ctx *searchContext) selectRoom(v *ScheduleVariable, slot TimeSlot) (string, bool) {
	if home, ok := ctx.homeroom(v.ClassID); ok && home != "" {
		return home, true
	}
	room, found := ctx.findCapableRoom(v, slot, !ctx.rules.Room.AllowRoomSharing)
	if !found {
		return "", false
	}
	return room.ID, true
}

func (ctx *searchContext) assign(v *ScheduleVariable, slot TimeSlot, roomID string) {
	ctx.state.Assignments[v.ID] = CourseAssignment{
		VariableID: v.ID,
		ClassID:    v.ClassID,
		CourseID:   v.CourseID,
		TeacherID:  v.TeacherID,
		RoomID:     roomID,
		TimeSlot:   slot,
	}
	delete(ctx.unassignedSet, v.ID)
	ctx.refreshUnassigned()
	if rot := ctx.rotations[v.TeacherID]; rot != nil {
		rot.Assign(v.ClassID)
	}
}

// undo removes a non-fixed assignment and reverts the teacher's rotation
// through TeacherRotationState.Undo; fixed assignments are never undone.
func (ctx *searchContext) undo(variableID string) {
	a, ok := ctx.state.Assignments[variableID]
	if !ok || a.IsFixed {
		return
	}
	delete(ctx.state.Assignments, variableID)
	ctx.unassignedSet[variableID] = true
	ctx.refreshUnassigned()
	if rot := ctx.rotations[a.TeacherID]; rot != nil {
		rot.Undo(a.ClassID)
	}
}

func (ctx *searchContext) refreshUnassigned() {
	list := make([]string, 0, len(ctx.order))
	for _, id := range ctx.order {
		if ctx.unassignedSet[id] {
			list = append(list, id)
		}
	}
	ctx.state.Unassigned = list
}

func (ctx *searchContext) resourceLimitReached() bool {
	if ctx.cfg.MaxIterations > 0 && ctx.iterations >= ctx.cfg.MaxIterations {
		if !ctx.warnedIterationCap {
			ctx.logger.Warn("iteration cap reached", zap.String("stage", string(ctx.stage)), zap.Int("iterations", ctx.iterations))
			ctx.warnedIterationCap = true
		}
		ctx.cappedByIterations = true
		return true
	}
	if ctx.cfg.BacktrackLimit > 0 && ctx.backtracks >= ctx.cfg.BacktrackLimit {
		ctx.cappedByIterations = true
		return true
	}
	if ctx.cfg.TimeLimitSeconds > 0 {
		if time.Since(ctx.startedAt) >= time.Duration(ctx.cfg.TimeLimitSeconds)*time.Second {
			if !ctx.warnedTimeCap {
				ctx.logger.Warn("time limit reached", zap.String("stage", string(ctx.stage)))
				ctx.warnedTimeCap = true
			}
			ctx.cappedByTime = true
			return true
		}
	}
	return false
}

func (ctx *searchContext) reportProgress(msg string) {
	if ctx.collab.Progress == nil {
		return
	}
	total := len(ctx.order)
	assigned := total - len(ctx.state.Unassigned)
	pct := 0.0
	if total > 0 {
		pct = float64(assigned) / float64(total) * 100
	}
	rotationData := make(map[string]RotationSnapshot, len(ctx.rotations))
	for teacherID, rot := range ctx.rotations {
		rotationData[teacherID] = rot.Snapshot()
	}
	ctx.collab.Progress(ProgressUpdate{
		Stage:         ctx.stage,
		Percentage:    pct,
		Message:       msg,
		AssignedCount: assigned,
		TotalCount:    total,
		RotationData:  rotationData,
	})
}

// frame is one level of the explicit backtracking stack: the variable
// being decided, its ordered candidate list, and how far into it we are.
type frame struct {
	variableID string
	candidates []valueCandidate
	idx        int

	lastRejection     *ConstraintViolation
	lastRejectionSlot TimeSlot
}

// runBacktrackingSearch grows state one assignment at a time until every
// variable is placed or abandoned, or a resource limit is hit. A placement
// is never undone: a variable whose candidates are all rejected is
// abandoned and left unassigned, and the variables placed before it keep
// their slots. It never
// recurses: suspension points are the progress callback and the room
// resolver, collapsed into the loop body per the engine's cooperative
// concurrency model.
func runBacktrackingSearch(ctx *searchContext) {
	ctx.startedAt = time.Now()
	var stack []*frame
	// abandoned holds ids whose entire candidate list was exhausted without
	// a single acceptable slot: they stay unassigned for the rest of this
	// run and must never be re-offered to selectVariable, or the search
	// would thrash forever retrying the same dead end (see DESIGN.md).
	abandoned := make(map[string]bool)

	pushNext := func() bool {
		vid, ok := ctx.selectVariableExcluding(abandoned)
		if !ok {
			return false
		}
		v := ctx.variable(vid)
		stack = append(stack, &frame{variableID: vid, candidates: ctx.buildValueCandidates(v)})
		return true
	}

	if !pushNext() {
		return // nothing to schedule
	}

	for len(stack) > 0 {
		if ctx.resourceLimitReached() {
			return
		}
		top := stack[len(stack)-1]
		if top.idx >= len(top.candidates) {
			if top.lastRejection != nil {
				severity := SeverityHigh
				if len(top.candidates) == 0 {
					severity = SeverityCritical
				}
				ctx.state.Conflicts = append(ctx.state.Conflicts, ConflictInfo{
					Kind:      top.lastRejection.Kind,
					Severity:  severity,
					TimeSlot:  top.lastRejectionSlot,
					Variables: []string{top.variableID},
					Message:   top.lastRejection.Message,
				})
			}
			stack = stack[:len(stack)-1]
			abandoned[top.variableID] = true
			ctx.backtracks++
			if !pushNext() {
				return
			}
			continue
		}

		v := ctx.variable(top.variableID)
		cand := top.candidates[top.idx]
		ctx.iterations++

		hard, violation := ctx.detector.HasHardViolation(Candidate{Variable: v, Slot: cand.Slot, RoomID: cand.RoomID}, ctx)
		if hard {
			if ctx.cfg.DebugLevel == DebugDetailed {
				ctx.logger.Debug("candidate rejected", zap.String("variable", v.ID),
					zap.Int("day", cand.Slot.DayOfWeek), zap.Int("period", cand.Slot.Period),
					zap.String("kind", violation.Kind.String()))
			}
			ctx.state.Violations = append(ctx.state.Violations, *violation)
			top.lastRejection = violation
			top.lastRejectionSlot = cand.Slot
			top.idx++
			continue
		}

		ctx.assign(v, cand.Slot, cand.RoomID)
		ctx.recordSoftViolations(v, cand)
		ctx.reportProgress("assigned " + v.ID)

		if !pushNext() {
			return // every variable placed
		}
	}
}

// recordSoftViolations appends diagnostic (non-pruning) soft-constraint
// hits for the assignment just made, for reporting purposes only.
func (ctx *searchContext) recordSoftViolations(v *ScheduleVariable, cand valueCandidate) {
	for _, violation := range ctx.detector.Detect(Candidate{Variable: v, Slot: cand.Slot, RoomID: cand.RoomID}, ctx) {
		if violation.Hard {
			continue
		}
		ctx.state.Violations = append(ctx.state.Violations, violation)
		ctx.state.Score -= float64(violation.Penalty)
	}
	ctx.state.Score += float64(subjectProfileScore(v, cand.Slot))
	if slotIn(v.Preferences, cand.Slot) {
		ctx.state.Score += 20
	}
}
