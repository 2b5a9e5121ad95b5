package engine

import "go.uber.org/zap"

// localOptimize repeatedly looks for a single-move improvement (relocating
// one assignment to a different slot of its domain that raises moveScore without
// introducing a hard violation) and applies the best one found each round,
// mirroring the teacher's gap-repair loop: scan for an improving move, apply
// it, repeat until none is found or the iteration budget runs out.
func localOptimize(ctx *searchContext, maxIterations int) int {
	applied := 0
	for iter := 0; iter < maxIterations; iter++ {
		moveID, moveSlot, moveRoom, gain := findBestMove(ctx)
		if moveID == "" || gain <= 0 {
			break
		}
		v := ctx.variable(moveID)
		ctx.undo(moveID)
		ctx.assign(v, moveSlot, moveRoom)
		applied++
	}
	if applied > 0 {
		ctx.logger.Debug("local optimisation applied moves", zap.Int("count", applied))
	}
	return applied
}

// findBestMove scans every assigned variable's domain for a relocation that
// strictly raises moveScore (profile fit plus preference match minus
// soft-constraint penalties, rotation included) without triggering a hard
// violation, and returns the single best one found this round.
func findBestMove(ctx *searchContext) (variableID string, slot TimeSlot, roomID string, gain float64) {
	bestGain := 0.0
	bestID := ""
	var bestSlot TimeSlot
	var bestRoom string

	for _, assignment := range ctx.state.Assignments {
		if assignment.IsFixed {
			continue
		}
		v := ctx.variable(assignment.VariableID)
		if v == nil {
			continue
		}
		currentScore := moveScore(ctx, v, assignment.TimeSlot)
		for _, candidateSlot := range v.Domain {
			if candidateSlot == assignment.TimeSlot {
				continue
			}
			room, ok := ctx.selectRoom(v, candidateSlot)
			if !ok {
				continue
			}
			cand := Candidate{Variable: v, Slot: candidateSlot, RoomID: room}
			hard, _ := ctx.detector.HasHardViolation(cand, ctx)
			if hard {
				continue
			}
			candidateScore := moveScore(ctx, v, candidateSlot)
			gain := candidateScore - currentScore
			if gain > bestGain {
				bestGain = gain
				bestID = v.ID
				bestSlot = candidateSlot
				bestRoom = room
			}
		}
	}
	return bestID, bestSlot, bestRoom, bestGain
}

// moveScore is the same scoring basis local optimisation improves against:
// subject-profile fit plus preference match minus live soft-constraint
// penalties, evaluated for v as if currently sitting at slot.
func moveScore(ctx *searchContext, v *ScheduleVariable, slot TimeSlot) float64 {
	score := float64(subjectProfileScore(v, slot))
	if slotIn(v.Preferences, slot) {
		score += 20
	}
	cand := Candidate{Variable: v, Slot: slot, RoomID: ""}
	if rid, ok := ctx.homeroom(v.ClassID); ok {
		cand.RoomID = rid
	}
	for _, violation := range ctx.detector.Detect(cand, ctx) {
		if !violation.Hard {
			score -= float64(violation.Penalty)
		}
	}
	return score
}
