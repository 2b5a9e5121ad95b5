package dto

// TimeSlotInput identifies a single teaching period in a request payload.
type TimeSlotInput struct {
	DayOfWeek int `json:"dayOfWeek" validate:"required,min=1,max=7"`
	Period    int `json:"period" validate:"required,min=1,max=16"`
}

// SubjectLoadRequest captures weekly demand for a subject-teacher pair.
type SubjectLoadRequest struct {
	SubjectID       string          `json:"subjectId" validate:"required"`
	TeacherID       string          `json:"teacherId" validate:"required"`
	WeeklyCount     int             `json:"weeklyCount" validate:"required,min=1"`
	Difficulty      int             `json:"difficulty" validate:"omitempty,min=1,max=10"`
	Preferred       []TimeSlotInput `json:"preferredSlots" validate:"omitempty,dive"`
	Avoided         []TimeSlotInput `json:"avoidedSlots" validate:"omitempty,dive"`
	Continuous      bool            `json:"continuous"`
	ContinuousHours int             `json:"continuousHours" validate:"omitempty,min=2"`
	RoomType        string          `json:"roomType"`
	RoomCapacity    int             `json:"roomCapacity" validate:"omitempty,min=1"`
	RoomEquipment   []string        `json:"roomEquipment"`
	Tags            []string        `json:"tags"`
}

// RotationConfig exposes the engine's per-teacher rotation heuristic and soft
// constraint so a caller can opt into round-robin or balanced class ordering.
type RotationConfig struct {
	Enable                    bool     `json:"enable"`
	Order                     string   `json:"order" validate:"omitempty,oneof=alphabetical grade_based custom"`
	CustomOrder               []string `json:"customOrder,omitempty"`
	Mode                      string   `json:"mode" validate:"omitempty,oneof=round_robin balanced"`
	RoundCompletion           bool     `json:"roundCompletion"`
	MinIntervalBetweenClasses int      `json:"minIntervalBetweenClasses" validate:"omitempty,min=0"`
	MaxConsecutiveClasses     int      `json:"maxConsecutiveClasses" validate:"omitempty,min=0"`
}

// GenerateScheduleRequest instructs the generator to build a proposal for the class/term.
type GenerateScheduleRequest struct {
	TermID           string               `json:"termId" validate:"required"`
	ClassID          string               `json:"classId" validate:"required"`
	TimeSlotsPerDay  int                  `json:"timeSlotsPerDay" validate:"required,min=1,max=16"`
	Days             []int                `json:"days" validate:"required,min=1,dive,min=1,max=7"`
	SubjectLoads     []SubjectLoadRequest `json:"subjectLoads" validate:"required,min=1,dive"`
	HardConstraints  []string             `json:"hardConstraints"`
	SoftConstraints  []string             `json:"softConstraints"`
	MaxIterations    int                  `json:"maxIterations" validate:"omitempty,min=1"`
	TimeLimitSeconds int                  `json:"timeLimitSeconds" validate:"omitempty,min=1"`
	Rotation         RotationConfig       `json:"rotation,omitempty"`
	Meta             map[string]any       `json:"meta"`
}

// ScheduleSlotProposal represents a generated slot.
type ScheduleSlotProposal struct {
	DayOfWeek int     `json:"dayOfWeek"`
	TimeSlot  int     `json:"timeSlot"`
	SubjectID string  `json:"subjectId"`
	TeacherID string  `json:"teacherId"`
	Room      *string `json:"room,omitempty"`
}

// ProposalConflict captures unmet demand or hard constraint violations.
type ProposalConflict struct {
	Type     string                `json:"type"`
	Severity string                `json:"severity,omitempty"`
	Message  string                `json:"message"`
	Slot     *ScheduleSlotProposal `json:"slot,omitempty"`
	Meta     map[string]any        `json:"meta,omitempty"`
}

// ScheduleImprovementStats summarises the solve that produced a proposal.
type ScheduleImprovementStats struct {
	Iterations         int     `json:"iterations"`
	HardViolations     int     `json:"hardViolations"`
	SoftViolations     int     `json:"softViolations"`
	ExecutionTimeMs    int64   `json:"executionTimeMs"`
	CappedByIterations bool    `json:"cappedByIterations"`
	CappedByTime       bool    `json:"cappedByTime"`
}

// StageResult reports one staged-controller phase's outcome.
type StageResult struct {
	Stage         string `json:"stage"`
	AssignedCount int    `json:"assignedCount"`
	TotalCount    int    `json:"totalCount"`
	IsComplete    bool   `json:"isComplete"`
}

// GenerateScheduleResponse returns the built timetable proposal.
type GenerateScheduleResponse struct {
	ProposalID   string                   `json:"proposalId"`
	Success      bool                     `json:"success"`
	Score        float64                  `json:"score"`
	Slots        []ScheduleSlotProposal   `json:"slots"`
	Conflicts    []ProposalConflict       `json:"conflicts"`
	Stats        ScheduleImprovementStats `json:"stats"`
	StageResults []StageResult            `json:"stageResults,omitempty"`
	Message      string                   `json:"message"`
	Suggestions  []string                 `json:"suggestions,omitempty"`
}

// SaveScheduleRequest persists a proposal into semester schedules.
type SaveScheduleRequest struct {
	ProposalID    string `json:"proposalId" validate:"required"`
	CommitToDaily bool   `json:"commitToDaily"`
}

// SemesterScheduleQuery filters schedule summaries by class and term.
type SemesterScheduleQuery struct {
	TermID  string `form:"termId" json:"termId"`
	ClassID string `form:"classId" json:"classId"`
}
