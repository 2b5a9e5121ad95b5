package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/engine"
	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type semesterScheduleRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.SemesterSchedule) error
	ListByTermClass(ctx context.Context, termID, classID string) ([]models.SemesterSchedule, error)
	FindByID(ctx context.Context, id string) (*models.SemesterSchedule, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SemesterScheduleStatus, meta types.JSONText) error
}

type semesterScheduleSlotRepository interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.SemesterScheduleSlot) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.SemesterScheduleSlot, error)
}

type teacherAssignmentFetcher interface {
	ListByClassAndTerm(ctx context.Context, classID, termID string) ([]models.TeacherAssignment, error)
}

type teacherPreferenceFetcher interface {
	GetByTeacher(ctx context.Context, teacherID string) (*models.TeacherPreference, error)
}

type scheduleFeeder interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error)
	ListByClass(ctx context.Context, classID string) ([]models.Schedule, error)
	FindConflicts(ctx context.Context, termID, dayOfWeek, timeSlot string) ([]models.Schedule, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, schedules []models.Schedule) error
}

type schedulerClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type schedulerTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type schedulerSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type scheduleConflictChecker interface {
	Check(ctx context.Context, termID, classID string, slots []dto.ScheduleSlotProposal) ([]models.ScheduleConflict, error)
}

// ScheduleGeneratorService builds timetable proposals with the constraint
// engine and persists accepted ones as semester schedules.
type ScheduleGeneratorService struct {
	terms       schedulerTermReader
	classes     schedulerClassReader
	subjects    schedulerSubjectReader
	assignments teacherAssignmentFetcher
	prefs       teacherPreferenceFetcher
	schedules   scheduleFeeder
	semesters   semesterScheduleRepository
	slots       semesterScheduleSlotRepository
	conflicts   scheduleConflictChecker
	tx          txProvider
	validator    *validator.Validate
	logger       *zap.Logger
	store        *proposalStore
	metrics      *MetricsService
	availability *AvailabilityCacheService
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL time.Duration
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	terms schedulerTermReader,
	classes schedulerClassReader,
	subjects schedulerSubjectReader,
	assignments teacherAssignmentFetcher,
	prefs teacherPreferenceFetcher,
	schedules scheduleFeeder,
	semesters semesterScheduleRepository,
	slots semesterScheduleSlotRepository,
	conflictChecker scheduleConflictChecker,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	availability *AvailabilityCacheService,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if conflictChecker == nil && schedules != nil {
		conflictChecker = &defaultScheduleConflictChecker{repo: schedules}
	}
	if availability == nil {
		availability = NewAvailabilityCacheService(nil, 0, logger)
	}
	return &ScheduleGeneratorService{
		terms:        terms,
		classes:      classes,
		subjects:     subjects,
		assignments:  assignments,
		prefs:        prefs,
		schedules:    schedules,
		semesters:    semesters,
		slots:        slots,
		conflicts:    conflictChecker,
		tx:           tx,
		validator:    validate,
		logger:       logger,
		store:        newProposalStore(cfg.ProposalTTL),
		metrics:      metrics,
		availability: availability,
	}
}

// Generate orchestrates the constraint-based scheduling pipeline: it turns
// the request into engine variables and fixed busy-blocks, runs the staged
// solver, and caches the resulting proposal for later Save.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	if err := s.ensureTermAndClass(ctx, req.TermID, req.ClassID); err != nil {
		return nil, err
	}

	days := normalizeDays(req.Days)
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days must contain at least one entry between 1-7")
	}

	assignments, err := s.assignments.ListByClassAndTerm(ctx, req.ClassID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher assignments")
	}
	if len(assignments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no teacher assignments defined for this class and term")
	}

	subjectNames, err := s.ensureSubjectsExist(ctx, req.SubjectLoads)
	if err != nil {
		return nil, err
	}

	assignmentMap := mapAssignments(assignments)
	if err := validateSubjectLoads(req.SubjectLoads, assignmentMap); err != nil {
		return nil, err
	}

	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	variables := buildVariables(req, days, subjectNames)

	fixed, err := s.buildBusyBlocks(ctx, req.TermID, variables)
	if err != nil {
		return nil, err
	}

	rules := buildRules(req, days)
	cfg := buildAlgorithmConfig(req)
	collab := engine.Collaborators{ResolveRoom: roomResolverFor(class)}

	start := time.Now()
	result := engine.New(rules, s.logger).Solve(variables, fixed, cfg, collab)
	elapsed := time.Since(start)
	s.metrics.ObserveSolve("staged", elapsed, result.Statistics.Iterations, solveOutcomeLabel(result))

	slots := exportSlots(result)
	proposalConflicts := exportConflicts(result)

	proposal := scheduleProposal{
		ProposalID:      uuid.NewString(),
		TermID:          req.TermID,
		ClassID:         req.ClassID,
		Score:           result.Statistics.TotalScore,
		Slots:           slots,
		Conflicts:       proposalConflicts,
		Stats:           statsFrom(result, elapsed),
		StageResults:    stageResultsFrom(result),
		TimeSlotsPerDay: req.TimeSlotsPerDay,
		Days:            days,
		SubjectLoads:    req.SubjectLoads,
		RequestedAt:     time.Now().UTC(),
		Meta: map[string]any{
			"hardConstraints": req.HardConstraints,
			"softConstraints": req.SoftConstraints,
			"success":         result.Success,
		},
	}
	s.store.Save(proposal)

	resp := &dto.GenerateScheduleResponse{
		ProposalID:   proposal.ProposalID,
		Success:      result.Success,
		Score:        proposal.Score,
		Slots:        slots,
		Conflicts:    proposalConflicts,
		Stats:        proposal.Stats,
		StageResults: proposal.StageResults,
		Message:      result.Message,
		Suggestions:  result.Suggestions,
	}
	return resp, nil
}

// Save persists a validated proposal as a semester schedule and optionally daily schedules.
func (s *ScheduleGeneratorService) Save(ctx context.Context, req dto.SaveScheduleRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save schedule payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if hasHardConflicts(proposal.Conflicts) {
		return "", appErrors.Clone(appErrors.ErrConflict, "proposal contains unresolved conflicts")
	}
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	metaPayload := map[string]any{
		"score":      proposal.Score,
		"stats":      proposal.Stats,
		"generated":  proposal.RequestedAt,
		"days":       proposal.Days,
		"timeSlots":  proposal.TimeSlotsPerDay,
		"algorithm":  "staged_backtracking_v1",
		"subjectMap": proposal.SubjectLoads,
	}
	metaBytes, marshalErr := json.Marshal(metaPayload)
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule metadata")
		return "", err
	}

	record := &models.SemesterSchedule{
		TermID:  proposal.TermID,
		ClassID: proposal.ClassID,
		Status:  models.SemesterScheduleStatusDraft,
		Meta:    types.JSONText(metaBytes),
	}

	if err = s.semesters.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester schedule")
		return "", err
	}

	slotModels := make([]models.SemesterScheduleSlot, 0, len(proposal.Slots))
	for _, slot := range proposal.Slots {
		slotModels = append(slotModels, models.SemesterScheduleSlot{
			SemesterScheduleID: record.ID,
			DayOfWeek:          slot.DayOfWeek,
			TimeSlot:           slot.TimeSlot,
			SubjectID:          slot.SubjectID,
			TeacherID:          slot.TeacherID,
			Room:               slot.Room,
		})
	}

	if err = s.slots.UpsertBatch(ctx, tx, slotModels); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist semester schedule slots")
		return "", err
	}

	if req.CommitToDaily {
		if s.conflicts == nil {
			err = appErrors.Clone(appErrors.ErrInternal, "schedule conflict checker unavailable")
			return "", err
		}
		conflicts, conflictErr := s.conflicts.Check(ctx, proposal.TermID, proposal.ClassID, proposal.Slots)
		if conflictErr != nil {
			err = conflictErr
			return "", err
		}
		if len(conflicts) > 0 {
			err = appErrors.Wrap(&models.ScheduleConflictError{Type: "CONFLICT", Message: "detected conflicts when committing to daily schedules", Errors: conflicts}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "conflict detected")
			return "", err
		}

		daily := make([]models.Schedule, 0, len(proposal.Slots))
		for _, slot := range proposal.Slots {
			daily = append(daily, models.Schedule{
				TermID:    proposal.TermID,
				ClassID:   proposal.ClassID,
				SubjectID: slot.SubjectID,
				TeacherID: slot.TeacherID,
				DayOfWeek: dayIndexToName(slot.DayOfWeek),
				TimeSlot:  strconv.Itoa(slot.TimeSlot),
				Room:      slotRoomValue(slot),
			})
		}
		if err = s.schedules.BulkCreateWithTx(ctx, tx, daily); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit daily schedules")
			return "", err
		}
		if err = s.semesters.UpdateStatus(ctx, tx, record.ID, models.SemesterScheduleStatusPublished, nil); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule status")
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule transaction")
		return "", err
	}

	s.store.Delete(req.ProposalID)
	return record.ID, nil
}

// List returns semester schedules for a class-term tuple.
func (s *ScheduleGeneratorService) List(ctx context.Context, query dto.SemesterScheduleQuery) ([]models.SemesterSchedule, error) {
	if query.TermID == "" || query.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "termId and classId are required")
	}
	list, err := s.semesters.ListByTermClass(ctx, query.TermID, query.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester schedules")
	}
	return list, nil
}

// GetSlots returns slot detail for a stored schedule.
func (s *ScheduleGeneratorService) GetSlots(ctx context.Context, scheduleID string) ([]models.SemesterScheduleSlot, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	if _, err := s.semesters.FindByID(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester schedule")
	}
	slots, err := s.slots.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester schedule slots")
	}
	return slots, nil
}

// Delete removes a draft schedule version.
func (s *ScheduleGeneratorService) Delete(ctx context.Context, scheduleID string) error {
	record, err := s.semesters.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester schedule")
	}
	if record.Status != models.SemesterScheduleStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft schedules can be deleted")
	}
	if err := s.semesters.Delete(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester schedule")
	}
	return nil
}

func (s *ScheduleGeneratorService) ensureTermAndClass(ctx context.Context, termID, classID string) error {
	if s.terms != nil {
		if _, err := s.terms.FindByID(ctx, termID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "term not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
		}
	}
	if s.classes != nil {
		if _, err := s.classes.FindByID(ctx, classID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}
	return nil
}

func (s *ScheduleGeneratorService) loadClass(ctx context.Context, classID string) (*models.Class, error) {
	if s.classes == nil {
		return nil, nil
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// ensureSubjectsExist validates every subject referenced by the request and
// returns a subject id -> name cache, the preload pass a NameResolver would
// otherwise perform lazily.
func (s *ScheduleGeneratorService) ensureSubjectsExist(ctx context.Context, loads []dto.SubjectLoadRequest) (map[string]string, error) {
	names := make(map[string]string, len(loads))
	if s.subjects == nil {
		return names, nil
	}
	checked := make(map[string]bool, len(loads))
	for _, load := range loads {
		if checked[load.SubjectID] {
			continue
		}
		subject, err := s.subjects.FindByID(ctx, load.SubjectID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", load.SubjectID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
		names[load.SubjectID] = subject.Name
		checked[load.SubjectID] = true
	}
	return names, nil
}

// buildBusyBlocks turns a teacher's existing schedules and preference
// unavailable windows into synthetic fixed assignments. Preference windows
// carry the sentinel class id "~unavailable~" and no course; existing
// schedules keep their real class, subject and room. Either way the engine's
// own teacher-clash constraint keeps the search away from those slots without
// any dedicated "unavailable" constraint kind.
func (s *ScheduleGeneratorService) buildBusyBlocks(ctx context.Context, termID string, variables []engine.ScheduleVariable) ([]engine.CourseAssignment, error) {
	teachers := map[string]struct{}{}
	for _, v := range variables {
		teachers[v.TeacherID] = struct{}{}
	}

	var fixed []engine.CourseAssignment
	for teacherID := range teachers {
		blocks, err := s.availability.GetOrCompute(ctx, termID, teacherID, func(ctx context.Context) ([]engine.CourseAssignment, error) {
			return s.buildTeacherBusyBlocks(ctx, termID, teacherID)
		})
		if err != nil {
			return nil, err
		}
		fixed = append(fixed, blocks...)
	}
	return fixed, nil
}

// buildTeacherBusyBlocks computes one teacher's fixed engine.CourseAssignments
// from their unavailable-window preferences and already-saved schedules for
// the term. It is the expensive path AvailabilityCacheService caches.
func (s *ScheduleGeneratorService) buildTeacherBusyBlocks(ctx context.Context, termID, teacherID string) ([]engine.CourseAssignment, error) {
	var fixed []engine.CourseAssignment
	n := 0

	if s.prefs != nil {
		pref, err := s.prefs.GetByTeacher(ctx, teacherID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher preferences")
		}
		if pref != nil && len(pref.Unavailable) > 0 {
			var windows []models.TeacherUnavailableSlot
			_ = json.Unmarshal(pref.Unavailable, &windows)
			for _, window := range windows {
				day := dayStringToIndex(window.DayOfWeek)
				if day == 0 {
					continue
				}
				for _, period := range expandTimeRange(window.TimeRange) {
					n++
					fixed = append(fixed, engine.CourseAssignment{
						VariableID: fmt.Sprintf("busy-pref-%s-%d", teacherID, n),
						ClassID:    "~unavailable~",
						TeacherID:  teacherID,
						TimeSlot:   engine.TimeSlot{DayOfWeek: day, Period: period},
						IsFixed:    true,
					})
				}
			}
		}
	}

	if s.schedules != nil {
		existing, err := s.schedules.ListByTeacher(ctx, teacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedules")
		}
		for _, sched := range existing {
			if sched.TermID != termID {
				continue
			}
			day := dayStringToIndex(sched.DayOfWeek)
			period := parseTimeSlot(sched.TimeSlot)
			if day == 0 || period == 0 {
				continue
			}
			n++
			fixed = append(fixed, engine.CourseAssignment{
				VariableID: fmt.Sprintf("busy-existing-%s-%d", teacherID, n),
				ClassID:    sched.ClassID,
				CourseID:   sched.SubjectID,
				TeacherID:  teacherID,
				RoomID:     sched.Room,
				TimeSlot:   engine.TimeSlot{DayOfWeek: day, Period: period},
				IsFixed:    true,
			})
		}
	}
	return fixed, nil
}

// buildVariables maps each requested subject load to one or more engine
// variables. A continuous load is split into blocks of ContinuousHours
// periods each; any remainder becomes single-period variables.
func buildVariables(req dto.GenerateScheduleRequest, days []int, subjectNames map[string]string) []engine.ScheduleVariable {
	var variables []engine.ScheduleVariable
	for _, load := range req.SubjectLoads {
		block := 1
		continuous := load.Continuous && load.ContinuousHours >= 2
		if continuous {
			block = load.ContinuousHours
		}

		remaining := load.WeeklyCount
		index := 0
		for remaining > 0 {
			hours := 1
			isContinuous := false
			if continuous && remaining >= block {
				hours = block
				isContinuous = true
			}
			variables = append(variables, newVariable(req, load, subjectNames, days, index, hours, isContinuous))
			remaining -= hours
			index++
		}
	}
	return variables
}

func newVariable(req dto.GenerateScheduleRequest, load dto.SubjectLoadRequest, subjectNames map[string]string, days []int, index, hours int, continuous bool) engine.ScheduleVariable {
	priority := load.Difficulty
	if priority == 0 {
		priority = 5
	}

	v := engine.ScheduleVariable{
		ID:              fmt.Sprintf("%s-%s-%d", load.SubjectID, load.TeacherID, index),
		ClassID:         req.ClassID,
		CourseID:        load.SubjectID,
		TeacherID:       load.TeacherID,
		RequiredHours:   hours,
		SubjectName:     subjectNames[load.SubjectID],
		CourseName:      subjectNames[load.SubjectID],
		Priority:        priority,
		Continuous:      continuous,
		ContinuousHours: hours,
		Preferences:     toTimeSlots(load.Preferred),
		Avoidances:      toTimeSlots(load.Avoided),
	}
	if load.RoomType != "" || load.RoomCapacity > 0 || len(load.RoomEquipment) > 0 {
		v.RoomRequirement = engine.RoomRequirement{
			RoomType:  load.RoomType,
			Capacity:  load.RoomCapacity,
			Equipment: load.RoomEquipment,
		}
	}
	v.Domain = buildDomain(days, req.TimeSlotsPerDay, hours, v.Avoidances)
	return v
}

func toTimeSlots(in []dto.TimeSlotInput) []engine.TimeSlot {
	out := make([]engine.TimeSlot, 0, len(in))
	for _, slot := range in {
		out = append(out, engine.TimeSlot{DayOfWeek: slot.DayOfWeek, Period: slot.Period})
	}
	return out
}

// buildDomain enumerates every (day, period) start that leaves room for a
// hours-period block within the working day and isn't explicitly avoided.
func buildDomain(days []int, dailyPeriods, hours int, avoided []engine.TimeSlot) []engine.TimeSlot {
	isAvoided := make(map[engine.TimeSlot]bool, len(avoided))
	for _, slot := range avoided {
		isAvoided[slot] = true
	}
	var domain []engine.TimeSlot
	for _, day := range days {
		for period := 1; period+hours-1 <= dailyPeriods; period++ {
			slot := engine.TimeSlot{DayOfWeek: day, Period: period}
			if isAvoided[slot] {
				continue
			}
			domain = append(domain, slot)
		}
	}
	return domain
}

func buildRules(req dto.GenerateScheduleRequest, days []int) engine.Rules {
	return engine.Rules{
		Time: engine.TimeRules{
			WorkingDays:  days,
			DailyPeriods: req.TimeSlotsPerDay,
		},
		Teacher: engine.TeacherRules{
			MaxDailyHours:      6,
			MaxContinuousHours: 2,
			Rotation:           buildRotationRules(req.Rotation),
		},
		Room: engine.RoomRules{
			AllowRoomSharing: true,
		},
		CourseArrangement: engine.CourseArrangementRules{
			EnableSubjectConstraints: true,
			CoreSubjectStrategy: engine.CoreSubjectStrategy{
				Enable:              true,
				MaxDailyOccurrences: 2,
			},
		},
	}
}

// buildRotationRules translates the request's opt-in rotation config into the
// engine's TeacherRotationRules. Leaving it unset keeps rotation disabled, as
// the engine defaults to.
func buildRotationRules(cfg dto.RotationConfig) engine.TeacherRotationRules {
	return engine.TeacherRotationRules{
		Enable:                    cfg.Enable,
		Order:                     engine.RotationOrder(cfg.Order),
		CustomOrder:               cfg.CustomOrder,
		Mode:                      engine.RotationMode(cfg.Mode),
		RoundCompletion:           cfg.RoundCompletion,
		MinIntervalBetweenClasses: cfg.MinIntervalBetweenClasses,
		MaxConsecutiveClasses:     cfg.MaxConsecutiveClasses,
	}
}

func buildAlgorithmConfig(req dto.GenerateScheduleRequest) engine.AlgorithmConfig {
	cfg := engine.DefaultAlgorithmConfig()
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.TimeLimitSeconds > 0 {
		cfg.TimeLimitSeconds = req.TimeLimitSeconds
	}
	return cfg
}

func roomResolverFor(class *models.Class) engine.RoomResolver {
	return func(classID string) (string, bool, error) {
		if class == nil || class.ID != classID || class.HomeroomRoomID == nil {
			return "", false, nil
		}
		return *class.HomeroomRoomID, true, nil
	}
}

func exportSlots(result *engine.SchedulingResult) []dto.ScheduleSlotProposal {
	if result.ScheduleState == nil {
		return nil
	}
	slots := make([]dto.ScheduleSlotProposal, 0, len(result.ScheduleState.Assignments))
	for _, a := range result.ScheduleState.Assignments {
		if a.IsFixed {
			continue
		}
		slot := dto.ScheduleSlotProposal{
			DayOfWeek: a.TimeSlot.DayOfWeek,
			TimeSlot:  a.TimeSlot.Period,
			SubjectID: a.CourseID,
			TeacherID: a.TeacherID,
		}
		if a.RoomID != "" {
			room := a.RoomID
			slot.Room = &room
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].DayOfWeek == slots[j].DayOfWeek {
			return slots[i].TimeSlot < slots[j].TimeSlot
		}
		return slots[i].DayOfWeek < slots[j].DayOfWeek
	})
	return slots
}

func exportConflicts(result *engine.SchedulingResult) []dto.ProposalConflict {
	out := make([]dto.ProposalConflict, 0, len(result.Conflicts))
	for _, c := range result.Conflicts {
		pc := dto.ProposalConflict{
			Type:     c.Kind.String(),
			Severity: c.Severity.String(),
			Message:  c.Message,
			Meta:     map[string]any{"variables": c.Variables},
		}
		if c.TimeSlot.DayOfWeek != 0 {
			pc.Slot = &dto.ScheduleSlotProposal{DayOfWeek: c.TimeSlot.DayOfWeek, TimeSlot: c.TimeSlot.Period}
		}
		out = append(out, pc)
	}
	return out
}

func hasHardConflicts(conflicts []dto.ProposalConflict) bool {
	for _, c := range conflicts {
		if c.Severity == "critical" || c.Severity == "high" {
			return true
		}
	}
	return false
}

func solveOutcomeLabel(result *engine.SchedulingResult) string {
	switch {
	case !result.Success:
		return "infeasible"
	case result.CappedByIterations:
		return "capped_iterations"
	case result.CappedByTime:
		return "capped_time"
	default:
		return "feasible"
	}
}

func statsFrom(result *engine.SchedulingResult, elapsed time.Duration) dto.ScheduleImprovementStats {
	return dto.ScheduleImprovementStats{
		Iterations:         result.Statistics.Iterations,
		HardViolations:     result.Statistics.HardViolationCount,
		SoftViolations:     result.Statistics.SoftViolationCount,
		ExecutionTimeMs:    elapsed.Milliseconds(),
		CappedByIterations: result.CappedByIterations,
		CappedByTime:       result.CappedByTime,
	}
}

func stageResultsFrom(result *engine.SchedulingResult) []dto.StageResult {
	out := make([]dto.StageResult, 0, len(result.StageResults))
	for _, sr := range result.StageResults {
		out = append(out, dto.StageResult{
			Stage:         string(sr.Stage),
			AssignedCount: sr.AssignedCount,
			TotalCount:    sr.TotalCount,
			IsComplete:    sr.IsComplete,
		})
	}
	return out
}

func mapAssignments(items []models.TeacherAssignment) map[string]map[string]bool {
	result := make(map[string]map[string]bool)
	for _, item := range items {
		if result[item.SubjectID] == nil {
			result[item.SubjectID] = make(map[string]bool)
		}
		result[item.SubjectID][item.TeacherID] = true
	}
	return result
}

func validateSubjectLoads(loads []dto.SubjectLoadRequest, assignments map[string]map[string]bool) error {
	for _, load := range loads {
		if load.WeeklyCount <= 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s weeklyCount must be > 0", load.SubjectID))
		}
		if load.SubjectID == "" || load.TeacherID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "subjectId and teacherId are required for subjectLoads")
		}
		if teachers, ok := assignments[load.SubjectID]; ok {
			if !teachers[load.TeacherID] {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s is not assigned to subject %s", load.TeacherID, load.SubjectID))
			}
		}
	}
	return nil
}

// --- Proposal cache ---

type scheduleProposal struct {
	ProposalID      string
	TermID          string
	ClassID         string
	Score           float64
	Slots           []dto.ScheduleSlotProposal
	Conflicts       []dto.ProposalConflict
	Stats           dto.ScheduleImprovementStats
	StageResults    []dto.StageResult
	TimeSlotsPerDay int
	Days            []int
	SubjectLoads    []dto.SubjectLoadRequest
	RequestedAt     time.Time
	Meta            map[string]any
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]scheduleProposal),
	}
}

func (s *proposalStore) Save(proposal scheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Sweep drops every proposal past its TTL and reports how many were removed.
func (s *proposalStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, proposal := range s.items {
		if time.Since(proposal.RequestedAt) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// SweepExpiredProposals discards cached proposals whose TTL has elapsed. It
// is meant to be called periodically (e.g. from a jobs.Queue consumer) so
// memory doesn't grow with abandoned previews.
func (s *ScheduleGeneratorService) SweepExpiredProposals(ctx context.Context) error {
	removed := s.store.Sweep()
	if removed > 0 {
		s.logger.Sugar().Infow("swept expired schedule proposals", "removed", removed)
	}
	return nil
}

// --- Day/time helpers ---

func expandTimeRange(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.Contains(raw, "-") {
		parts := strings.SplitN(raw, "-", 2)
		start := parseTimeSlot(parts[0])
		end := parseTimeSlot(parts[1])
		if start == 0 || end == 0 || end < start {
			return nil
		}
		var slots []int
		for i := start; i <= end; i++ {
			slots = append(slots, i)
		}
		return slots
	}
	value := parseTimeSlot(raw)
	if value == 0 {
		return nil
	}
	return []int{value}
}

func parseTimeSlot(raw string) int {
	raw = strings.TrimSpace(raw)
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func normalizeDays(days []int) []int {
	unique := make(map[int]struct{})
	for _, day := range days {
		if day < 1 || day > 7 {
			continue
		}
		unique[day] = struct{}{}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return result
}

var dayIndexMap = map[int]string{
	1: "MONDAY",
	2: "TUESDAY",
	3: "WEDNESDAY",
	4: "THURSDAY",
	5: "FRIDAY",
	6: "SATURDAY",
	7: "SUNDAY",
}

var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

func dayIndexToName(day int) string {
	if name, ok := dayIndexMap[day]; ok {
		return name
	}
	return "MONDAY"
}

func dayStringToIndex(name string) int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(name))]
}

func slotRoomValue(slot dto.ScheduleSlotProposal) string {
	if slot.Room == nil {
		return ""
	}
	return *slot.Room
}

// --- Conflict checker ---

type defaultScheduleConflictChecker struct {
	repo scheduleFeeder
}

func (d *defaultScheduleConflictChecker) Check(ctx context.Context, termID, classID string, slots []dto.ScheduleSlotProposal) ([]models.ScheduleConflict, error) {
	var conflicts []models.ScheduleConflict
	for _, slot := range slots {
		existing, err := d.repo.FindConflicts(ctx, termID, dayIndexToName(slot.DayOfWeek), strconv.Itoa(slot.TimeSlot))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
		}
		for _, sched := range existing {
			if sched.ClassID == classID {
				conflicts = append(conflicts, models.ScheduleConflict{
					ScheduleID: sched.ID,
					TermID:     sched.TermID,
					ClassID:    sched.ClassID,
					SubjectID:  sched.SubjectID,
					TeacherID:  sched.TeacherID,
					DayOfWeek:  sched.DayOfWeek,
					TimeSlot:   sched.TimeSlot,
					Room:       sched.Room,
					Dimension:  "CLASS",
				})
			}
			if sched.TeacherID == slot.TeacherID {
				conflicts = append(conflicts, models.ScheduleConflict{
					ScheduleID: sched.ID,
					TermID:     sched.TermID,
					ClassID:    sched.ClassID,
					SubjectID:  sched.SubjectID,
					TeacherID:  sched.TeacherID,
					DayOfWeek:  sched.DayOfWeek,
					TimeSlot:   sched.TimeSlot,
					Room:       sched.Room,
					Dimension:  "TEACHER",
				})
			}
			if sched.Room != "" && slot.Room != nil && *slot.Room != "" && sched.Room == *slot.Room {
				conflicts = append(conflicts, models.ScheduleConflict{
					ScheduleID: sched.ID,
					TermID:     sched.TermID,
					ClassID:    sched.ClassID,
					SubjectID:  sched.SubjectID,
					TeacherID:  sched.TeacherID,
					DayOfWeek:  sched.DayOfWeek,
					TimeSlot:   sched.TimeSlot,
					Room:       sched.Room,
					Dimension:  "ROOM",
				})
			}
		}
	}
	return conflicts, nil
}
