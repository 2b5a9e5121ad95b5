package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/pkg/export"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

type timetableFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// TimetableExportConfig tunes rendered-file lifetime and download link shape.
type TimetableExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// TimetableExportResult captures where a rendered timetable was written and
// how to fetch it back.
type TimetableExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// TimetableExportService renders a saved semester schedule's slots into a
// downloadable CSV or PDF grid.
type TimetableExportService struct {
	schedules semesterScheduleRepository
	slots     semesterScheduleSlotRepository
	storage   timetableFileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       TimetableExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewTimetableExportService wires a renderer over saved semester schedules.
func NewTimetableExportService(
	schedules semesterScheduleRepository,
	slots semesterScheduleSlotRepository,
	fileStore timetableFileStorage,
	signer *storage.SignedURLSigner,
	cfg TimetableExportConfig,
	logger *zap.Logger,
) *TimetableExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &TimetableExportService{
		schedules: schedules,
		slots:     slots,
		storage:   fileStore,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Export renders the semester schedule identified by id as "csv" or "pdf"
// and returns a signed, time-limited download link.
func (s *TimetableExportService) Export(ctx context.Context, scheduleID, format string) (*TimetableExportResult, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, fmt.Errorf("semester schedule %s not found", scheduleID)
	}
	slots, err := s.slots.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	dataset := timetableDataset(slots)
	title := fmt.Sprintf("Timetable %s v%d", schedule.ClassID, schedule.Version)

	var payload []byte
	switch strings.ToLower(format) {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf", "":
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(schedule, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(schedule.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &TimetableExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Open returns a handle to a previously rendered file, validated against its
// signed token.
func (s *TimetableExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, err
	}
	return s.storage.Open(relPath)
}

// Cleanup removes rendered files older than ttl (defaults to ResultTTL).
func (s *TimetableExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *TimetableExportService) buildFilename(schedule *models.SemesterSchedule, format string) string {
	if format == "" {
		format = "pdf"
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_v%d_%s.%s", schedule.ClassID, schedule.Version, timestamp, strings.ToLower(format))
}

func titleCaseDay(name string) string {
	name = strings.ToLower(name)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// timetableDataset turns flat slots into a day-by-period grid, one row per
// period with a column per working day.
func timetableDataset(slots []models.SemesterScheduleSlot) export.Dataset {
	byCell := make(map[[2]int]models.SemesterScheduleSlot, len(slots))
	maxPeriod := 0
	days := map[int]bool{}
	for _, slot := range slots {
		byCell[[2]int{slot.DayOfWeek, slot.TimeSlot}] = slot
		if slot.TimeSlot > maxPeriod {
			maxPeriod = slot.TimeSlot
		}
		days[slot.DayOfWeek] = true
	}

	orderedDays := make([]int, 0, len(days))
	for d := 1; d <= 7; d++ {
		if days[d] {
			orderedDays = append(orderedDays, d)
		}
	}

	headers := make([]string, 0, len(orderedDays)+1)
	headers = append(headers, "Period")
	for _, d := range orderedDays {
		headers = append(headers, titleCaseDay(dayIndexToName(d)))
	}

	rows := make([]map[string]string, 0, maxPeriod)
	for period := 1; period <= maxPeriod; period++ {
		row := map[string]string{"Period": strconv.Itoa(period)}
		for _, d := range orderedDays {
			dayHeader := titleCaseDay(dayIndexToName(d))
			if slot, ok := byCell[[2]int{d, period}]; ok {
				cell := slot.SubjectID
				if slot.Room != nil && *slot.Room != "" {
					cell = fmt.Sprintf("%s (%s)", cell, *slot.Room)
				}
				row[dayHeader] = cell
			} else {
				row[dayHeader] = ""
			}
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}
}
