package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AlekseyZapadovnikov/msg-stats/internal/cache"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/domain"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/models"
)

type ReportRepository interface {
	CountGroupMessages(ctx context.Context, from, to time.Time) ([]models.GroupCount, error)
	CountDailyMessages(ctx context.Context, from, to time.Time, groupID *int64) ([]models.DailyRow, error)
}

// DailyQuery описывает запрос статистики по дням.
type DailyQuery struct {
	StartDate string
	// EndDate может быть пустым - тогда берётся сегодняшний день.
	EndDate string
	GroupID *int64
}

type ReportManager struct {
	repo         ReportRepository
	cache        cache.Cache
	cacheTTL     time.Duration
	loc          *time.Location
	now          func() time.Time
	maxRangeDays int
}

// Option настраивает ReportManager.
type Option func(*ReportManager)

// WithLocation задаёт часовой пояс, в котором считаются календарные дни.
func WithLocation(loc *time.Location) Option {
	return func(rm *ReportManager) {
		if loc != nil {
			rm.loc = loc
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(rm *ReportManager) {
		if now != nil {
			rm.now = now
		}
	}
}

// WithCache включает кэширование отчётов по завершённым дням.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(rm *ReportManager) {
		if c != nil && ttl > 0 {
			rm.cache = c
			rm.cacheTTL = ttl
		}
	}
}

// WithMaxRangeDays ограничивает длину диапазона. 0 снимает ограничение.
func WithMaxRangeDays(days int) Option {
	return func(rm *ReportManager) {
		rm.maxRangeDays = days
	}
}

// NewReportManager связывает сервис отчётов с хранилищем.
func NewReportManager(repo ReportRepository, opts ...Option) *ReportManager {
	rm := &ReportManager{
		repo:  repo,
		cache: cache.Nop{},
		loc:   time.Local,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// TodayGroupCounts возвращает количество сообщений по группам за сегодня.
func (rm *ReportManager) TodayGroupCounts(ctx context.Context) ([]models.GroupCount, error) {
	return rm.GroupCountsOn(ctx, "")
}

// GroupCountsOn возвращает количество сообщений по группам за указанный день, по убыванию.
// Пустая строка означает сегодня.
func (rm *ReportManager) GroupCountsOn(ctx context.Context, day string) ([]models.GroupCount, error) {
	date := rm.today()
	if strings.TrimSpace(day) != "" {
		parsed, err := rm.parseDate("date", day)
		if err != nil {
			return nil, err
		}
		date = parsed
	}

	counts, err := rm.repo.CountGroupMessages(ctx, date, date.AddDate(0, 0, 1))
	if err != nil {
		return nil, domain.NewQueryError("count group messages", err)
	}
	if counts == nil {
		counts = []models.GroupCount{}
	}
	return counts, nil
}

// DailyCounts возвращает количество сообщений за каждый день диапазона, включая дни без сообщений.
func (rm *ReportManager) DailyCounts(ctx context.Context, q DailyQuery) (*models.DailyCounts, error) {
	if strings.TrimSpace(q.StartDate) == "" {
		return nil, domain.NewInvalidDateError("start_date", q.StartDate, nil)
	}
	start, err := rm.parseDate("start_date", q.StartDate)
	if err != nil {
		return nil, err
	}

	end := rm.today()
	if strings.TrimSpace(q.EndDate) != "" {
		if end, err = rm.parseDate("end_date", q.EndDate); err != nil {
			return nil, err
		}
	}

	if start.After(end) {
		return nil, domain.NewInvertedRangeError(start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	if days := daysInclusive(start, end); rm.maxRangeDays > 0 && days > rm.maxRangeDays {
		return nil, domain.NewRangeTooLongError(days, rm.maxRangeDays)
	}

	from, to := start, end.AddDate(0, 0, 1)

	// Прошедшие дни ещё могут дополняться скрейпером истории, поэтому кэш живёт ограниченное время.
	cacheable := !to.After(rm.today())
	key := dailyCacheKey(start, end, q.GroupID)
	if cacheable {
		var cached models.DailyCounts
		found, err := rm.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.Warn("report cache read failed", "key", key, "error", err)
		} else if found {
			return &cached, nil
		}
	}

	rows, err := rm.repo.CountDailyMessages(ctx, from, to, q.GroupID)
	if err != nil {
		return nil, domain.NewQueryError("count daily messages", err)
	}

	counts := models.NewDailyCounts(from, end)
	for _, row := range rows {
		if !counts.Set(row.MsgDate, row.NrMsg) {
			slog.Debug("daily row outside requested range", "msg_date", row.MsgDate, "nr_msg", row.NrMsg)
		}
	}

	if cacheable {
		if err := rm.cache.Set(ctx, key, counts, rm.cacheTTL); err != nil {
			slog.Warn("report cache write failed", "key", key, "error", err)
		}
	}

	return counts, nil
}

// today возвращает начало текущих суток в часовом поясе отчётов.
func (rm *ReportManager) today() time.Time {
	return startOfDay(rm.now().In(rm.loc))
}

// parseDate разбирает дату в свободном формате и приводит её к началу суток.
func (rm *ReportManager) parseDate(param, value string) (time.Time, error) {
	t, err := parseStrictDate(strings.TrimSpace(value), rm.loc)
	if err != nil {
		return time.Time{}, domain.NewInvalidDateError(param, value, err)
	}
	return startOfDay(t.In(rm.loc)), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysInclusive считает календарные дни между датами без учёта длины суток.
func daysInclusive(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

func dailyCacheKey(start, end time.Time, groupID *int64) string {
	group := "all"
	if groupID != nil {
		group = fmt.Sprintf("%d", *groupID)
	}
	return fmt.Sprintf("daily:%s:%s:%s:%s", start.Location(), start.Format(models.DateLayout), end.Format(models.DateLayout), group)
}
