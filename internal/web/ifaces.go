package web

import (
	"context"

	"github.com/AlekseyZapadovnikov/msg-stats/internal/models"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/service"
)

// ReportService описывает отчёты по сообщениям, которые нужны HTTP-слою.
type ReportService interface {
	TodayGroupCounts(ctx context.Context) ([]models.GroupCount, error)
	GroupCountsOn(ctx context.Context, day string) ([]models.GroupCount, error)
	DailyCounts(ctx context.Context, q service.DailyQuery) (*models.DailyCounts, error)
}

// HealthChecker проверяет доступность хранилища.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
