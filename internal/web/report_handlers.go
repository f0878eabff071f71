package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AlekseyZapadovnikov/msg-stats/internal/models"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/service"
)

var queryValidator = validator.New()

// dailyCountsParams - параметры запроса /messages/daily.
type dailyCountsParams struct {
	StartDate string `validate:"required,max=64"`
	EndDate   string `validate:"omitempty,max=64"`
	GroupID   string `validate:"omitempty,numeric"`
}

// handleHealth отвечает 200, если база доступна.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTodayGroupCounts возвращает количество сообщений по группам за сегодня.
func (s *Server) handleTodayGroupCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.reportService.TodayGroupCounts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.OK(counts))
}

// handleGroupCounts возвращает количество сообщений по группам за день из параметра date.
func (s *Server) handleGroupCounts(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if len(day) > 64 {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date is too long")
		return
	}

	counts, err := s.reportService.GroupCountsOn(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.OK(counts))
}

// handleDailyCounts возвращает количество сообщений по дням диапазона.
func (s *Server) handleDailyCounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	p := dailyCountsParams{
		StartDate: strings.TrimSpace(query.Get("start_date")),
		EndDate:   strings.TrimSpace(query.Get("end_date")),
		GroupID:   strings.TrimSpace(query.Get("group_id")),
	}
	if err := queryValidator.Struct(p); err != nil {
		code, msg := validationMessage(err)
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	q := service.DailyQuery{StartDate: p.StartDate, EndDate: p.EndDate}
	if p.GroupID != "" {
		// Идентификаторы супергрупп Telegram отрицательные.
		id, err := strconv.ParseInt(p.GroupID, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", "group_id must be an integer")
			return
		}
		q.GroupID = &id
	}

	counts, err := s.reportService.DailyCounts(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.OK(counts))
}

// validationMessage превращает ошибки валидатора в код и короткое сообщение для клиента.
func validationMessage(err error) (code, msg string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "INVALID_PARAM", "invalid query parameters"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "StartDate":
		if fe.Tag() == "required" {
			return "MISSING_PARAM", "start_date is required"
		}
		return "INVALID_PARAM", "start_date is invalid"
	case "EndDate":
		return "INVALID_PARAM", "end_date is invalid"
	case "GroupID":
		return "INVALID_PARAM", "group_id must be an integer"
	default:
		return "INVALID_PARAM", "invalid query parameters"
	}
}
