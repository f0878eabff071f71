package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/AlekseyZapadovnikov/msg-stats/internal/models"
)

// CountGroupMessages считает сообщения по группам в полуинтервале [from, to).
// Группы без сообщений в результат не попадают.
func (s *Storage) CountGroupMessages(ctx context.Context, from, to time.Time) ([]models.GroupCount, error) {
	const q = `
SELECT
    COALESCE(g.name, '') AS name,
    COUNT(1) AS msg_count
FROM gt_messages m
INNER JOIN gt_message_content c ON m.id = c.id
INNER JOIN gt_groups g ON g.id = m.chat_id
WHERE c.tg_date >= $1
  AND c.tg_date < $2
GROUP BY m.chat_id, g.name
ORDER BY msg_count DESC, g.name
`

	rows, err := s.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("query group message counts: %w", err)
	}
	defer rows.Close()

	result := make([]models.GroupCount, 0)
	for rows.Next() {
		var (
			name     string
			msgCount int64
		)
		if err := rows.Scan(&name, &msgCount); err != nil {
			return nil, fmt.Errorf("scan group message counts: %w", err)
		}
		result = append(result, models.GroupCount{
			Name:     name,
			MsgCount: int(msgCount),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group message counts rows: %w", err)
	}

	return result, nil
}

// CountDailyMessages считает сообщения по календарным датам в полуинтервале [from, to).
// Строки отсортированы по убыванию даты. groupID ограничивает выборку одним чатом.
func (s *Storage) CountDailyMessages(ctx context.Context, from, to time.Time, groupID *int64) ([]models.DailyRow, error) {
	const (
		qAll = `
SELECT
    DATE(c.tg_date) AS msg_date,
    COUNT(1) AS nr_msg
FROM gt_message_content c
WHERE c.tg_date >= $1
  AND c.tg_date < $2
GROUP BY msg_date
ORDER BY msg_date DESC
`
		qGroup = `
SELECT
    DATE(c.tg_date) AS msg_date,
    COUNT(1) AS nr_msg
FROM gt_message_content c
INNER JOIN gt_messages m ON m.id = c.id
WHERE c.tg_date >= $1
  AND c.tg_date < $2
  AND m.chat_id = $3
GROUP BY msg_date
ORDER BY msg_date DESC
`
	)

	q, args := qAll, []any{from, to}
	if groupID != nil {
		q, args = qGroup, append(args, *groupID)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily message counts: %w", err)
	}
	defer rows.Close()

	var result []models.DailyRow
	for rows.Next() {
		var (
			msgDate time.Time
			nrMsg   int64
		)
		if err := rows.Scan(&msgDate, &nrMsg); err != nil {
			return nil, fmt.Errorf("scan daily message counts: %w", err)
		}
		result = append(result, models.DailyRow{
			MsgDate: msgDate.Format(models.DateLayout),
			NrMsg:   int(nrMsg),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily message counts rows: %w", err)
	}

	return result, nil
}
