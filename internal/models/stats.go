package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout - формат календарной даты в ответах API.
const DateLayout = "2006-01-02"

// GroupCount показывает, сколько сообщений пришло в группу за день.
type GroupCount struct {
	Name     string `json:"name"`
	MsgCount int    `json:"msg_count"`
}

// DailyRow - строка агрегации по дням, как её возвращает хранилище.
type DailyRow struct {
	MsgDate string `json:"msg_date"`
	NrMsg   int    `json:"nr_msg"`
}

// DayCount - количество сообщений за одну календарную дату.
type DayCount struct {
	Date  string
	Count int
}

// DailyCounts - упорядоченное отображение дата -> количество сообщений.
// Порядок ключей совпадает с порядком вставки.
type DailyCounts struct {
	days  []DayCount
	index map[string]int
}

// NewDailyCounts строит отображение с нулём для каждого дня от from до to включительно.
// Шаг - календарный день в часовом поясе from, поэтому переходы на летнее время не ломают ряд.
func NewDailyCounts(from, to time.Time) *DailyCounts {
	dc := &DailyCounts{index: make(map[string]int)}
	loc := from.Location()
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	for day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc); !day.After(end); day = day.AddDate(0, 0, 1) {
		dc.add(day.Format(DateLayout), 0)
	}
	return dc
}

func (dc *DailyCounts) add(date string, count int) {
	if dc.index == nil {
		dc.index = make(map[string]int)
	}
	dc.index[date] = len(dc.days)
	dc.days = append(dc.days, DayCount{Date: date, Count: count})
}

// Set перезаписывает счётчик существующей даты. Возвращает false, если даты нет в диапазоне.
func (dc *DailyCounts) Set(date string, count int) bool {
	i, ok := dc.index[date]
	if !ok {
		return false
	}
	dc.days[i].Count = count
	return true
}

// Get возвращает счётчик для даты.
func (dc *DailyCounts) Get(date string) (int, bool) {
	i, ok := dc.index[date]
	if !ok {
		return 0, false
	}
	return dc.days[i].Count, true
}

// Len возвращает количество дат.
func (dc *DailyCounts) Len() int {
	return len(dc.days)
}

// Days возвращает копию дат в порядке возрастания.
func (dc *DailyCounts) Days() []DayCount {
	out := make([]DayCount, len(dc.days))
	copy(out, dc.days)
	return out
}

// Total суммирует все счётчики.
func (dc *DailyCounts) Total() int {
	total := 0
	for _, d := range dc.days {
		total += d.Count
	}
	return total
}

// MarshalJSON сериализует отображение в JSON-объект, сохраняя порядок дат.
func (dc *DailyCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range dc.days {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d.Date)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", d.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON восстанавливает отображение из JSON-объекта в порядке следования ключей.
func (dc *DailyCounts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("daily counts: expected object, got %v", tok)
	}

	*dc = DailyCounts{index: make(map[string]int)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		date, ok := tok.(string)
		if !ok {
			return fmt.Errorf("daily counts: unexpected key %v", tok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("daily counts: value for %s: %w", date, err)
		}
		dc.add(date, count)
	}
	_, err = dec.Token()
	return err
}
