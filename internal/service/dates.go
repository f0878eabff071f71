package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type layoutPart int

const (
	partOther layoutPart = iota
	partYear
	partMonth
	partDay
)

// layoutTokens перечислены так, чтобы более длинный токен проверялся раньше своего префикса.
var layoutTokens = []struct {
	tok  string
	part layoutPart
}{
	{"January", partMonth}, {"Jan", partMonth},
	{"Monday", partOther}, {"Mon", partOther}, {"MST", partOther},
	{"2006", partYear},
	{"Z07:00", partOther}, {"Z0700", partOther}, {"Z07", partOther},
	{"-07:00", partOther}, {"-0700", partOther}, {"-07", partOther},
	{"01", partMonth}, {"02", partDay}, {"03", partOther}, {"04", partOther}, {"05", partOther}, {"06", partYear},
	{"_2", partDay}, {"15", partOther},
	{"1", partMonth}, {"2", partDay}, {"3", partOther}, {"4", partOther}, {"5", partOther},
	{"PM", partOther}, {"pm", partOther},
	{"UTC", partOther}, {"GMT", partOther},
}

// parseStrictDate разбирает дату в свободном формате, но требует, чтобы в ней были год, месяц и день,
// а вся строка без остатка соответствовала распознанной раскладке.
func parseStrictDate(value string, loc *time.Location) (time.Time, error) {
	layout, err := dateparse.ParseFormat(value)
	if err != nil {
		return time.Time{}, err
	}
	if err := checkDateLayout(layout); err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(layout, value, loc)
}

// checkDateLayout проверяет раскладку time.Parse: только известные токены и разделители,
// обязательно присутствуют год, месяц и день.
func checkDateLayout(layout string) error {
	var year, month, day bool
	for i := 0; i < len(layout); {
		if n := fractionLen(layout[i:]); n > 0 {
			i += n
			continue
		}

		matched := false
		for _, lt := range layoutTokens {
			if strings.HasPrefix(layout[i:], lt.tok) {
				switch lt.part {
				case partYear:
					year = true
				case partMonth:
					month = true
				case partDay:
					day = true
				}
				i += len(lt.tok)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		switch layout[i] {
		case ' ', '-', '/', '.', ':', ',', 'T', 'Z':
			i++
		default:
			return fmt.Errorf("unexpected %q in date layout %q", layout[i:], layout)
		}
	}

	if !year || !month || !day {
		return fmt.Errorf("date layout %q lacks year, month or day", layout)
	}
	return nil
}

// fractionLen возвращает длину токена долей секунды вида .000 или ,999.
func fractionLen(s string) int {
	if len(s) < 2 || (s[0] != '.' && s[0] != ',') || (s[1] != '0' && s[1] != '9') {
		return 0
	}
	digit := s[1]
	n := 1
	for n < len(s) && s[n] == digit {
		n++
	}
	// ".01" в "2006.01.02" - разделитель и месяц, а не доли секунды.
	if n < len(s) && s[n] >= '0' && s[n] <= '9' {
		return 0
	}
	return n
}
