package domain

import (
	"errors"
	"fmt"
)

// Сентинельные ошибки домена, используемые сервисами, репозиториями и веб-слоем.
var (
	ErrInvalidDate  = errors.New("INVALID_DATE")
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrQuery        = errors.New("QUERY_FAILED")
)

// Коды результата операции. Ноль означает успех.
const (
	CodeOK = iota
	CodeInvalidDate
	CodeInvalidRange
	CodeQuery
	CodeInternal
)

// NewInvalidDateError сообщает, что строку не удалось разобрать как дату.
func NewInvalidDateError(param, value string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s %q is not a valid date", ErrInvalidDate, param, value)
	}
	return fmt.Errorf("%w: %s %q is not a valid date: %v", ErrInvalidDate, param, value, cause)
}

// NewInvertedRangeError используется, когда начало диапазона позже конца.
func NewInvertedRangeError(start, end string) error {
	return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidRange, start, end)
}

// NewRangeTooLongError сообщает о превышении допустимой длины диапазона.
func NewRangeTooLongError(days, limit int) error {
	return fmt.Errorf("%w: range of %d days exceeds limit of %d days", ErrInvalidRange, days, limit)
}

// NewQueryError оборачивает сбой хранилища.
func NewQueryError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrQuery, op, cause)
}

// ErrorCode переводит ошибку операции в числовой код результата.
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidDate):
		return CodeInvalidDate
	case errors.Is(err, ErrInvalidRange):
		return CodeInvalidRange
	case errors.Is(err, ErrQuery):
		return CodeQuery
	default:
		return CodeInternal
	}
}
