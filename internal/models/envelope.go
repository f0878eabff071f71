package models

// Envelope - общий формат ответа API: {is_ok, msg, data}.
type Envelope[T any] struct {
	IsOK bool    `json:"is_ok"`
	Msg  *string `json:"msg"`
	Data T       `json:"data"`
}

// OK оборачивает успешный результат.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{IsOK: true, Data: data}
}

// Fail формирует ответ с ошибкой и пустыми данными.
func Fail(msg string) Envelope[any] {
	return Envelope[any]{IsOK: false, Msg: &msg}
}

// IsError сообщает, что операция завершилась ошибкой.
func (e Envelope[T]) IsError() bool {
	return !e.IsOK
}
