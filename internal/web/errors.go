package web

import (
	"net/http"

	"github.com/AlekseyZapadovnikov/msg-stats/internal/models"
)

// errorCodeHeader дублирует машинный код ошибки, так как конверт ответа содержит только текст.
const errorCodeHeader = "X-Error-Code"

// writeError формирует конверт {is_ok: false, msg, data: null} и проставляет код ошибки в заголовок.
func writeError(w http.ResponseWriter, status int, code, message string) {
	if code != "" {
		w.Header().Set(errorCodeHeader, code)
	}
	writeJSON(w, status, models.Fail(message))
}

// writeDomainError переводит ошибку сервиса в HTTP-ответ.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code, msg := mapDomainError(err)
	writeError(w, status, code, msg)
}
