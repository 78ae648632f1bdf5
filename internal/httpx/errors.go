package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

var kindStatus = map[orders.Kind]int{
	orders.KindValidation:            http.StatusBadRequest,
	orders.KindInvalidOption:         http.StatusBadRequest,
	orders.KindMissingRequiredOption: http.StatusBadRequest,
	orders.KindInsufficientPayment:   http.StatusBadRequest,
	orders.KindInvalidStatus:         http.StatusBadRequest,
	orders.KindNotFound:              http.StatusNotFound,
	orders.KindUnavailable:           http.StatusConflict,
	orders.KindInsufficientStock:     http.StatusConflict,
	orders.KindInvalidTransition:     http.StatusConflict,
	orders.KindConflict:              http.StatusConflict,
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: kind, Message: msg})
}

// writeErr maps order errors to their status. Anything else is a 500 and
// its text stays in the log.
func writeErr(w http.ResponseWriter, log *slog.Logger, err error) {
	if kind := orders.KindOf(err); kind != "" {
		writeError(w, kindStatus[kind], string(kind), err.Error())
		return
	}
	log.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
