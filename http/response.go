package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as the JSON body of a response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding json response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, errorResponse{Error: err.Error()})
}

func BadRequest(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, err)
}

func NotFound(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusNotFound, err)
}

func Conflict(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusConflict, err)
}

func InternalServerError(w http.ResponseWriter, err error) {
	logs.WithTag("status", http.StatusInternalServerError).Error(err)
	WriteError(w, http.StatusInternalServerError, err)
}
