package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/fault"
)

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// writeError maps fault kinds to HTTP statuses; anything else is a 500 with
// the details kept out of the response.
func writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	status := fault.HTTPStatus(kind)
	msg := "internal error"
	var fe *fault.Error
	if errors.As(err, &fe) && kind != fault.KindInternal {
		msg = fe.Message
	} else {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, errorBody{Status: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Status: http.StatusBadRequest, Message: msg})
}
