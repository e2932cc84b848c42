package rest

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	writeJSON(w, apperrors.HTTPStatus(err), errorBody{
		Code:    string(code),
		Message: err.Error(),
	})
}
