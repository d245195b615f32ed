package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	apperr "taskboard/internal/pkg/errors"
	"taskboard/internal/platform/audit"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body leaves v untouched, so that
// validation reports the missing fields.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return apperr.Invalid("Invalid request body")
	}
	return nil
}

// respond writes v, or a not found error with message missing when the
// service found nothing to act on.
func respond[T any](w http.ResponseWriter, status int, v *T, err error, missing string) {
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if v == nil {
		apperr.WriteAppError(w, apperr.NotFound("%s", missing))
		return
	}
	writeJSON(w, status, v)
}

func respondList[T any](w http.ResponseWriter, v []T, err error, missing string) {
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if v == nil {
		apperr.WriteAppError(w, apperr.NotFound("%s", missing))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// activityPage reads limit/offset paging. Out of range values are clamped by
// the audit reader.
func activityPage(r *http.Request) audit.Page {
	return audit.Page{Limit: queryInt(r, "limit"), Offset: queryInt(r, "offset")}
}

type paged struct {
	Data       interface{} `json:"data"`
	Pagination interface{} `json:"pagination"`
}
