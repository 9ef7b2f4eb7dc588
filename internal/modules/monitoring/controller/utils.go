package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tempmon-server/internal/modules/monitoring/types"
	"tempmon-server/internal/utils"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

var errBadQuery = errors.New("bad query")

func parseTimeParam(q map[string][]string, name string) (*time.Time, error) {
	vals := q[name]
	if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid '%s' (expected RFC3339)", errBadQuery, name)
	}
	return &t, nil
}

// parseLimit returns 0 when limit is absent so the service applies its default.
// An explicit limit must be a positive integer; values above the ceiling are
// clamped by the service.
func parseLimit(r *http.Request) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get("limit"))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid 'limit' (expected integer)", errBadQuery)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: 'limit' must be > 0", errBadQuery)
	}
	return n, nil
}

func parseFilter(r *http.Request) (types.Filter, error) {
	q := r.URL.Query()
	var f types.Filter
	var err error
	f.DeviceID = strings.TrimSpace(q.Get("deviceId"))
	if f.StartTime, err = parseTimeParam(q, "startTime"); err != nil {
		return types.Filter{}, err
	}
	if f.EndTime, err = parseTimeParam(q, "endTime"); err != nil {
		return types.Filter{}, err
	}
	if f.Limit, err = parseLimit(r); err != nil {
		return types.Filter{}, err
	}
	return f, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadQuery, err)
	}
	return nil
}

// writeServiceError maps domain errors to HTTP. Storage failures are opaque to
// the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadQuery):
		utils.WriteError(w, http.StatusBadRequest, utils.CodeBadRequest, strings.TrimPrefix(err.Error(), errBadQuery.Error()+": "))
	case errors.Is(err, types.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, utils.CodeValidation, err.Error())
	case errors.Is(err, types.ErrDeviceNotFound):
		utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "device not found")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeInternal, "internal error")
	}
}
