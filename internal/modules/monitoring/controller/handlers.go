package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempmon-server/internal/auth"
	"tempmon-server/internal/modules/monitoring/types"
	"tempmon-server/internal/utils"
)

func (c *monitoringControllerImpl) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.WriteText(w, http.StatusOK, "OK")
}

func (c *monitoringControllerImpl) handlePrivate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.SessionUser(r.Context())
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "This is private",
		"user":    user,
	})
}

func (c *monitoringControllerImpl) handleAddReading(w http.ResponseWriter, r *http.Request) {
	var in types.ReadingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := c.service.RecordReading(r.Context(), in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, types.AckResponse{
		Success: true,
		Message: "Reading added successfully",
	})
}

func (c *monitoringControllerImpl) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := c.service.ListDevices(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, devices)
}

type registerDeviceRequest struct {
	Name     string  `json:"name"`
	Location *string `json:"location"`
}

func (c *monitoringControllerImpl) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	device, err := c.service.RegisterDevice(r.Context(), types.Device{
		ID:       chi.URLParam(r, "id"),
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, device)
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

func (c *monitoringControllerImpl) handleSetDeviceActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.IsActive == nil {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeValidation, "isActive is required")
		return
	}
	if err := c.service.SetDeviceActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *monitoringControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	readings, err := c.service.GetReadings(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *monitoringControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	readings, err := c.service.GetLatestReadings(r.Context(), r.URL.Query().Get("deviceId"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *monitoringControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	stats, err := c.service.GetStats(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *monitoringControllerImpl) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := c.service.ExportCSV(r.Context(), &buf, f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("export csv: write response failed", "error", err)
	}
}
