package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"tempmon-server/internal/utils"
)

// WriteError maps an auth failure to its HTTP response. Anything that is not
// ErrServerMisconfigured is answered as 401.
func WriteError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrServerMisconfigured) {
		slog.Error("auth check failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerMisconfigured, "server misconfigured")
		return
	}
	utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
}

// RequireSession admits requests whose session resolves to a user.
func RequireSession(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r)
			if err != nil {
				slog.Debug("session rejected", "path", r.URL.Path, "error", err)
				WriteError(w, err)
				return
			}
			ctx := WithCapability(r.Context(), SessionAuth{User: *user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireDeviceKey admits requests carrying the device key in the gate's header.
func RequireDeviceKey(gate DeviceKeyGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Authorize(r.Header.Get(gate.Header())); err != nil {
				slog.Debug("device key rejected", "path", r.URL.Path, "error", err)
				WriteError(w, err)
				return
			}
			ctx := WithCapability(r.Context(), DeviceKeyAuth{})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
