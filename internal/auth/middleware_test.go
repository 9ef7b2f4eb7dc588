package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func captureCapability(got *Capability) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := CapabilityFrom(r.Context())
		*got = c
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	code, _ := body["code"].(string)
	return code
}

func TestRequireDeviceKey(t *testing.T) {
	tests := []struct {
		name       string
		gate       DeviceKeyGate
		header     string
		key        string
		wantStatus int
		wantCode   string
	}{
		{name: "valid key", gate: DeviceKeyGate{Secret: "k"}, header: DefaultDeviceHeader, key: "k", wantStatus: http.StatusNoContent},
		{name: "custom header", gate: DeviceKeyGate{HeaderName: "X-Probe-Key", Secret: "k"}, header: "X-Probe-Key", key: "k", wantStatus: http.StatusNoContent},
		{name: "key in wrong header", gate: DeviceKeyGate{HeaderName: "X-Probe-Key", Secret: "k"}, header: DefaultDeviceHeader, key: "k", wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "wrong key", gate: DeviceKeyGate{Secret: "k"}, header: DefaultDeviceHeader, key: "x", wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "missing secret", gate: DeviceKeyGate{}, header: DefaultDeviceHeader, key: "k", wantStatus: http.StatusInternalServerError, wantCode: "server_misconfigured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Capability
			h := RequireDeviceKey(tt.gate)(captureCapability(&got))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", nil)
			req.Header.Set(tt.header, tt.key)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNoContent {
				if _, ok := got.(DeviceKeyAuth); !ok {
					t.Errorf("capability = %#v; want DeviceKeyAuth", got)
				}
				return
			}
			if got != nil {
				t.Errorf("next handler called on rejected request")
			}
			if code := decodeCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q; want %q", code, tt.wantCode)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	token, err := IssueSessionToken(User{ID: "usr-9", Name: "Grace"}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken() error = %v", err)
	}

	t.Run("valid session carries user", func(t *testing.T) {
		var got Capability
		h := RequireSession(JWTSessionResolver{Secret: testSecret})(captureCapability(&got))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusNoContent)
		}
		s, ok := got.(SessionAuth)
		if !ok {
			t.Fatalf("capability = %#v; want SessionAuth", got)
		}
		if s.User.ID != "usr-9" || s.User.Name != "Grace" {
			t.Errorf("user = %+v", s.User)
		}
	})

	t.Run("device key does not grant a session", func(t *testing.T) {
		var got Capability
		h := RequireSession(JWTSessionResolver{Secret: testSecret})(captureCapability(&got))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
		req.Header.Set(DefaultDeviceHeader, "device-secret")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("missing session secret is a server error", func(t *testing.T) {
		var got Capability
		h := RequireSession(JWTSessionResolver{})(captureCapability(&got))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func TestSessionUser(t *testing.T) {
	ctx := WithCapability(t.Context(), DeviceKeyAuth{})
	if _, ok := SessionUser(ctx); ok {
		t.Error("SessionUser() ok on device capability")
	}
	ctx = WithCapability(ctx, SessionAuth{User: User{ID: "u"}})
	u, ok := SessionUser(ctx)
	if !ok || u.ID != "u" {
		t.Errorf("SessionUser() = %+v, %v; want u, true", u, ok)
	}
}
