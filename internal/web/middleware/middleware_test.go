package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/tplimport/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	trusted := []string{"10.0.0.0/8", "192.0.2.1", "not-an-ip", ""}

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{
			name:   "untrusted peer keeps remote addr",
			remote: "198.51.100.9:4000",
			header: map[string]string{"X-Real-IP": "203.0.113.1"},
			want:   "198.51.100.9:4000",
		},
		{
			name:   "trusted cidr uses X-Real-IP",
			remote: "10.1.2.3:4000",
			header: map[string]string{"X-Real-IP": "203.0.113.1"},
			want:   "203.0.113.1",
		},
		{
			name:   "trusted single ip uses first forwarded hop",
			remote: "192.0.2.1:4000",
			header: map[string]string{"X-Forwarded-For": "203.0.113.2, 10.0.0.1"},
			want:   "203.0.113.2",
		},
		{
			name:   "X-Real-IP wins over X-Forwarded-For",
			remote: "10.0.0.1:4000",
			header: map[string]string{"X-Real-IP": "203.0.113.3", "X-Forwarded-For": "203.0.113.4"},
			want:   "203.0.113.3",
		},
		{
			name:   "invalid header value is ignored",
			remote: "10.0.0.1:4000",
			header: map[string]string{"X-Real-IP": "garbage"},
			want:   "10.0.0.1:4000",
		},
		{
			name:   "trusted peer without headers",
			remote: "10.0.0.1:4000",
			want:   "10.0.0.1:4000",
		},
	}

	handler := TrustedRealIP(trusted)(echoRemoteAddr())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestTrustedRealIP_NoProxiesConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	req.Header.Set("X-Real-IP", "203.0.113.1")

	rec := httptest.NewRecorder()
	TrustedRealIP(nil)(echoRemoteAddr()).ServeHTTP(rec, req)
	assert.Equal(t, "127.0.0.1:9000", rec.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		cfg      config.SecurityConfig
		key      string
		wantCode int
	}{
		{name: "auth disabled", cfg: config.SecurityConfig{}, wantCode: http.StatusNoContent},
		{name: "missing key", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, wantCode: http.StatusUnauthorized},
		{name: "invalid key", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, key: "k2", wantCode: http.StatusForbidden},
		{name: "second key accepted", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, key: "k2", wantCode: http.StatusNoContent},
		{name: "no keys configured rejects all", cfg: config.SecurityConfig{RequireAPIKey: true}, key: "k1", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(&tt.cfg)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if rec.Code >= http.StatusBadRequest {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/templates/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"bytes":7`)
	assert.Contains(t, out, `"path":"/api/templates/x"`)
}
