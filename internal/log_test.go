package internal

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestGetRequestLogger(t *testing.T) {
	for _, tt := range []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7:51234",
		},
		{
			name:       "behind a private proxy",
			remoteAddr: "10.0.0.2:8080",
			xff:        "198.51.100.4",
			want:       "198.51.100.4:8080",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.New(slog.NewJSONHandler(&buf, nil))

			req := httptest.NewRequest("POST", "http://chorum.test/api/pow/thread/begin", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			GetRequestLogger(base, req).Info("hi")

			var rec map[string]any
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatal(err)
			}

			if rec["path"] != "/api/pow/thread/begin" {
				t.Errorf("path = %v", rec["path"])
			}

			if rec["method"] != "POST" {
				t.Errorf("method = %v", rec["method"])
			}

			if rec["remote_addr"] != tt.want {
				t.Errorf("remote_addr = %v, want %s", rec["remote_addr"], tt.want)
			}
		})
	}
}
