// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package scan_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wardsec/go-ward/internal/pattern"
	"github.com/wardsec/go-ward/internal/scan"
)

const testMaxBodySize = 1 << 20

func TestExtract(t *testing.T) {
	t.Run("headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/docs/", nil)
		req.Header.Set("X-Custom", "some value")
		req.Header.Set("Referer", "https://example.com/")
		// Allow-listed headers must not be part of the surface
		req.Header.Set("User-Agent", "curl/8.0")
		req.Header.Set("Accept", "text/html")
		req.Header.Set("Content-Type", "application/json")

		target := scan.Extract(req, testMaxBodySize)
		require.Equal(t, "some value", target.Headers["X-Custom"])
		require.Equal(t, "https://example.com/", target.Headers["Referer"])
		require.NotContains(t, target.Headers, "User-Agent")
		require.NotContains(t, target.Headers, "Accept")
		require.NotContains(t, target.Headers, "Content-Type")
	})

	t.Run("query parameters", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/search/?q=hello&tag=a&tag=b", nil)
		target := scan.Extract(req, testMaxBodySize)
		require.Equal(t, []string{"hello"}, target.Query["q"])
		require.Equal(t, []string{"a", "b"}, target.Query["tag"])
	})

	t.Run("json object body", func(t *testing.T) {
		body := `{"q": "some question", "nested": {"note": "fine", "n": 42}, "tags": ["x", 3]}`
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(body))
		target := scan.Extract(req, testMaxBodySize)
		require.Equal(t, map[string]string{
			"q":           "some question",
			"nested.note": "fine",
			"tags.0":      "x",
		}, target.BodyFields)
		require.Empty(t, target.Body)

		// The body must still be fully readable by the application handler.
		read, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(read))
	})

	t.Run("malformed body falls back to raw string", func(t *testing.T) {
		body := `{"q": not json at all`
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(body))
		target := scan.Extract(req, testMaxBodySize)
		require.Nil(t, target.BodyFields)
		require.Equal(t, body, target.Body)
	})

	t.Run("body larger than the bound is truncated", func(t *testing.T) {
		body := strings.Repeat("A", 100) + "<script>alert(1)</script>"
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(body))
		target := scan.Extract(req, 100)
		require.True(t, target.Truncated)
		require.Equal(t, strings.Repeat("A", 100), target.Body)

		// The handler still reads the whole body.
		read, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(read))
	})

	t.Run("body of exactly the bound size is not truncated", func(t *testing.T) {
		body := strings.Repeat("A", 100)
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(body))
		target := scan.Extract(req, 100)
		require.False(t, target.Truncated)
		require.Equal(t, body, target.Body)

		read, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(read))
	})

	t.Run("no body", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/docs/", nil)
		target := scan.Extract(req, testMaxBodySize)
		require.Empty(t, target.Body)
		require.Nil(t, target.BodyFields)
		require.False(t, target.Truncated)
	})
}

func TestScan(t *testing.T) {
	set := pattern.NewSet(pattern.TierMedium)

	t.Run("clean request", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/query/?page=2", strings.NewReader(`{"q": "how does the laser work?"}`))
		result := scan.Scan(scan.Extract(req, testMaxBodySize), set)
		require.False(t, result.Attack)
	})

	t.Run("xss in json body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(`{"q": "<script>alert(1)</script>"}`))
		result := scan.Scan(scan.Extract(req, testMaxBodySize), set)
		require.True(t, result.Attack)
		require.Equal(t, pattern.AttackXSS, result.Type)
		require.Equal(t, "body:q", result.Surface)
		require.NotEmpty(t, result.Fragment)
	})

	t.Run("sqli in query parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/docs/?id=1+UNION+SELECT+password+FROM+users", nil)
		result := scan.Scan(scan.Extract(req, testMaxBodySize), set)
		require.True(t, result.Attack)
		require.Equal(t, pattern.AttackSQLInjection, result.Type)
		require.Equal(t, "query:id", result.Surface)
	})

	t.Run("attack in header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/docs/", nil)
		req.Header.Set("X-Payload", "../../etc/passwd")
		result := scan.Scan(scan.Extract(req, testMaxBodySize), set)
		require.True(t, result.Attack)
		require.Equal(t, pattern.AttackPathTraversal, result.Type)
		require.Equal(t, "header:X-Payload", result.Surface)
	})

	t.Run("headers scanned before query and body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/query/?cmd=;cat+/etc/passwd", strings.NewReader(`{"q": "<script>x</script>"}`))
		req.Header.Set("X-Payload", "../../etc/passwd")
		result := scan.Scan(scan.Extract(req, testMaxBodySize), set)
		require.True(t, result.Attack)
		require.Equal(t, "header:X-Payload", result.Surface)
	})

	t.Run("non-string json leaves are skipped", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(`{"n": 1337, "ok": true, "none": null}`))
		result := scan.Scan(scan.Extract(req, testMaxBodySize), set)
		require.False(t, result.Attack)
	})

	t.Run("deterministic", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/query/", strings.NewReader(`{"a": "<script>x</script>", "b": "javascript:void(0)"}`))
		target := scan.Extract(req, testMaxBodySize)
		first := scan.Scan(target, set)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, scan.Scan(target, set))
		}
	})
}

func TestClientIP(t *testing.T) {
	for _, tc := range []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		priority   string
		expected   string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "1.2.3.4:1234",
			expected:   "1.2.3.4",
		},
		{
			name:       "x-forwarded-for global address",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.114.7, 10.0.0.1"},
			expected:   "203.0.114.7",
		},
		{
			name:       "private forwarded address falls back to global remote",
			remoteAddr: "1.2.3.4:1234",
			headers:    map[string]string{"X-Forwarded-For": "192.168.0.7"},
			expected:   "1.2.3.4",
		},
		{
			name:       "prioritized header wins",
			remoteAddr: "1.2.3.4:1234",
			headers:    map[string]string{"CF-Connecting-IP": "203.0.114.8", "X-Forwarded-For": "203.0.114.9"},
			priority:   "CF-Connecting-IP",
			expected:   "203.0.114.8",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2a00:1450:4007:80e::200e]:443",
			expected:   "2a00:1450:4007:80e::200e",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tc.headers {
				headers.Set(k, v)
			}
			ip := scan.ClientIP(tc.remoteAddr, headers, tc.priority)
			require.NotNil(t, ip)
			require.Equal(t, tc.expected, ip.String())
		})
	}
}
