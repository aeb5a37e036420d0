package shodan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

const hostFixture = `{
  "ip_str": "1.2.3.4",
  "os": null,
  "ports": [443, 80],
  "data": [
    {
      "port": 443,
      "transport": "tcp",
      "hostnames": ["www.example.com", "example.com"],
      "domains": ["example.com"],
      "product": "nginx",
      "version": "1.18.0",
      "vulns": {"CVE-2021-23017": {"cvss": 7.5}, "CVE-2019-20372": {"cvss": 5.3}},
      "timestamp": "2024-05-01T10:00:00.000000"
    },
    {
      "port": 80,
      "transport": "tcp",
      "hostnames": [],
      "domains": [],
      "timestamp": "2024-05-01T09:00:00.000000"
    }
  ]
}`

func TestClientHost(t *testing.T) {
	var gotPath, gotKey, gotMinify string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotMinify = r.URL.Query().Get("minify")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(hostFixture))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret", Minify: true})

	host, err := client.Host(context.Background(), " 1.2.3.4 ")
	require.NoError(t, err)

	assert.Equal(t, "/shodan/host/1.2.3.4", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "true", gotMinify)

	assert.Equal(t, "1.2.3.4", host.IPStr)
	assert.Nil(t, host.OS)
	require.Len(t, host.Data, 2)

	svc := host.Data[0]
	assert.Equal(t, 443, svc.Port)
	assert.Equal(t, []string{"www.example.com", "example.com"}, svc.Hostnames)
	require.NotNil(t, svc.Product)
	assert.Equal(t, "nginx", *svc.Product)
	assert.Len(t, svc.Vulns, 2)
	assert.Contains(t, svc.Vulns, "CVE-2021-23017")

	assert.Nil(t, host.Data[1].Product)
	assert.Nil(t, host.Data[1].Vulns)
}

func TestClientHostErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    errors.ErrorCode
		wantMessage string
	}{
		{
			name:        "no information",
			status:      http.StatusNotFound,
			body:        `{"error": "No information available for that IP."}`,
			wantCode:    errors.CodeHostNotFound,
			wantMessage: "No information available for that IP.",
		},
		{
			name:        "bad key",
			status:      http.StatusUnauthorized,
			body:        `{"error": "Invalid API key"}`,
			wantCode:    errors.CodeUnauthorized,
			wantMessage: "Invalid API key",
		},
		{
			name:        "rate limited without body",
			status:      http.StatusTooManyRequests,
			body:        ``,
			wantCode:    errors.CodeRateLimited,
			wantMessage: "Too Many Requests",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `<html>oops</html>`,
			wantCode:    errors.CodeLookupFailed,
			wantMessage: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
			host, err := client.Host(context.Background(), "8.8.8.8")
			assert.Nil(t, host)
			require.Error(t, err)

			var lookupErr *errors.LookupError
			require.ErrorAs(t, err, &lookupErr)
			assert.Equal(t, tt.wantCode, lookupErr.Code)
			assert.Equal(t, tt.wantMessage, lookupErr.Message)
			assert.Equal(t, tt.status, lookupErr.StatusCode)
			assert.Equal(t, "8.8.8.8", lookupErr.Target)
		})
	}
}

func TestClientHostInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip_str": `))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Host(context.Background(), "1.1.1.1")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidPayload))
}

func TestClientHostEmptyAddress(t *testing.T) {
	_, err := NewClient(Config{}).Host(context.Background(), "   ")
	assert.True(t, errors.IsCode(err, errors.CodeLookupFailed))
}

func TestClientHostCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(Config{BaseURL: server.URL}).Host(ctx, "1.1.1.1")
	assert.True(t, errors.IsCode(err, errors.CodeCanceled))
}

func TestClientHostRedactsKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "topsecret", Timeout: time.Second})

	_, err := client.Host(context.Background(), "1.1.1.1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "topsecret")
}
