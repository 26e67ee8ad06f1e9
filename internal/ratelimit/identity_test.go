package ratelimit

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIdentifierDeterministic(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", "Mozilla/5.0")

	first := ClientIdentifier(r)
	second := ClientIdentifier(r)

	assert.Equal(t, first, second)
}

func TestClientIdentifierDistinctPerIP(t *testing.T) {
	a := httptest.NewRequest("POST", "/auth/login", nil)
	a.Header.Set("X-Forwarded-For", "203.0.113.7")
	a.Header.Set("User-Agent", "Mozilla/5.0")

	b := httptest.NewRequest("POST", "/auth/login", nil)
	b.Header.Set("X-Forwarded-For", "203.0.113.8")
	b.Header.Set("User-Agent", "Mozilla/5.0")

	assert.NotEqual(t, ClientIdentifier(a), ClientIdentifier(b))
}

func TestClientIdentifierDistinctPerUserAgent(t *testing.T) {
	a := httptest.NewRequest("POST", "/auth/login", nil)
	a.Header.Set("X-Forwarded-For", "203.0.113.7")
	a.Header.Set("User-Agent", "Mozilla/5.0")

	b := httptest.NewRequest("POST", "/auth/login", nil)
	b.Header.Set("X-Forwarded-For", "203.0.113.7")
	b.Header.Set("User-Agent", "curl/8.5.0")

	assert.NotEqual(t, ClientIdentifier(a), ClientIdentifier(b))
}

func TestClientIdentifierHeaderPriority(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantIP  string
	}{
		{
			name: "forwarded-for wins and takes first entry",
			headers: map[string]string{
				"X-Forwarded-For":  "203.0.113.7, 10.0.0.1, 10.0.0.2",
				"X-Real-IP":        "198.51.100.1",
				"CF-Connecting-IP": "198.51.100.2",
			},
			wantIP: "203.0.113.7",
		},
		{
			name: "real-ip next",
			headers: map[string]string{
				"X-Real-IP":        "198.51.100.1",
				"CF-Connecting-IP": "198.51.100.2",
			},
			wantIP: "198.51.100.1",
		},
		{
			name: "cdn connecting ip next",
			headers: map[string]string{
				"CF-Connecting-IP": "198.51.100.2",
			},
			wantIP: "198.51.100.2",
		},
		{
			name:    "no headers falls back to unknown",
			headers: map[string]string{},
			wantIP:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/auth/login", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			r.Header.Set("User-Agent", "Mozilla/5.0")

			decoded, err := base64.StdEncoding.DecodeString(ClientIdentifier(r))
			assert.NoError(t, err)
			assert.Equal(t, tt.wantIP+":Mozilla/5.0", string(decoded))
		})
	}
}

func TestClientIdentifierTruncatesUserAgent(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", strings.Repeat("a", 500))

	decoded, err := base64.StdEncoding.DecodeString(ClientIdentifier(r))
	assert.NoError(t, err)
	assert.Equal(t, "203.0.113.7:"+strings.Repeat("a", 100), string(decoded))
}
