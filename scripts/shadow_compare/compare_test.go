package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodiesEqualIgnoresVolatileKeys(t *testing.T) {
	a := []byte(`{"data":[{"id":"c1","enrolledCount":1,"createdAt":"2025-01-01T00:00:00Z"}]}`)
	b := []byte(`{"data":[{"id":"c1","enrolledCount":1.0,"createdAt":"2025-02-02T00:00:00Z"}]}`)
	assert.True(t, bodiesEqual(a, b))

	c := []byte(`{"data":[{"id":"c1","enrolledCount":2}]}`)
	assert.False(t, bodiesEqual(a, c))
	assert.False(t, bodiesEqual([]byte("a,b\n"), []byte("a,c\n")))
}

func TestRunComparesBothSides(t *testing.T) {
	var sawToken string
	goAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawToken = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer goAPI.Close()
	legacy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/activities" {
			w.WriteHeader(http.StatusForbidden)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer legacy.Close()

	opts := options{goBase: goAPI.URL, legacyBase: legacy.URL, token: "tkn", parallel: 2}
	targets := []target{
		{Method: http.MethodGet, Path: "/api/courses", Critical: true},
		{Method: http.MethodGet, Path: "api/activities", Auth: true, Critical: true},
	}
	results := run(context.Background(), goAPI.Client(), opts, targets)
	require.Len(t, results, 2)
	assert.Equal(t, "OK", results[0].outcome())
	assert.Equal(t, "DIFF", results[1].outcome())
	assert.Equal(t, "Bearer tkn", sawToken)

	var out bytes.Buffer
	breaking, optional := printReport(&out, results)
	assert.Equal(t, 1, breaking)
	assert.Zero(t, optional)
	assert.Contains(t, out.String(), "[DIFF] GET api/activities")
}
