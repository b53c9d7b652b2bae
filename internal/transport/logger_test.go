package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Raimguzhinov/everest/pkg/logger"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	client := NewClient(time.Second, logger.NewWithWriter(&buf, "debug", "dev"))

	req, err := http.NewRequest("PROPFIND", srv.URL+"/user/", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "transport/logger", rec["component"])
	assert.Contains(t, rec["msg"], "PROPFIND "+srv.URL+"/user/")
	assert.Contains(t, rec["msg"], "207")
}

func TestLogger_RoundTripFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	client := NewClient(time.Second, logger.NewWithWriter(&buf, "info", "dev"))

	_, err := client.Get(url + "/x")
	require.Error(t, err)
	assert.True(t, strings.Contains(buf.String(), `"level":"WARN"`))
	assert.Contains(t, buf.String(), "failed")
}

func TestLogger_RedactsPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var buf bytes.Buffer
	client := NewClient(time.Second, logger.NewWithWriter(&buf, "debug", "dev"))

	u := strings.Replace(srv.URL, "http://", "http://user:secret@", 1)
	resp, err := client.Get(u)
	require.NoError(t, err)
	resp.Body.Close()

	assert.NotContains(t, buf.String(), "secret")
}

func TestNewLogger_NilLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := &http.Client{Transport: NewLogger(nil, nil)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestColorStatus(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	assert.Equal(t, "101", colorStatus(101))
	assert.Equal(t, "200", colorStatus(200))
	assert.Equal(t, "304", colorStatus(304))
	assert.Equal(t, "412", colorStatus(412))
	assert.Equal(t, "503", colorStatus(503))
}
