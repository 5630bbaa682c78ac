package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/flatapi/internal/uptime"
)

type memoryChecks struct {
	mu     sync.Mutex
	checks map[string]*uptime.Check
}

func (m *memoryChecks) AllChecks(context.Context) ([]uptime.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]uptime.Check, 0, len(m.checks))
	for _, check := range m.checks {
		result = append(result, *check)
	}
	return result, nil
}

func (m *memoryChecks) RecordOutcome(_ context.Context, id, state string, at time.Time) (*uptime.Check, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	check := m.checks[id]
	previous := check.State
	check.State = state
	check.LastChecked = &at
	stored := *check

	return &stored, previous != "" && previous != state, nil
}

func (m *memoryChecks) state(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks[id].State
}

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) SendSMS(_ context.Context, phone, msg string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, phone+": "+msg)
	return "SM1", nil
}

func (a *recordingAlerter) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

func newCheck(id, target, method string, codes ...int) *uptime.Check {
	protocol, host, _ := strings.Cut(target, "://")
	return &uptime.Check{
		ID:             id,
		UserPhone:      "5551234567",
		Protocol:       protocol,
		URL:            host,
		Method:         method,
		SuccessCodes:   codes,
		TimeoutSeconds: 1,
	}
}

func TestRunOnceRecordsStatesAndAlertsOnChange(t *testing.T) {
	var healthy sync.Mutex
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/moved":
			http.Redirect(w, r, "/elsewhere", http.StatusMovedPermanently)
		default:
			healthy.Lock()
			defer healthy.Unlock()
			w.WriteHeader(status)
		}
	}))
	defer server.Close()

	store := &memoryChecks{checks: map[string]*uptime.Check{
		"flappy":   newCheck("flappy", server.URL+"/health", "get", 200),
		"redirect": newCheck("redirect", server.URL+"/moved", "get", 301),
		"posting":  newCheck("posting", server.URL+"/health", "post", 201),
		"offline":  newCheck("offline", "http://127.0.0.1:1", "get", 200),
	}}
	alerter := &recordingAlerter{}
	checker := New(store, alerter, 2)

	require.NoError(t, checker.RunOnce(context.Background()))

	assert.Equal(t, uptime.StateUp, store.state("flappy"))
	assert.Equal(t, uptime.StateUp, store.state("redirect"))
	assert.Equal(t, uptime.StateDown, store.state("posting"))
	assert.Equal(t, uptime.StateDown, store.state("offline"))
	assert.Empty(t, alerter.sent())

	healthy.Lock()
	status = http.StatusInternalServerError
	healthy.Unlock()

	require.NoError(t, checker.RunOnce(context.Background()))

	assert.Equal(t, uptime.StateDown, store.state("flappy"))
	sent := alerter.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "5551234567: Alert: Your check for GET ")
	assert.Contains(t, sent[0], "/health is currently down")
}

func TestStartRejectsBadSpec(t *testing.T) {
	checker := New(&memoryChecks{checks: map[string]*uptime.Check{}}, nil, 1)

	_, err := checker.Start(context.Background(), "not a spec")
	assert.Error(t, err)

	stop, err := checker.Start(context.Background(), "@every 1h")
	require.NoError(t, err)
	stop()
}
