package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegauge/internal/domain"
	"sitegauge/internal/ports"
	"sitegauge/internal/probe"
)

type fakeKeys struct {
	keys    map[string]domain.APIKey // by key string
	credits map[string]int           // by key id
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{keys: map[string]domain.APIKey{}, credits: map[string]int{}}
}

func (f *fakeKeys) add(key string, credits int) domain.APIKey {
	k := domain.APIKey{ID: "id-" + key, Key: key, Credits: credits, CreatedAt: time.Now()}
	f.keys[key] = k
	f.credits[k.ID] = credits
	return k
}

func (f *fakeKeys) CreateKey(ctx context.Context, name string, credits int) (domain.APIKey, error) {
	k := f.add("sg_"+name, credits)
	k.Name = name
	return k, nil
}

func (f *fakeKeys) GetByKey(ctx context.Context, key string) (domain.APIKey, error) {
	k, ok := f.keys[key]
	if !ok {
		return domain.APIKey{}, ports.ErrNotFound
	}
	return k, nil
}

func (f *fakeKeys) ChargeCredit(ctx context.Context, keyID string) (int, error) {
	c, ok := f.credits[keyID]
	if !ok {
		return 0, ports.ErrNotFound
	}
	if c <= 0 {
		return 0, ports.ErrNoCredits
	}
	f.credits[keyID] = c - 1
	return c - 1, nil
}

type fakeChecker struct {
	cached     *domain.Check
	enqueueErr error
	checks     map[string]domain.Check
	lastID     string
}

func (f *fakeChecker) Enqueue(ctx context.Context, rawURL string) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	if f.checks == nil {
		f.checks = map[string]domain.Check{}
	}
	id := fmt.Sprintf("chk-%d", len(f.checks)+1)
	f.checks[id] = domain.Check{ID: id, URL: rawURL, Status: domain.CheckQueued}
	f.lastID = id
	return id, nil
}

func (f *fakeChecker) Cached(ctx context.Context, rawURL string) (domain.Check, bool, error) {
	if f.cached != nil {
		return *f.cached, true, nil
	}
	return domain.Check{}, false, nil
}

func (f *fakeChecker) Get(ctx context.Context, id string) (domain.Check, error) {
	c, ok := f.checks[id]
	if !ok {
		return domain.Check{}, ports.ErrNotFound
	}
	return c, nil
}

type fakeJobs struct{}

func (fakeJobs) ClaimNext(ctx context.Context) (ports.CheckJob, bool, error) {
	return ports.CheckJob{}, false, nil
}
func (fakeJobs) MarkCompleted(ctx context.Context, jobID string) error        { return nil }
func (fakeJobs) MarkFailed(ctx context.Context, jobID, reason string) error   { return nil }
func (fakeJobs) StartJobForCheck(ctx context.Context, id string) (string, error) {
	return "job-" + id, nil
}

// completingProcessor marks the check completed with a canned result, the way
// the real probe processor would.
type completingProcessor struct {
	checker *fakeChecker
	err     error
}

func (p completingProcessor) Process(ctx context.Context, checkID string) error {
	if p.err != nil {
		return p.err
	}
	c := p.checker.checks[checkID]
	c.Status = domain.CheckCompleted
	c.Result = &domain.ProbeResult{
		URL: c.URL, Exists: true, Reachable: true, StatusCode: 200,
		Confidence: 0.85, CheckedAt: time.Now().UTC(),
	}
	p.checker.checks[checkID] = c
	return nil
}

func newTestServer(t *testing.T, checker *fakeChecker, keys *fakeKeys, procErr error, cfg Config) http.Handler {
	t.Helper()
	if cfg.RateLimit == 0 && cfg.RateBurst == 0 {
		cfg.RateLimit = 100
		cfg.RateBurst = 100
	}
	s := New(checker, keys, fakeJobs{}, completingProcessor{checker: checker, err: procErr}, cfg, nil)
	return s.Routes()
}

func doCheck(h http.Handler, apiKey, url, query string) *httptest.ResponseRecorder {
	body := strings.NewReader(`{"url":` + fmt.Sprintf("%q", url) + `}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/check"+query, body)
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCheck_RequiresAPIKey(t *testing.T) {
	h := newTestServer(t, &fakeChecker{}, newFakeKeys(), nil, Config{})

	w := doCheck(h, "", "https://example.com", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doCheck(h, "sg_unknown", "https://example.com", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheck_SyncSuccess(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_test", 10)
	checker := &fakeChecker{}
	h := newTestServer(t, checker, keys, nil, Config{})

	w := doCheck(h, "sg_test", "https://example.com", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.CheckCompleted, resp.Status)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.CorrelationID)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Reachable)
	assert.InDelta(t, 0.85, resp.Result.Confidence, 1e-9)

	assert.Equal(t, 9, keys.credits["id-sg_test"], "one credit charged")
}

func TestCheck_CacheHitStillCharged(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_test", 2)
	cached := &domain.Check{
		ID: "chk-cached", URL: "https://example.com/", Status: domain.CheckCompleted,
		Result: &domain.ProbeResult{Reachable: true, Confidence: 0.9},
	}
	h := newTestServer(t, &fakeChecker{cached: cached}, keys, nil, Config{})

	w := doCheck(h, "sg_test", "https://example.com", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, "chk-cached", resp.CheckID)
	assert.Equal(t, 1, keys.credits["id-sg_test"], "cache hits are charged too")
}

func TestCheck_NoCreditsIs402(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_broke", 0)
	h := newTestServer(t, &fakeChecker{}, keys, nil, Config{})

	w := doCheck(h, "sg_broke", "https://example.com", "")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestCheck_RateLimited(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_test", 100)
	h := newTestServer(t, &fakeChecker{}, keys, nil, Config{RateLimit: 1, RateBurst: 1})

	w := doCheck(h, "sg_test", "https://example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = doCheck(h, "sg_test", "https://example.com", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCheck_BadInput(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_test", 100)

	t.Run("url too long", func(t *testing.T) {
		h := newTestServer(t, &fakeChecker{}, keys, nil, Config{})
		w := doCheck(h, "sg_test", "https://example.com/"+strings.Repeat("a", maxURLLen), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid url maps to 400", func(t *testing.T) {
		checker := &fakeChecker{enqueueErr: fmt.Errorf("%w: bad scheme", probe.ErrInvalidInput)}
		h := newTestServer(t, checker, keys, nil, Config{})
		w := doCheck(h, "sg_test", "ftp://example.com", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCheck_ProbeErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ssrf blocked", fmt.Errorf("%w: 10.0.0.1", probe.ErrSSRFBlocked), http.StatusUnprocessableEntity},
		{"timeout", fmt.Errorf("%w: deadline", probe.ErrTimeout), http.StatusGatewayTimeout},
		{"network", fmt.Errorf("%w: refused", probe.ErrNetwork), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := newFakeKeys()
			keys.add("sg_test", 100)
			h := newTestServer(t, &fakeChecker{}, keys, tt.err, Config{})
			w := doCheck(h, "sg_test", "https://example.com", "")
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestCheck_Async(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_test", 100)
	checker := &fakeChecker{}
	h := newTestServer(t, checker, keys, nil, Config{})

	w := doCheck(h, "sg_test", "https://example.com", "?async=true")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.CheckQueued, resp.Status)
	assert.NotEmpty(t, resp.CheckID)

	// Status endpoint sees the queued check.
	req := httptest.NewRequest(http.MethodGet, "/v1/checks/"+resp.CheckID, nil)
	req.Header.Set("X-Api-Key", "sg_test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetCheck_NotFound(t *testing.T) {
	keys := newFakeKeys()
	keys.add("sg_test", 100)
	h := newTestServer(t, &fakeChecker{checks: map[string]domain.Check{}}, keys, nil, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/checks/nope", nil)
	req.Header.Set("X-Api-Key", "sg_test")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateKey_AdminGate(t *testing.T) {
	keys := newFakeKeys()
	h := newTestServer(t, &fakeChecker{}, keys, nil, Config{AdminToken: "topsecret"})

	body := strings.NewReader(`{"name":"acme","credits":50}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/keys", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code, "missing admin token")

	body = strings.NewReader(`{"name":"acme","credits":50}`)
	req = httptest.NewRequest(http.MethodPost, "/v1/keys", body)
	req.Header.Set("X-Admin-Token", "topsecret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme", resp["name"])
	assert.EqualValues(t, 50, resp["credits"])
	assert.NotEmpty(t, resp["key"])
}

func TestCreateKey_DisabledWithoutConfiguredToken(t *testing.T) {
	h := newTestServer(t, &fakeChecker{}, newFakeKeys(), nil, Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(`{}`))
	req.Header.Set("X-Admin-Token", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, &fakeChecker{}, newFakeKeys(), nil, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
