package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ploop3/Natours/internal/config"
	"github.com/ploop3/Natours/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:        "development",
		HTTPPort:           0,
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		JWTExpiresIn:       config.Lifetime(time.Hour),
		JWTCookieExpiresIn: 1,
		BcryptCost:         4,
		StoreDriver:        config.StoreMemory,
		RatingsLock:        config.LockLocal,
		MailDriver:         config.MailLog,
		CheckoutProvider:   config.CheckoutMock,
		SearchEngine:       config.SearchMemory,
		CORSAllowedOrigins: []string{"*"},
	}
}

func TestNewApp_MemoryStore(t *testing.T) {
	a, err := NewApp(memoryConfig(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"name":"Ada","email":"ada@example.com","password":"pass1234","password_confirm":"pass1234"}`
	resp, err = http.Post(srv.URL+"/api/v1/users/signup", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.Data.Token)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+out.Data.Token)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	cfg := memoryConfig()
	cfg.RatingsLock = config.LockRedis
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 1

	_, err := NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewApp_ElasticsearchSearch(t *testing.T) {
	var created atomic.Bool
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"version":{"number":"8.19.3"}}`))
		case r.URL.Path == "/natours_tours" && r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/natours_tours" && r.Method == http.MethodPut:
			created.Store(true)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer es.Close()

	cfg := memoryConfig()
	cfg.SearchEngine = config.SearchElasticsearch
	cfg.ElasticsearchURL = es.URL
	cfg.ElasticsearchIndex = "natours_tours"

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	assert.True(t, created.Load())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewApp_ElasticsearchUnavailable(t *testing.T) {
	cfg := memoryConfig()
	cfg.SearchEngine = config.SearchElasticsearch
	cfg.ElasticsearchURL = "http://127.0.0.1:1"

	_, err := NewApp(cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to elasticsearch")
}
