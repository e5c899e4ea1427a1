package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	shutdownCh chan struct{}
}

func (a *testApp) Init(_ Config, _ *newrelic.Application) error {
	return nil
}

func (a *testApp) RegisterWithHTTP(router chi.Router) {
	router.Get("/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", middleware.GetReqID(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	})
	router.Get("/v1/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
}

func (a *testApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

func (a *testApp) Stop() {}

func TestRouter(t *testing.T) {
	var middlewareCalls int
	o := opts{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			newRelicMiddleware(nil),
			middleware.Recoverer,
		},
	}
	WithMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			middlewareCalls++
			next.ServeHTTP(w, r)
		})
	})(&o)

	router := newRouter(&testApp{shutdownCh: make(chan struct{})}, o)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 4, middlewareCalls)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0600))

	for _, fileURL := range []string{path, "file://" + path} {
		loaded, err := LoadFile(fileURL)
		require.NoError(t, err)
		assert.Equal(t, "contents", string(loaded))
	}

	_, err := LoadFile("unknown://bucket/cert.pem")
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestRegisterFileLoaderCtor_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		RegisterFileLoaderCtor("file", newLocalLoader)
	})
}

func TestNewBallast(t *testing.T) {
	assert.Nil(t, newBallast(false, 0.25, 1000))
	assert.Nil(t, newBallast(true, 0, 1000))
	assert.Len(t, newBallast(true, 0.25, 1000), 250)

	// Capacity is capped at half of total memory
	assert.Len(t, newBallast(true, 0.9, 1000), 500)
}

func TestStartMemoryLeakCron(t *testing.T) {
	shutdownCh, err := startMemoryLeakCron(BaseConfig{})
	require.NoError(t, err)
	select {
	case <-shutdownCh:
		t.Fatal("disabled cron closed the channel")
	default:
	}

	_, err = startMemoryLeakCron(BaseConfig{
		EnableMemoryLeakCron:   true,
		MemoryLeakCronSchedule: "not a schedule",
	})
	assert.Error(t, err)
}

func TestListen(t *testing.T) {
	secure, insecure, err := listen(BaseConfig{InsecureListenAddress: "127.0.0.1:0"})
	require.NoError(t, err)
	defer insecure.Close()
	assert.Nil(t, secure)

	_, _, err = listen(BaseConfig{
		InsecureListenAddress: "127.0.0.1:0",
		TLSCertificate:        "cert.pem",
	})
	assert.Error(t, err)

	certPath := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(certPath, []byte("not a certificate"), 0600))
	_, _, err = listen(BaseConfig{
		InsecureListenAddress: "127.0.0.1:0",
		TLSCertificate:        certPath,
		TLSKey:                certPath,
	})
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_name: distributor-test\nlog_level: debug\napp:\n  use_memory_store: true\n"), 0600))

	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "distributor-test", config.AppName)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, defaultConfig.ShutdownGracePeriod, config.ShutdownGracePeriod)
	assert.Equal(t, true, config.AppConfig["use_memory_store"])
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("LISTEN_ADDRESS", ":9999")
	t.Setenv("APP_NAME", "distributor-env")

	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", config.ListenAddress)
	assert.Equal(t, "distributor-env", config.AppName)
}
