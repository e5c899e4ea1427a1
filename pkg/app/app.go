package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metrics_util "github.com/code-payments/code-distributor/pkg/metrics"
	"github.com/code-payments/code-distributor/pkg/osutil"
)

// App is a long lived application that services HTTP requests.
//
// The lifecycle of the App is tied to the process. The app is initialized
// before the HTTP servers run, and is stopped after they stop serving.
type App interface {
	// Init initializes the application. When Init returns, the application is
	// ready to receive requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// RegisterWithHTTP mounts the application's handlers onto the router
	RegisterWithHTTP(router chi.Router)

	// ShutdownChan returns a channel that is closed when the application shuts
	// down on its own, which also stops the HTTP servers
	ShutdownChan() <-chan struct{}

	// Stop stops the application and releases its resources. When Stop returns,
	// the process exits. Stop must be idempotent.
	Stop()
}

const (
	healthCheckPath      = "/healthz"
	debugServerRetryWait = 5 * time.Second
	maxBallastCapacity   = 0.5
)

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run runs app until the process is signalled, a server fails or the app
// shuts itself down. Setup failures exit the process.
func Run(app App, options ...Option) error {
	flag.Parse()

	log := logrus.StandardLogger().WithField("type", "app")

	config, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		log.WithError(err).Error("error connecting to new relic")
		os.Exit(1)
	}

	configureLogger(config, metricsProvider)

	// pprof and expvar install themselves on the default mux, which must never
	// be served publicly
	http.DefaultServeMux = http.NewServeMux()
	startDebugServer(log, config)

	ballast := newBallast(config.EnableBallast, config.BallastCapacity, osutil.GetTotalMemory())

	memoryLeakShutdownCh, err := startMemoryLeakCron(config)
	if err != nil {
		log.WithError(err).Error("failed to initialize memory leak cron")
		os.Exit(1)
	}

	secureLis, insecureLis, err := listen(config)
	if err != nil {
		log.WithError(err).Error("failed to setup listeners")
		os.Exit(1)
	}

	// Request IDs come first, so the metrics middleware can attach them to
	// the transaction
	opts := opts{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			newRelicMiddleware(metricsProvider),
			middleware.Recoverer,
		},
	}
	for _, o := range options {
		o(&opts)
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		log.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	router := newRouter(app, opts)

	var servers []*http.Server
	serverDoneCh := make(chan string, 2)
	for name, lis := range map[string]net.Listener{"secure": secureLis, "insecure": insecureLis} {
		if lis == nil {
			continue
		}

		server := &http.Server{
			Handler:           router,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		}
		servers = append(servers, server)

		go func(name string, lis net.Listener) {
			serverLog := log.WithField("server", name)
			if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
				serverLog.WithError(err).Error("http serve stopped")
			} else {
				serverLog.Info("http server stopped")
			}
			serverDoneCh <- name
		}(name, lis)
	}

	select {
	case <-osSigCh:
		log.Info("interrupt received, shutting down")
	case name := <-serverDoneCh:
		log.WithField("server", name).Info("http server shutdown")
	case <-memoryLeakShutdownCh:
		log.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		log.Info("app shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	shutdownCh := make(chan struct{})
	go func() {
		// Server and app shutdowns are idempotent, so everything is stopped
		// regardless of what triggered the shutdown
		for _, server := range servers {
			_ = server.Shutdown(shutdownCtx)
		}
		app.Stop()

		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		// Keeps the ballast reachable until exit
		if len(ballast) > 0 {
			ballast[0] = 1
		}
		return nil
	case <-shutdownCtx.Done():
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

// loadConfig layers the config file at path, when it exists, and bound env
// variables over the defaults
func loadConfig(path string) (BaseConfig, error) {
	v := viper.New()
	bindEnv(v)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return BaseConfig{}, errors.Wrap(err, "failed to read config")
		}
	case !os.IsNotExist(err):
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}

	if len(config.AppName) == 0 {
		return BaseConfig{}, errors.New("must specify an application name")
	}
	return config, nil
}

// newMetricsProvider returns nil without a New Relic license key
func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
}

func startDebugServer(log *logrus.Entry, config BaseConfig) {
	if !config.EnableExpvar && !config.EnablePprof {
		return
	}

	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	go func() {
		for {
			if err := http.ListenAndServe(config.DebugListenAddress, mux); err != nil {
				log.WithError(err).Warnf("debug http server failed, retrying in %v", debugServerRetryWait)
			}
			time.Sleep(debugServerRetryWait)
		}
	}()
}

// newBallast allocates a fraction of total memory, capped at half, to reduce
// GC frequency
func newBallast(enabled bool, capacity float32, totalMemory uint64) []byte {
	if !enabled || capacity <= 0 {
		return nil
	}
	return make([]byte, uint64(min(capacity, maxBallastCapacity)*float32(totalMemory)))
}

// startMemoryLeakCron returns a channel that's closed on the configured
// restart schedule, or that's never closed when the cron is disabled
func startMemoryLeakCron(config BaseConfig) (<-chan struct{}, error) {
	shutdownCh := make(chan struct{})
	if !config.EnableMemoryLeakCron {
		return shutdownCh, nil
	}

	cronJob := cron.New(cron.WithLocation(time.Local))
	_, err := cronJob.AddFunc(config.MemoryLeakCronSchedule, func() {
		close(shutdownCh)
	})
	if err != nil {
		return nil, err
	}
	cronJob.Start()

	return shutdownCh, nil
}

// listen opens the insecure listener and, when a certificate is configured,
// the TLS listener
func listen(config BaseConfig) (secure, insecure net.Listener, err error) {
	tlsConfig, err := loadTLSConfig(config)
	if err != nil {
		return nil, nil, err
	}

	insecure, err = net.Listen("tcp", config.InsecureListenAddress)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to listen on %s", config.InsecureListenAddress)
	}

	if tlsConfig == nil {
		return nil, insecure, nil
	}

	secure, err = net.Listen("tcp", config.ListenAddress)
	if err != nil {
		insecure.Close()
		return nil, nil, errors.Wrapf(err, "failed to listen on %s", config.ListenAddress)
	}
	return tls.NewListener(secure, tlsConfig), insecure, nil
}

func loadTLSConfig(config BaseConfig) (*tls.Config, error) {
	if len(config.TLSCertificate) == 0 {
		return nil, nil
	}
	if len(config.TLSKey) == 0 {
		return nil, errors.New("tls key must be provided if certificate is specified")
	}

	certBytes, err := LoadFile(config.TLSCertificate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	keyBytes, err := LoadFile(config.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func newRouter(app App, opts opts) chi.Router {
	router := chi.NewRouter()
	for _, m := range opts.middlewares {
		router.Use(m)
	}

	router.Get(healthCheckPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	app.RegisterWithHTTP(router)

	return router
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics_util.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
