package app

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the app specific section of the config file, decoded by the app
// with mapstructure
type Config map[string]interface{}

// BaseConfig is the process level configuration shared by every service
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`
	AppName  string `mapstructure:"app_name"`

	ListenAddress         string `mapstructure:"listen_address"`
	InsecureListenAddress string `mapstructure:"insecure_listen_address"`
	DebugListenAddress    string `mapstructure:"debug_listen_address"`

	// TLS material is referenced by URL and resolved with LoadFile. The secure
	// listener only runs when a certificate is set.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ReadHeaderTimeout   time.Duration `mapstructure:"read_header_timeout"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Fraction of total memory, capped at 0.5
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Scheduled restarts for processes with a slow leak
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ListenAddress:         ":8085",
	InsecureListenAddress: "localhost:8086",
	DebugListenAddress:    ":8123",

	ReadHeaderTimeout:   10 * time.Second,
	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   true,
	BallastCapacity: 0.333,

	MemoryLeakCronSchedule: "0 5 * * *",
}

// bindEnv lets every scalar field be set through the upper cased form of its
// key, for example LISTEN_ADDRESS
func bindEnv(v *viper.Viper) {
	configType := reflect.TypeOf(BaseConfig{})
	for i := 0; i < configType.NumField(); i++ {
		field := configType.Field(i)
		if field.Type.Kind() == reflect.Map {
			continue
		}

		key := field.Tag.Get("mapstructure")
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
}
