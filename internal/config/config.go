// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// SubscriberConfig selects the inbound topic to watch on the bus.
type SubscriberConfig struct {
	Topic string `mapstructure:"topic" validate:"required"`
}

// PublisherConfig selects the outbound topic for completion messages.
type PublisherConfig struct {
	Topic string `mapstructure:"topic" validate:"required"`
}

// Config holds all configuration for the daemon. The mapstructure tags are
// used by Viper to unmarshal the data.
type Config struct {
	WarpTool         string                    `mapstructure:"warp_tool" validate:"required"`
	OverviewTool     string                    `mapstructure:"overview_tool" validate:"required"`
	TargetDir        string                    `mapstructure:"target_dir" validate:"required"`
	TargetProjection string                    `mapstructure:"target_projection"`
	Projections      map[string]map[string]any `mapstructure:"projections" validate:"required"`
	Overviews        []int                     `mapstructure:"overviews"`
	NumWorkers       int                       `mapstructure:"num_workers" validate:"gte=1"`
	QueueSize        int                       `mapstructure:"queue_size" validate:"gte=1"`
	RestartTimeout   int                       `mapstructure:"restart_timeout" validate:"gte=0"` // minutes, 0 disables idle restart
	PollInterval     time.Duration             `mapstructure:"poll_interval" validate:"gt=0"`
	EtcdEndpoints    []string                  `mapstructure:"etcd_endpoints" validate:"required,min=1"`
	EtcdTimeout      time.Duration             `mapstructure:"etcd_timeout"`
	BusPrefix        string                    `mapstructure:"bus_prefix" validate:"required"`
	Subscriber       SubscriberConfig          `mapstructure:"subscriber"`
	Publisher        PublisherConfig           `mapstructure:"publisher"`
	HttpListenAddr   string                    `mapstructure:"http_listen_addr"`
}

// Load loads configuration from file and environment variables. An empty
// path falls back to searching for config.yaml in ./configs and the working
// directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("warp_tool", "gdalwarp")
	v.SetDefault("overview_tool", "gdaladdo")
	v.SetDefault("num_workers", 1)
	v.SetDefault("queue_size", 64)
	v.SetDefault("restart_timeout", 0)
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("bus_prefix", "/rasterwarp")
	v.SetDefault("subscriber.topic", "incoming")
	v.SetDefault("publisher.topic", "reprojected")
	v.SetDefault("http_listen_addr", ":9090")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			// No config file; defaults and env vars still apply.
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ProjectionOptions returns the option mapping selected by the target
// projection name.
func (c *Config) ProjectionOptions() (map[string]any, error) {
	if c.TargetProjection == "" {
		return nil, fmt.Errorf("no target projection configured")
	}
	opts, ok := c.Projections[c.TargetProjection]
	if !ok {
		return nil, fmt.Errorf("no projection options configured for %q", c.TargetProjection)
	}
	return opts, nil
}
