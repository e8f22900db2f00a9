package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode        string   `mapstructure:"mode"`
	APIPort     int      `mapstructure:"api_port"`
	SignalURL   string   `mapstructure:"signal_url"`
	BackendURL  string   `mapstructure:"backend_url"`
	AccessToken string   `mapstructure:"access_token"`
	RoomID      string   `mapstructure:"room_id"`
	DisplayName string   `mapstructure:"display_name"`
	ICEServers  []string `mapstructure:"ice_servers"`

	// Admission
	RejectionDelay time.Duration `mapstructure:"rejection_delay"`

	// Moderation / reputation
	RatePointsCap  int           `mapstructure:"rate_points_cap"`
	BackendTimeout time.Duration `mapstructure:"backend_timeout"`

	// Mesh
	PendingSignalTTL time.Duration `mapstructure:"pending_signal_ttl"`
	PendingSignalMax int           `mapstructure:"pending_signal_max"`

	// Compositor
	CompositeReadyTimeout time.Duration `mapstructure:"composite_ready_timeout"`

	CompositeFPS  int `mapstructure:"composite_fps"`
	CompositeW    int `mapstructure:"composite_width"`
	CompositeH    int `mapstructure:"composite_height"`
	PiPWidth      int `mapstructure:"pip_width"`
	PiPHeight     int `mapstructure:"pip_height"`
	PiPMargin     int `mapstructure:"pip_margin"`
	PiPCornerSize int `mapstructure:"pip_corner_size"`

	// Chat throttling
	ChatRatePerSec float64 `mapstructure:"chat_rate_per_sec"`
	ChatBurst      int     `mapstructure:"chat_burst"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("api_port", 8090)
	v.SetDefault("signal_url", "ws://localhost:8080/ws/meeting")
	v.SetDefault("backend_url", "http://localhost:8081/api/reputation")
	v.SetDefault("room_id", "lobby")
	v.SetDefault("display_name", "guest")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("rejection_delay", "3s")
	v.SetDefault("rate_points_cap", 25)
	v.SetDefault("backend_timeout", "10s")
	v.SetDefault("pending_signal_ttl", "15s")
	v.SetDefault("pending_signal_max", 16)
	v.SetDefault("composite_ready_timeout", "5s")
	v.SetDefault("composite_fps", 15)
	v.SetDefault("composite_width", 1280)
	v.SetDefault("composite_height", 720)
	v.SetDefault("pip_width", 256)
	v.SetDefault("pip_height", 144)
	v.SetDefault("pip_margin", 16)
	v.SetDefault("pip_corner_size", 12)
	v.SetDefault("chat_rate_per_sec", 2.0)
	v.SetDefault("chat_burst", 5)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
