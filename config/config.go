package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every tunable the server reads at startup. Defaults match
// the classic world: a 700x400 box with downward gravity and bouncy walls.
type Config struct {
	// Network
	ListenPort  int    // UDP port for inbound commands
	MetricsAddr string // HTTP address for /metrics and /healthz, "" disables
	ServiceName string // zeroconf instance name

	// Logging
	LogFile string

	// World
	WorldWidth     float64
	WorldHeight    float64
	GravityY       float64
	WallElasticity float64
	WallFriction   float64

	// Players
	SpawnX      float64
	SpawnY      float64
	PlayerSize  float64 // box edge length
	PlayerMass  float64
	MaxVelocity float64
	SpeedFactor float64

	// Loop
	TickRate int // physics steps per second

	// Outbound sends
	SendWorkers int
	SendQueue   int
}

func Default() Config {
	return Config{
		ListenPort:     11337,
		MetricsAddr:    ":8090",
		ServiceName:    "multibox-gameserver",
		LogFile:        "multibox.log",
		WorldWidth:     700,
		WorldHeight:    400,
		GravityY:       98,
		WallElasticity: 0.95,
		WallFriction:   0.8,
		SpawnX:         50,
		SpawnY:         100,
		PlayerSize:     50,
		PlayerMass:     10,
		MaxVelocity:    200,
		SpeedFactor:    1000,
		TickRate:       60,
		SendWorkers:    4,
		SendQueue:      1024,
	}
}

// Load reads a .env file when one exists, then applies MULTIBOX_* environment
// overrides on top of the defaults.
func Load() (Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := Default()
	var err error

	intVars := []struct {
		key string
		dst *int
	}{
		{"MULTIBOX_PORT", &cfg.ListenPort},
		{"MULTIBOX_TICK_RATE", &cfg.TickRate},
		{"MULTIBOX_SEND_WORKERS", &cfg.SendWorkers},
		{"MULTIBOX_SEND_QUEUE", &cfg.SendQueue},
	}
	for _, v := range intVars {
		if err = overrideInt(v.key, v.dst); err != nil {
			return cfg, err
		}
	}

	floatVars := []struct {
		key string
		dst *float64
	}{
		{"MULTIBOX_WORLD_WIDTH", &cfg.WorldWidth},
		{"MULTIBOX_WORLD_HEIGHT", &cfg.WorldHeight},
		{"MULTIBOX_GRAVITY_Y", &cfg.GravityY},
		{"MULTIBOX_WALL_ELASTICITY", &cfg.WallElasticity},
		{"MULTIBOX_WALL_FRICTION", &cfg.WallFriction},
		{"MULTIBOX_SPAWN_X", &cfg.SpawnX},
		{"MULTIBOX_SPAWN_Y", &cfg.SpawnY},
		{"MULTIBOX_PLAYER_SIZE", &cfg.PlayerSize},
		{"MULTIBOX_PLAYER_MASS", &cfg.PlayerMass},
		{"MULTIBOX_MAX_VELOCITY", &cfg.MaxVelocity},
		{"MULTIBOX_SPEED_FACTOR", &cfg.SpeedFactor},
	}
	for _, v := range floatVars {
		if err = overrideFloat(v.key, v.dst); err != nil {
			return cfg, err
		}
	}

	if s := os.Getenv("MULTIBOX_METRICS_ADDR"); s != "" {
		cfg.MetricsAddr = s
	}
	if s := os.Getenv("MULTIBOX_SERVICE_NAME"); s != "" {
		cfg.ServiceName = s
	}
	if s := os.Getenv("MULTIBOX_LOG_FILE"); s != "" {
		cfg.LogFile = s
	}

	if cfg.TickRate <= 0 {
		return cfg, fmt.Errorf("tick rate must be positive, got %d", cfg.TickRate)
	}
	if cfg.SendWorkers <= 0 || cfg.SendQueue <= 0 {
		return cfg, fmt.Errorf("send workers/queue must be positive, got %d/%d", cfg.SendWorkers, cfg.SendQueue)
	}

	return cfg, nil
}

func overrideInt(key string, dst *int) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, s, err)
	}
	*dst = n
	return nil
}

func overrideFloat(key string, dst *float64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, s, err)
	}
	*dst = f
	return nil
}
