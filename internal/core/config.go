package core

import (
	"time"

	"trueshuffle/internal/i18n"
)

const (
	// DefaultServerPort is the default HTTP listen port
	DefaultServerPort = 8080
	// DefaultWorkers is the number of tasks executed in parallel
	DefaultWorkers = 4
	// DefaultQueueDepth bounds the number of queued-but-unstarted tasks
	DefaultQueueDepth = 256
	// DefaultTaskExpirySecs is how long a queued task may wait before it expires
	DefaultTaskExpirySecs = 60
	// DefaultResultRetention is the number of task states kept for polling
	DefaultResultRetention = 10000
	// DefaultSubmissionsPerMinute limits task submissions per credential
	DefaultSubmissionsPerMinute = 6
	// DefaultStorePath is the sqlite database holding users and counters
	DefaultStorePath = "./trueshuffle.db"
)

type Config struct {
	Spotify SpotifyConfig
	Server  ServerConfig
	Store   StoreConfig
	Queue   QueueConfig
	Log     LogConfig
	App     AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIURL       string // empty means the public Web API
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Path string
}

type QueueConfig struct {
	Workers         int
	Depth           int
	ExpirySecs      int
	ResultRetention int
}

// Expiry returns the queued-task time-to-live.
func (c QueueConfig) Expiry() time.Duration {
	return time.Duration(c.ExpirySecs) * time.Second
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language             string
	SubmissionsPerMinute int
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: DefaultStorePath,
		},
		Queue: QueueConfig{
			Workers:         DefaultWorkers,
			Depth:           DefaultQueueDepth,
			ExpirySecs:      DefaultTaskExpirySecs,
			ResultRetention: DefaultResultRetention,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:             i18n.DefaultLanguage,
			SubmissionsPerMinute: DefaultSubmissionsPerMinute,
		},
	}
}
