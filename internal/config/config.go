package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	SlackBotToken string        `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	DBPath        string        `envconfig:"DB_PATH" default:"./data/staffbot.db"`
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080"`  // healthz
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`   // debug|info|warn|error
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"1s"` // delay between RTM reads
	QueueTimeout  time.Duration `envconfig:"QUEUE_TIMEOUT" default:"5s"` // processor dequeue wait
	// How long users have to guess a challenge before it expires. The
	// effective deadline is this plus up to one expiry sweep interval.
	ChallengeTimeout time.Duration `envconfig:"CHALLENGE_TIMEOUT" default:"30s"`
	ExpireInterval   time.Duration `envconfig:"EXPIRE_INTERVAL" default:"5s"`
	SyncInterval     time.Duration `envconfig:"SYNC_INTERVAL" default:"1h"`
	PlayCommand      string        `envconfig:"PLAY_COMMAND" default:"play"`
	// If set, only roster members whose email contains this domain are synced.
	EmailDomain string `envconfig:"EMAIL_DOMAIN" default:""`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
