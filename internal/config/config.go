// Package config reads runtime settings from NICKSTORE_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const envPrefix = "nickstore"

// Storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Fulfillment channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSQS      = "sqs"
	ChannelKafka    = "kafka"
	ChannelNone     = "none"
)

// Config is read from NICKSTORE_<FIELD_NAME> variables, e.g. NICKSTORE_DATA_DIR.
type Config struct {
	Backend string `split_words:"true" default:"file"`
	DataDir string `split_words:"true" default:".nickstore"`

	RedisAddr     string `split_words:"true" default:"localhost:6379"`
	RedisPassword string `split_words:"true"`
	RedisDB       int    `split_words:"true" default:"0"`
	RedisPrefix   string `split_words:"true" default:"nickstore:"`

	DynamoTable string `split_words:"true" default:"nickstore-state"`
	// also read from the unprefixed AWS_REGION; empty means us-east-1
	AWSRegion string `envconfig:"AWS_REGION"`

	Channel        string   `split_words:"true" default:"whatsapp"`
	WhatsAppNumber string   `envconfig:"WHATSAPP_NUMBER" default:"60197661697"`
	QueueURL       string   `split_words:"true"`
	KafkaBrokers   []string `split_words:"true" default:"localhost:9092"`
	KafkaTopic     string   `split_words:"true" default:"nickstore.orders"`

	MetricsNamespace string        `split_words:"true"`
	TimeZone         string        `split_words:"true" default:"Asia/Kuala_Lumpur"`
	WriteTimeout     time.Duration `split_words:"true" default:"5s"`
	LogLevel         string        `split_words:"true" default:"info"`
	LogJSON          bool          `split_words:"true" default:"false"`
	ListenAddr       string        `split_words:"true" default:":8080"`
}

// Load reads the environment and checks enum values.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendMemory, BackendRedis, BackendDynamoDB:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Channel {
	case ChannelWhatsApp, ChannelSQS, ChannelKafka, ChannelNone:
	default:
		return fmt.Errorf("unknown channel %q", c.Channel)
	}
	if c.Channel == ChannelSQS && c.QueueURL == "" {
		return fmt.Errorf("channel sqs needs NICKSTORE_QUEUE_URL")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Location resolves TimeZone. Systems without tzdata get a fixed UTC+8 zone
// for the default, and UTC for anything else.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err == nil {
		return loc
	}
	if c.TimeZone == "Asia/Kuala_Lumpur" {
		return time.FixedZone("MYT", 8*60*60)
	}
	return time.UTC
}

// Logger builds the process logger from LogLevel and LogJSON.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if c.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
