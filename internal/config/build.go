package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/MdanzDev/nickstore/internal/aws"
	"github.com/MdanzDev/nickstore/internal/fulfillment"
	"github.com/MdanzDev/nickstore/internal/storage"
)

// Deps holds what the binaries build from a Config. Close releases the
// network clients; it is safe to call on a partly built value.
type Deps struct {
	KV      storage.KV
	Channel fulfillment.Channel
	// WhatsApp is set when Channel is the WhatsApp channel, so callers can
	// show the link directly.
	WhatsApp *fulfillment.WhatsApp
	Metrics  *aws.Metrics

	closers []func() error
}

func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

// Build wires the storage backend, fulfillment channel and metrics. AWS
// clients are only created when a component needs them.
func Build(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Deps, error) {
	d := &Deps{}

	var clients *aws.AWSClients
	awsClients := func() (*aws.AWSClients, error) {
		if clients != nil {
			return clients, nil
		}
		c, err := aws.NewAWSClients(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("init aws clients: %w", err)
		}
		clients = c
		return clients, nil
	}

	kv, err := d.buildStorage(cfg, log, awsClients)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.KV = kv

	if err := d.buildChannel(cfg, log, awsClients); err != nil {
		_ = d.Close()
		return nil, err
	}

	if cfg.MetricsNamespace != "" {
		c, err := awsClients()
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.Metrics = aws.NewMetrics(c.CloudWatch, cfg.MetricsNamespace)
	}
	return d, nil
}

func (d *Deps) buildStorage(cfg Config, log logrus.FieldLogger, awsClients func() (*aws.AWSClients, error)) (storage.KV, error) {
	switch cfg.Backend {
	case BackendMemory:
		return storage.NewMemory(), nil
	case BackendFile:
		f, err := storage.NewFile(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		return f, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d.closers = append(d.closers, client.Close)
		return guard(storage.NewRedis(client, cfg.RedisPrefix), "redis", log), nil
	case BackendDynamoDB:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		return guard(storage.NewDynamo(c.DynamoDB, cfg.DynamoTable), "dynamodb", log), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// guard puts a circuit breaker in front of a remote backend.
func guard(kv storage.KV, name string, log logrus.FieldLogger) storage.KV {
	return storage.NewBreaker(kv, storage.BreakerSettings{
		Name: name,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"backend": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("storage breaker state changed")
		},
	})
}

func (d *Deps) buildChannel(cfg Config, log logrus.FieldLogger, awsClients func() (*aws.AWSClients, error)) error {
	switch cfg.Channel {
	case ChannelNone:
		d.Channel = fulfillment.Discard{}
	case ChannelWhatsApp:
		d.WhatsApp = fulfillment.NewWhatsApp(cfg.WhatsAppNumber, cfg.Location(), log)
		d.Channel = d.WhatsApp
	case ChannelSQS:
		c, err := awsClients()
		if err != nil {
			return err
		}
		d.Channel = fulfillment.NewSQS(aws.NewPublisher(c.SQS, cfg.QueueURL))
	case ChannelKafka:
		w := fulfillment.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		d.closers = append(d.closers, w.Close)
		d.Channel = fulfillment.NewKafka(w)
	default:
		return fmt.Errorf("unknown channel %q", cfg.Channel)
	}
	return nil
}

// PersistHook counts persistence failures in CloudWatch. It returns nil
// when no metrics namespace is configured.
func (d *Deps) PersistHook(cfg Config, log logrus.FieldLogger) func(error) {
	if d.Metrics == nil {
		return nil
	}
	return func(err error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if merr := d.Metrics.Count(ctx, aws.MetricPersistFailures, cfg.Backend); merr != nil {
			log.WithError(merr).Debug("persist failure metric not sent")
		}
	}
}
