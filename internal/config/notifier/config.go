package notifier_config

import (
	"time"

	"github.com/regmail/regmail/internal/obs"
	kafkax "github.com/regmail/regmail/internal/repository/kafka"
	pginfra "github.com/regmail/regmail/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	Workers       int      `mapstructure:"workers"`
	FromBeginning bool     `mapstructure:"from_beginning"`
}

func (k KafkaIn) AsConsumerConfig() *kafkax.ConsumerConfig {
	return &kafkax.ConsumerConfig{
		Brokers:       k.Brokers,
		GroupID:       k.GroupID,
		Topic:         k.Topic,
		FromBeginning: k.FromBeginning,
	}
}

type KafkaDLQ struct {
	Topic string `mapstructure:"topic"`
}

type SMTP struct {
	Addr     string        `mapstructure:"addr"`
	From     string        `mapstructure:"from"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Base     time.Duration `mapstructure:"base"`
	Max      time.Duration `mapstructure:"max"`
	Jitter   float64       `mapstructure:"jitter"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Log struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

func (l Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  l.Level,
		Pretty: l.Pretty,
		App:    "notifier",
		Env:    l.Env,
		Ver:    l.Version,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (o OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.OTLPEndpoint,
		ServiceName: o.ServiceName,
		SampleRatio: o.SampleRatio,
	}
}

type Config struct {
	DB     pginfra.Config `mapstructure:"db"`
	In     KafkaIn        `mapstructure:"kafka_in"`
	DLQ    KafkaDLQ       `mapstructure:"kafka_dlq"`
	SMTP   SMTP           `mapstructure:"smtp"`
	Retry  Retry          `mapstructure:"retry"`
	Server Server         `mapstructure:"server"`
	Log    Log            `mapstructure:"log"`
	OTEL   OTEL           `mapstructure:"otel"`
}
