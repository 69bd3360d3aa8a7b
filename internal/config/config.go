package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env          string `mapstructure:"env"`
	Port         int    `mapstructure:"port"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	DirectoryURL string `mapstructure:"directory_url"`
	ServiceToken string `mapstructure:"service_token"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type S3Config struct {
	Region            string `mapstructure:"region"`
	Bucket            string `mapstructure:"bucket"`
	PresignTTLMinutes int    `mapstructure:"presign_ttl_minutes"`
}

type ModerationConfig struct {
	BurstThreshold int64 `mapstructure:"burst_threshold"`
	WindowSeconds  int   `mapstructure:"window_seconds"`
}

type OutboxConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchSize       int `mapstructure:"batch_size"`
}

type RetentionCfg struct {
	BatchSize int `mapstructure:"batch_size"`
}

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Mongo      MongoConfig      `mapstructure:"mongodb"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AMQP       AMQPConfig       `mapstructure:"amqp"`
	S3         S3Config         `mapstructure:"s3"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Retention  RetentionCfg     `mapstructure:"retention"`

	// derived
	PresignTTL       time.Duration
	ModerationWindow time.Duration
	OutboxInterval   time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	// sensible defaults
	if c.App.Port == 0 {
		c.App.Port = 8085
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "messaging"
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "chat.events"
	}
	if c.S3.PresignTTLMinutes == 0 {
		c.S3.PresignTTLMinutes = 15
	}
	if c.Moderation.BurstThreshold == 0 {
		c.Moderation.BurstThreshold = 5
	}
	if c.Moderation.WindowSeconds == 0 {
		c.Moderation.WindowSeconds = 60
	}
	if c.Outbox.IntervalSeconds == 0 {
		c.Outbox.IntervalSeconds = 2
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Retention.BatchSize == 0 {
		c.Retention.BatchSize = 200
	}

	c.PresignTTL = time.Duration(c.S3.PresignTTLMinutes) * time.Minute
	c.ModerationWindow = time.Duration(c.Moderation.WindowSeconds) * time.Second
	c.OutboxInterval = time.Duration(c.Outbox.IntervalSeconds) * time.Second
	return &c, nil
}
