// Package kafka carries run requests to workers and run lifecycle events to
// subscribers over Kafka.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Config is the broker section of the application configuration.
type Config struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	Acks            string        `mapstructure:"acks"`
	Compression     string        `mapstructure:"compression"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	SASLEnabled     bool          `mapstructure:"sasl_enabled"`
	SASLMechanism   string        `mapstructure:"sasl_mechanism"`
	SASLUsername    string        `mapstructure:"sasl_username"`
	SASLPassword    string        `mapstructure:"sasl_password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	TLSCertPath     string        `mapstructure:"tls_cert_path"`
}

// Producer derives the producer settings.
func (c Config) Producer() ProducerConfig {
	return ProducerConfig{
		Brokers:          c.Brokers,
		Acks:             c.Acks,
		MaxRetries:       c.MaxRetries,
		RetryBackoff:     c.RetryBackoff,
		MaxMessageBytes:  c.MaxMessageBytes,
		CompressionCodec: c.Compression,
		Security:         c.security(),
	}
}

// Consumer derives the consumer settings for topics.
func (c Config) Consumer(topics ...string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:  c.Brokers,
		GroupID:  c.GroupID,
		Topics:   topics,
		Security: c.security(),
		RetryConfig: RetryConfig{
			MaxRetries:      c.MaxRetries,
			RetryBackoff:    c.RetryBackoff,
			DeadLetterTopic: c.DeadLetterTopic,
		},
	}
}

func (c Config) security() Security {
	return Security{
		SASLEnabled:   c.SASLEnabled,
		SASLMechanism: c.SASLMechanism,
		SASLUsername:  c.SASLUsername,
		SASLPassword:  c.SASLPassword,
		TLSEnabled:    c.TLSEnabled,
		TLSCertPath:   c.TLSCertPath,
	}
}

// Security holds SASL and TLS settings shared by readers and writers.
type Security struct {
	SASLEnabled   bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCertPath   string
}

func (s Security) validate() error {
	if s.SASLEnabled {
		if s.SASLMechanism == "" {
			return errors.New(errors.ErrCodeValidation, "SASL mechanism required")
		}
		if s.SASLUsername == "" || s.SASLPassword == "" {
			return errors.New(errors.ErrCodeValidation, "SASL credentials required")
		}
	}
	if s.TLSEnabled && s.TLSCertPath == "" {
		return errors.New(errors.ErrCodeValidation, "TLS certificate path required")
	}
	return nil
}

func (s Security) tlsConfig() (*tls.Config, error) {
	if !s.TLSEnabled {
		return nil, nil
	}
	pem, err := os.ReadFile(s.TLSCertPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "read kafka CA certificate")
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(pem)
	return &tls.Config{RootCAs: pool}, nil
}

func (s Security) mechanism() (sasl.Mechanism, error) {
	if !s.SASLEnabled {
		return nil, nil
	}
	switch s.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: s.SASLUsername, Password: s.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, s.SASLUsername, s.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, s.SASLUsername, s.SASLPassword)
	}
	return nil, errors.New(errors.ErrCodeValidation, "unsupported SASL mechanism").WithDetail(s.SASLMechanism)
}
