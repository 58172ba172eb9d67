package minio

import "time"

// Config contains S3-compatible storage connection configuration.
// Works with MinIO, AWS S3, Yandex Cloud Storage and other S3-compatible providers.
type Config struct {
	Endpoint           string        `envconfig:"S3_ENDPOINT" default:"s3.amazonaws.com"`  // host[:port], no scheme
	AccessKey          string        `envconfig:"S3_ACCESS_KEY" required:"true"`           // Access key ID
	SecretKey          string        `envconfig:"S3_SECRET_KEY" required:"true"`           // Secret access key
	Region             string        `envconfig:"S3_REGION" default:"us-east-1"`           // Region name
	Secure             bool          `envconfig:"S3_SECURE" default:"true"`                // Use HTTPS
	Timeout            time.Duration `envconfig:"S3_TIMEOUT" default:"30s"`                // Bound for the connection check in New
	InsecureSkipVerify bool          `envconfig:"S3_INSECURE_SKIP_VERIFY" default:"false"` // Skip TLS verification (for self-signed certs)
}

const defaultTimeout = 30 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
