package smtp

import "time"

// Config contains SMTP connection parameters.
type Config struct {
	Host     string        `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	Port     int           `envconfig:"SMTP_PORT" default:"587"`       // 587 for STARTTLS
	Username string        `envconfig:"SMTP_USER"`                     // falls back to From
	Password string        `envconfig:"APP_PASSWORD"`                  // app password of the sending account
	From     string        `envconfig:"SENDER_EMAIL"`                  // default from address
	TLS      bool          `envconfig:"SMTP_TLS" default:"true"`       // enable STARTTLS when offered
	Insecure bool          `envconfig:"SMTP_INSECURE" default:"false"` // skip certificate verification
	Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`    // per connection, dial to QUIT
	Verify   bool          `envconfig:"SMTP_VERIFY" default:"false"`   // handshake once before the run
}

const defaultTimeout = 30 * time.Second

func (c Config) user() string {
	if c.Username != "" {
		return c.Username
	}
	return c.From
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
