package application

import (
	"testbed/ports"
)

// TestSecretKey is the fixed secret material every test application gets.
const TestSecretKey = "test-secret-key"

// Config is the configuration an application factory receives.
type Config struct {
	Name         string
	DatabaseURI  string
	BrokerURL    string
	SecretKey    string
	PasswordSalt string
	InstancePath string

	CSRFEnabled      bool
	ForceHTTPS       bool
	MailSuppressSend bool
	Testing          bool

	// Mailer receives outgoing mail. With MailSuppressSend it is the
	// context's Mailbox.
	Mailer ports.Mailer

	// Extra holds application specific settings.
	Extra map[string]any
}

// Get returns an extra setting.
func (c Config) Get(key string) (any, bool) {
	v, ok := c.Extra[key]
	return v, ok
}

func testingConfig(name, dbURI, brokerURL, instancePath string) Config {
	return Config{
		Name:             name,
		DatabaseURI:      dbURI,
		BrokerURL:        brokerURL,
		SecretKey:        TestSecretKey,
		PasswordSalt:     TestSecretKey,
		InstancePath:     instancePath,
		CSRFEnabled:      false,
		ForceHTTPS:       false,
		MailSuppressSend: true,
		Testing:          true,
		Extra:            make(map[string]any),
	}
}
