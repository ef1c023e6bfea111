// Package application builds the application under test with a fixed
// testing configuration, and the in-process client tests drive it with.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"testbed/config"
	"testbed/database"
	"testbed/domain"
	"testbed/logging"
	"testbed/ports"
)

// InstancePathEnv is exported to the application for the lifetime of the
// context so code that reads its instance root from the environment finds it.
const InstancePathEnv = "TESTBED_INSTANCE_PATH"

// Factory creates an application from a configuration.
type Factory func(ctx context.Context, cfg Config) (ports.Application, error)

type buildOptions struct {
	name      string
	settings  *config.Settings
	overrides []func(*Config)
	client    []ClientOption
}

// Option configures Build.
type Option func(*buildOptions)

// WithName sets the application name.
func WithName(name string) Option {
	return func(o *buildOptions) { o.name = name }
}

// WithSettings uses s instead of loading settings from disk and environment.
func WithSettings(s *config.Settings) Option {
	return func(o *buildOptions) { o.settings = s }
}

// WithConfig adjusts the testing configuration before the factory sees it.
func WithConfig(fn func(*Config)) Option {
	return func(o *buildOptions) { o.overrides = append(o.overrides, fn) }
}

// WithClientOptions configures the client Build returns.
func WithClientOptions(opts ...ClientOption) Option {
	return func(o *buildOptions) { o.client = append(o.client, opts...) }
}

// Context owns one built application and its instance state.
type Context struct {
	App     ports.Application
	Config  Config
	Mailbox *Mailbox

	instanceDir string
	prevEnv     string
	hadEnv      bool
	closed      bool
}

// DB returns the application's persistence handle.
func (c *Context) DB() *database.DB {
	return c.App.Database()
}

// InstanceDir returns the temporary instance root removed by Close.
func (c *Context) InstanceDir() string {
	return c.instanceDir
}

// Build creates the application with the testing configuration and a client
// bound to it. The caller must Close the returned context.
func Build(ctx context.Context, factory Factory, opts ...Option) (*Context, *Client, error) {
	o := buildOptions{name: "testbed"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.settings == nil {
		s, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrSetup, err)
		}
		o.settings = s
	}

	instanceDir, err := os.MkdirTemp("", "testbed-instance-")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create instance path: %w", domain.ErrSetup, err)
	}

	c := &Context{instanceDir: instanceDir, Mailbox: &Mailbox{}}
	c.prevEnv, c.hadEnv = os.LookupEnv(InstancePathEnv)

	instancePath := instanceDir
	if o.settings.InstancePath != "" {
		instancePath = o.settings.InstancePath
	}
	if err := os.Setenv(InstancePathEnv, instancePath); err != nil {
		c.cleanup()
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrSetup, err)
	}

	dbURI := o.settings.DatabaseURI
	if dbURI == "" {
		f, err := os.CreateTemp(instanceDir, "test*.db")
		if err != nil {
			c.cleanup()
			return nil, nil, fmt.Errorf("%w: failed to create database file: %w", domain.ErrSetup, err)
		}
		f.Close()
		dbURI = database.SQLiteURI(f.Name())
	}

	cfg := testingConfig(o.name, dbURI, o.settings.Broker(), instancePath)
	cfg.Mailer = c.Mailbox
	for _, fn := range o.overrides {
		fn(&cfg)
	}
	c.Config = cfg

	app, err := factory(ctx, cfg)
	if err != nil {
		c.cleanup()
		return nil, nil, fmt.Errorf("%w: application factory failed: %w", domain.ErrSetup, err)
	}
	c.App = app

	logging.Logger.Info("Application built", "name", cfg.Name, "instance_path", instancePath)
	return c, NewClient(app, o.client...), nil
}

// Close shuts the application down and removes its instance state.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if closer, ok := c.App.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: failed to close application: %w", domain.ErrTeardown, err))
		}
	}
	if err := c.cleanup(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", domain.ErrTeardown, err))
	}
	return errors.Join(errs...)
}

func (c *Context) cleanup() error {
	if c.hadEnv {
		os.Setenv(InstancePathEnv, c.prevEnv)
	} else {
		os.Unsetenv(InstancePathEnv)
	}
	if err := os.RemoveAll(c.instanceDir); err != nil {
		return fmt.Errorf("failed to remove instance path: %w", err)
	}
	return nil
}
