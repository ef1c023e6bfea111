package ports

import (
	"context"
	"io"
	"net/http"

	"gorm.io/gorm"

	"testbed/database"
	"testbed/domain"
)

// Application is an initialized web application under test
type Application interface {
	http.Handler

	// Name returns the application name
	Name() string
	// Database returns the persistence handle the application writes through
	Database() *database.DB
}

// UserDatastore creates user records. Applications with their own account
// model implement it; the default stores domain.User rows.
type UserDatastore interface {
	CreateUser(ctx context.Context, tx *gorm.DB, email, passwordHash string, active bool) (*domain.User, error)
}

// Mailer sends email on behalf of the application
type Mailer interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}

// CommandLine is implemented by applications with administrative commands.
// Commands returns a new kong grammar on every call. Run methods of the
// grammar may ask for a context.Context, *Streams and the application.
type CommandLine interface {
	Commands() any
}

// Streams are the standard streams of one command invocation
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}
