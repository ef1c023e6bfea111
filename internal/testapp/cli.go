package testapp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"testbed/domain"
	"testbed/ports"
)

// commands is the administrative command line of the application
type commands struct {
	Users struct {
		Create usersCreateCmd `cmd:"" help:"Create an account."`
		List   usersListCmd   `cmd:"" help:"List accounts."`
	} `cmd:"" help:"Manage accounts."`
}

// Commands returns the kong grammar of the application. It satisfies
// ports.CommandLine.
func (a *App) Commands() any {
	return &commands{}
}

// conflictError reports an account that already exists
type conflictError struct{ email string }

func (e conflictError) Error() string { return fmt.Sprintf("email %s already registered", e.email) }
func (e conflictError) ExitCode() int { return 3 }

type usersCreateCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password. Read from standard input when empty."`
	Inactive bool   `help:"Create the account deactivated."`
}

func (c *usersCreateCmd) Run(ctx context.Context, a *App, s *ports.Streams) error {
	password := c.Password
	if password == "" {
		// a missing trailing newline is fine
		line, _ := bufio.NewReader(s.In).ReadString('\n')
		if password = strings.TrimSpace(line); password == "" {
			return errors.New("password is required")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var u *domain.User
	err = a.db.Session().Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		u, err = a.CreateUser(ctx, tx, c.Email, string(hash), !c.Inactive)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictError{c.Email}
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(s.Out, "Created user %s (id %d)\n", u.Email, u.ID)
	return nil
}

type usersListCmd struct{}

func (c *usersListCmd) Run(ctx context.Context, a *App, s *ports.Streams) error {
	var accounts []domain.User
	if err := a.db.Session().Handle(ctx).Order("id").Find(&accounts).Error; err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Fprintln(s.Out, "No users.")
		return nil
	}

	w := tabwriter.NewWriter(s.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tACTIVE")
	for _, u := range accounts {
		fmt.Fprintf(w, "%d\t%s\t%t\n", u.ID, u.Email, u.Active)
	}
	return w.Flush()
}
