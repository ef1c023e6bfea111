package ports

import "context"

// LaunchOptions describes the browser a DriverLauncher should start
type LaunchOptions struct {
	Browser      string
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// Driver controls one running browser instance
type Driver interface {
	// Navigate loads url and waits for the page to be ready
	Navigate(ctx context.Context, url string) error
	// ExecuteScript evaluates script in the current page and stores its result in result
	ExecuteScript(ctx context.Context, script string, result any) error
	// Screenshot captures the visible viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)
	// ResetState clears cookies, storage and the current page
	ResetState(ctx context.Context) error
	// Quit stops the browser process
	Quit(ctx context.Context) error
}

// DriverLauncher starts browsers
type DriverLauncher interface {
	// Launch starts a browser and returns once it accepts commands
	Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
}
