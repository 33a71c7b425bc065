//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
	"time"
)

// Actor identifies the process being watched.
type Actor struct {
	// Hostname is the machine name.
	Hostname string
	// Username is the system user running the process.
	Username string
	// PID is the process id.
	PID int
}

// DetectActor gathers host, user and process information.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
		PID:      os.Getpid(),
	}, nil
}

// LogFields returns the actor as key-value pairs for a pause log line.
// It matches the signature of pausealarm.WithLogFields.
func (a *Actor) LogFields(time.Duration) []any {
	if a == nil {
		return nil
	}

	return []any{"hostname", a.Hostname, "username", a.Username, "pid", a.PID}
}
