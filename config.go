package jobrun

import (
	"os"
	"time"
)

// Config holds node-wide settings shared by the pipeline stages.
type Config struct {
	// NodeName identifies this worker in instance records.
	// Defaults to the host name.
	NodeName string

	// LockKeyPrefix is prepended to the job name to form the lock key.
	LockKeyPrefix string

	// LockTTLMargin is added to the job timeout to compute the lock TTL,
	// so the lock does not expire while an attempt is still inside its
	// timeout window.
	LockTTLMargin time.Duration

	// ReleaseTimeout bounds a lock release. Release runs on a context
	// detached from the job's cancellation.
	ReleaseTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	node, err := os.Hostname()
	if err != nil || node == "" {
		node = "localhost"
	}
	return Config{
		NodeName:       node,
		LockKeyPrefix:  "job:lock:",
		LockTTLMargin:  5 * time.Second,
		ReleaseTimeout: 5 * time.Second,
	}
}
