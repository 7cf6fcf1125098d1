// Package pgtest provides a shared, package-local Postgres test container
// for integration tests, following the shared-container-per-package pattern
// used throughout the teacher's postgres store tests: one container boots
// in TestMain, and every test in the package gets its own fsid/database
// namespace instead of its own container.
package pgtest

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container holds a running Postgres-compatible test container and the
// host/port its connection string is built from.
type Container struct {
	container *postgres.PostgresContainer
	host      string
	port      string
}

// Start boots a shared postgres:16-alpine container. Call from TestMain;
// call Terminate before os.Exit.
func Start(ctx context.Context) (*Container, error) {
	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("udavfs_test"),
		postgres.WithUsername("udavfs_test"),
		postgres.WithPassword("udavfs_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("pgtest: start container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("pgtest: container host: %w", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("pgtest: container port: %w", err)
	}

	return &Container{container: c, host: host, port: port.Port()}, nil
}

// Terminate tears down the container.
func (c *Container) Terminate(ctx context.Context) error {
	if c == nil || c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}

// ConnString returns a connection string against the shared test database.
// Every test should still scope its rows by a fresh fsid, since the
// database itself is shared across the whole package's test run.
func (c *Container) ConnString() string {
	return fmt.Sprintf("postgres://udavfs_test:udavfs_test@%s:%s/udavfs_test?sslmode=disable",
		c.host, c.port)
}
