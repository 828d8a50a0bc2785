package tester

import (
	"fmt"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/emrgen/revision/internal/model"
)

// SetupPostgres runs a throwaway postgres container and migrates the schema
// into it. The returned purge func tears the container down. Tests that
// call this must be gated behind an environment check so the default suite
// stays docker-free.
func SetupPostgres() (*gorm.DB, func(), error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, nil, fmt.Errorf("constructing docker pool: %w", err)
	}

	if err := pool.Client.Ping(); err != nil {
		return nil, nil, fmt.Errorf("connecting to docker: %w", err)
	}

	resource, err := pool.Run("postgres", "16", []string{
		"POSTGRES_USER=revision",
		"POSTGRES_PASSWORD=revision",
		"POSTGRES_DB=revision",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("starting postgres: %w", err)
	}

	var db *gorm.DB
	err = pool.Retry(func() error {
		dsn := fmt.Sprintf("host=localhost port=%s user=revision password=revision dbname=revision sslmode=disable",
			resource.GetPort("5432/tcp"))
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		return err
	})
	if err != nil {
		_ = pool.Purge(resource)
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := model.Migrate(db); err != nil {
		_ = pool.Purge(resource)
		return nil, nil, fmt.Errorf("migrating schema: %w", err)
	}

	purge := func() {
		if err := pool.Purge(resource); err != nil {
			logrus.Errorf("purging postgres container: %v", err)
		}
	}

	return db, purge, nil
}
