// Package repository implements the Artifact Repository (§4.2): the
// relational store for Project/Chapter/Script/Scene/Shot/Transition/
// Character/APIKey/GenerationHistory, backed by gorm. Connection setup
// is grounded on the pack's database.New (dialector switch on driver,
// explicit pool sizing); CRUD methods are grounded on the teacher's
// DynamoDBRepository method shapes, generalized to SQL.
package repository

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sceneforge/core/internal/domain"
)

// Open connects to the relational store named by DATABASE_URL (§6:
// "DATABASE_URL selects both the driver and the DSN, e.g.
// postgres://... or mysql://..."). Driver is inferred from the URL
// scheme the way the pack's config.DatabaseConfig.Driver selects a
// dialector.
func Open(databaseURL string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                  gormlogger.Default.LogMode(logLevel),
		SkipDefaultTransaction:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "mysql://"):
		return mysql.Open(strings.TrimPrefix(databaseURL, "mysql://")), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme in %q", databaseURL)
	}
}

// Migrate runs gorm's AutoMigrate across every Artifact Repository
// entity, used by the `migrate` CLI subcommand (§6).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Project{},
		&domain.Chapter{},
		&domain.Script{},
		&domain.Scene{},
		&domain.Shot{},
		&domain.Transition{},
		&domain.Character{},
		&domain.Sentence{},
		&domain.APIKey{},
		&domain.GenerationHistory{},
	)
}
