package db

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("database not configured")

func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&ProofModel{},
		&ProofTrailModel{},
		&CertificateModel{},
		&AuditEntryModel{},
	)
}
