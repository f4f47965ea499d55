package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/archivelab/bookhaven/internal/users"
)

const migrationNormalizeAccountRoles = "2026-04-12_normalize_account_roles"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeAccountRoles, apply: normalizeAccountRoles},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeAccountRoles rewrites any role value outside the known set to
// USER. Rows imported from hand-edited credentials files are the usual
// source of stray roles.
func normalizeAccountRoles(db *gorm.DB) error {
	return db.Model(&users.Account{}).
		Where("role NOT IN ?", []users.Role{users.RoleAdmin, users.RoleUser, users.RoleGuest}).
		Update("role", users.RoleUser).Error
}
