// Package testutil builds throwaway databases and Redis servers for tests.
package testutil

import (
	"io"
	"testing"

	"lifeline-plus/internal/domain/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns an in-memory SQLite database with the schema migrated and
// the default roles seeded.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := NewEmptyDB(t)
	require.NoError(t, db.AutoMigrate(
		&entity.Role{},
		&entity.User{},
		&entity.DoctorProfile{},
		&entity.PatientProfile{},
		&entity.EmergencyAlert{},
		&entity.Appointment{},
		&entity.AuditLog{},
	))
	require.NoError(t, db.Create(&[]entity.Role{
		{ID: entity.RoleIDAdmin, RoleName: entity.RoleAdmin},
		{ID: entity.RoleIDDoctor, RoleName: entity.RoleDoctor},
		{ID: entity.RoleIDPatient, RoleName: entity.RolePatient},
	}).Error)

	return db
}

// NewEmptyDB returns an in-memory SQLite database with no tables, for tests
// that lay out the schema themselves.
func NewEmptyDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// NewRedis starts a miniredis server that is stopped with the test.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func QuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// SeedUser inserts a user with the given role and returns it.
func SeedUser(t *testing.T, db *gorm.DB, email string, roleID int) *entity.User {
	t.Helper()
	user := &entity.User{
		Email:    email,
		Password: "x",
		FullName: email,
		RoleID:   roleID,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedDoctor inserts a doctor account with a profile.
func SeedDoctor(t *testing.T, db *gorm.DB, email, license string, lat, lng *float64) *entity.DoctorProfile {
	t.Helper()
	user := SeedUser(t, db, email, entity.RoleIDDoctor)
	profile := &entity.DoctorProfile{
		UserID:         user.ID,
		LicenseNumber:  license,
		Specialization: "emergency medicine",
		IsAvailable:    true,
		Latitude:       lat,
		Longitude:      lng,
	}
	require.NoError(t, db.Create(profile).Error)
	profile.User = *user
	return profile
}
