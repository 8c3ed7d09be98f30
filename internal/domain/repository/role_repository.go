package repository

import (
	"lifeline-plus/internal/domain/entity"

	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByName(db *gorm.DB, name string) (*entity.Role, error)
	EnsureDefaults(db *gorm.DB) error
}
