package repository

import (
	"errors"

	"lifeline-plus/internal/domain/entity"
	domainRepo "lifeline-plus/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roleRepository struct{}

func NewRoleRepository() domainRepo.RoleRepository {
	return &roleRepository{}
}

func (r *roleRepository) FindByName(db *gorm.DB, name string) (*entity.Role, error) {
	var role entity.Role
	err := db.Where("role_name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// EnsureDefaults inserts the fixed admin/doctor/patient rows if missing.
func (r *roleRepository) EnsureDefaults(db *gorm.DB) error {
	roles := []entity.Role{
		{ID: entity.RoleIDAdmin, RoleName: entity.RoleAdmin, Description: "System administrator"},
		{ID: entity.RoleIDDoctor, RoleName: entity.RoleDoctor, Description: "Responds to alerts and appointments"},
		{ID: entity.RoleIDPatient, RoleName: entity.RolePatient, Description: "Books appointments and raises alerts"},
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error
}
