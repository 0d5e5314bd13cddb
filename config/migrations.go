package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/fixport/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20260810_create_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Company{}, &models.User{},
					&models.WorkOrder{}, &models.WorkOrderNote{}, &models.WorkOrderPhoto{})
			},
		},
		{
			ID: "20260818_add_auth_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Session{}, &models.LoginToken{})
			},
		},
	})
	return m.Migrate()
}
