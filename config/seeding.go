package config

import (
	"log"

	"gorm.io/gorm"
	"p9e.in/fixport/models"
)

// SeedCompanies creates a couple of demo tenants for local
// development. Skips anything that already exists.
func SeedCompanies(db *gorm.DB) error {
	companies := []models.Company{
		{Slug: "acme", Name: "Acme Industries"},
		{Slug: "globex", Name: "Globex Corporation"},
	}

	for _, c := range companies {
		var existing models.Company
		err := db.Where("slug = ?", c.Slug).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&c).Error; err != nil {
			return err
		}
		log.Printf("Seeded company %s (%s)", c.Name, c.Slug)
	}
	return nil
}
