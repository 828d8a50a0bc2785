package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Branch{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Version{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ApprovalStep{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&RollbackRecord{}); err != nil {
		return err
	}

	return db.AutoMigrate(&ComparisonStat{})
}
