package models

import "gorm.io/gorm"

// All lists every table in dependency order (parents first).
func All() []any {
	return []any{
		&User{},
		&Ingredient{},
		&Recipe{},
		&RecipeIngredient{},
		&Client{},
		&Order{},
		&OrderRecipe{},
	}
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}

// DropAll drops every table, children first.
func DropAll(db *gorm.DB) error {
	all := All()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return err
		}
	}
	return nil
}
