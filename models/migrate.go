package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All lists every persisted model in dependency order.
func All() []interface{} {
	return []interface{}{&User{}, &Category{}, &Tag{}, &Article{}, &ArticleTag{}, &Comment{}, &Like{}}
}

// AutoMigrate creates or extends the schema for every model.
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Article{}, "Tags", &ArticleTag{}); err != nil {
		return fmt.Errorf("setup article_tags: %w", err)
	}
	for _, model := range All() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto migration failed for %T: %w", model, err)
		}
	}
	return nil
}
