package models

import "time"

// DefaultTagColor is applied when a tag is created without a color.
const DefaultTagColor = "#10B981"

// Tag is free-form classification attached to articles through article_tags.
type Tag struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:30;uniqueIndex;not null" json:"name"`
	Slug         string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Color        string    `gorm:"size:16" json:"color"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ArticleCount int64     `gorm:"-" json:"articleCount"`
}
