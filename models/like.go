package models

import "time"

// Like records that a user liked an article. A user likes an article at most once.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_article,priority:1" json:"userId"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_like_user_article,priority:2;index" json:"articleId"`
	CreatedAt time.Time `json:"createdAt"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Article *Article `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}
