package models

import "time"

// Comment is a reply to an article. Root comments have no ParentID; replies point at a
// root comment of the same article.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  uint      `gorm:"index;not null" json:"authorId"`
	ArticleID uint      `gorm:"index;not null" json:"articleId"`
	ParentID  *uint     `gorm:"index" json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Author  User      `gorm:"foreignKey:AuthorID" json:"author"`
	Replies []Comment `gorm:"foreignKey:ParentID" json:"replies"`
	Article *Article  `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}
