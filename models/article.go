package models

import "time"

// ArticleStatus is the publication state of an article.
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "DRAFT"
	StatusPublished ArticleStatus = "PUBLISHED"
	StatusArchived  ArticleStatus = "ARCHIVED"
)

// Valid reports whether s is one of the known statuses.
func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Article is a blog post. LikeCount mirrors the number of Like rows and is only
// changed together with them inside one transaction.
type Article struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"size:200;not null" json:"title"`
	Slug        string        `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Excerpt     string        `gorm:"size:500" json:"excerpt"`
	Content     string        `gorm:"type:text;not null" json:"content"`
	CoverImage  string        `gorm:"size:512" json:"coverImage"`
	Status      ArticleStatus `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	IsTop       bool          `gorm:"not null;default:false" json:"isTop"`
	ViewCount   int64         `gorm:"not null;default:0" json:"viewCount"`
	LikeCount   int64         `gorm:"not null;default:0" json:"likeCount"`
	PublishedAt *time.Time    `json:"publishedAt"`
	AuthorID    uint          `gorm:"index;not null" json:"authorId"`
	CategoryID  uint          `gorm:"index;not null" json:"categoryId"`
	CreatedAt   time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	Author   User      `gorm:"foreignKey:AuthorID" json:"author"`
	Category Category  `gorm:"foreignKey:CategoryID" json:"category"`
	Tags     []Tag     `gorm:"many2many:article_tags;" json:"tags"`
	Comments []Comment `gorm:"foreignKey:ArticleID" json:"comments,omitempty"`

	CommentCount int64 `gorm:"-" json:"commentCount"`
	IsLiked      *bool `gorm:"-" json:"isLiked,omitempty"`
}

// ArticleTag is the explicit join row behind Article.Tags.
type ArticleTag struct {
	ArticleID uint `gorm:"primaryKey"`
	TagID     uint `gorm:"primaryKey;index"`
}

// TableName pins the join table shared with the many2many association.
func (ArticleTag) TableName() string { return "article_tags" }
