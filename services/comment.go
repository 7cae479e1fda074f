package services

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

var _ ICommentService = (*CommentService)(nil)

type ICommentService interface {
	Create(ctx context.Context, in CreateCommentInput, caller *policy.Caller) (*models.Comment, error)
	Get(ctx context.Context, id uint, caller *policy.Caller) (*models.Comment, error)
	ListForArticle(ctx context.Context, articleID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Comment], error)
	ListByUser(ctx context.Context, userID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Comment], error)
	Update(ctx context.Context, id uint, content string, caller *policy.Caller) (*models.Comment, error)
	Delete(ctx context.Context, id uint, caller *policy.Caller) error
}

type CreateCommentInput struct {
	Content   string `json:"content" binding:"required,max=5000" code:"COMMENT_CONTENT"`
	ArticleID uint   `json:"articleId" binding:"required"`
	ParentID  *uint  `json:"parentId"`
}

// UpdateCommentInput is the body of a comment edit.
type UpdateCommentInput struct {
	Content string `json:"content" binding:"required,max=5000" code:"COMMENT_CONTENT"`
}

// CommentService manages two-level comment threads: root comments and their replies.
type CommentService struct {
	DB *gorm.DB
}

func viewableArticle(db *gorm.DB, id uint, caller *policy.Caller) error {
	var a models.Article
	if err := db.Select("id", "author_id", "status").First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return utils.ErrArticleNotFound
		}
		return err
	}
	if !policy.CanViewArticle(&a, caller) {
		return utils.ErrArticleForbidden
	}
	return nil
}

func cleanComment(s string) string {
	return strings.TrimSpace(utils.Sanitize(s))
}

// Create adds a root comment or, with ParentID, a reply to a root comment of the same article.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput, caller *policy.Caller) (*models.Comment, error) {
	if !caller.Authenticated() {
		return nil, utils.ErrUnauthenticated
	}
	in.Content = cleanComment(in.Content)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID == 0 {
		in.ParentID = nil
	}

	db := s.DB.WithContext(ctx)
	if err := viewableArticle(db, in.ArticleID, caller); err != nil {
		return nil, storeErr(err)
	}
	if in.ParentID != nil {
		var parent models.Comment
		if err := db.Select("id", "article_id", "parent_id").First(&parent, *in.ParentID).Error; err != nil {
			if isNotFound(err) {
				return nil, utils.ErrParentCommentNotFound
			}
			return nil, utils.Unexpected(err)
		}
		if parent.ArticleID != in.ArticleID {
			return nil, utils.ErrInvalidParentComment
		}
		if parent.ParentID != nil {
			return nil, utils.ErrCommentDepthExceeded
		}
	}

	c := models.Comment{
		Content:   in.Content,
		AuthorID:  caller.UserID,
		ArticleID: in.ArticleID,
		ParentID:  in.ParentID,
	}
	if err := db.Omit("Author", "Replies", "Article").Create(&c).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return s.load(ctx, c.ID)
}

func (s *CommentService) load(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	err := s.DB.WithContext(ctx).
		Preload("Author", publicUser).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Replies.Author", publicUser).
		First(&c, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, utils.ErrCommentNotFound
		}
		return nil, utils.Unexpected(err)
	}
	if c.Replies == nil {
		c.Replies = []models.Comment{}
	}
	return &c, nil
}

// Get returns one comment with its replies, provided its article is visible to caller.
func (s *CommentService) Get(ctx context.Context, id uint, caller *policy.Caller) (*models.Comment, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := viewableArticle(s.DB.WithContext(ctx), c.ArticleID, caller); err != nil {
		return nil, storeErr(err)
	}
	return c, nil
}

// ListForArticle pages root comments newest first; each carries all replies oldest first.
func (s *CommentService) ListForArticle(ctx context.Context, articleID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Comment], error) {
	if err := viewableArticle(s.DB.WithContext(ctx), articleID, caller); err != nil {
		return nil, storeErr(err)
	}

	var (
		total    int64
		comments []models.Comment
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Comment{}).
			Where("article_id = ? AND parent_id IS NULL", articleID).
			Count(&total).Error
	})
	eg.Go(func() error {
		return s.DB.WithContext(gctx).
			Preload("Author", publicUser).
			Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
			Preload("Replies.Author", publicUser).
			Where("article_id = ? AND parent_id IS NULL", articleID).
			Order("created_at DESC, id DESC").
			Offset(page.Offset()).Limit(page.Limit).
			Find(&comments).Error
	})
	if err := eg.Wait(); err != nil {
		return nil, utils.Unexpected(err)
	}
	for i := range comments {
		if comments[i].Replies == nil {
			comments[i].Replies = []models.Comment{}
		}
	}
	return pagination.NewPage(comments, page, total), nil
}

// ListByUser pages a user's comments, newest first, on articles caller may see.
func (s *CommentService) ListByUser(ctx context.Context, userID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Comment], error) {
	db := s.DB.WithContext(ctx)
	if err := userExists(db, userID); err != nil {
		return nil, err
	}

	var visible []Predicate
	switch {
	case caller.IsAdmin():
	case caller.Authenticated():
		visible = []Predicate{PublishedOrAuthoredBy{caller.UserID}}
	default:
		visible = []Predicate{StatusIs{models.StatusPublished}}
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.Comment{}).
			Joins("JOIN articles ON articles.id = comments.article_id").
			Where("comments.author_id = ?", userID)
		return applyPredicates(db, visible)
	}

	var (
		total    int64
		comments []models.Comment
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return scope(s.DB.WithContext(gctx)).Count(&total).Error
	})
	eg.Go(func() error {
		return scope(s.DB.WithContext(gctx)).
			Select("comments.*").
			Preload("Author", publicUser).
			Preload("Article", func(db *gorm.DB) *gorm.DB {
				return db.Select("id", "title", "slug", "status", "author_id")
			}).
			Order("comments.created_at DESC, comments.id DESC").
			Offset(page.Offset()).Limit(page.Limit).
			Find(&comments).Error
	})
	if err := eg.Wait(); err != nil {
		return nil, utils.Unexpected(err)
	}
	return pagination.NewPage(comments, page, total), nil
}

func (s *CommentService) loadForMutation(db *gorm.DB, id uint, caller *policy.Caller) (*models.Comment, error) {
	var c models.Comment
	if err := db.First(&c, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrCommentNotFound
		}
		return nil, utils.Unexpected(err)
	}
	if !policy.CanMutateComment(&c, caller) {
		return nil, utils.ErrCommentForbidden
	}
	return &c, nil
}

func (s *CommentService) Update(ctx context.Context, id uint, content string, caller *policy.Caller) (*models.Comment, error) {
	db := s.DB.WithContext(ctx)
	c, err := s.loadForMutation(db, id, caller)
	if err != nil {
		return nil, err
	}
	content = cleanComment(content)
	if err := validateInput(UpdateCommentInput{Content: content}); err != nil {
		return nil, err
	}
	if err := db.Model(c).Update("content", content).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return s.load(ctx, id)
}

// Delete removes the comment and every reply pointing at it in one transaction.
func (s *CommentService) Delete(ctx context.Context, id uint, caller *policy.Caller) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadForMutation(tx, id, caller); err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, id).Error
	})
	return storeErr(err)
}
