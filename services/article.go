package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

var _ IArticleService = (*ArticleService)(nil)

type IArticleService interface {
	Create(ctx context.Context, in CreateArticleInput, caller *policy.Caller) (*models.Article, error)
	Get(ctx context.Context, id uint, caller *policy.Caller) (*models.Article, error)
	GetBySlug(ctx context.Context, slug string, caller *policy.Caller) (*models.Article, error)
	List(ctx context.Context, f ArticleFilter, caller *policy.Caller) (*pagination.Page[models.Article], error)
	ListByAuthor(ctx context.Context, authorID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Article], error)
	ListLikedBy(ctx context.Context, userID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Article], error)
	Update(ctx context.Context, id uint, in UpdateArticleInput, caller *policy.Caller) (*models.Article, error)
	Delete(ctx context.Context, id uint, caller *policy.Caller) error
}

// CreateArticleInput is the payload for a new article.
type CreateArticleInput struct {
	Title      string               `json:"title" binding:"required,min=3,max=200"`
	Slug       string               `json:"slug" binding:"required,min=3,max=100,slug"`
	Excerpt    string               `json:"excerpt" binding:"max=500"`
	Content    string               `json:"content" binding:"required,min=10,max=100000"`
	CoverImage string               `json:"coverImage" binding:"omitempty,http_url" code:"URL"`
	Status     models.ArticleStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	IsTop      bool                 `json:"isTop"`
	CategoryID uint                 `json:"categoryId" binding:"required" code:"CATEGORY"`
	TagIDs     []uint               `json:"tagIds"`
}

// UpdateArticleInput is a partial update; nil fields are left unchanged. A non-nil TagIDs
// replaces the whole tag set.
type UpdateArticleInput struct {
	Title      *string               `json:"title" binding:"omitempty,min=3,max=200"`
	Slug       *string               `json:"slug" binding:"omitempty,min=3,max=100,slug"`
	Excerpt    *string               `json:"excerpt" binding:"omitempty,max=500"`
	Content    *string               `json:"content" binding:"omitempty,min=10,max=100000"`
	CoverImage *string               `json:"coverImage" binding:"omitempty,len=0|http_url" code:"URL"`
	Status     *models.ArticleStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	IsTop      *bool                 `json:"isTop"`
	CategoryID *uint                 `json:"categoryId" binding:"omitempty,gt=0" code:"CATEGORY"`
	TagIDs     *[]uint               `json:"tagIds"`
}

func (in UpdateArticleInput) empty() bool {
	return in.Title == nil && in.Slug == nil && in.Excerpt == nil && in.Content == nil &&
		in.CoverImage == nil && in.Status == nil && in.IsTop == nil && in.CategoryID == nil && in.TagIDs == nil
}

// ArticleService is the article store. Reads consult the visibility policy; writes are
// validated before any statement runs.
type ArticleService struct {
	DB    *gorm.DB
	Likes ILikeService
	Views ViewRecorder
}

func (in *CreateArticleInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Excerpt = utils.Sanitize(strings.TrimSpace(in.Excerpt))
	in.Content = utils.Sanitize(in.Content)
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	if in.Status == "" {
		in.Status = models.StatusDraft
	}
	in.TagIDs = utils.Unique(in.TagIDs)
}

func (in CreateArticleInput) validate() error {
	return validateInput(in)
}

func (in *UpdateArticleInput) normalize() {
	trim := func(p *string) {
		if p != nil {
			v := strings.TrimSpace(*p)
			*p = v
		}
	}
	trim(in.Title)
	trim(in.Slug)
	trim(in.CoverImage)
	if in.Excerpt != nil {
		v := utils.Sanitize(strings.TrimSpace(*in.Excerpt))
		in.Excerpt = &v
	}
	if in.Content != nil {
		v := utils.Sanitize(*in.Content)
		in.Content = &v
	}
	if in.TagIDs != nil {
		ids := utils.Unique(*in.TagIDs)
		in.TagIDs = &ids
	}
}

func (in UpdateArticleInput) validate() error {
	if in.empty() {
		return utils.ErrNoFieldsProvided
	}
	return validateInput(in)
}

func checkCategory(tx *gorm.DB, id uint) error {
	ok, err := exists(tx, &models.Category{}, "id = ?", id)
	if err != nil {
		return err
	}
	if !ok {
		return utils.ErrCategoryNotFound
	}
	return nil
}

func checkTags(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Tag{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return utils.ErrTagNotFound
	}
	return nil
}

func checkSlugFree(tx *gorm.DB, slug string, exceptID uint) error {
	ok, err := exists(tx, &models.Article{}, "slug = ? AND id <> ?", slug, exceptID)
	if err != nil {
		return err
	}
	if ok {
		return utils.ErrSlugExists
	}
	return nil
}

func replaceTags(tx *gorm.DB, articleID uint, tagIDs []uint) error {
	if err := tx.Where("article_id = ?", articleID).Delete(&models.ArticleTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]models.ArticleTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, models.ArticleTag{ArticleID: articleID, TagID: id})
	}
	return tx.Create(&rows).Error
}

// Create persists a new article owned by the caller together with its tag links.
func (s *ArticleService) Create(ctx context.Context, in CreateArticleInput, caller *policy.Caller) (*models.Article, error) {
	if !caller.Authenticated() {
		return nil, utils.ErrUnauthenticated
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	article := models.Article{
		Title:      in.Title,
		Slug:       in.Slug,
		Excerpt:    in.Excerpt,
		Content:    in.Content,
		CoverImage: in.CoverImage,
		Status:     in.Status,
		IsTop:      in.IsTop,
		AuthorID:   caller.UserID,
		CategoryID: in.CategoryID,
	}
	if in.Status == models.StatusPublished {
		now := time.Now()
		article.PublishedAt = &now
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkSlugFree(tx, in.Slug, 0); err != nil {
			return err
		}
		if err := checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if err := checkTags(tx, in.TagIDs); err != nil {
			return err
		}
		if err := tx.Omit(clauseAssociations...).Create(&article).Error; err != nil {
			if isDuplicate(err) {
				return utils.ErrSlugExists.Wrap(err)
			}
			return err
		}
		return replaceTags(tx, article.ID, in.TagIDs)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return s.loadSummary(ctx, article.ID)
}

// clauseAssociations keeps gorm from upserting related rows when saving an article.
var clauseAssociations = []string{"Author", "Category", "Tags", "Comments"}

// withSummary preloads what list and mutation responses show: author, category and tags.
func withSummary(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", publicUser).Preload("Category").Preload("Tags")
}

func (s *ArticleService) loadSummary(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	if err := withSummary(s.DB.WithContext(ctx)).First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrArticleNotFound
		}
		return nil, utils.Unexpected(err)
	}
	if err := s.attachCommentCounts(ctx, []*models.Article{&a}); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ArticleService) attachCommentCounts(ctx context.Context, articles []*models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	var rows []struct {
		ArticleID uint
		N         int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Comment{}).
		Select("article_id, COUNT(*) AS n").
		Where("article_id IN ?", ids).
		Group("article_id").
		Scan(&rows).Error
	if err != nil {
		return utils.Unexpected(err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ArticleID] = r.N
	}
	for _, a := range articles {
		a.CommentCount = counts[a.ID]
	}
	return nil
}

func (s *ArticleService) attachLiked(ctx context.Context, articles []models.Article, caller *policy.Caller) error {
	if !caller.Authenticated() || s.Likes == nil || len(articles) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	liked, err := s.Likes.BatchCheck(ctx, ids, caller.UserID)
	if err != nil {
		return err
	}
	for i := range articles {
		v := liked[articles[i].ID]
		articles[i].IsLiked = &v
	}
	return nil
}

// Get returns an article with its author, category, tags and comment tree, and records a view.
func (s *ArticleService) Get(ctx context.Context, id uint, caller *policy.Caller) (*models.Article, error) {
	return s.getWhere(ctx, caller, "id = ?", id)
}

// GetBySlug is Get addressed by slug.
func (s *ArticleService) GetBySlug(ctx context.Context, slug string, caller *policy.Caller) (*models.Article, error) {
	return s.getWhere(ctx, caller, "slug = ?", slug)
}

func (s *ArticleService) getWhere(ctx context.Context, caller *policy.Caller, query string, arg interface{}) (*models.Article, error) {
	db := s.DB.WithContext(ctx)
	var head models.Article
	if err := db.Select("id", "author_id", "status").Where(query, arg).First(&head).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrArticleNotFound
		}
		return nil, utils.Unexpected(err)
	}
	if !policy.CanViewArticle(&head, caller) {
		return nil, utils.ErrArticleForbidden
	}

	var a models.Article
	err := withSummary(db).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Where("parent_id IS NULL").Order("created_at DESC, id DESC")
		}).
		Preload("Comments.Author", publicUser).
		Preload("Comments.Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Comments.Replies.Author", publicUser).
		First(&a, head.ID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, utils.ErrArticleNotFound
		}
		return nil, utils.Unexpected(err)
	}
	if a.Comments == nil {
		a.Comments = []models.Comment{}
	}
	for i := range a.Comments {
		if a.Comments[i].Replies == nil {
			a.Comments[i].Replies = []models.Comment{}
		}
	}
	if err := s.attachCommentCounts(ctx, []*models.Article{&a}); err != nil {
		return nil, err
	}
	if caller.Authenticated() && s.Likes != nil {
		liked, err := s.Likes.IsLiked(ctx, a.ID, caller.UserID)
		if err != nil {
			utils.Logger.Warn("like lookup failed", zap.Uint("article_id", a.ID), zap.Error(err))
		} else {
			a.IsLiked = &liked
		}
	}

	if s.Views != nil {
		s.Views.Record(a.ID)
	}
	return &a, nil
}

// List returns one page of articles matching f that caller may see.
func (s *ArticleService) List(ctx context.Context, f ArticleFilter, caller *policy.Caller) (*pagination.Page[models.Article], error) {
	preds, err := BuildArticlePredicates(f, caller)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, preds, f.Sort, f.Page, caller)
}

// ListByAuthor lists an author's articles. The author and admins also see unpublished ones.
func (s *ArticleService) ListByAuthor(ctx context.Context, authorID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Article], error) {
	if err := userExists(s.DB.WithContext(ctx), authorID); err != nil {
		return nil, err
	}
	preds := []Predicate{AuthorIs{authorID}}
	if !policy.CanSeeUnpublishedOf(authorID, caller) {
		preds = append(preds, StatusIs{models.StatusPublished})
	}
	return s.page(ctx, preds, pagination.Sort{Field: ArticleSort.Default, Order: pagination.Desc}, page, caller)
}

// ListLikedBy lists articles userID liked, restricted to what caller may see.
func (s *ArticleService) ListLikedBy(ctx context.Context, userID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Article], error) {
	if err := userExists(s.DB.WithContext(ctx), userID); err != nil {
		return nil, err
	}
	preds := []Predicate{LikedBy{userID}}
	switch {
	case caller.IsAdmin():
	case caller.Authenticated():
		preds = append(preds, PublishedOrAuthoredBy{caller.UserID})
	default:
		preds = append(preds, StatusIs{models.StatusPublished})
	}
	return s.page(ctx, preds, pagination.Sort{Field: ArticleSort.Default, Order: pagination.Desc}, page, caller)
}

func (s *ArticleService) page(ctx context.Context, preds []Predicate, sort pagination.Sort, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Article], error) {
	if page.Limit == 0 {
		page = pagination.NewRequest(page.Page, pagination.DefaultLimit)
	}
	var (
		total    int64
		articles []models.Article
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		q := applyPredicates(s.DB.WithContext(gctx).Model(&models.Article{}), preds)
		return q.Count(&total).Error
	})
	eg.Go(func() error {
		q := applyPredicates(withSummary(s.DB.WithContext(gctx)).Model(&models.Article{}), preds)
		return q.Order(orderClause(ArticleSort, sort)).
			Offset(page.Offset()).
			Limit(page.Limit).
			Find(&articles).Error
	})
	if err := eg.Wait(); err != nil {
		return nil, storeErr(err)
	}

	ptrs := make([]*models.Article, len(articles))
	for i := range articles {
		ptrs[i] = &articles[i]
	}
	if err := s.attachCommentCounts(ctx, ptrs); err != nil {
		return nil, err
	}
	if err := s.attachLiked(ctx, articles, caller); err != nil {
		return nil, err
	}
	return pagination.NewPage(articles, page, total), nil
}

func (s *ArticleService) loadForMutation(tx *gorm.DB, id uint, caller *policy.Caller) (*models.Article, error) {
	var a models.Article
	if err := tx.First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrArticleNotFound
		}
		return nil, err
	}
	if !policy.CanMutateArticle(&a, caller) {
		return nil, utils.ErrArticleForbidden
	}
	return &a, nil
}

// Update applies a partial update. publishedAt is set the first time the article is
// published and never overwritten afterwards.
func (s *ArticleService) Update(ctx context.Context, id uint, in UpdateArticleInput, caller *policy.Caller) (*models.Article, error) {
	db := s.DB.WithContext(ctx)
	if _, err := s.loadForMutation(db, id, caller); err != nil {
		return nil, storeErr(err)
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		current, err := s.loadForMutation(tx, id, caller)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.Title != nil {
			updates["title"] = *in.Title
		}
		if in.Slug != nil && *in.Slug != current.Slug {
			if err := checkSlugFree(tx, *in.Slug, id); err != nil {
				return err
			}
			updates["slug"] = *in.Slug
		}
		if in.Excerpt != nil {
			updates["excerpt"] = *in.Excerpt
		}
		if in.Content != nil {
			updates["content"] = *in.Content
		}
		if in.CoverImage != nil {
			updates["cover_image"] = *in.CoverImage
		}
		if in.IsTop != nil {
			updates["is_top"] = *in.IsTop
		}
		if in.CategoryID != nil {
			if err := checkCategory(tx, *in.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *in.CategoryID
		}
		if in.Status != nil {
			updates["status"] = *in.Status
			if *in.Status == models.StatusPublished && current.PublishedAt == nil {
				updates["published_at"] = time.Now()
			}
		}
		if in.TagIDs != nil {
			if err := checkTags(tx, *in.TagIDs); err != nil {
				return err
			}
			if err := replaceTags(tx, id, *in.TagIDs); err != nil {
				return err
			}
		}

		if len(updates) == 0 {
			// only tags changed; still bump updated_at
			updates["updated_at"] = time.Now()
		}
		if err := tx.Model(current).Omit(clauseAssociations...).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return utils.ErrSlugExists.Wrap(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return s.loadSummary(ctx, id)
}

// Delete removes an article along with its comments, likes and tag links.
func (s *ArticleService) Delete(ctx context.Context, id uint, caller *policy.Caller) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadForMutation(tx, id, caller); err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.ArticleTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Article{}, id).Error
	})
	return storeErr(err)
}
