package services

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

var _ ILikeService = (*LikeService)(nil)

type ILikeService interface {
	Toggle(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error)
	Like(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error)
	Unlike(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error)
	State(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error)
	IsLiked(ctx context.Context, articleID, userID uint) (bool, error)
	CountFor(ctx context.Context, articleID uint) (int64, error)
	BatchCheck(ctx context.Context, articleIDs []uint, userID uint) (map[uint]bool, error)
	Likers(ctx context.Context, articleID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Like], error)
	Reconcile(ctx context.Context, articleID uint) (int64, error)
	ReconcileAll(ctx context.Context) (int64, error)
}

// LikeState is the outcome of a like mutation.
type LikeState struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

// LikeService keeps Like rows and Article.LikeCount in step. Every row change and its
// counter adjustment commit in the same transaction, with the counter updated in SQL.
type LikeService struct {
	DB *gorm.DB
}

// lockArticle takes a row lock on the article for the rest of tx and checks visibility.
// Dialects without row locks (sqlite) ignore the locking clause.
func lockArticle(tx *gorm.DB, articleID uint, caller *policy.Caller) error {
	var a models.Article
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "author_id", "status").
		First(&a, articleID).Error
	if isNotFound(err) {
		return utils.ErrArticleNotFound
	}
	if err != nil {
		return err
	}
	if !policy.CanViewArticle(&a, caller) {
		return utils.ErrArticleForbidden
	}
	return nil
}

func adjustLikeCount(tx *gorm.DB, articleID uint, delta int64) error {
	expr := gorm.Expr("like_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("like_count - ?", -delta)
	}
	return tx.Model(&models.Article{}).Where("id = ?", articleID).UpdateColumn("like_count", expr).Error
}

func currentLikeCount(tx *gorm.DB, articleID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.Article{}).Select("like_count").Where("id = ?", articleID).Scan(&n).Error
	return n, err
}

// mutate runs fn inside the like transaction and returns the resulting state.
func (s *LikeService) mutate(ctx context.Context, articleID uint, caller *policy.Caller, fn func(tx *gorm.DB) (bool, error)) (*LikeState, error) {
	if !caller.Authenticated() {
		return nil, utils.ErrUnauthenticated
	}
	var state LikeState
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockArticle(tx, articleID, caller); err != nil {
			return err
		}
		liked, err := fn(tx)
		if err != nil {
			return err
		}
		count, err := currentLikeCount(tx, articleID)
		if err != nil {
			return err
		}
		state = LikeState{Liked: liked, LikeCount: count}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &state, nil
}

func insertLike(tx *gorm.DB, articleID, userID uint) error {
	if err := tx.Create(&models.Like{UserID: userID, ArticleID: articleID}).Error; err != nil {
		if isDuplicate(err) {
			return utils.ErrAlreadyLiked.Wrap(err)
		}
		return err
	}
	return adjustLikeCount(tx, articleID, 1)
}

func deleteLike(tx *gorm.DB, articleID, userID uint) (bool, error) {
	res := tx.Where("user_id = ? AND article_id = ?", userID, articleID).Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, adjustLikeCount(tx, articleID, -res.RowsAffected)
}

// Toggle removes the caller's like if present, otherwise adds one.
func (s *LikeService) Toggle(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error) {
	return s.mutate(ctx, articleID, caller, func(tx *gorm.DB) (bool, error) {
		removed, err := deleteLike(tx, articleID, caller.UserID)
		if err != nil {
			return false, err
		}
		if removed {
			return false, nil
		}
		return true, insertLike(tx, articleID, caller.UserID)
	})
}

// Like is the idempotent "set liked" operation.
func (s *LikeService) Like(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error) {
	return s.mutate(ctx, articleID, caller, func(tx *gorm.DB) (bool, error) {
		liked, err := exists(tx, &models.Like{}, "user_id = ? AND article_id = ?", caller.UserID, articleID)
		if err != nil || liked {
			return liked, err
		}
		return true, insertLike(tx, articleID, caller.UserID)
	})
}

// Unlike is the idempotent "set not liked" operation.
func (s *LikeService) Unlike(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error) {
	return s.mutate(ctx, articleID, caller, func(tx *gorm.DB) (bool, error) {
		_, err := deleteLike(tx, articleID, caller.UserID)
		return false, err
	})
}

func (s *LikeService) IsLiked(ctx context.Context, articleID, userID uint) (bool, error) {
	ok, err := exists(s.DB.WithContext(ctx), &models.Like{}, "user_id = ? AND article_id = ?", userID, articleID)
	return ok, storeErr(err)
}

// State reports the like count of an article the caller may see and whether the caller
// liked it. Anonymous callers never have.
func (s *LikeService) State(ctx context.Context, articleID uint, caller *policy.Caller) (*LikeState, error) {
	if err := viewableArticle(s.DB.WithContext(ctx), articleID, caller); err != nil {
		return nil, storeErr(err)
	}
	state := &LikeState{}
	var err error
	if caller.Authenticated() {
		if state.Liked, err = s.IsLiked(ctx, articleID, caller.UserID); err != nil {
			return nil, err
		}
	}
	if state.LikeCount, err = s.CountFor(ctx, articleID); err != nil {
		return nil, err
	}
	return state, nil
}

// CountFor counts Like rows, the authoritative source for Article.LikeCount.
func (s *LikeService) CountFor(ctx context.Context, articleID uint) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Like{}).Where("article_id = ?", articleID).Count(&n).Error
	return n, storeErr(err)
}

// BatchCheck reports, for every id in articleIDs, whether userID liked it.
func (s *LikeService) BatchCheck(ctx context.Context, articleIDs []uint, userID uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(articleIDs))
	for _, id := range articleIDs {
		result[id] = false
	}
	if len(articleIDs) == 0 || userID == 0 {
		return result, nil
	}
	var liked []uint
	err := s.DB.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND article_id IN ?", userID, utils.Unique(articleIDs)).
		Pluck("article_id", &liked).Error
	if err != nil {
		return nil, storeErr(err)
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}

// Likers lists who liked an article, newest first.
func (s *LikeService) Likers(ctx context.Context, articleID uint, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.Like], error) {
	if err := viewableArticle(s.DB.WithContext(ctx), articleID, caller); err != nil {
		return nil, storeErr(err)
	}

	var (
		total int64
		likes []models.Like
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Like{}).Where("article_id = ?", articleID).Count(&total).Error
	})
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Preload("User", publicUser).
			Where("article_id = ?", articleID).
			Order("created_at DESC, id DESC").
			Offset(page.Offset()).Limit(page.Limit).
			Find(&likes).Error
	})
	if err := eg.Wait(); err != nil {
		return nil, utils.Unexpected(err)
	}
	return pagination.NewPage(likes, page, total), nil
}

// Reconcile resets one article's LikeCount to the number of Like rows.
func (s *LikeService) Reconcile(ctx context.Context, articleID uint) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Article
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&a, articleID).Error; err != nil {
			if isNotFound(err) {
				return utils.ErrArticleNotFound
			}
			return err
		}
		if err := tx.Model(&models.Like{}).Where("article_id = ?", articleID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&models.Article{}).Where("id = ?", articleID).UpdateColumn("like_count", count).Error
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

// ReconcileAll recomputes LikeCount for every article and returns the number of rows touched.
func (s *LikeService) ReconcileAll(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&models.Article{}).
		UpdateColumn("like_count", gorm.Expr("(SELECT COUNT(*) FROM likes WHERE likes.article_id = articles.id)"))
	if res.Error != nil {
		return 0, utils.Unexpected(res.Error)
	}
	return res.RowsAffected, nil
}
