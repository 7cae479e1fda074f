package services

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/utils"
)

var _ IStatsService = (*StatsService)(nil)

type IStatsService interface {
	Totals(ctx context.Context) (*SiteStats, error)
	Ping(ctx context.Context) error
}

// SiteStats are the site-wide counters shown on the dashboard.
type SiteStats struct {
	Users      int64 `json:"userCount"`
	Articles   int64 `json:"articleCount"`
	Published  int64 `json:"publishedCount"`
	Categories int64 `json:"categoryCount"`
	Tags       int64 `json:"tagCount"`
	Comments   int64 `json:"commentCount"`
	Likes      int64 `json:"likeCount"`
}

type StatsService struct {
	DB *gorm.DB
}

// Totals counts every table concurrently.
func (s *StatsService) Totals(ctx context.Context) (*SiteStats, error) {
	var st SiteStats
	count := func(dst *int64, model interface{}, where ...interface{}) func(context.Context) error {
		return func(ctx context.Context) error {
			q := s.DB.WithContext(ctx).Model(model)
			if len(where) > 0 {
				q = q.Where(where[0], where[1:]...)
			}
			return q.Count(dst).Error
		}
	}

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(count(&st.Users, &models.User{}))
	p.Go(count(&st.Articles, &models.Article{}))
	p.Go(count(&st.Published, &models.Article{}, "status = ?", models.StatusPublished))
	p.Go(count(&st.Categories, &models.Category{}))
	p.Go(count(&st.Tags, &models.Tag{}))
	p.Go(count(&st.Comments, &models.Comment{}))
	p.Go(count(&st.Likes, &models.Like{}))
	if err := p.Wait(); err != nil {
		return nil, utils.Unexpected(err)
	}
	return &st, nil
}

// Ping checks the database connection.
func (s *StatsService) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return utils.Unexpected(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return utils.Unexpected(err)
	}
	return nil
}
