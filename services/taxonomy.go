package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

var (
	_ ICategoryService = (*CategoryService)(nil)
	_ ITagService      = (*TagService)(nil)
)

type ICategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id uint) (*models.Category, error)
	Create(ctx context.Context, in CategoryInput, caller *policy.Caller) (*models.Category, error)
	Update(ctx context.Context, id uint, in CategoryInput, caller *policy.Caller) (*models.Category, error)
	Delete(ctx context.Context, id uint, caller *policy.Caller) error
}

type ITagService interface {
	List(ctx context.Context) ([]models.Tag, error)
	Get(ctx context.Context, id uint) (*models.Tag, error)
	Create(ctx context.Context, in TagInput, caller *policy.Caller) (*models.Tag, error)
	Update(ctx context.Context, id uint, in TagInput, caller *policy.Caller) (*models.Tag, error)
	Delete(ctx context.Context, id uint, caller *policy.Caller) error
}

// CategoryInput is used for create and update. On update, empty fields keep their value.
type CategoryInput struct {
	Name        string `json:"name" binding:"omitempty,max=50" code:"CATEGORY_NAME"`
	Slug        string `json:"slug" binding:"omitempty,max=100,slug"`
	Description string `json:"description" binding:"max=500"`
	Color       string `json:"color" binding:"omitempty,hexcolor,len=7"`
}

func (in CategoryInput) trimmed() CategoryInput {
	return CategoryInput{
		Name:        strings.TrimSpace(in.Name),
		Slug:        strings.TrimSpace(in.Slug),
		Description: strings.TrimSpace(in.Description),
		Color:       strings.TrimSpace(in.Color),
	}
}

// TagInput is used for create and update. On update, empty fields keep their value.
type TagInput struct {
	Name  string `json:"name" binding:"omitempty,max=30" code:"TAG_NAME"`
	Slug  string `json:"slug" binding:"omitempty,max=100,slug"`
	Color string `json:"color" binding:"omitempty,hexcolor,len=7"`
}

func (in TagInput) trimmed() TagInput {
	return TagInput{
		Name:  strings.TrimSpace(in.Name),
		Slug:  strings.TrimSpace(in.Slug),
		Color: strings.TrimSpace(in.Color),
	}
}

// taxonomySlug returns slug, or one derived from name when slug is empty.
// Names without any ASCII letters or digits get a random suffix.
func taxonomySlug(prefix, slug, name string) (string, error) {
	if slug == "" {
		slug = slugify(name)
		if slug == "" {
			slug = prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		}
	}
	if err := validateVar(slug, "max=100,slug", "SLUG"); err != nil {
		return "", err
	}
	return slug, nil
}

// uniqueTaxonomy reports which of name or slug is already taken by another row of model.
func uniqueTaxonomy(tx *gorm.DB, model interface{}, id uint, name, slug string, nameErr, slugErr error) error {
	if name != "" {
		taken, err := exists(tx, model, "name = ? AND id <> ?", name, id)
		if err != nil {
			return err
		}
		if taken {
			return nameErr
		}
	}
	if slug != "" {
		taken, err := exists(tx, model, "slug = ? AND id <> ?", slug, id)
		if err != nil {
			return err
		}
		if taken {
			return slugErr
		}
	}
	return nil
}

const taxonomySavePoint = "taxonomy_save"

// saveTaxonomy runs save and maps an insert-time unique violation to the matching conflict.
// The failed statement is rolled back to a savepoint first, since Postgres refuses
// further queries in a transaction that saw an error.
func saveTaxonomy(tx *gorm.DB, model interface{}, id uint, name, slug string, nameErr, slugErr *utils.AppError, save func() error) error {
	if err := tx.SavePoint(taxonomySavePoint).Error; err != nil {
		return err
	}
	err := save()
	if err == nil || !isDuplicate(err) {
		return err
	}
	if rbErr := tx.RollbackTo(taxonomySavePoint).Error; rbErr != nil {
		return rbErr
	}
	if err := uniqueTaxonomy(tx, model, id, name, slug, nameErr, slugErr); err != nil {
		return err
	}
	return slugErr.Wrap(err)
}

// CategoryService is the category store. Reads are public; writes are admin only.
type CategoryService struct {
	DB *gorm.DB
}

func (s *CategoryService) attachCounts(db *gorm.DB, cats []models.Category) error {
	var rows []struct {
		CategoryID uint
		N          int64
	}
	err := db.Model(&models.Article{}).
		Select("category_id, COUNT(*) AS n").
		Where("status = ?", models.StatusPublished).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.N
	}
	for i := range cats {
		cats[i].ArticleCount = counts[cats[i].ID]
	}
	return nil
}

// List returns every category oldest first, annotated with its published article count.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	db := s.DB.WithContext(ctx)
	cats := []models.Category{}
	if err := db.Order("created_at ASC, id ASC").Find(&cats).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	if err := s.attachCounts(db, cats); err != nil {
		return nil, utils.Unexpected(err)
	}
	return cats, nil
}

func (s *CategoryService) Get(ctx context.Context, id uint) (*models.Category, error) {
	db := s.DB.WithContext(ctx)
	var c models.Category
	if err := db.First(&c, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrCategoryNotFound
		}
		return nil, utils.Unexpected(err)
	}
	one := []models.Category{c}
	if err := s.attachCounts(db.Where("category_id = ?", id), one); err != nil {
		return nil, utils.Unexpected(err)
	}
	return &one[0], nil
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput, caller *policy.Caller) (*models.Category, error) {
	if !policy.CanManageTaxonomy(caller) {
		return nil, utils.ErrForbidden
	}
	in = in.trimmed()
	if in.Color == "" {
		in.Color = models.DefaultCategoryColor
	}
	if err := validateVar(in.Name, "required", "CATEGORY_NAME"); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	name := in.Name
	slug, err := taxonomySlug("category", in.Slug, name)
	if err != nil {
		return nil, err
	}

	c := models.Category{Name: name, Slug: slug, Description: in.Description, Color: in.Color}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueTaxonomy(tx, &models.Category{}, 0, name, slug, utils.ErrCategoryNameExists, utils.ErrCategorySlugExists); err != nil {
			return err
		}
		return saveTaxonomy(tx, &models.Category{}, 0, name, slug, utils.ErrCategoryNameExists, utils.ErrCategorySlugExists, func() error {
			return tx.Create(&c).Error
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (s *CategoryService) Update(ctx context.Context, id uint, in CategoryInput, caller *policy.Caller) (*models.Category, error) {
	if !policy.CanManageTaxonomy(caller) {
		return nil, utils.ErrForbidden
	}
	in = in.trimmed()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	name, slug := in.Name, in.Slug
	updates := map[string]interface{}{}
	for col, v := range map[string]string{"name": name, "slug": slug, "description": in.Description, "color": in.Color} {
		if v != "" {
			updates[col] = v
		}
	}
	if len(updates) == 0 {
		return nil, utils.ErrNoFieldsProvided
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Category
		if err := tx.First(&c, id).Error; err != nil {
			if isNotFound(err) {
				return utils.ErrCategoryNotFound
			}
			return err
		}
		if err := uniqueTaxonomy(tx, &models.Category{}, id, name, slug, utils.ErrCategoryNameExists, utils.ErrCategorySlugExists); err != nil {
			return err
		}
		return saveTaxonomy(tx, &models.Category{}, id, name, slug, utils.ErrCategoryNameExists, utils.ErrCategorySlugExists, func() error {
			return tx.Model(&c).Updates(updates).Error
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return s.Get(ctx, id)
}

// Delete refuses while any article still references the category.
func (s *CategoryService) Delete(ctx context.Context, id uint, caller *policy.Caller) error {
	if !policy.CanManageTaxonomy(caller) {
		return utils.ErrForbidden
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Category{}, "id = ?", id); err != nil {
			return err
		} else if !ok {
			return utils.ErrCategoryNotFound
		}
		if used, err := exists(tx, &models.Article{}, "category_id = ?", id); err != nil {
			return err
		} else if used {
			return utils.ErrCategoryInUse
		}
		return tx.Delete(&models.Category{}, id).Error
	})
	return storeErr(err)
}

// TagService is the tag store. Reads are public; writes are admin only.
type TagService struct {
	DB *gorm.DB
}

func (s *TagService) attachCounts(db *gorm.DB, tags []models.Tag) error {
	var rows []struct {
		TagID uint
		N     int64
	}
	err := db.Table("article_tags").
		Select("article_tags.tag_id, COUNT(*) AS n").
		Joins("JOIN articles ON articles.id = article_tags.article_id").
		Where("articles.status = ?", models.StatusPublished).
		Group("article_tags.tag_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.TagID] = r.N
	}
	for i := range tags {
		tags[i].ArticleCount = counts[tags[i].ID]
	}
	return nil
}

// List returns every tag oldest first, annotated with its published article count.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	db := s.DB.WithContext(ctx)
	tags := []models.Tag{}
	if err := db.Order("created_at ASC, id ASC").Find(&tags).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	if err := s.attachCounts(db, tags); err != nil {
		return nil, utils.Unexpected(err)
	}
	return tags, nil
}

func (s *TagService) Get(ctx context.Context, id uint) (*models.Tag, error) {
	db := s.DB.WithContext(ctx)
	var t models.Tag
	if err := db.First(&t, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrTagNotFound
		}
		return nil, utils.Unexpected(err)
	}
	one := []models.Tag{t}
	if err := s.attachCounts(db.Where("article_tags.tag_id = ?", id), one); err != nil {
		return nil, utils.Unexpected(err)
	}
	return &one[0], nil
}

func (s *TagService) Create(ctx context.Context, in TagInput, caller *policy.Caller) (*models.Tag, error) {
	if !policy.CanManageTaxonomy(caller) {
		return nil, utils.ErrForbidden
	}
	in = in.trimmed()
	if in.Color == "" {
		in.Color = models.DefaultTagColor
	}
	if err := validateVar(in.Name, "required", "TAG_NAME"); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	name := in.Name
	slug, err := taxonomySlug("tag", in.Slug, name)
	if err != nil {
		return nil, err
	}

	t := models.Tag{Name: name, Slug: slug, Color: in.Color}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueTaxonomy(tx, &models.Tag{}, 0, name, slug, utils.ErrTagNameExists, utils.ErrTagSlugExists); err != nil {
			return err
		}
		return saveTaxonomy(tx, &models.Tag{}, 0, name, slug, utils.ErrTagNameExists, utils.ErrTagSlugExists, func() error {
			return tx.Create(&t).Error
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &t, nil
}

func (s *TagService) Update(ctx context.Context, id uint, in TagInput, caller *policy.Caller) (*models.Tag, error) {
	if !policy.CanManageTaxonomy(caller) {
		return nil, utils.ErrForbidden
	}
	in = in.trimmed()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	name, slug := in.Name, in.Slug
	updates := map[string]interface{}{}
	for col, v := range map[string]string{"name": name, "slug": slug, "color": in.Color} {
		if v != "" {
			updates[col] = v
		}
	}
	if len(updates) == 0 {
		return nil, utils.ErrNoFieldsProvided
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tag
		if err := tx.First(&t, id).Error; err != nil {
			if isNotFound(err) {
				return utils.ErrTagNotFound
			}
			return err
		}
		if err := uniqueTaxonomy(tx, &models.Tag{}, id, name, slug, utils.ErrTagNameExists, utils.ErrTagSlugExists); err != nil {
			return err
		}
		return saveTaxonomy(tx, &models.Tag{}, id, name, slug, utils.ErrTagNameExists, utils.ErrTagSlugExists, func() error {
			return tx.Model(&t).Updates(updates).Error
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return s.Get(ctx, id)
}

// Delete refuses while the tag is attached to any article.
func (s *TagService) Delete(ctx context.Context, id uint, caller *policy.Caller) error {
	if !policy.CanManageTaxonomy(caller) {
		return utils.ErrForbidden
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Tag{}, "id = ?", id); err != nil {
			return err
		} else if !ok {
			return utils.ErrTagNotFound
		}
		if used, err := exists(tx, &models.ArticleTag{}, "tag_id = ?", id); err != nil {
			return err
		} else if used {
			return utils.ErrTagInUse
		}
		return tx.Delete(&models.Tag{}, id).Error
	})
	return storeErr(err)
}
