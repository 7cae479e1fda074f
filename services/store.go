package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/utils"
)

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// storeErr passes AppErrors through and wraps everything else as unexpected.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var app *utils.AppError
	if errors.As(err, &app) {
		return err
	}
	return utils.Unexpected(err)
}

// publicUser limits a preloaded user to the columns safe to show as an author.
func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select(models.PublicColumns)
}

func exists(tx *gorm.DB, model interface{}, query string, args ...interface{}) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func userExists(tx *gorm.DB, id uint) error {
	ok, err := exists(tx, &models.User{}, "id = ?", id)
	if err != nil {
		return utils.Unexpected(err)
	}
	if !ok {
		return utils.ErrUserNotFound
	}
	return nil
}
