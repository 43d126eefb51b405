package handlers

import (
	"errors"

	"gorm.io/gorm"

	"medichat-server/internal/utils"
)

// findByID loads dest by its id column. A missing row becomes
// NotFoundError(entity).
func findByID(db *gorm.DB, dest interface{}, column, id, entity string) error {
	if err := db.Where(column+" = ?", id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundError(entity)
		}
		return utils.PersistenceError("fetch record", err)
	}
	return nil
}

// exists reports whether a row with the given id is present.
func exists(db *gorm.DB, model interface{}, column, id string) (bool, error) {
	var count int64
	if err := db.Model(model).Where(column+" = ?", id).Count(&count).Error; err != nil {
		return false, utils.PersistenceError("fetch record", err)
	}
	return count > 0, nil
}
