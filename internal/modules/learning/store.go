package learning

import (
	"errors"
	"strconv"

	"github.com/cuentacuentos/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	lessonCounterKey = "lesson_id_counter"
	styleProfileKey  = "style_profile"
)

// store is the persistence surface the learning loop needs. Narrow on
// purpose: tests fake it in memory.
type store interface {
	CountCritiques() (int64, error)
	RecentCritiques(n int) ([]models.CritiqueModel, error)
	StoryTitle(storyID string) string

	InsertLesson(lesson *models.LessonModel) error
	Lessons(category, status string) ([]models.LessonModel, error)
	CountLessons(status string) (int64, error)
	LessonByNumber(lessonID int) (*models.LessonModel, error)
	SetLessonStatus(lessonID int, status string) error
	IncrementApplied(lessonIDs []int) error

	CountStories() (int64, error)

	LoadProfileJSON() (string, error)
	SaveProfileJSON(value string) error
}

type gormStore struct{ db *gorm.DB }

func newGormStore(db *gorm.DB) gormStore { return gormStore{db: db} }

func (g gormStore) CountCritiques() (int64, error) {
	var n int64
	err := g.db.Model(&models.CritiqueModel{}).Count(&n).Error
	return n, err
}

func (g gormStore) RecentCritiques(n int) ([]models.CritiqueModel, error) {
	var critiques []models.CritiqueModel
	err := g.db.Order("created_at DESC").Limit(n).Find(&critiques).Error
	return critiques, err
}

func (g gormStore) StoryTitle(storyID string) string {
	var story models.StoryModel
	if err := g.db.Select("title").First(&story, "id = ?", storyID).Error; err != nil {
		return ""
	}
	return story.Title
}

// InsertLesson allocates the next lesson number from the persisted counter
// and creates the row in the same transaction, so numbers stay monotonic and
// are never reused, even after archiving.
func (g gormStore) InsertLesson(lesson *models.LessonModel) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		var opt models.OptionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", lessonCounterKey).First(&opt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			opt = models.OptionModel{Name: lessonCounterKey, Value: "0"}
			if err := tx.Create(&opt).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		current, _ := strconv.Atoi(opt.Value)
		next := current + 1

		if err := tx.Model(&models.OptionModel{}).
			Where("name = ?", lessonCounterKey).
			Update("value", strconv.Itoa(next)).Error; err != nil {
			return err
		}

		lesson.LessonID = next
		return tx.Create(lesson).Error
	})
}

func (g gormStore) Lessons(category, status string) ([]models.LessonModel, error) {
	tx := g.db.Order("lesson_id ASC")
	if category != "" {
		tx = tx.Where("category = ?", category)
	}
	if status != "" && status != "all" {
		tx = tx.Where("status = ?", status)
	}
	var lessons []models.LessonModel
	err := tx.Find(&lessons).Error
	return lessons, err
}

func (g gormStore) CountLessons(status string) (int64, error) {
	tx := g.db.Model(&models.LessonModel{})
	if status != "" && status != "all" {
		tx = tx.Where("status = ?", status)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}

func (g gormStore) LessonByNumber(lessonID int) (*models.LessonModel, error) {
	var lesson models.LessonModel
	err := g.db.Where("lesson_id = ?", lessonID).First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (g gormStore) SetLessonStatus(lessonID int, status string) error {
	return g.db.Model(&models.LessonModel{}).
		Where("lesson_id = ?", lessonID).
		Update("status", status).Error
}

func (g gormStore) IncrementApplied(lessonIDs []int) error {
	if len(lessonIDs) == 0 {
		return nil
	}
	return g.db.Model(&models.LessonModel{}).
		Where("lesson_id IN ?", lessonIDs).
		UpdateColumn("applied_count", gorm.Expr("applied_count + 1")).Error
}

func (g gormStore) CountStories() (int64, error) {
	var n int64
	err := g.db.Model(&models.StoryModel{}).Count(&n).Error
	return n, err
}

func (g gormStore) LoadProfileJSON() (string, error) {
	var opt models.OptionModel
	err := g.db.Where("name = ?", styleProfileKey).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return opt.Value, nil
}

func (g gormStore) SaveProfileJSON(value string) error {
	opt := models.OptionModel{Name: styleProfileKey, Value: value}
	return g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&opt).Error
}
