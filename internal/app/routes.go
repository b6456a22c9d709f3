package app

import (
	"github.com/cuentacuentos/core/internal/modules/ai"
	"github.com/cuentacuentos/core/internal/modules/backup"
	"github.com/cuentacuentos/core/internal/modules/character"
	appconfigs "github.com/cuentacuentos/core/internal/modules/configs"
	"github.com/cuentacuentos/core/internal/modules/health"
	"github.com/cuentacuentos/core/internal/modules/learning"
	"github.com/cuentacuentos/core/internal/modules/prompt"
	"github.com/cuentacuentos/core/internal/modules/rag"
	"github.com/cuentacuentos/core/internal/modules/story"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
	pkgredis "github.com/cuentacuentos/core/internal/pkg/redis"
	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/cuentacuentos/core/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

// lessonSource adapts the learning service to the composer's narrow view.
type lessonSource struct{ svc *learning.Service }

func (l lessonSource) ActiveLessons() ([]prompt.Lesson, error) {
	rows, err := l.svc.ActiveLessons("")
	if err != nil {
		return nil, err
	}
	lessons := make([]prompt.Lesson, len(rows))
	for i, row := range rows {
		lessons[i] = prompt.Lesson{
			LessonID:           row.LessonID,
			Insight:            row.Insight,
			Category:           row.Category,
			ActionableGuidance: row.ActionableGuidance,
		}
	}
	return lessons, nil
}

func (l lessonSource) MarkApplied(lessonIDs []int) error {
	return l.svc.MarkApplied(lessonIDs)
}

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	db := a.db
	log := a.logger

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})

	// Shared services
	met := metrics.New()
	cfgSvc := appconfigs.NewService(db)
	taskSvc := taskqueue.NewService(rc)

	aiSvc := ai.NewService(cfgSvc, met)
	charSvc := character.NewService(a.cfg.CharactersPath())
	styleSvc := prompt.NewStyleService(a.cfg.StyleGuidePath())

	ragSvc := rag.NewService(db, aiSvc, cfgSvc, met, log)
	learnSvc := learning.NewService(db, aiSvc, cfgSvc, met, log)
	composer := prompt.NewComposer(styleSvc, charSvc, lessonSource{svc: learnSvc}, log)
	storySvc := story.NewService(db, aiSvc, ragSvc, composer, learnSvc, taskSvc, cfgSvc, met, log)
	backupSvc := backup.NewService(db, taskSvc, cfgSvc, log)

	// Root-level endpoints
	health.NewHandler(charSvc, styleSvc, aiSvc, Version).RegisterRoutes(r)
	r.GET("/metrics", met.Handler())

	// Versioned API
	api := r.Group(apiPrefix)
	story.NewHandler(storySvc).RegisterRoutes(api)
	rag.NewHandler(ragSvc).RegisterRoutes(api)
	learning.NewHandler(learnSvc).RegisterRoutes(api)
	character.NewHandler(charSvc).RegisterRoutes(api)
	appconfigs.NewHandler(cfgSvc).RegisterRoutes(api)
	backup.NewHandler(backupSvc).RegisterRoutes(api)
	taskqueue.NewHandler(taskSvc).RegisterRoutes(api)
}
