// Package backup exports the database as a JSON zip archive and ships it to
// S3-compatible storage.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuentacuentos/core/internal/config"
	"github.com/cuentacuentos/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const TaskTypeBackup = "backup:run"

// ErrDisabled means backups are turned off in the runtime configuration.
var ErrDisabled = errors.New("backup is disabled")

var backupTableNames = []string{
	"stories",
	"critiques",
	"lessons",
	"options",
}

const (
	backupFormat        = "cuentacuentos-json"
	backupFormatVersion = 1
)

type manifest struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
	Tables    []string  `json:"tables"`
}

// configSource yields the current runtime configuration.
type configSource interface {
	Get() (*config.FullConfig, error)
}

// Report describes one completed backup run.
type Report struct {
	ObjectKey string   `json:"object_key"`
	SizeBytes int      `json:"size_bytes"`
	Tables    []string `json:"tables"`
}

// Service creates archives and uploads them.
type Service struct {
	db      *gorm.DB
	taskSvc *taskqueue.Service
	cfgSvc  configSource
	log     *zap.Logger
}

func NewService(db *gorm.DB, taskSvc *taskqueue.Service, cfgSvc configSource, log *zap.Logger) *Service {
	return &Service{db: db, taskSvc: taskSvc, cfgSvc: cfgSvc, log: log}
}

// Schedule enqueues a backup run. A single dedup slot prevents overlapping
// runs; a second request while one is in flight returns the live task.
func (s *Service) Schedule(ctx context.Context) (*taskqueue.Task, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	if !cfg.Backup.Enabled {
		return nil, ErrDisabled
	}

	task, err := s.taskSvc.Enqueue(ctx, TaskTypeBackup, map[string]string{}, "backup")
	if err != nil {
		return nil, err
	}
	if task.Status == taskqueue.TaskPending {
		go s.execute(context.Background(), task.ID)
	}
	return task, nil
}

func (s *Service) execute(ctx context.Context, taskID string) {
	_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")

	report, err := s.Run(ctx)
	if err != nil {
		s.log.Warn("backup run failed", zap.Error(err))
		_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}
	_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, report, "")
}

// Run performs one backup synchronously: archive every table, upload the zip.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	if !cfg.Backup.Enabled {
		return nil, ErrDisabled
	}

	uploader, err := newS3Uploader(cfg.Backup.S3)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	buf, tables, err := s.createArchive(now)
	if err != nil {
		return nil, err
	}

	key := objectKey(cfg.Backup.S3.Prefix, now)
	if err := uploader.Upload(ctx, key, buf.Bytes(), "application/zip"); err != nil {
		return nil, err
	}

	s.log.Info("backup uploaded",
		zap.String("object_key", key),
		zap.Int("size_bytes", buf.Len()),
	)
	return &Report{ObjectKey: key, SizeBytes: buf.Len(), Tables: tables}, nil
}

// createArchive dumps every table as a JSON array plus a manifest.
func (s *Service) createArchive(now time.Time) (*bytes.Buffer, []string, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	exported := make([]string, 0, len(backupTableNames))
	for _, table := range backupTableNames {
		var rows []map[string]interface{}
		if err := s.db.Table(table).Find(&rows).Error; err != nil {
			return nil, nil, fmt.Errorf("dump table %s: %w", table, err)
		}
		if rows == nil {
			rows = []map[string]interface{}{}
		}

		payload, err := json.Marshal(normalizeRows(rows))
		if err != nil {
			return nil, nil, fmt.Errorf("encode table %s: %w", table, err)
		}

		f, err := w.Create("db/" + table + ".json")
		if err != nil {
			return nil, nil, err
		}
		if _, err := f.Write(payload); err != nil {
			return nil, nil, err
		}
		exported = append(exported, table)
	}

	m := manifest{
		Format:    backupFormat,
		Version:   backupFormatVersion,
		Engine:    "mysql",
		CreatedAt: now,
		Tables:    exported,
	}
	manifestData, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	mf, err := w.Create("manifest.json")
	if err != nil {
		return nil, nil, err
	}
	if _, err := mf.Write(manifestData); err != nil {
		return nil, nil, err
	}

	if err := w.Close(); err != nil {
		return nil, nil, err
	}
	return buf, exported, nil
}

// normalizeRows converts driver byte slices to strings so the JSON dump stays
// readable instead of base64.
func normalizeRows(rows []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		converted := make(map[string]interface{}, len(row))
		for key, value := range row {
			if b, ok := value.([]byte); ok {
				converted[key] = string(b)
				continue
			}
			converted[key] = value
		}
		out[i] = converted
	}
	return out
}

func objectKey(prefix string, now time.Time) string {
	filename := fmt.Sprintf("backup-%s.zip", now.Format("2006-01-02T15-04-05"))
	key := fmt.Sprintf("%s/%s/%s", now.Format("2006"), now.Format("01"), filename)
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
