package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/storage"
)

// ErrExportDisabled is returned when no export bucket is configured.
var ErrExportDisabled = errors.New("task export is not configured")

type ExportConfig struct {
	Bucket string
	Prefix string
	URLTTL time.Duration
}

// Export describes one uploaded snapshot of a user's tasks.
type Export struct {
	Key       string
	URL       string
	Size      int64
	CreatedAt *time.Time
}

// ExportService snapshots a user's tasks as JSON into object storage.
type ExportService interface {
	Export(ctx context.Context, userID string) (*Export, error)
	List(ctx context.Context, userID string) ([]Export, error)
	Purge(ctx context.Context, userID string) (int, error)
}

type exportService struct {
	tasks   repository.TaskRepository
	storage storage.Service
	cfg     ExportConfig
	now     func() time.Time
}

func NewExportService(tasks repository.TaskRepository, store storage.Service, cfg ExportConfig) ExportService {
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &exportService{
		tasks:   tasks,
		storage: store,
		cfg:     cfg,
		now:     time.Now,
	}
}

type exportedTask struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type exportDocument struct {
	UserID     string         `json:"user_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Tasks      []exportedTask `json:"tasks"`
}

func (s *exportService) Export(ctx context.Context, userID string) (*Export, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByOwner(ctx, userID)
	if err != nil {
		return nil, domain.Internal("list tasks for export", err)
	}

	now := s.now().UTC()
	doc := exportDocument{
		UserID:     userID,
		ExportedAt: now,
		Tasks:      make([]exportedTask, len(tasks)),
	}
	for i, t := range tasks {
		doc.Tasks[i] = exportedTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt.UTC(),
			UpdatedAt:   t.UpdatedAt.UTC(),
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, domain.Internal("encode export", err)
	}

	key := path.Join(s.userPrefix(userID), fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), uuid.NewString()))
	if _, err := s.storage.Put(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		ContentType: "application/json",
	}); err != nil {
		return nil, domain.Internal("upload export", err)
	}

	url, err := s.storage.GetObjectURL(ctx, s.cfg.Bucket, key, s.cfg.URLTTL)
	if err != nil {
		return nil, domain.Internal("presign export", err)
	}

	return &Export{Key: key, URL: url, Size: int64(len(body)), CreatedAt: &now}, nil
}

func (s *exportService) List(ctx context.Context, userID string) ([]Export, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}

	objects, err := s.storage.ListObjects(ctx, s.cfg.Bucket, s.userPrefix(userID)+"/")
	if err != nil {
		return nil, domain.Internal("list exports", err)
	}

	exports := make([]Export, len(objects))
	for i, obj := range objects {
		url, err := s.storage.GetObjectURL(ctx, s.cfg.Bucket, obj.Key, s.cfg.URLTTL)
		if err != nil {
			return nil, domain.Internal("presign export", err)
		}
		exports[i] = Export{Key: obj.Key, URL: url, Size: obj.Size, CreatedAt: obj.LastModified}
	}
	return exports, nil
}

// Purge deletes every export belonging to userID.
func (s *exportService) Purge(ctx context.Context, userID string) (int, error) {
	if err := s.enabled(); err != nil {
		return 0, err
	}

	n, err := s.storage.DeletePrefix(ctx, s.cfg.Bucket, s.userPrefix(userID)+"/")
	if err != nil {
		return n, domain.Internal("purge exports", err)
	}
	return n, nil
}

func (s *exportService) enabled() error {
	if s.storage == nil || s.cfg.Bucket == "" {
		return ErrExportDisabled
	}
	return nil
}

func (s *exportService) userPrefix(userID string) string {
	if s.cfg.Prefix == "" {
		return userID
	}
	return s.cfg.Prefix + "/" + userID
}
