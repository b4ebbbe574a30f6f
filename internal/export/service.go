// Package export runs asynchronous workbook exports of query results: the
// full filtered and sorted set, not one page, written as xlsx and served
// through short-lived signed download links.
package export

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/wealthops/engine/internal/domain"
	"github.com/wealthops/engine/internal/query"
	"github.com/wealthops/engine/internal/view"
)

// JobStatus captures lifecycle state for an export job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Job is the export job metadata surfaced to dashboards.
type Job struct {
	ID           uuid.UUID    `json:"id"`
	Query        domain.Query `json:"query"`
	Status       JobStatus    `json:"status"`
	RowsExported int          `json:"rows_exported"`
	FilePath     *string      `json:"file_path,omitempty"`
	FileByteSize *int64       `json:"file_byte_size,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	DownloadURL  *string      `json:"download_url,omitempty"`
	EnqueuedAt   time.Time    `json:"enqueued_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

var (
	ErrNoSnapshot  = errors.New("no snapshot loaded, nothing to export")
	ErrJobNotFound = errors.New("export job not found")
)

// SnapshotSource hands the worker the snapshot to export. *view.Session is
// the production implementation.
type SnapshotSource interface {
	Snapshot() (*view.Snapshot, bool)
}

type Service struct {
	source SnapshotSource
	engine *query.Engine

	exportDir  string
	jobTimeout time.Duration
	now        func() time.Time

	downloadSigner *downloadSigner

	mu    sync.Mutex
	jobs  map[uuid.UUID]*Job
	order []uuid.UUID // newest first

	workerCancels sync.Map // map[uuid.UUID]context.CancelFunc
}

type Option func(*Service)

func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// WithDownloadTokenTTL customizes the TTL for generated download links.
func WithDownloadTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.downloadSigner = newDownloadSigner(ttl)
		}
	}
}

func NewService(source SnapshotSource, engine *query.Engine, opts ...Option) *Service {
	service := &Service{
		source:     source,
		engine:     engine,
		exportDir:  filepath.Join(os.TempDir(), "wealthops-exports"),
		jobTimeout: 10 * time.Minute,
		now:        time.Now,
		jobs:       map[uuid.UUID]*Job{},
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.downloadSigner == nil {
		service.downloadSigner = newDownloadSigner(5 * time.Minute)
	}
	return service
}

// Queue registers a job and launches its worker. The query's pagination
// fields are ignored: exports always cover the full matching set.
func (s *Service) Queue(ctx context.Context, q domain.Query) (Job, error) {
	if _, ok := s.source.Snapshot(); !ok {
		return Job{}, ErrNoSnapshot
	}
	now := s.now()
	job := &Job{
		ID:         uuid.New(),
		Query:      q,
		Status:     JobStatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.order = append([]uuid.UUID{job.ID}, s.order...)
	s.mu.Unlock()

	s.launchWorker(*job)
	return *job, nil
}

// ListJobs returns jobs newest first.
func (s *Service) ListJobs(limit, offset int) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []Job
	for i := offset; i < len(s.order) && len(out) < limit; i++ {
		out = append(out, *s.jobs[s.order[i]])
	}
	if out == nil {
		out = []Job{}
	}
	return out
}

func (s *Service) GetJob(id uuid.UUID) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// CancelJob stops a pending or running job's worker.
func (s *Service) CancelJob(id uuid.UUID) (Job, error) {
	if cancel, ok := s.workerCancels.Load(id); ok {
		cancel.(context.CancelFunc)()
	}
	return s.GetJob(id)
}

// BuildDownloadURL signs a short-lived link for a completed job.
func (s *Service) BuildDownloadURL(job Job) (*string, error) {
	if job.Status != JobStatusCompleted || job.FilePath == nil {
		return nil, nil
	}
	token := s.downloadSigner.Sign(job.ID, s.now())
	url := fmt.Sprintf("/api/exports/files/%s?token=%s", job.ID, token)
	return &url, nil
}

func (s *Service) ValidateDownloadToken(jobID uuid.UUID, token string) error {
	return s.downloadSigner.Verify(jobID, token, s.now())
}

func (s *Service) OpenJobFile(job Job) (*os.File, error) {
	if job.FilePath == nil || strings.TrimSpace(*job.FilePath) == "" {
		return nil, errors.New("export file not available")
	}
	return os.Open(*job.FilePath)
}

func (s *Service) launchWorker(job Job) {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	ctx := baseCtx
	cancelFunc := baseCancel
	if s.jobTimeout > 0 {
		timeoutCtx, timeoutCancel := context.WithTimeout(baseCtx, s.jobTimeout)
		ctx = timeoutCtx
		cancelFunc = func() {
			timeoutCancel()
			baseCancel()
		}
	}
	s.workerCancels.Store(job.ID, cancelFunc)
	go func() {
		defer func() {
			cancelFunc()
			s.workerCancels.Delete(job.ID)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[EXPORT] panic while processing job %s: %v", job.ID, rec)
				s.failJob(job.ID, fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := s.run(ctx, job.ID); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Printf("[EXPORT] job %s cancelled", job.ID)
				s.failJob(job.ID, errors.New("cancelled"))
				return
			}
			s.failJob(job.ID, err)
		}
	}()
}

func (s *Service) run(ctx context.Context, jobID uuid.UUID) error {
	s.updateJob(jobID, func(job *Job) {
		now := s.now()
		job.Status = JobStatusRunning
		job.StartedAt = &now
		job.UpdatedAt = now
	})

	snap, ok := s.source.Snapshot()
	if !ok {
		return ErrNoSnapshot
	}
	job, err := s.GetJob(jobID)
	if err != nil {
		return err
	}

	rows := s.engine.Select(snap.Records, snap.Refs, job.Query)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(s.exportDir, fmt.Sprintf("records-%s.xlsx", jobID))
	written, err := s.writeWorkbook(ctx, path, snap, rows, job.Query)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat export file: %w", err)
	}
	size := info.Size()
	s.updateJob(jobID, func(job *Job) {
		now := s.now()
		job.Status = JobStatusCompleted
		job.RowsExported = written
		job.FilePath = &path
		job.FileByteSize = &size
		job.CompletedAt = &now
		job.UpdatedAt = now
	})
	log.Printf("[EXPORT] job %s completed, %d rows", jobID, written)
	return nil
}

func (s *Service) writeWorkbook(ctx context.Context, path string, snap *view.Snapshot, rows []domain.TaggedRecord, q domain.Query) (int, error) {
	keys := q.Columns
	if len(keys) == 0 {
		keys = s.engine.Registry().Keys()
	}
	labels := make([]string, len(keys))
	for i, key := range keys {
		labels[i] = key
		if col, ok := s.engine.Registry().Lookup(key); ok {
			labels[i] = col.Label
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Records"
	f.SetSheetName("Sheet1", sheet)

	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("open stream writer: %w", err)
	}
	header := make([]any, len(labels))
	for i, label := range labels {
		header[i] = label
	}
	if err := stream.SetRow("A1", header); err != nil {
		return 0, fmt.Errorf("write header row: %w", err)
	}

	written := 0
	for i, rec := range rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return written, err
			}
		}
		cells := make([]any, len(keys))
		for j, key := range keys {
			cells[j] = s.engine.Registry().Project(rec, snap.Refs, key)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return written, err
		}
		if err := stream.SetRow(cell, cells); err != nil {
			return written, fmt.Errorf("write row %d: %w", i+2, err)
		}
		written++
	}
	if err := stream.Flush(); err != nil {
		return written, fmt.Errorf("flush workbook: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return written, fmt.Errorf("save workbook: %w", err)
	}
	return written, nil
}

func (s *Service) updateJob(id uuid.UUID, apply func(job *Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		apply(job)
	}
}

func (s *Service) failJob(id uuid.UUID, err error) {
	message := err.Error()
	if len(message) > 500 {
		message = message[:500]
	}
	s.updateJob(id, func(job *Job) {
		job.Status = JobStatusFailed
		job.ErrorMessage = &message
		job.UpdatedAt = s.now()
	})
	log.Printf("[EXPORT] job %s failed: %v", id, err)
}

type downloadSigner struct {
	secret []byte
	ttl    time.Duration
}

func newDownloadSigner(ttl time.Duration) *downloadSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &downloadSigner{secret: []byte(uuid.New().String()), ttl: ttl}
}

func (s *downloadSigner) Sign(jobID uuid.UUID, now time.Time) string {
	expires := now.Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s:%d", jobID.String(), expires)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	raw := fmt.Sprintf("%s:%s", payload, signature)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func (s *downloadSigner) Verify(jobID uuid.UUID, token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("missing download token")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return errors.New("invalid token format")
	}
	if parts[0] != jobID.String() {
		return errors.New("token does not match export job")
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token expiration: %w", err)
	}
	if now.Unix() > expires {
		return errors.New("download token expired")
	}
	payload := fmt.Sprintf("%s:%s", parts[0], parts[1])
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	expected := mac.Sum(nil)
	provided, err := hex.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("invalid token signature: %w", err)
	}
	if !hmac.Equal(expected, provided) {
		return errors.New("invalid download token")
	}
	return nil
}
