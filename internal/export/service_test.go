package export

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wealthops/engine/internal/columns"
	"github.com/wealthops/engine/internal/domain"
	"github.com/wealthops/engine/internal/query"
	"github.com/wealthops/engine/internal/view"
)

type stubSource struct {
	snap *view.Snapshot
}

func (s *stubSource) Snapshot() (*view.Snapshot, bool) {
	if s.snap == nil {
		return nil, false
	}
	return s.snap, true
}

func testSnapshot() *view.Snapshot {
	refs := domain.NewReferenceSet()
	refs.Assets[7] = domain.AssetInfo{AssetID: 7, Symbol: "NVDA", ClassID: 5}
	refs.Accounts[1] = domain.AccountInfo{AccountID: 1, PortfolioID: 2, Institution: "UBS"}
	refs.Portfolios[2] = domain.PortfolioInfo{PortfolioID: 2, OwnerUserID: 3, Name: "Growth"}
	refs.Users[3] = domain.UserInfo{UserID: 3, FullName: "Ada Lovelace"}

	var records []domain.TaggedRecord
	for i := 0; i < 5; i++ {
		trade := domain.Trade{
			TransactionID: int64(i + 1),
			AccountID:     1,
			AssetID:       7,
			Side:          "BUY",
			Quantity:      decimal.NewFromInt(int64(i + 1)),
			Price:         decimal.NewFromInt(100),
			Currency:      "USD",
			TradeDate:     domain.NewDate(2024, 6, i+1),
		}
		records = append(records, domain.NewTaggedRecord(domain.KindTrade, i, trade, "buy nvda"))
	}
	return &view.Snapshot{
		Generation: 1,
		Records:    records,
		Refs:       refs,
		LoadedAt:   time.Now(),
	}
}

func newTestService(t *testing.T, source SnapshotSource) *Service {
	t.Helper()
	engine := query.NewEngine(columns.DefaultRegistry())
	return NewService(source, engine, WithExportDirectory(t.TempDir()))
}

func waitForTerminal(t *testing.T, service *Service, id uuid.UUID) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := service.GetJob(id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("export job did not finish in time")
	return Job{}
}

func TestQueueExportsFullMatchingSet(t *testing.T) {
	service := newTestService(t, &stubSource{snap: testSnapshot()})

	q := domain.Query{
		Kinds:    []domain.Kind{domain.KindTrade},
		Columns:  []string{"date", "symbol", "quantity"},
		Page:     1,
		PageSize: 2, // pagination must not limit exports
	}
	queued, err := service.Queue(context.Background(), q)
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if queued.Status != JobStatusPending {
		t.Fatalf("expected PENDING on enqueue, got %s", queued.Status)
	}

	job := waitForTerminal(t, service, queued.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", job.Status, job.ErrorMessage)
	}
	if job.RowsExported != 5 {
		t.Fatalf("expected 5 exported rows, got %d", job.RowsExported)
	}
	if job.FilePath == nil {
		t.Fatal("completed job must carry a file path")
	}
	info, err := os.Stat(*job.FilePath)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if info.Size() == 0 || job.FileByteSize == nil || *job.FileByteSize != info.Size() {
		t.Fatalf("byte size mismatch: stat=%d job=%v", info.Size(), job.FileByteSize)
	}
}

func TestQueueWithoutSnapshot(t *testing.T) {
	service := newTestService(t, &stubSource{})
	if _, err := service.Queue(context.Background(), domain.Query{}); err != ErrNoSnapshot {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	service := newTestService(t, &stubSource{snap: testSnapshot()})

	first, err := service.Queue(context.Background(), domain.Query{Kinds: []domain.Kind{domain.KindTrade}})
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	second, err := service.Queue(context.Background(), domain.Query{Kinds: []domain.Kind{domain.KindTrade}})
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}

	jobs := service.ListJobs(10, 0)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatal("jobs must list newest first")
	}

	waitForTerminal(t, service, first.ID)
	waitForTerminal(t, service, second.ID)
}

func TestGetJobUnknown(t *testing.T) {
	service := newTestService(t, &stubSource{})
	if _, err := service.GetJob(uuid.New()); err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	service := newTestService(t, &stubSource{snap: testSnapshot()})

	queued, err := service.Queue(context.Background(), domain.Query{Kinds: []domain.Kind{domain.KindTrade}})
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	job := waitForTerminal(t, service, queued.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", job.Status)
	}

	url, err := service.BuildDownloadURL(job)
	if err != nil || url == nil {
		t.Fatalf("expected download url, got %v (%v)", url, err)
	}

	signed := service.downloadSigner.Sign(job.ID, time.Now())
	if err := service.ValidateDownloadToken(job.ID, signed); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if err := service.ValidateDownloadToken(uuid.New(), signed); err == nil {
		t.Fatal("token for another job must be rejected")
	}
	if err := service.ValidateDownloadToken(job.ID, "not-a-token"); err == nil {
		t.Fatal("garbage token must be rejected")
	}
}

func TestBuildDownloadURLSkipsUnfinishedJobs(t *testing.T) {
	service := newTestService(t, &stubSource{snap: testSnapshot()})
	url, err := service.BuildDownloadURL(Job{ID: uuid.New(), Status: JobStatusPending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != nil {
		t.Fatal("pending jobs must not get download links")
	}
}
