package inventory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
	"github.com/mamadbah2/assetscan/internal/repository/workbook"
	"github.com/mamadbah2/assetscan/pkg/clients/notify"
)

// memStore keeps the workbook in memory and copies it on every Load and Save.
type memStore struct {
	mu        sync.Mutex
	names     []string
	sheets    map[string][][]string
	saves     int
	loadErr   error
	saveErr   error
	loadDelay time.Duration

	// saveStarted is signalled when Save begins; Save then waits on saveGate.
	saveStarted chan struct{}
	saveGate    chan struct{}
}

func newMemStore(sheets ...*models.Sheet) *memStore {
	m := &memStore{sheets: make(map[string][][]string)}
	for _, s := range sheets {
		m.names = append(m.names, s.Name)
		m.sheets[s.Name] = s.Rows()
	}
	return m
}

func (m *memStore) Load(ctx context.Context) (*models.Workbook, error) {
	if m.loadDelay > 0 {
		time.Sleep(m.loadDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	sheets := make([]*models.Sheet, 0, len(m.names))
	for _, name := range m.names {
		sheets = append(sheets, models.NewSheet(name, m.sheets[name]))
	}
	return models.NewWorkbook(sheets...), nil
}

func (m *memStore) Save(ctx context.Context, wb *models.Workbook) error {
	if m.saveGate != nil {
		select {
		case m.saveStarted <- struct{}{}:
		default:
		}
		<-m.saveGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	for _, s := range wb.Sheets() {
		if !s.Dirty() {
			continue
		}
		if _, ok := m.sheets[s.Name]; !ok {
			m.names = append(m.names, s.Name)
		}
		m.sheets[s.Name] = s.Rows()
	}
	return nil
}

func (m *memStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

func (m *memStore) Describe() string { return "memory" }

func (m *memStore) cell(sheet string, row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	if row >= len(rows) || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}

func (m *memStore) rowCount(sheet string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sheets[sheet])
}

type fakeAudit struct {
	mu        sync.Mutex
	scans     []models.ScanEvent
	snapshots []models.ProgressSnapshot
	err       error
}

func (f *fakeAudit) RecordScan(ctx context.Context, event models.ScanEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, event)
	return f.err
}

func (f *fakeAudit) RecordProgress(ctx context.Context, snapshot models.ProgressSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
	return f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func newTestService(t *testing.T, store *memStore) (*Service, *fakeAudit, *fakeNotifier) {
	t.Helper()
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	svc := NewService(store, testLayout(), audit, notifier, nil)
	t.Cleanup(svc.Close)
	return svc, audit, notifier
}

func TestServiceSubmitUpdatesAndPersists(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, audit, _ := newTestService(t, store)
	ctx := context.Background()

	outcome, err := svc.Submit(ctx, models.ScanSubmission{Identifier: " A1234 ", Status: "found", Location: "eieab", Room: "101"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Kind != models.OutcomeUpdated || outcome.MarkedCount != 2 || outcome.TotalCount != 5 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if store.cell("Inventory", 3, 5) != "F" || store.cell("Inventory", 3, 6) != "EIEAB" || store.cell("Inventory", 3, 7) != "101" {
		t.Fatal("update not persisted")
	}

	again, err := svc.Submit(ctx, models.ScanSubmission{Identifier: "A1234", Status: models.StatusFound})
	if err != nil {
		t.Fatal(err)
	}
	if again.Kind != models.OutcomeAlreadyProcessed {
		t.Fatalf("second outcome = %s", again.Kind)
	}
	if store.saves != 1 {
		t.Fatalf("already processed must not save, saves=%d", store.saves)
	}

	if len(audit.scans) != 2 || audit.scans[0].Outcome != models.OutcomeUpdated || audit.scans[0].ID == "" {
		t.Fatalf("audit events = %+v", audit.scans)
	}
}

func TestServiceSubmitUnmatched(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	sub := models.ScanSubmission{Identifier: "Z9999", Status: models.StatusFound, Location: "EIEAB"}
	outcome, err := svc.Submit(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != models.OutcomeAddedToUnmatched {
		t.Fatalf("outcome = %s", outcome.Kind)
	}

	outcome, err = svc.Submit(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != models.OutcomeDuplicateUnmatched {
		t.Fatalf("repeat outcome = %s", outcome.Kind)
	}
	if store.rowCount("Other") != 1 {
		t.Fatalf("unmatched rows = %d", store.rowCount("Other"))
	}

	entries, err := svc.ListUnmatched(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Identifier != "Z9999" || entries[0].Location != "EIEAB" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestServiceValidation(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	cases := []models.ScanSubmission{
		{Identifier: "  ", Status: models.StatusFound},
		{Identifier: "A1234", Status: "X"},
		{Identifier: "A1234"},
	}
	for _, sub := range cases {
		if _, err := svc.Submit(ctx, sub); !errors.Is(err, ErrValidation) {
			t.Errorf("Submit(%+v) err = %v, want ErrValidation", sub, err)
		}
	}
	if _, err := svc.Lookup(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Lookup err = %v", err)
	}
	if _, err := svc.RemoveUnmatched(ctx, " "); !errors.Is(err, ErrValidation) {
		t.Errorf("RemoveUnmatched err = %v", err)
	}
	if store.saves != 0 {
		t.Fatal("validation failure touched the store")
	}
}

func TestServiceSectionMissing(t *testing.T) {
	store := newMemStore(models.NewSheet("Other", nil))
	svc, _, _ := newTestService(t, store)

	_, err := svc.Submit(context.Background(), models.ScanSubmission{Identifier: "A1", Status: models.StatusFound})
	if !errors.Is(err, ErrSectionMissing) {
		t.Fatalf("err = %v, want ErrSectionMissing", err)
	}
	if _, err := svc.Lookup(context.Background(), "A1"); !errors.Is(err, ErrSectionMissing) {
		t.Fatalf("lookup err = %v", err)
	}
}

func TestServiceStoreErrors(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, audit, _ := newTestService(t, store)
	ctx := context.Background()
	sub := models.ScanSubmission{Identifier: "T100", Status: models.StatusFound}

	store.loadErr = errors.New("file locked")
	if _, err := svc.Submit(ctx, sub); !errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrWriteFailed) {
		t.Fatalf("load failure err = %v", err)
	}
	if err := svc.Health(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("health err = %v", err)
	}

	store.loadErr = nil
	store.saveErr = errors.New("disk full")
	_, err := svc.Submit(ctx, sub)
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("save failure err = %v", err)
	}
	if store.cell("Inventory", 1, 5) != "" {
		t.Fatal("failed save left a partial write")
	}
	if len(audit.scans) != 0 {
		t.Fatal("failed submissions must not be audited")
	}
}

func TestServiceSerializesConcurrentWrites(t *testing.T) {
	rows := [][]string{{"Tag"}}
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{fmt.Sprintf("T%03d", i), "", "", fmt.Sprintf("Asset %d", i)})
	}
	store := newMemStore(models.NewSheet("Inventory", rows))
	store.loadDelay = time.Millisecond

	layout := testLayout()
	layout.EndRow = 21
	layout.TotalCount = 20
	svc := NewService(store, layout, nil, nil, nil)
	defer svc.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), models.ScanSubmission{
				Identifier: fmt.Sprintf("T%03d", i),
				Status:     models.StatusFound,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	progress, err := svc.Progress(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if progress.MarkedCount != 20 {
		t.Fatalf("lost updates: marked %d of 20", progress.MarkedCount)
	}
}

func TestServiceRemoveAndClearUnmatched(t *testing.T) {
	store := newMemStore(inventorySheet(), models.NewSheet("Other", [][]string{{"Z1"}, {"Z2", "EIEAB"}, {"Z1"}}))
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	removed, err := svc.RemoveUnmatched(ctx, "Z1")
	if err != nil || removed != 2 {
		t.Fatalf("RemoveUnmatched = %d, %v", removed, err)
	}
	if store.rowCount("Other") != 1 {
		t.Fatalf("rows left = %d", store.rowCount("Other"))
	}

	cleared, err := svc.ClearUnmatched(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearUnmatched = %d, %v", cleared, err)
	}
	entries, err := svc.ListUnmatched(ctx)
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries after clear = %v, %v", entries, err)
	}

	saves := store.saves
	if cleared, err := svc.ClearUnmatched(ctx); err != nil || cleared != 0 {
		t.Fatalf("second clear = %d, %v", cleared, err)
	}
	if store.saves != saves {
		t.Fatal("clearing an empty sheet must not save")
	}
}

func TestServiceUnmatchedSheetAbsent(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	entries, err := svc.ListUnmatched(ctx)
	if err != nil || len(entries) != 0 {
		t.Fatalf("ListUnmatched = %v, %v", entries, err)
	}
	if n, err := svc.RemoveUnmatched(ctx, "Z1"); err != nil || n != 0 {
		t.Fatalf("RemoveUnmatched = %d, %v", n, err)
	}
}

func TestServiceReadsWaitForInFlightSave(t *testing.T) {
	store := newMemStore(inventorySheet())
	store.saveStarted = make(chan struct{}, 1)
	store.saveGate = make(chan struct{})
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	submitted := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, models.ScanSubmission{Identifier: "T100", Status: models.StatusFound})
		submitted <- err
	}()
	select {
	case <-store.saveStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("save never started")
	}

	type lookupResult struct {
		res models.LookupResult
		err error
	}
	type progressResult struct {
		progress models.Progress
		err      error
	}
	lookups := make(chan lookupResult, 1)
	progresses := make(chan progressResult, 1)
	go func() {
		res, err := svc.Lookup(ctx, "T100")
		lookups <- lookupResult{res, err}
	}()
	go func() {
		progress, err := svc.Progress(ctx)
		progresses <- progressResult{progress, err}
	}()

	select {
	case <-lookups:
		t.Fatal("lookup returned while a save was in flight")
	case <-progresses:
		t.Fatal("progress returned while a save was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(store.saveGate)
	if err := <-submitted; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	lookup := <-lookups
	if lookup.err != nil || !lookup.res.Found || !lookup.res.Marked {
		t.Fatalf("lookup after save = %+v, %v", lookup.res, lookup.err)
	}
	progress := <-progresses
	if progress.err != nil || progress.progress.MarkedCount != 2 {
		t.Fatalf("progress after save = %+v, %v", progress.progress, progress.err)
	}
}

func TestServiceSubmitThroughWorkbookFile(t *testing.T) {
	path := writeDefaultLayoutWorkbook(t)
	store := workbook.NewXLSXStore(path, nil)
	svc := NewService(store, config.DefaultLayout(), nil, nil, nil)
	t.Cleanup(svc.Close)
	ctx := context.Background()

	outcome, err := svc.Submit(ctx, models.ScanSubmission{Identifier: "A1234", Status: models.StatusFound, Location: "EIEAB"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Kind != models.OutcomeUpdated || outcome.MarkedCount != 1 || outcome.TotalCount != 352 {
		t.Fatalf("formula row outcome = %+v", outcome)
	}
	progress, err := svc.Progress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if progress.MarkedCount != 1 {
		t.Fatalf("progress after formula row = %d, want 1", progress.MarkedCount)
	}

	outcome, err = svc.Submit(ctx, models.ScanSubmission{Identifier: "B2000", Status: models.StatusSurplus})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.MarkedCount != 2 {
		t.Fatalf("plain row outcome = %+v", outcome)
	}
	progress, err = svc.Progress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if progress.MarkedCount != 2 {
		t.Fatalf("progress after plain row = %d, want 2", progress.MarkedCount)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if formula, _ := f.GetCellFormula("Inventory", "S6"); formula != `IF(P6<>"","X","")` {
		t.Fatalf("S6 formula = %q", formula)
	}
	if got, _ := f.GetCellValue("Inventory", "S7"); got != markedValue {
		t.Fatalf("S7 = %q, want %q", got, markedValue)
	}
	if got, _ := f.GetCellValue("Inventory", "P7"); got != "S" {
		t.Fatalf("P7 = %q, want S", got)
	}
}

// writeDefaultLayoutWorkbook lays out two assets from row 6: A1234 with a
// marked-check formula in S6 and B2000 with a plain S7. S8 is a formula over
// an asset that is never scanned.
func writeDefaultLayoutWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Inventory"); err != nil {
		t.Fatal(err)
	}
	values := map[string]string{
		"C5": "Tag",
		"E6": "A1234",
		"F6": "Projector",
		"E7": "B2000",
		"F7": "Laptop",
		"E8": "C3000",
		"F8": "Cart",
	}
	for cell, value := range values {
		if err := f.SetCellValue("Inventory", cell, value); err != nil {
			t.Fatal(err)
		}
	}
	for _, row := range []string{"6", "8"} {
		if err := f.SetCellFormula("Inventory", "S"+row, `IF(P`+row+`<>"","X","")`); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServiceStolenAlert(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, _, notifier := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, models.ScanSubmission{Identifier: "T100", Status: "stolen", Location: "EIEAB", Room: "5"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(ctx, models.ScanSubmission{Identifier: "T100", Status: models.StatusStolen}); err != nil {
		t.Fatal(err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.sent))
	}
	msg := notifier.sent[0]
	if msg.Priority != notify.PriorityHigh || msg.Body != "T100 (row 2) Projector at EIEAB room 5" {
		t.Fatalf("alert = %+v", msg)
	}
}

func TestServiceSnapshotProgress(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc, audit, _ := newTestService(t, store)
	fixed := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	snap, err := svc.SnapshotProgress(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.MarkedCount != 1 || snap.TotalCount != 5 || !snap.TakenAt.Equal(fixed) {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(audit.snapshots) != 1 {
		t.Fatal("snapshot not recorded")
	}
}

func TestServiceBackupUnsupported(t *testing.T) {
	svc, _, _ := newTestService(t, newMemStore(inventorySheet()))
	if _, err := svc.BackupWorkbook(context.Background(), t.TempDir(), 3); !errors.Is(err, ErrBackupUnsupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestServiceClosedAndCancelled(t *testing.T) {
	store := newMemStore(inventorySheet())
	svc := NewService(store, testLayout(), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Submit(ctx, models.ScanSubmission{Identifier: "T100", Status: models.StatusFound}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled submit err = %v", err)
	}

	svc.Close()
	svc.Close()
	if _, err := svc.Submit(context.Background(), models.ScanSubmission{Identifier: "T100", Status: models.StatusFound}); !errors.Is(err, ErrClosed) {
		t.Fatalf("closed submit err = %v", err)
	}
	if store.saves != 0 {
		t.Fatal("no job should have run")
	}
}
