package audit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/KashishBagga/pamm/pkg/common/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestAppendAssignsIdentityAndTimestamp(t *testing.T) {
	repo := NewRepository(testDB(t))

	entry := &Entry{Action: ActionUpload, PerformedBy: "mgr-a", Details: "Uploaded 3 patients from spreadsheet"}
	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("append left ID empty")
	}
	if entry.Timestamp.IsZero() {
		t.Fatal("append left Timestamp zero")
	}
}

func TestListIsNewestFirstAndScoped(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &Entry{Action: ActionAccess, PerformedBy: "mgr-a", Details: fmt.Sprintf("call %d", i)}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := repo.Append(ctx, &Entry{Action: ActionAccess, PerformedBy: "mgr-b"}); err != nil {
		t.Fatalf("append other principal: %v", err)
	}

	entries, total, err := repo.List(ctx, "mgr-a", 1, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5 (other principal's entries excluded)", total)
	}
	if len(entries) != 3 {
		t.Fatalf("page length = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatal("entries are not newest-first")
		}
	}

	second, _, err := repo.List(ctx, "mgr-a", 2, 3)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("page 2 length = %d, want 2", len(second))
	}
}

func TestRecorderScrubsIdentifiersFromDetails(t *testing.T) {
	repo := NewRepository(testDB(t))
	sanitizer, err := NewSanitizer(DefaultRules())
	if err != nil {
		t.Fatalf("sanitizer: %v", err)
	}
	recorder := NewRecorder(repo, nil, sanitizer)

	entry, err := recorder.Record(context.Background(), Event{
		Action:      ActionAccess,
		PerformedBy: "mgr-a",
		Details:     "search for jane@example.com born 1990-05-14 ssn 123-45-6789",
		Metadata:    map[string]interface{}{"search": "555-123-4567", "page": 1},
		ClientIP:    "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	for _, leaked := range []string{"jane@example.com", "1990-05-14", "123-45-6789"} {
		if strings.Contains(entry.Details, leaked) {
			t.Fatalf("details still contain %q: %s", leaked, entry.Details)
		}
	}
	if search, _ := entry.Metadata["search"].(string); strings.Contains(search, "555-123-4567") {
		t.Fatalf("metadata search not scrubbed: %q", search)
	}
	if entry.Metadata["page"] != 1 {
		t.Fatalf("non-string metadata altered: %v", entry.Metadata["page"])
	}
}

func TestRecorderBestEffortSurvivesStoreFailure(t *testing.T) {
	db := testDB(t)
	// Drop the table out from under the repository to simulate an
	// unavailable audit store.
	if err := db.Migrator().DropTable(&Entry{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	recorder := NewRecorder(NewRepository(db), nil, nil)

	// Must not panic and must not propagate.
	recorder.RecordBestEffort(context.Background(), Event{Action: ActionAccess, PerformedBy: "mgr-a"})

	// The write path, by contrast, surfaces the failure.
	if _, err := recorder.Record(context.Background(), Event{Action: ActionUpload, PerformedBy: "mgr-a"}); err == nil {
		t.Fatal("write-path record against a dead store should fail")
	}
}

func TestSanitizerMasksKnownPatterns(t *testing.T) {
	sanitizer, err := NewSanitizer(DefaultRules())
	if err != nil {
		t.Fatalf("sanitizer: %v", err)
	}

	cases := map[string]string{
		"123-45-6789":      "***-**-****",
		"jane@example.com": "***@***",
		"plain text":       "plain text",
	}
	for input, want := range cases {
		if got := sanitizer.Scrub(input); got != want {
			t.Fatalf("Scrub(%q) = %q, want %q", input, got, want)
		}
	}

	var nilSanitizer *Sanitizer
	if got := nilSanitizer.Scrub("text"); got != "text" {
		t.Fatalf("nil sanitizer altered input: %q", got)
	}
}
