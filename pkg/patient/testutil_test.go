package patient

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/KashishBagga/pamm/pkg/audit"
	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/crypto"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// testDB opens a uniquely named in-memory database so parallel tests never
// share state. TranslateError matches production so duplicate-key detection
// behaves the same way.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&Record{}, &audit.Entry{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testKeyring(t *testing.T) crypto.Keyring {
	t.Helper()
	encoded, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	keyring, err := crypto.NewKeyring(encoded)
	if err != nil {
		t.Fatalf("failed to build keyring: %v", err)
	}
	return keyring
}

func testRecorder(t *testing.T, db *gorm.DB) (*audit.Recorder, *audit.Repository) {
	t.Helper()
	repo := audit.NewRepository(db)
	sanitizer, err := audit.NewSanitizer(audit.DefaultRules())
	if err != nil {
		t.Fatalf("failed to build sanitizer: %v", err)
	}
	return audit.NewRecorder(repo, nil, sanitizer), repo
}

func strptr(s string) *string {
	return &s
}
