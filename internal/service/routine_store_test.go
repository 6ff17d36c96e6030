package service

import (
	"errors"
	"testing"

	"github.com/ritmo/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStoreTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.RoutineRecord{}, &db.CompletionLog{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestRoutineStoreInsertAndList(t *testing.T) {
	cleanup := setupStoreTestDB(t)
	defer cleanup()

	store := NewRoutineStore(db.DB)

	first := Routine{Name: "Brush My Teeth", Hour: 8, Period: PeriodAM}
	second := Routine{Name: "Bath Time", Hour: 6, Period: PeriodPM}

	firstID, err := store.InsertRoutine(1, first.Name, EncodeRoutine(first), first.TimeLabel())
	if err != nil {
		t.Fatalf("InsertRoutine returned error: %v", err)
	}
	if _, err := store.InsertRoutine(1, second.Name, EncodeRoutine(second), second.TimeLabel()); err != nil {
		t.Fatalf("InsertRoutine returned error: %v", err)
	}
	// 其他用户的记录不可见
	if _, err := store.InsertRoutine(2, "Other", "{}", "1:00 PM"); err != nil {
		t.Fatalf("InsertRoutine returned error: %v", err)
	}

	records, err := store.ListRoutines(1)
	if err != nil {
		t.Fatalf("ListRoutines returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != firstID {
		t.Fatalf("expected insertion order, got first id %d", records[0].ID)
	}

	decoded := DecodeRoutine(records[0].Payload)
	if decoded.Name != "Brush My Teeth" || decoded.Minutes() != 480 {
		t.Fatalf("payload did not round-trip: %+v", decoded)
	}
}

func TestRoutineStoreDelete(t *testing.T) {
	cleanup := setupStoreTestDB(t)
	defer cleanup()

	store := NewRoutineStore(db.DB)
	id, err := store.InsertRoutine(1, "Nap", "{}", "1:00 PM")
	if err != nil {
		t.Fatalf("InsertRoutine returned error: %v", err)
	}

	// 不属于该用户的删除不生效
	if err := store.DeleteRoutine(2, id); !errors.Is(err, ErrRoutineRecordNotFound) {
		t.Fatalf("expected ErrRoutineRecordNotFound for wrong user, got %v", err)
	}

	if err := store.DeleteRoutine(1, id); err != nil {
		t.Fatalf("DeleteRoutine returned error: %v", err)
	}
	if err := store.DeleteRoutine(1, id); !errors.Is(err, ErrRoutineRecordNotFound) {
		t.Fatalf("expected ErrRoutineRecordNotFound, got %v", err)
	}
}

func TestDecodeRoutineTolerant(t *testing.T) {
	r := DecodeRoutine("not json at all")
	if r.ID != "" || r.Name != "" {
		t.Fatalf("expected zero routine for bad payload, got %+v", r)
	}
}

func TestParseStoreID(t *testing.T) {
	if id, ok := ParseStoreID("42"); !ok || id != 42 {
		t.Fatalf("expected 42, got %d ok=%v", id, ok)
	}
	if _, ok := ParseStoreID("3d9f2a1c-ffff-4a4a-9a9a-000000000000"); ok {
		t.Fatal("uuid should not parse as store id")
	}
	if _, ok := ParseStoreID(""); ok {
		t.Fatal("empty id should not parse")
	}
}
