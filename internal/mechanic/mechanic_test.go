package mechanic

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mechanic.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Mechanic{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewRepo(db)
}

func TestCertificationsRoundTrip(t *testing.T) {
	m := Mechanic{Certifications: CertificationsJoin([]string{" ASE T4 ", "", "CDL"})}
	got := m.CertificationsSlice()
	want := []string{"ASE T4", "CDL"}
	if len(got) != len(want) {
		t.Fatalf("certifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("certifications[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	empty := Mechanic{}
	if empty.CertificationsSlice() != nil {
		t.Error("no certifications should yield nil")
	}
}

func TestCountActive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	mechanics := []Mechanic{
		{ID: "m1", Name: "Alice", GarageID: "g1", Active: true},
		{ID: "m2", Name: "Bob", GarageID: "g1", Active: true},
		{ID: "m3", Name: "Carol", GarageID: "g2", Active: true},
		{ID: "m4", Name: "Dave", GarageID: "g1", Active: false},
	}
	for i := range mechanics {
		if err := repo.Create(ctx, &mechanics[i]); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	total, err := repo.CountActive(ctx, "")
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if total != 3 {
		t.Errorf("active = %d, want 3 (inactive excluded)", total)
	}

	g1, err := repo.CountActive(ctx, "g1")
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if g1 != 2 {
		t.Errorf("active in g1 = %d, want 2", g1)
	}

	active, err := repo.ListActive(ctx, "g1")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 || active[0].Name != "Alice" {
		t.Errorf("ListActive = %+v, want Alice then Bob", active)
	}
}
