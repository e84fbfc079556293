package ledger

import (
	"fmt"
	"testing"

	"zonaprop-watcher/models"
)

// fakeStore is an in-memory RowStore.
type fakeStore struct {
	tables map[string][][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: make(map[string][][]string)}
}

func (f *fakeStore) EnsureTable(title string, headers []string) error {
	if _, ok := f.tables[title]; !ok {
		f.tables[title] = [][]string{append([]string(nil), headers...)}
	}
	return nil
}

func (f *fakeStore) Column(title string, col int) ([]string, error) {
	rows, ok := f.tables[title]
	if !ok {
		return nil, fmt.Errorf("no such table: %s", title)
	}
	var out []string
	for _, row := range rows {
		if col-1 < len(row) {
			out = append(out, row[col-1])
		} else {
			out = append(out, "")
		}
	}
	return out, nil
}

func (f *fakeStore) Row(title string, row int) ([]string, error) {
	rows, ok := f.tables[title]
	if !ok || row-1 >= len(rows) {
		return nil, fmt.Errorf("no such row: %s %d", title, row)
	}
	return rows[row-1], nil
}

func (f *fakeStore) UpdateCells(title string, row, col int, values []interface{}) error {
	rows, ok := f.tables[title]
	if !ok || row-1 >= len(rows) {
		return fmt.Errorf("no such row: %s %d", title, row)
	}
	for i, v := range values {
		rows[row-1][col-1+i] = fmt.Sprint(v)
	}
	return nil
}

func (f *fakeStore) AppendRow(title string, values []interface{}) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	f.tables[title] = append(f.tables[title], row)
	return nil
}

func intp(n int) *int { return &n }

func listing(price, fee int) models.Listing {
	return models.Listing{
		Title:           "Depto en Belgrano",
		Rooms:           intp(3),
		PriceUSD:        intp(price),
		FeesARS:         intp(fee),
		Neighborhood:    "belgrano",
		PropertyType:    models.TypeApartment,
		HasOutdoorSpace: true,
	}
}

func setup(t *testing.T) (*Reconciler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	rec := NewReconciler(store)
	if err := rec.EnsureTables(); err != nil {
		t.Fatalf("EnsureTables() error = %v", err)
	}
	return rec, store
}

func TestUpsertAcceptedCreates(t *testing.T) {
	rec, store := setup(t)

	res, err := rec.UpsertAccepted("https://x/p1", listing(90000, 50000), "2026-08-31T10:00:00Z")
	if err != nil {
		t.Fatalf("UpsertAccepted() error = %v", err)
	}
	if res != Created {
		t.Errorf("result = %v, want Created", res)
	}

	row := store.tables[AcceptedTable][1]
	want := []string{
		"https://x/p1", "Zonaprop", "belgrano", "Depto", "3", "90000", "50000",
		"S", "To validate", "Depto en Belgrano",
		"2026-08-31T10:00:00Z", "2026-08-31T10:00:00Z", "Active",
		"90000", "90000", "50000",
	}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("col %d = %q, want %q", i+1, row[i], w)
		}
	}
}

func TestUpsertAcceptedUpdatesMinMax(t *testing.T) {
	rec, store := setup(t)

	if _, err := rec.UpsertAccepted("https://x/p1", listing(90000, 50000), "t1"); err != nil {
		t.Fatal(err)
	}
	res, err := rec.UpsertAccepted("https://x/p1", listing(85000, 52000), "t2")
	if err != nil {
		t.Fatalf("UpsertAccepted() error = %v", err)
	}
	if res != Updated {
		t.Errorf("result = %v, want Updated", res)
	}

	row := store.tables[AcceptedTable][1]
	checks := map[int]string{
		6:  "85000", // current price
		7:  "52000", // current fee
		11: "t1",    // firstSeen untouched
		12: "t2",    // lastSeen refreshed
		13: "Active",
		14: "85000", // priceMin
		15: "90000", // priceMax
		16: "50000", // feeMin
	}
	for col, want := range checks {
		if row[col-1] != want {
			t.Errorf("col %d = %q, want %q", col, row[col-1], want)
		}
	}

	if len(store.tables[AcceptedTable]) != 2 {
		t.Errorf("rows = %d, want header + 1", len(store.tables[AcceptedTable]))
	}
}

// Reconciling the same observation twice must be idempotent: min, max
// and current price stay equal and firstSeen does not move.
func TestUpsertAcceptedIdempotent(t *testing.T) {
	rec, store := setup(t)

	for i := 0; i < 2; i++ {
		if _, err := rec.UpsertAccepted("https://x/p1", listing(90000, 50000), "t1"); err != nil {
			t.Fatal(err)
		}
	}

	row := store.tables[AcceptedTable][1]
	for _, col := range []int{6, 14, 15} {
		if row[col-1] != "90000" {
			t.Errorf("col %d = %q, want 90000", col, row[col-1])
		}
	}
	if row[10] != "t1" {
		t.Errorf("firstSeen = %q, want t1", row[10])
	}
}

// priceMin/priceMax must equal the true min/max of every observed
// price, in any observation order.
func TestUpsertAcceptedMinMaxMonotonic(t *testing.T) {
	prices := []int{97000, 85000, 91000, 120000, 86000}

	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}

	for _, order := range orders {
		rec, store := setup(t)
		for i, idx := range order {
			ts := fmt.Sprintf("t%d", i)
			if _, err := rec.UpsertAccepted("https://x/p1", listing(prices[idx], 50000), ts); err != nil {
				t.Fatal(err)
			}
		}
		row := store.tables[AcceptedTable][1]
		if row[13] != "85000" {
			t.Errorf("order %v: priceMin = %q, want 85000", order, row[13])
		}
		if row[14] != "120000" {
			t.Errorf("order %v: priceMax = %q, want 120000", order, row[14])
		}
	}
}

// A legacy row with blank min/max cells adopts the current observation.
func TestUpsertAcceptedAdoptsMissingMinMax(t *testing.T) {
	rec, store := setup(t)

	store.tables[AcceptedTable] = append(store.tables[AcceptedTable], []string{
		"https://x/old", "Zonaprop", "belgrano", "Depto", "3", "90000", "50000",
		"S", "To validate", "title", "t0", "t0", "Active", "", "", "",
	})

	if _, err := rec.UpsertAccepted("https://x/old", listing(88000, 47000), "t1"); err != nil {
		t.Fatal(err)
	}

	row := store.tables[AcceptedTable][1]
	if row[13] != "88000" || row[14] != "88000" || row[15] != "47000" {
		t.Errorf("min/max/feeMin = %q/%q/%q, want 88000/88000/47000", row[13], row[14], row[15])
	}
}

func TestUpsertAcceptedRejectsIncompleteRecord(t *testing.T) {
	rec, _ := setup(t)

	l := listing(90000, 50000)
	l.FeesARS = nil
	if _, err := rec.UpsertAccepted("https://x/p1", l, "t1"); err == nil {
		t.Error("expected error for accepted listing without fee")
	}
}

func TestUpsertReviewCreateThenUpdate(t *testing.T) {
	rec, store := setup(t)

	l := listing(90000, 50000)
	l.FeesARS = nil

	res, err := rec.UpsertReview("https://x/p2", l, "t1", "missing fee")
	if err != nil {
		t.Fatalf("UpsertReview() error = %v", err)
	}
	if res != Created {
		t.Errorf("result = %v, want Created", res)
	}

	// Second observation with different attributes: only lastSeen and
	// reason may change.
	l2 := listing(70000, 10)
	l2.Title = "changed title"
	res, err = rec.UpsertReview("https://x/p2", l2, "t2", "fee above maximum")
	if err != nil {
		t.Fatalf("UpsertReview() error = %v", err)
	}
	if res != Updated {
		t.Errorf("result = %v, want Updated", res)
	}

	row := store.tables[ReviewTable][1]
	checks := map[int]string{
		6:  "90000",             // priceUsd from first extraction
		9:  "Depto en Belgrano", // title from first extraction
		10: "fee above maximum", // reason refreshed
		11: "t1",                // firstSeen untouched
		12: "t2",                // lastSeen refreshed
	}
	for col, want := range checks {
		if row[col-1] != want {
			t.Errorf("col %d = %q, want %q", col, row[col-1], want)
		}
	}
}

func TestSeenURLsUnion(t *testing.T) {
	rec, _ := setup(t)

	if _, err := rec.UpsertAccepted("https://x/a", listing(90000, 50000), "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.UpsertReview("https://x/b", listing(90000, 50000), "t1", "r"); err != nil {
		t.Fatal(err)
	}

	seen, err := rec.SeenURLs()
	if err != nil {
		t.Fatalf("SeenURLs() error = %v", err)
	}
	if len(seen) != 2 || !seen["https://x/a"] || !seen["https://x/b"] {
		t.Errorf("seen = %v, want both urls", seen)
	}
}

func TestAppendAudit(t *testing.T) {
	rec, store := setup(t)

	if err := rec.AppendAudit("t1", 120, 3, 40, 2); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	row := store.tables[AuditTable][1]
	want := []string{"t1", "120", "3", "40", "2"}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("col %d = %q, want %q", i+1, row[i], w)
		}
	}
}
