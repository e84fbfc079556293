package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"zonaprop-watcher/models"
)

// Result reports whether an upsert created a new row or updated an
// existing one.
type Result string

const (
	Created Result = "created"
	Updated Result = "updated"
)

// Table names within the store.
const (
	AcceptedTable = "Accepted"
	ReviewTable   = "Review"
	AuditTable    = "Audit"
)

const portal = "Zonaprop"

// Fixed column layouts; order is a compatibility contract with existing
// spreadsheets.
var (
	acceptedHeaders = []string{
		"url", "portal", "neighborhood", "type", "rooms", "priceUsd", "feesArs",
		"outdoorSpace", "creditEligibility", "title", "firstSeen", "lastSeen",
		"status", "priceMin", "priceMax", "feeMin",
	}
	reviewHeaders = []string{
		"url", "portal", "neighborhood", "type", "rooms", "priceUsd", "feesArs",
		"outdoorSpace", "title", "reason", "firstSeen", "lastSeen",
	}
	auditHeaders = []string{
		"timestamp", "urlsChecked", "addedAccepted", "addedReview", "errors",
	}
)

// 1-based column positions used by partial updates.
const (
	acceptedPriceCol    = 6  // priceUsd..feesArs
	acceptedLastSeenCol = 12 // lastSeen..feeMin
	reviewReasonCol     = 10
	reviewLastSeenCol   = 12
)

// RowStore is the persistence boundary: a set of named tables with a
// header row, addressed by 1-based row and column positions.
type RowStore interface {
	EnsureTable(title string, headers []string) error
	Column(title string, col int) ([]string, error)
	Row(title string, row int) ([]string, error)
	UpdateCells(title string, row, col int, values []interface{}) error
	AppendRow(title string, values []interface{}) error
}

// Reconciler owns all writes to the two listing tables and the audit
// table. A URL lives in exactly one of Accepted and Review, decided on
// first observation; it never moves afterwards.
type Reconciler struct {
	store RowStore
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store RowStore) *Reconciler {
	return &Reconciler{store: store}
}

// EnsureTables creates the three tables with their header rows when
// they do not exist yet.
func (r *Reconciler) EnsureTables() error {
	if err := r.store.EnsureTable(AcceptedTable, acceptedHeaders); err != nil {
		return err
	}
	if err := r.store.EnsureTable(ReviewTable, reviewHeaders); err != nil {
		return err
	}
	return r.store.EnsureTable(AuditTable, auditHeaders)
}

// SeenURLs returns the union of URLs present in either listing table.
func (r *Reconciler) SeenURLs() (map[string]bool, error) {
	seen := make(map[string]bool)
	for _, table := range []string{AcceptedTable, ReviewTable} {
		urls, err := r.store.Column(table, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s urls: %w", table, err)
		}
		for i, u := range urls {
			if i == 0 {
				continue // header
			}
			if u = strings.TrimSpace(u); u != "" {
				seen[u] = true
			}
		}
	}
	return seen, nil
}

// UpsertAccepted merges an accepted listing into the Accepted table.
// New URLs get a full row seeded with priceMin=priceMax=price and
// feeMin=fee; known URLs get their current price/fee, lastSeen, status
// and rolling min/max refreshed.
func (r *Reconciler) UpsertAccepted(url string, l models.Listing, ts string) (Result, error) {
	if l.PriceUSD == nil || l.FeesARS == nil {
		return "", fmt.Errorf("accepted listing %s is missing price or fee", url)
	}
	price, fee := *l.PriceUSD, *l.FeesARS

	row, err := r.findRow(AcceptedTable, url)
	if err != nil {
		return "", err
	}

	if row == 0 {
		err := r.store.AppendRow(AcceptedTable, []interface{}{
			url, portal, l.Neighborhood, l.PropertyType, intCell(l.Rooms),
			price, fee, boolCell(l.HasOutdoorSpace), "To validate", l.Title,
			ts, ts, "Active", price, price, fee,
		})
		if err != nil {
			return "", err
		}
		return Created, nil
	}

	existing, err := r.store.Row(AcceptedTable, row)
	if err != nil {
		return "", err
	}

	priceMin := rollMin(cellInt(existing, 14), price)
	priceMax := rollMax(cellInt(existing, 15), price)
	feeMin := rollMin(cellInt(existing, 16), fee)

	if err := r.store.UpdateCells(AcceptedTable, row, acceptedPriceCol,
		[]interface{}{price, fee}); err != nil {
		return "", err
	}
	if err := r.store.UpdateCells(AcceptedTable, row, acceptedLastSeenCol,
		[]interface{}{ts, "Active", priceMin, priceMax, feeMin}); err != nil {
		return "", err
	}
	return Updated, nil
}

// UpsertReview merges a rejected listing into the Review table. On
// repeat observation only lastSeen and reason are refreshed; the
// descriptive fields keep their first extraction.
func (r *Reconciler) UpsertReview(url string, l models.Listing, ts, reason string) (Result, error) {
	row, err := r.findRow(ReviewTable, url)
	if err != nil {
		return "", err
	}

	if row == 0 {
		err := r.store.AppendRow(ReviewTable, []interface{}{
			url, portal, l.Neighborhood, l.PropertyType, intCell(l.Rooms),
			intCell(l.PriceUSD), intCell(l.FeesARS), boolCell(l.HasOutdoorSpace),
			l.Title, reason, ts, ts,
		})
		if err != nil {
			return "", err
		}
		return Created, nil
	}

	if err := r.store.UpdateCells(ReviewTable, row, reviewLastSeenCol,
		[]interface{}{ts}); err != nil {
		return "", err
	}
	if err := r.store.UpdateCells(ReviewTable, row, reviewReasonCol,
		[]interface{}{reason}); err != nil {
		return "", err
	}
	return Updated, nil
}

// AppendAudit records the outcome of one run. Audit rows are never
// mutated.
func (r *Reconciler) AppendAudit(ts string, checked, addedAccepted, addedReview, errs int) error {
	return r.store.AppendRow(AuditTable, []interface{}{
		ts, checked, addedAccepted, addedReview, errs,
	})
}

// findRow returns the 1-based row of url in the table's identity
// column, or 0 when absent. Linear scan; fine at the few thousand rows
// this ledger holds.
func (r *Reconciler) findRow(table, url string) (int, error) {
	urls, err := r.store.Column(table, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s urls: %w", table, err)
	}
	for i, u := range urls {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(u) == url {
			return i + 1, nil
		}
	}
	return 0, nil
}

// cellInt reads a 1-based cell of a row as an integer, nil when the
// cell is missing or not numeric.
func cellInt(row []string, col int) *int {
	if col-1 >= len(row) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(row[col-1]))
	if err != nil {
		return nil
	}
	return &n
}

// rollMin folds the current observation into a running minimum; a
// missing prior value adopts the current one.
func rollMin(prev *int, current int) int {
	if prev == nil || current < *prev {
		return current
	}
	return *prev
}

func rollMax(prev *int, current int) int {
	if prev == nil || current > *prev {
		return current
	}
	return *prev
}

func intCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func boolCell(b bool) interface{} {
	if b {
		return "S"
	}
	return "N"
}
