package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Store implements the ledger row store on top of a Google Sheets
// spreadsheet: one sheet per table, row 1 is the header.
type Store struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewStore creates a Sheets-backed store for the given spreadsheet,
// authenticating with a service account read from credentialsPath or,
// when empty, from the GOOGLE_SHEETS_CREDENTIALS environment variable.
func NewStore(spreadsheetID, credentialsPath string) (*Store, error) {
	ctx := context.Background()

	var credsJSON []byte
	var err error

	if credentialsPath != "" {
		credsJSON, err = os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
	} else {
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		credsJSON = []byte(credsEnv)
	}

	// Validate it is a service account credentials blob before handing
	// it to the API client; the error is clearer here.
	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file, got type: %v", creds["type"])
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Store{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

// EnsureTable creates the sheet with a header row when it does not
// exist yet.
func (s *Store) EnsureTable(title string, headers []string) error {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Do(); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", title, err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := s.writeRange(fmt.Sprintf("%s!A1", title), header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", title, err)
	}

	log.Printf("Created sheet '%s'\n", title)
	return nil
}

// Column returns every value of a 1-based column, header included.
// Rows without a value in the column come back as empty strings.
func (s *Store) Column(title string, col int) ([]string, error) {
	letter := colLetter(col)
	rangeA1 := fmt.Sprintf("%s!%s:%s", title, letter, letter)

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeA1).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rangeA1, err)
	}

	out := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, cellString(row[0]))
	}
	return out, nil
}

// Row returns one 1-based row as strings.
func (s *Store) Row(title string, row int) ([]string, error) {
	rangeA1 := fmt.Sprintf("%s!A%d:Z%d", title, row, row)

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeA1).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rangeA1, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		out = append(out, cellString(cell))
	}
	return out, nil
}

// UpdateCells overwrites len(values) cells of one row starting at the
// 1-based column col.
func (s *Store) UpdateCells(title string, row, col int, values []interface{}) error {
	rangeA1 := fmt.Sprintf("%s!%s%d:%s%d",
		title, colLetter(col), row, colLetter(col+len(values)-1), row)
	return s.writeRange(rangeA1, values)
}

// AppendRow appends one row after the last row with data.
func (s *Store) AppendRow(title string, values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, fmt.Sprintf("%s!A1", title), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", title, err)
	}
	return nil
}

func (s *Store) writeRange(rangeA1 string, values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.service.Spreadsheets.Values.
		Update(s.spreadsheetID, rangeA1, vr).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", rangeA1, err)
	}
	return nil
}

func cellString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// colLetter converts a 1-based column index to its A1 letter.
func colLetter(col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return letters
}
