package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CSVStore implements Store on per-user CSV files under a data
// directory, one file per user named user_<id>.csv with the canonical
// header row. The file modification time doubles as the revision
// marker, so edits made outside this process are picked up too.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

// NewCSVStore creates a CSV-file ledger store rooted at dir. The
// directory is created if missing.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

// Path returns the ledger file path for a user.
func (s *CSVStore) Path(userID string) string {
	return filepath.Join(s.dir, "user_"+userID+".csv")
}

// Append adds one record, writing the header first on a fresh file.
func (s *CSVStore) Append(_ context.Context, userID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(userID)
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	if err := w.Write(rec.Fields()); err != nil {
		return fmt.Errorf("failed to write ledger record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// List reads all records for the user in file order.
func (s *CSVStore) List(_ context.Context, userID string) ([]Record, error) {
	rows, header, err := ReadCSV(s.Path(userID))
	if err != nil {
		return nil, err
	}
	return RecordsFromRows(header, rows), nil
}

// Revision returns the file's modification time and size.
func (s *CSVStore) Revision(_ context.Context, userID string) (string, error) {
	info, err := os.Stat(s.Path(userID))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("csv-%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

// ReadCSV reads a ledger CSV file and returns its data rows plus a
// column-name -> index mapping for the header. Callers validate the
// header against Columns themselves; files with extra columns are fine.
func ReadCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse ledger file: %w", err)
	}
	if len(all) == 0 {
		return nil, map[string]int{}, nil
	}
	header := make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		header[name] = i
	}
	return all[1:], header, nil
}

// RecordsFromRows maps raw CSV rows to records using the header index.
// Columns absent from the header come back empty.
func RecordsFromRows(header map[string]int, rows [][]string) []Record {
	field := func(row []string, name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, Record{
			Date:          field(row, "Date"),
			Time:          field(row, "Time"),
			Merchant:      field(row, "Merchant"),
			Amount:        field(row, "Amount"),
			Category:      field(row, "Category"),
			Mood:          field(row, "Mood"),
			Location:      field(row, "Location"),
			CalendarEvent: field(row, "Calendar_Event"),
			GroupID:       field(row, "Group_ID"),
			BalanceAfter:  field(row, "Balance_After"),
		})
	}
	return recs
}
