package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"grievedesk/internal/logging"

	"go.uber.org/zap"
)

// bufferSize for buffered I/O (64KB)
const bufferSize = 64 * 1024

var csvHeader = []string{"ticket", "complaint_id", "status", "message_id"}

// CSVStore keeps records in a CSV file and serves lookups from memory.
//
// Data flow:
//
//	Read:   CSV → Load into map → Serve from map
//	Write:  Append to CSV → Update map
//	Delete: Remove from map → Rewrite entire CSV
//
// A ticket saved twice appears twice in the file until the next rewrite;
// the later row wins on load.
type CSVStore struct {
	path   string
	logger *zap.SugaredLogger

	mu      sync.Mutex
	records map[string]Record
}

// NewCSVStore loads path, creating nothing until the first write.
func NewCSVStore(path string, logger *zap.SugaredLogger) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("csv store path required")
	}
	s := &CSVStore{
		path:    path,
		logger:  logging.OrNop(logger),
		records: make(map[string]Record),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the CSV file into memory. Malformed rows are skipped with a
// warning; a missing file is normal on first run.
func (s *CSVStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("📋 No existing ticket file found, starting empty")
			return nil
		}
		return fmt.Errorf("open ticket file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read ticket file: %w", err)
	}

	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) < 3 || row[0] == "" {
			s.logger.Warnw("⚠️  Skipping malformed ticket row", "line", i+1)
			continue
		}
		id, err := strconv.Atoi(row[1])
		if err != nil {
			s.logger.Warnw("⚠️  Skipping ticket row with bad complaint id", "line", i+1, "value", row[1])
			continue
		}
		r := Record{Ticket: row[0], ComplaintID: id, Status: row[2]}
		if len(row) >= 4 {
			r.MessageID = row[3]
		}
		s.records[r.Ticket] = r
	}

	s.logger.Infow("📚 Loaded previously seen tickets", "count", len(s.records), "path", s.path)
	return nil
}

func (s *CSVStore) IsNew(_ context.Context, ticket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.records[ticket]
	return !seen, nil
}

func (s *CSVStore) Get(_ context.Context, ticket string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[ticket]
	return r, ok, nil
}

func (s *CSVStore) All(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

// SaveMultiple appends records to the file, then updates memory only after
// the write succeeded.
func (s *CSVStore) SaveMultiple(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, statErr := os.Stat(s.path)
	needHeader := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	buffered := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(buffered)
	if needHeader {
		if err := writer.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := writer.Write(row(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return err
	}

	for _, r := range records {
		s.records[r.Ticket] = r
	}
	return nil
}

// RemoveIfExists deletes ticket and rewrites the file. Concurrent removals
// of the same ticket report true exactly once.
func (s *CSVStore) RemoveIfExists(_ context.Context, ticket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[ticket]; !ok {
		return false, nil
	}
	delete(s.records, ticket)
	return true, s.rewriteLocked()
}

func (s *CSVStore) Close() error { return nil }

// rewriteLocked replaces the file with the in-memory records.
func (s *CSVStore) rewriteLocked() error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	buffered := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(buffered)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range s.sortedLocked() {
		if err := writer.Write(row(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buffered.Flush()
}

func (s *CSVStore) sortedLocked() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

func row(r Record) []string {
	return []string{r.Ticket, strconv.Itoa(r.ComplaintID), r.Status, r.MessageID}
}
