package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// FileSink giữ toàn bộ record đã commit trong bộ nhớ (theo natural key) và
// ghi lại snapshot JSON + CSV sau mỗi lô. Ghi đè nguyên file mỗi lần nên
// commit lặp không tạo dòng trùng.
type FileSink struct {
	Logger   log.Logger
	JsonFile string
	CsvFile  string

	mu      sync.Mutex
	byKey   map[string]model.Record
}

func NewFileSink(logger log.Logger, jsonFile, csvFile string) (*FileSink, error) {
	for _, f := range []string{jsonFile, csvFile} {
		if f == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &FileSink{
		Logger:   logger,
		JsonFile: jsonFile,
		CsvFile:  csvFile,
		byKey:    make(map[string]model.Record),
	}, nil
}

func (s *FileSink) Commit(ctx context.Context, batch []model.Record) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range batch {
		s.byKey[record.Key()] = record
	}

	records := s.sorted()
	if s.JsonFile != "" {
		if err := s.writeJson(records); err != nil {
			return err
		}
	}
	if s.CsvFile != "" {
		if err := s.writeCsv(records); err != nil {
			return err
		}
	}
	return nil
}

// sorted trả về record theo thứ tự ổn định: repo theo rank, release theo key
func (s *FileSink) sorted() []model.Record {
	records := make([]model.Record, 0, len(s.byKey))
	for _, r := range s.byKey {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		a, aOk := records[i].(model.RepoMessage)
		b, bOk := records[j].(model.RepoMessage)
		if aOk && bOk {
			return a.Rank < b.Rank
		}
		return records[i].Key() < records[j].Key()
	})
	return records
}

func (s *FileSink) writeJson(records []model.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output json: %w", err)
	}

	// Ghi qua file tạm rồi rename để snapshot luôn nguyên vẹn
	tmp := s.JsonFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output json: %w", err)
	}
	return os.Rename(tmp, s.JsonFile)
}

func (s *FileSink) writeCsv(records []model.Record) error {
	tmp := s.CsvFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to write output csv: %w", err)
	}

	w := csv.NewWriter(f)
	if err := s.writeCsvRows(w, records); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush output csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.CsvFile)
}

func (s *FileSink) writeCsvRows(w *csv.Writer, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	switch records[0].(type) {
	case model.RepoMessage:
		if err := w.Write([]string{"rank", "user", "name", "full_name", "stars", "description", "language", "avatar_url", "repo_url"}); err != nil {
			return err
		}
		for _, record := range records {
			r, ok := record.(model.RepoMessage)
			if !ok {
				continue
			}
			row := []string{
				strconv.Itoa(r.Rank), r.User, r.Name, r.FullName,
				strconv.Itoa(r.Stars), r.Description, r.Language, r.AvatarUrl, r.RepoUrl,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	case model.ReleaseMessage:
		if err := w.Write([]string{"id", "tag_name", "repo_id", "content"}); err != nil {
			return err
		}
		for _, record := range records {
			r, ok := record.(model.ReleaseMessage)
			if !ok {
				continue
			}
			row := []string{
				strconv.FormatInt(r.ID, 10), r.TagName,
				strconv.FormatInt(r.RepoID, 10), r.Content,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FileSink) Close() error {
	return nil
}
