package sink

import (
	"context"
	"fmt"

	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
	"gorm.io/gorm"
)

// MysqlSink ghi một lô record trong đúng một transaction. Trùng natural key
// được xử lý bằng upsert hoặc skip theo cấu hình, nên gọi Commit hai lần với
// cùng một lô cho ra cùng một trạng thái cuối.
type MysqlSink struct {
	Logger     log.Logger
	Mysql      *db.Mysql
	OnConflict string
}

func NewMysqlSink(logger log.Logger, mysql *db.Mysql, onConflict string) (*MysqlSink, error) {
	if onConflict != model.ConflictUpsert && onConflict != model.ConflictSkip {
		return nil, fmt.Errorf("unknown on_conflict mode: %q", onConflict)
	}
	return &MysqlSink{
		Logger:     logger,
		Mysql:      mysql,
		OnConflict: onConflict,
	}, nil
}

func (s *MysqlSink) Commit(ctx context.Context, batch []model.Record) error {
	if len(batch) == 0 {
		return nil
	}

	var repos []model.RepoMessage
	var releases []model.ReleaseMessage
	for _, record := range batch {
		switch r := record.(type) {
		case model.RepoMessage:
			repos = append(repos, r)
		case model.ReleaseMessage:
			releases = append(releases, r)
		default:
			return fmt.Errorf("unknown record type %T", record)
		}
	}

	gdb, err := s.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	// Cả lô commit trong một transaction: hoặc tất cả hoặc không gì cả
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(repos) > 0 {
			rows := model.RepoRowsFromMessages(repos)
			if err := tx.Clauses(model.RepoConflictClause(s.OnConflict)).CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("failed to commit repositories: %w", err)
			}
		}
		if len(releases) > 0 {
			rows := model.ReleaseRowsFromMessages(releases)
			if err := tx.Clauses(model.ReleaseConflictClause(s.OnConflict)).CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("failed to commit releases: %w", err)
			}
		}
		return nil
	})
}

func (s *MysqlSink) Close() error {
	return nil
}
