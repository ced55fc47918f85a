package model

import (
	"fmt"
	"time"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Release struct {
	Model
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	TagName   string    `json:"tag_name" gorm:"column:tag_name;type:varchar(255);index:idx_tag_name"`
	Content   string    `json:"content" gorm:"column:content;type:mediumtext;not null"`
	RepoID    int64     `json:"repo_id" gorm:"column:repo_id;not null;index:idx_repo_id"`
	Repo      *Repo     `json:"-" gorm:"foreignKey:RepoID;references:ID"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func NewRelease(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Release, error) {
	release := &Release{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return release, nil
}

func (r *Release) TableName() string {
	return "releases"
}

func ReleaseRowsFromMessages(messages []ReleaseMessage) []Release {
	now := time.Now()
	rows := make([]Release, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, Release{
			ID:        msg.ID,
			TagName:   TruncateString(msg.TagName, 250),
			Content:   TruncateString(msg.Content, 65000),
			RepoID:    msg.RepoID,
			CreatedAt: now,
		})
	}
	return rows
}

func ReleaseConflictClause(onConflict string) clause.Expression {
	if onConflict == ConflictSkip {
		return clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}
	}
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tag_name", "content"}),
	}
}

// CreateBatch ghi một lô release trong một transaction với upsert theo id
func (r *Release) CreateBatch(messages []ReleaseMessage, onConflict string) error {
	if len(messages) == 0 {
		return nil
	}

	db, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	rows := ReleaseRowsFromMessages(messages)
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(ReleaseConflictClause(onConflict)).CreateInBatches(rows, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch create releases: %w", result.Error)
		}
		return nil
	})
}
