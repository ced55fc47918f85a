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

type Repo struct {
	Model
	ID          int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	User        string    `json:"user" gorm:"column:user;type:varchar(255);not null"`
	Name        string    `json:"name" gorm:"column:name;type:varchar(255);not null"`
	FullName    string    `json:"full_name" gorm:"column:full_name;type:varchar(255);not null;uniqueIndex:unique_full_name"`
	Rank        int       `json:"rank" gorm:"column:rank;index:idx_rank"`
	Stars       int       `json:"stars" gorm:"column:stars;default:0;index:idx_stars"`
	Description string    `json:"description" gorm:"column:description;type:text"`
	Language    string    `json:"language" gorm:"column:language;type:varchar(100);index:idx_language"`
	AvatarUrl   string    `json:"avatar_url" gorm:"column:avatar_url;type:text"`
	RepoUrl     string    `json:"repo_url" gorm:"column:repo_url;type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

func NewRepo(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Repo, error) {
	repo := &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return repo, nil
}

func (r *Repo) TableName() string {
	return "repositories"
}

// RowsFromMessages chuyển record đã crawl thành row để ghi vào database
func RepoRowsFromMessages(messages []RepoMessage) []Repo {
	now := time.Now()
	rows := make([]Repo, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, Repo{
			User:        TruncateString(msg.User, 250),
			Name:        TruncateString(msg.Name, 250),
			FullName:    TruncateString(msg.FullName, 250),
			Rank:        msg.Rank,
			Stars:       msg.Stars,
			Description: TruncateString(msg.Description, 65000),
			Language:    TruncateString(msg.Language, 100),
			AvatarUrl:   msg.AvatarUrl,
			RepoUrl:     msg.RepoUrl,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return rows
}

// RepoConflictClause trả về clause xử lý trùng full_name theo cấu hình
func RepoConflictClause(onConflict string) clause.Expression {
	if onConflict == ConflictSkip {
		return clause.OnConflict{
			Columns:   []clause.Column{{Name: "full_name"}},
			DoNothing: true,
		}
	}
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "full_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"rank", "stars", "description", "language", "avatar_url", "repo_url", "updated_at"}),
	}
}

// CreateBatch ghi một lô repository trong một transaction với upsert theo
// full_name. Gọi lại với cùng một lô là an toàn.
func (r *Repo) CreateBatch(messages []RepoMessage, onConflict string) error {
	if len(messages) == 0 {
		return nil
	}

	db, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	rows := RepoRowsFromMessages(messages)
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(RepoConflictClause(onConflict)).CreateInBatches(rows, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch create repositories: %w", result.Error)
		}
		return nil
	})
}

// FindAll trả về toàn bộ repository theo thứ tự rank, dùng làm đầu vào cho
// pipeline crawl releases
func (r *Repo) FindAll(limit int) ([]Repo, error) {
	db, err := r.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var repos []Repo
	query := db.Order("`rank` asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to load repositories: %w", err)
	}
	return repos, nil
}
