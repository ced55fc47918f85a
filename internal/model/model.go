package model

import (
	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// OnConflict mode khi ghi bản ghi trùng natural key
const (
	ConflictUpsert = "upsert" // Làm mới dữ liệu cũ
	ConflictSkip   = "skip"   // Giữ bản ghi first-seen
)

type Model struct {
	Config *cfg.Config `gorm:"-" json:"-"`
	Logger log.Logger  `gorm:"-" json:"-"`
	Mysql  *db.Mysql   `gorm:"-" json:"-"`
}

// TruncateString cắt chuỗi xuống độ dài tối đa cho phép
// nếu chuỗi dài hơn giới hạn
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength]
}
