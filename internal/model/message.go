package model

import "fmt"

// Record là một bản ghi domain với natural key ổn định. Tính duy nhất của
// natural key được đảm bảo ở persistence sink, không phải ở nơi tạo ra record.
type Record interface {
	Key() string
}

// RepoMessage là bản ghi repository thu được từ một trang ranking. Đây cũng là
// cấu trúc gửi tới Kafka và ghi ra file output.
type RepoMessage struct {
	Rank        int    `json:"rank"`
	User        string `json:"user"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Stars       int    `json:"stars"`
	Description string `json:"description"`
	Language    string `json:"language"`
	AvatarUrl   string `json:"avatar_url"`
	RepoUrl     string `json:"repo_url"`
}

func (m RepoMessage) Key() string {
	return m.FullName
}

// ReleaseMessage là bản ghi release note của một repository
type ReleaseMessage struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Content string `json:"content"`
	RepoID  int64  `json:"repo_id"`
}

func (m ReleaseMessage) Key() string {
	return fmt.Sprintf("%d_%d", m.RepoID, m.ID)
}
