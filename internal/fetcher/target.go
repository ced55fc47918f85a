package fetcher

// Kind phân biệt target HTML (trang ranking) và target REST API
type Kind int

const (
	KindHtml Kind = iota
	KindApi
)

// Target là một đơn vị công việc crawl: một trang ranking hoặc một trang
// releases của một repository. Bất biến sau khi đưa vào queue.
type Target struct {
	ID     string // Định danh ổn định: số trang hoặc full_name + page
	URL    string
	Order  int // Thứ tự ưu tiên khi enqueue
	Kind   Kind
	RepoID int64 // Chỉ dùng cho target releases, là id của repository trong database
	Page   int
}
