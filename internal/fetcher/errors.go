package fetcher

import (
	"errors"
	"fmt"
)

// Taxonomy lỗi của crawler. Phân loại này quyết định target được retry,
// bị bỏ qua, hay làm dừng cả lần chạy — không được nhầm lẫn giữa các nhóm.
var (
	// ErrNotFound: target không còn tồn tại (404/451), bỏ qua và không retry
	ErrNotFound = errors.New("target not found")

	// ErrAuthExhausted: hết quyền truy cập API (401, hoặc 403 khi vẫn còn
	// budget). Fatal cho cả lần chạy chứ không chỉ riêng target.
	ErrAuthExhausted = errors.New("api authentication exhausted")

	// ErrUnexpectedStatus: status lạ, terminal cho riêng target
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// errTransient: lỗi tạm thời (mạng, timeout, 5xx, 429), sẽ được retry
	errTransient = errors.New("transient fetch error")
)

// IsRunFatal cho biết lỗi có làm dừng toàn bộ lần chạy hay không
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrAuthExhausted)
}

// IsTerminalTarget cho biết target có bị loại vĩnh viễn hay không
func IsTerminalTarget(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnexpectedStatus)
}

func transientErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errTransient, fmt.Sprintf(format, args...))
}
