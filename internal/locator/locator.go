// Package locator tìm trang hợp lệ cuối cùng của một tài nguyên phân trang.
// Trang ranking trả 200 kèm nội dung rỗng cho trang ngoài phạm vi, nên probe
// phải phân loại theo nội dung chứ không chỉ theo HTTP status.
package locator

import (
	"context"
	"fmt"
)

// ProbeResult là kết quả thăm dò một trang
type ProbeResult int

const (
	PageExists ProbeResult = iota
	PageEmpty
)

// ProbeFunc thăm dò một trang. Lỗi transient đã được fetch client retry từ
// trước, nên lỗi trả về ở đây là thật sự không phân giải được — locator
// không bao giờ coi lỗi là ranh giới.
type ProbeFunc func(ctx context.Context, page int) (ProbeResult, error)

// Locate tìm trang hợp lệ cuối cùng bằng hai pha: nhân đôi hi (1,2,4,8,...)
// cho đến khi probe trả về trang rỗng, rồi binary search ranh giới trong
// [lo, hi]. Tổng số probe là O(log N). maxPages là chặn trên an toàn.
func Locate(ctx context.Context, probe ProbeFunc, maxPages int) (int, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	// Pha 1: tăng trưởng lũy thừa
	lo := 0 // Trang hợp lệ cuối cùng đã biết (0 = chưa có trang nào)
	hi := 1
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		result, err := probe(ctx, hi)
		if err != nil {
			return 0, fmt.Errorf("probe page %d: %w", hi, err)
		}

		if result == PageEmpty {
			break
		}

		lo = hi
		if hi >= maxPages {
			// Chạm chặn trên mà vẫn còn dữ liệu
			return maxPages, nil
		}
		hi *= 2
		if hi > maxPages {
			hi = maxPages
		}
	}

	// Pha 2: binary search ranh giới exists -> empty trong (lo, hi)
	for hi-lo > 1 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		mid := lo + (hi-lo)/2
		result, err := probe(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("probe page %d: %w", mid, err)
		}

		if result == PageExists {
			lo = mid
		} else {
			hi = mid
		}
	}

	return lo, nil
}
