package storage

import (
	"fmt"
	"regexp"
	"strconv"

	"dictat/internal/domain"
)

var rangeRe = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// ParseRange 解析单段 "bytes=start-[end]"；缺省 end 表示到文件末尾。
// 语法错误与越界都返回 ErrRangeNotSatisfiable
func ParseRange(header string, size int64) (start, end int64, err error) {
	m := rangeRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, fmt.Errorf("malformed range %q: %w", header, domain.ErrRangeNotSatisfiable)
	}
	start, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("range start: %w", domain.ErrRangeNotSatisfiable)
	}
	end = size - 1
	if m[2] != "" {
		end, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("range end: %w", domain.ErrRangeNotSatisfiable)
		}
	}
	if start < 0 || end >= size || start > end {
		return 0, 0, fmt.Errorf("range %d-%d of %d: %w", start, end, size, domain.ErrRangeNotSatisfiable)
	}
	return start, end, nil
}
