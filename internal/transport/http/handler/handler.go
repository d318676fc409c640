package handler

import (
	"strings"
	"time"

	"dictat/internal/domain"
	"dictat/internal/transport/http/ez"
)

// 列表类接口共用的分页参数
type pageQuery struct {
	Offset int `form:"offset,default=0" binding:"min=0"`
	Limit  int `form:"limit,default=20" binding:"min=0,max=100"`
}

// 时间区间参数，RFC3339
type rangeQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

func (q rangeQuery) parse() (from, to *time.Time, err error) {
	if from, err = parseTime("from", q.From); err != nil {
		return nil, nil, err
	}
	if to, err = parseTime("to", q.To); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, domain.NewValidationError("to", "must not be before from")
	}
	return from, to, nil
}

func parseTime(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, ez.BadRequest(field + " must be RFC3339")
	}
	return &t, nil
}
