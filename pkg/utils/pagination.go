package utils

import (
	"fmt"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is an offset/limit window over a result set.
type Page struct {
	Skip  int
	Limit int
}

// NewPage clamps skip to >= 0 and limit to [1, MaxLimit], defaulting to DefaultLimit.
func NewPage(skip, limit int) Page {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Skip: skip, Limit: limit}
}

// ParsePage reads skip/limit query values. Empty values take the defaults;
// anything non-numeric or outside skip >= 0, 1 <= limit <= MaxLimit is an error.
func ParsePage(skip, limit string) (Page, error) {
	p := Page{Skip: 0, Limit: DefaultLimit}
	if skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("skip must be an integer >= 0")
		}
		p.Skip = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > MaxLimit {
			return Page{}, fmt.Errorf("limit must be an integer between 1 and %d", MaxLimit)
		}
		p.Limit = n
	}
	return p, nil
}
