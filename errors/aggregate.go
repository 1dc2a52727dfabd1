// Copyright 2023 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package errors

import (
	"strings"
)

// Aggregate represents an object that contains multiple errors.
type Aggregate interface {
	error
	Errors() []error
	Is(error) bool
}

type aggregate []error

// NewAggregate converts a slice of errors into an Aggregate interface. Nil
// errors are dropped, and nil is returned when nothing is left.
func NewAggregate(errlist []error) Aggregate {
	if len(errlist) == 0 {
		return nil
	}
	var errs []error
	for _, e := range errlist {
		if e != nil {
			errs = append(errs, e)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	return aggregate(errs)
}

func (agg aggregate) Error() string {
	if len(agg) == 1 {
		return agg[0].Error()
	}

	seen := make(map[string]struct{}, len(agg))
	msgs := make([]string, 0, len(agg))
	for _, e := range agg {
		msg := e.Error()
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 1 {
		return msgs[0]
	}

	return "[" + strings.Join(msgs, ", ") + "]"
}

func (agg aggregate) Is(target error) bool {
	for _, e := range agg {
		if Is(e, target) {
			return true
		}
	}

	return false
}

func (agg aggregate) Errors() []error {
	return []error(agg)
}
