package alloc

import (
	"fmt"

	"github.com/John-Robertt/v2raygen/internal/model"
)

// Default inbound base ports. The n-th parsed server gets base+n on both
// protocol classes.
const (
	DefaultSocksBase = 50001
	DefaultHTTPBase  = 51001
)

const maxPort = 65535

type AllocationError struct {
	AppError model.AppError
	Cause    error
}

func (e *AllocationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *AllocationError) Unwrap() error { return e.Cause }

// Allocate assigns each server a sequential port pair in input order:
// SocksPort = socksBase+i, HTTPPort = httpBase+i. No reordering and no
// deduplication, so the map file stays reproducible across runs.
func Allocate(servers []model.Server, socksBase, httpBase int) ([]model.Allocation, error) {
	if len(servers) == 0 {
		return nil, &AllocationError{
			AppError: model.AppError{
				Code:    "ALLOC_EMPTY",
				Message: "没有任何可用节点可分配端口",
				Stage:   "allocate",
			},
		}
	}

	if err := checkRange("socks", socksBase, len(servers)); err != nil {
		return nil, err
	}
	if err := checkRange("http", httpBase, len(servers)); err != nil {
		return nil, err
	}

	out := make([]model.Allocation, 0, len(servers))
	for i, srv := range servers {
		out = append(out, model.Allocation{
			Index:     i,
			SocksPort: socksBase + i,
			HTTPPort:  httpBase + i,
			Server:    srv,
		})
	}
	return out, nil
}

func checkRange(class string, base, n int) error {
	if base < 1 || base > maxPort {
		return &AllocationError{
			AppError: model.AppError{
				Code:    "ALLOC_PORT_OVERFLOW",
				Message: fmt.Sprintf("%s 起始端口不合法：%d", class, base),
				Stage:   "allocate",
			},
		}
	}
	if base+n-1 > maxPort {
		return &AllocationError{
			AppError: model.AppError{
				Code:    "ALLOC_PORT_OVERFLOW",
				Message: fmt.Sprintf("%s 端口区间越界：%d + %d - 1 > %d", class, base, n, maxPort),
				Stage:   "allocate",
				Hint:    "lower the base port or shorten the subscription",
			},
		}
	}
	return nil
}
