package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/John-Robertt/v2raygen/internal/model"
)

const stage = "fetch_sub"

type Options struct {
	Timeout      time.Duration // default 15s
	MaxBytes     int64         // default 5 MiB
	MaxRedirects int           // default 5
}

type FetchError struct {
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// Subscription downloads the raw (still base64-encoded) subscription blob.
// Decoding is the Decoder's job; this only enforces transport-level limits.
func Subscription(ctx context.Context, rawURL string) ([]byte, error) {
	return SubscriptionWithOptions(ctx, rawURL, Options{})
}

func SubscriptionWithOptions(ctx context.Context, rawURL string, opt Options) ([]byte, error) {
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRedirects := opt.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}
	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = 5 * 1024 * 1024
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "仅允许 http/https URL",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: errors.Join(errInvalidURLOrScheme, err),
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "请求 URL 不合法",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if errors.Is(err, errTooManyRedirects) {
			return nil, &FetchError{
				AppError: model.AppError{
					Code:    "FETCH_FAILED",
					Message: fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects),
					Stage:   stage,
					URL:     rawURL,
				},
				Cause: err,
			}
		}
		if errors.Is(err, errRedirectBadScheme) {
			return nil, &FetchError{
				AppError: model.AppError{
					Code:    "INVALID_ARGUMENT",
					Message: "重定向目标仅允许 http/https",
					Stage:   stage,
					URL:     rawURL,
				},
				Cause: err,
			}
		}
		if isTimeout(err) {
			return nil, &FetchError{
				AppError: model.AppError{
					Code:    "FETCH_TIMEOUT",
					Message: "拉取订阅超时",
					Stage:   stage,
					URL:     rawURL,
				},
				Cause: err,
			}
		}

		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: "拉取订阅失败",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode),
				Stage:   stage,
				URL:     rawURL,
			},
		}
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, &FetchError{
				AppError: model.AppError{
					Code:    "FETCH_TIMEOUT",
					Message: "拉取订阅超时",
					Stage:   stage,
					URL:     rawURL,
				},
				Cause: err,
			}
		}
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: "读取上游响应失败",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	if int64(len(body)) > maxBytes {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "TOO_LARGE",
				Message: fmt.Sprintf("订阅内容过大（>%d bytes）", maxBytes),
				Stage:   stage,
				URL:     rawURL,
			},
		}
	}

	return body, nil
}

// isTimeout covers both net.Error timeouts and context deadline expiry; Go
// wraps them differently depending on where the deadline fired.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
