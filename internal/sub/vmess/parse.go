package vmess

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/John-Robertt/v2raygen/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const scheme = "vmess://"

// DecodeError means the subscription blob itself is unusable. It is fatal to
// the whole run, unlike ParseError which only skips one node.
type DecodeError struct {
	AppError model.AppError
	Cause    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ParseError means one node URI is malformed. The caller records it as a skip
// and continues with the remaining nodes.
type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Skip records one node URI that failed to parse.
type Skip struct {
	Line    int
	Snippet string
	Err     error
}

// DecodeSubscription turns the base64 subscription blob into the ordered list
// of node URI lines. Percent-escapes in each line are decoded, matching what
// subscription providers emit for the "ps" field.
func DecodeSubscription(sourceURL, content string) ([]string, error) {
	s := stripUTF8BOM(content)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newDecodeError(sourceURL, "", "SUB_DECODE_ERROR", "订阅内容为空", nil)
	}

	b, err := decodeB64(removeSpaceTabCRLF(s))
	if err != nil {
		return nil, newDecodeError(sourceURL, truncateSnippet(s, 200), "SUB_DECODE_ERROR", "订阅 base64 解码失败", err)
	}
	if !utf8.Valid(b) {
		return nil, newDecodeError(sourceURL, truncateSnippet(s, 200), "SUB_DECODE_ERROR", "订阅解码结果不是合法 UTF-8", nil)
	}

	lines := strings.Split(string(b), "\n")
	uris := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(line); err == nil {
			line = unescaped
		}
		uris = append(uris, line)
	}
	if len(uris) == 0 {
		return nil, newDecodeError(sourceURL, "", "SUB_DECODE_ERROR", "订阅中没有任何节点行", nil)
	}
	return uris, nil
}

// ParseURI parses one vmess:// URI into a Server. lineNo is 1-based and only
// used for error reporting.
func ParseURI(sourceURL string, lineNo int, uri string) (model.Server, error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return model.Server{}, newParseError(sourceURL, lineNo, truncateSnippet(uri, 200), "仅支持 vmess:// 协议", "expected: vmess://...", nil)
	}
	if rest == "" {
		return model.Server{}, newParseError(sourceURL, lineNo, truncateSnippet(uri, 200), "vmess:// 后缺少内容", "", nil)
	}

	b, err := decodeB64(rest)
	if err != nil {
		return model.Server{}, newParseError(sourceURL, lineNo, truncateSnippet(uri, 200), "节点 base64 解码失败", "", err)
	}
	if !utf8.Valid(b) {
		return model.Server{}, newParseError(sourceURL, lineNo, truncateSnippet(uri, 200), "节点解码结果不是合法 UTF-8", "", nil)
	}

	var raw rawNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return model.Server{}, newParseError(sourceURL, lineNo, truncateSnippet(uri, 200), "节点 JSON 解析失败", "", err)
	}

	srv, err := raw.toServer()
	if err != nil {
		return model.Server{}, newParseError(sourceURL, lineNo, truncateSnippet(uri, 200), "节点字段不合法", "required: add, port, id", err)
	}
	return srv, nil
}

// ParseSubscription decodes the subscription and parses every node URI.
// Malformed URIs are returned as skips; only a subscription-level decode
// failure is an error.
func ParseSubscription(sourceURL, content string) ([]model.Server, []Skip, error) {
	uris, err := DecodeSubscription(sourceURL, content)
	if err != nil {
		return nil, nil, err
	}
	servers, skips := ParseURIs(sourceURL, uris)
	return servers, skips, nil
}

// ParseURIs parses each URI in order, collecting failures as skips so that
// one bad node never blocks the rest of the subscription.
func ParseURIs(sourceURL string, uris []string) ([]model.Server, []Skip) {
	servers := make([]model.Server, 0, len(uris))
	var skips []Skip
	for i, uri := range uris {
		srv, err := ParseURI(sourceURL, i+1, uri)
		if err != nil {
			skips = append(skips, Skip{Line: i + 1, Snippet: truncateSnippet(uri, 200), Err: err})
			continue
		}
		servers = append(servers, srv)
	}
	return servers, skips
}

// rawNode mirrors the vmess share-link JSON payload. Port and AlterID are
// `any` because subscriptions emit them as either numbers or strings.
type rawNode struct {
	Ps   string  `json:"ps"`
	Add  string  `json:"add"`
	Port any     `json:"port"`
	ID   string  `json:"id"`
	Aid  any     `json:"aid"`
	Scy  string  `json:"scy"`
	Net  string  `json:"net"`
	Type string  `json:"type"`
	Host string  `json:"host"`
	Path string  `json:"path"`
	TLS  string  `json:"tls"`
	SNI  string  `json:"sni"`
	ALPN string  `json:"alpn"`
	Mux  *rawMux `json:"mux"`
}

type rawMux struct {
	Enabled     bool `json:"enabled"`
	Concurrency int  `json:"concurrency"`
}

func (r rawNode) toServer() (model.Server, error) {
	addr := strings.TrimSpace(r.Add)
	if addr == "" {
		return model.Server{}, errors.New("missing add")
	}

	port, err := coerceInt(r.Port)
	if err != nil {
		return model.Server{}, fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return model.Server{}, fmt.Errorf("port out of range: %d", port)
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		return model.Server{}, errors.New("missing id")
	}

	alterID := 0
	if r.Aid != nil {
		alterID, err = coerceInt(r.Aid)
		if err != nil {
			return model.Server{}, fmt.Errorf("invalid aid: %w", err)
		}
	}

	alias := strings.TrimSpace(r.Ps)
	if alias == "" {
		alias = fmt.Sprintf("%s:%d", addr, port)
	}

	network := strings.TrimSpace(r.Net)
	if network == "" {
		network = "tcp"
	}
	security := strings.TrimSpace(r.Scy)
	if security == "" {
		security = "auto"
	}
	tls := strings.TrimSpace(r.TLS)
	if tls == "" {
		tls = "none"
	}

	srv := model.Server{
		Address:    addr,
		Port:       port,
		ID:         id,
		Alias:      alias,
		Network:    network,
		TLS:        tls,
		Host:       strings.TrimSpace(r.Host),
		Path:       r.Path,
		SNI:        strings.TrimSpace(r.SNI),
		ALPN:       strings.TrimSpace(r.ALPN),
		HeaderType: strings.TrimSpace(r.Type),
		AlterID:    alterID,
		Security:   security,
	}
	if r.Mux != nil {
		srv.MuxEnabled = r.Mux.Enabled
		srv.MuxConcurrency = r.Mux.Concurrency
	}
	return srv, nil
}

// coerceInt accepts the number/string duality of vmess payload fields.
func coerceInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New("missing value")
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, err
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// decodeB64 restores missing '=' padding ((4 - len%4) % 4 characters) and
// decodes with the standard alphabet, falling back to URL-safe.
func decodeB64(s string) ([]byte, error) {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	b, err2 := base64.URLEncoding.DecodeString(s)
	if err2 == nil {
		return b, nil
	}
	return nil, err
}

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, string(rune(0xFEFF)))
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func newDecodeError(sourceURL, snippet, code, message string, cause error) error {
	return &DecodeError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "decode_sub",
			URL:     sourceURL,
			Snippet: snippet,
		},
		Cause: cause,
	}
}

func newParseError(sourceURL string, lineNo int, snippet, message, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    "NODE_PARSE_ERROR",
			Message: message,
			Stage:   "parse_node",
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
