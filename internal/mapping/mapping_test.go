package mapping

import (
	"encoding/csv"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/John-Robertt/v2raygen/internal/model"
)

func testAllocs(n int) []model.Allocation {
	allocs := make([]model.Allocation, n)
	for i := range allocs {
		allocs[i] = model.Allocation{
			Index:     i,
			SocksPort: 50001 + i,
			HTTPPort:  51001 + i,
			Server: model.Server{
				Address: fmt.Sprintf("10.0.0.%d", i+1),
				Port:    443,
				ID:      fmt.Sprintf("id-%d", i),
				Alias:   fmt.Sprintf("node %d", i),
			},
		}
	}
	return allocs
}

func TestRenderCSV(t *testing.T) {
	b, err := RenderCSV(testAllocs(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	if err != nil {
		t.Fatalf("re-read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records=%d, want=4 (header + 3 rows)", len(records))
	}
	wantHeader := []string{"index", "socks_port", "http_port", "address", "port", "alias"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("header=%v, want=%v", records[0], wantHeader)
	}
	if !reflect.DeepEqual(records[1], []string{"0", "50001", "51001", "10.0.0.1", "443", "node 0"}) {
		t.Fatalf("row 0=%v", records[1])
	}
	if records[3][0] != "2" {
		t.Fatalf("row order broken: last row index=%q", records[3][0])
	}
}

func TestRenderJSON_KeyOrderAscending(t *testing.T) {
	// 12 allocations force two-digit keys; lexicographic order would put
	// "10" before "2".
	b, err := RenderJSON(testAllocs(12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(b)
	prev := -1
	for i := 0; i < 12; i++ {
		pos := strings.Index(s, strconv.Quote(strconv.Itoa(i))+":")
		if pos < 0 {
			t.Fatalf("key %d missing", i)
		}
		if pos < prev {
			t.Fatalf("key %d appears before key %d", i, i-1)
		}
		prev = pos
	}
}

func TestRenderJSON_MatchesCSV(t *testing.T) {
	allocs := testAllocs(4)

	jb, err := RenderJSON(allocs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]Row
	if err := json.Unmarshal(jb, &decoded); err != nil {
		t.Fatalf("re-read json: %v", err)
	}
	if len(decoded) != 4 {
		t.Fatalf("json entries=%d, want=4", len(decoded))
	}

	cb, err := RenderCSV(allocs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(cb))).ReadAll()
	if err != nil {
		t.Fatalf("re-read csv: %v", err)
	}

	for _, rec := range records[1:] {
		row, ok := decoded[rec[0]]
		if !ok {
			t.Fatalf("csv index %q missing from json", rec[0])
		}
		if strconv.Itoa(row.SocksPort) != rec[1] || strconv.Itoa(row.HTTPPort) != rec[2] {
			t.Fatalf("port mismatch for index %q: json=%+v csv=%v", rec[0], row, rec)
		}
		if row.Address != rec[3] || strconv.Itoa(row.Port) != rec[4] || row.Alias != rec[5] {
			t.Fatalf("field mismatch for index %q: json=%+v csv=%v", rec[0], row, rec)
		}
	}
}

func TestRenderJSON_Empty(t *testing.T) {
	b, err := RenderJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]Row
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("re-read json: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("entries=%d, want=0", len(decoded))
	}
}
