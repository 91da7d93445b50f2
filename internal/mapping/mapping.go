// Package mapping renders the allocation list in two interchangeable
// encodings: a CSV table and a JSON object keyed by sequence index. Both
// carry the same fields in the same (ascending index) order.
package mapping

import (
	"bytes"
	"encoding/csv"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/John-Robertt/v2raygen/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Row is one allocation in export form. JSON field names double as the CSV
// header.
type Row struct {
	Index     int    `json:"index"`
	SocksPort int    `json:"socks_port"`
	HTTPPort  int    `json:"http_port"`
	Address   string `json:"address"`
	Port      int    `json:"port"`
	Alias     string `json:"alias"`
}

var csvHeader = []string{"index", "socks_port", "http_port", "address", "port", "alias"}

func Rows(allocs []model.Allocation) []Row {
	rows := make([]Row, 0, len(allocs))
	for _, a := range allocs {
		rows = append(rows, Row{
			Index:     a.Index,
			SocksPort: a.SocksPort,
			HTTPPort:  a.HTTPPort,
			Address:   a.Server.Address,
			Port:      a.Server.Port,
			Alias:     a.Server.Alias,
		})
	}
	return rows
}

// RenderCSV emits the header row followed by one record per allocation in
// ascending index order.
func RenderCSV(allocs []model.Allocation) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range Rows(allocs) {
		rec := []string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.SocksPort),
			strconv.Itoa(r.HTTPPort),
			r.Address,
			strconv.Itoa(r.Port),
			r.Alias,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderJSON emits an object keyed by decimal index. The object is assembled
// by hand because a map would marshal its keys in lexicographic order
// ("10" before "2"), and the key order must match the CSV row order.
func RenderJSON(allocs []model.Allocation) ([]byte, error) {
	rows := Rows(allocs)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  ")
		buf.WriteString(strconv.Quote(strconv.Itoa(r.Index)))
		buf.WriteString(": ")
		v, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	if len(rows) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
