package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

// EventMagic identifies a broadcast event record batch, distinct from a
// visualize record batch's Magic so a decoder never confuses the two
// frame kinds (spec.md §6 "binary frames are columnar IPC with a fixed
// schema whose first column is the event discriminant").
const EventMagic = "IIEV"

const eventColumnCount = 7

// EventRow is one row of a broadcast event record batch. Type is the
// event discriminant (spec.md §4.9: "stats_update", "dots_calculation",
// "user_activity"); the remaining columns are shared across event kinds
// the way the original's unified WebSocketMessage Arrow schema carries
// every message type's fields side by side, with the unused ones left
// zero-valued per row.
type EventRow struct {
	Type             string
	StrengthLevel    string
	DotsScore        float64
	LiftType         string
	ActiveUsers      float64
	TotalConnections float64
	ServerLoad       float64
}

// EncodeEvents flattens rows into the seven-column event schema and
// returns the zstd-compressed wire format, one record batch per
// broadcast (spec.md §4.9).
func EncodeEvents(rows []EventRow) ([]byte, error) {
	body := encodeEventBody(rows)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: new zstd writer: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(body, nil)

	h := header{
		Version:     Version,
		ColumnCount: eventColumnCount,
		RowCount:    uint32(len(rows)),
		Checksum:    crc32.ChecksumIEEE(body),
	}
	copy(h.Magic[:], EventMagic)

	out := make([]byte, 0, HeaderSize+len(compressed))
	out = append(out, encodeHeader(&h)...)
	out = append(out, compressed...)
	return out, nil
}

// DecodeEvents reverses EncodeEvents.
func DecodeEvents(data []byte) ([]EventRow, error) {
	if len(data) < HeaderSize {
		return nil, errors.New("ipc: truncated event frame")
	}
	h, err := decodeHeader(data[:HeaderSize], EventMagic)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: new zstd reader: %w", err)
	}
	defer dec.Close()

	body, err := dec.DecodeAll(data[HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: decompress event body: %w", err)
	}
	if crc32.ChecksumIEEE(body) != h.Checksum {
		return nil, errors.New("ipc: event checksum mismatch")
	}

	return decodeEventBody(body, int(h.RowCount))
}

func encodeEventBody(rows []EventRow) []byte {
	var buf bytes.Buffer

	typeDict, typeIdx := stringColumn(rows, func(r EventRow) string { return r.Type })
	writeStringDict(&buf, typeDict, typeIdx)

	levelDict, levelIdx := stringColumn(rows, func(r EventRow) string { return r.StrengthLevel })
	writeStringDict(&buf, levelDict, levelIdx)

	liftDict, liftIdx := stringColumn(rows, func(r EventRow) string { return r.LiftType })
	writeStringDict(&buf, liftDict, liftIdx)

	writeFloats(&buf, floatColumn(rows, func(r EventRow) float64 { return r.DotsScore }))
	writeFloats(&buf, floatColumn(rows, func(r EventRow) float64 { return r.ActiveUsers }))
	writeFloats(&buf, floatColumn(rows, func(r EventRow) float64 { return r.TotalConnections }))
	writeFloats(&buf, floatColumn(rows, func(r EventRow) float64 { return r.ServerLoad }))

	return buf.Bytes()
}

func decodeEventBody(body []byte, n int) ([]EventRow, error) {
	r := bytes.NewReader(body)

	typeDict, typeIdx, err := readStringDict(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode event type column: %w", err)
	}
	levelDict, levelIdx, err := readStringDict(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode strength_level column: %w", err)
	}
	liftDict, liftIdx, err := readStringDict(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode lift_type column: %w", err)
	}
	dotsScore, err := readFloats(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode dots_score column: %w", err)
	}
	activeUsers, err := readFloats(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode active_users column: %w", err)
	}
	totalConnections, err := readFloats(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode total_connections column: %w", err)
	}
	serverLoad, err := readFloats(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode server_load column: %w", err)
	}

	rows := make([]EventRow, n)
	for i := 0; i < n; i++ {
		rows[i] = EventRow{
			Type:             typeDict[typeIdx[i]],
			StrengthLevel:    levelDict[levelIdx[i]],
			LiftType:         liftDict[liftIdx[i]],
			DotsScore:        dotsScore[i],
			ActiveUsers:      activeUsers[i],
			TotalConnections: totalConnections[i],
			ServerLoad:       serverLoad[i],
		}
	}
	return rows, nil
}

func stringColumn[T any](rows []T, sel func(T) string) ([]string, []byte) {
	dict := []string{""}
	lookup := map[string]byte{"": 0}
	idx := make([]byte, len(rows))
	for i, row := range rows {
		v := sel(row)
		code, ok := lookup[v]
		if !ok {
			code = byte(len(dict))
			lookup[v] = code
			dict = append(dict, v)
		}
		idx[i] = code
	}
	return dict, idx
}

func floatColumn[T any](rows []T, sel func(T) float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = sel(row)
	}
	return out
}

func writeFloats(buf *bytes.Buffer, vals []float64) {
	var b [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}
}

func readFloats(r *bytes.Reader, n int) ([]float64, error) {
	out := make([]float64, n)
	var b [8]byte
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[:]))
	}
	return out, nil
}
