// Package ipc implements the columnar record-batch framing from
// spec.md §4.8: a fixed header followed by a zstd-compressed,
// column-striped body, modeled on the teacher's V13 segment format
// (internal/store/format.go) rather than an Arrow implementation — no
// columnar IPC library appears anywhere in the retrieved example pack.
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

	"github.com/ironinsights/iron-insights/internal/vector"
)

const (
	// Magic identifies an Iron Insights record batch, the counterpart to
	// the teacher's "PSV3" V13Magic.
	Magic      = "IIRB"
	Version    = 1
	HeaderSize = 64
)

// dataType is the discriminant carried in the batch's first column.
type dataType uint8

const (
	dataTypeRawHistogram dataType = iota
	dataTypeDotsHistogram
	dataTypeRawScatter
	dataTypeDotsScatter
)

var dataTypeNames = [...]string{"raw_histogram", "dots_histogram", "raw_scatter", "dots_scatter"}

func (d dataType) String() string { return dataTypeNames[d] }

// header is the batch's fixed-size preamble, encoded/decoded the same
// byte-for-byte way as the teacher's V13Header.
type header struct {
	Magic       [4]byte
	Version     uint16
	ColumnCount uint16
	RowCount    uint32
	Checksum    uint32
	Reserved    [46]byte
}

func encodeHeader(h *header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.ColumnCount)
	binary.LittleEndian.PutUint32(buf[8:12], h.RowCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.Checksum)
	copy(buf[16:64], h.Reserved[:])
	return buf
}

func decodeHeader(buf []byte, wantMagic string) (*header, error) {
	if len(buf) < HeaderSize {
		return nil, errors.New("ipc: header too short")
	}
	h := &header{}
	copy(h.Magic[:], buf[0:4])
	if string(h.Magic[:]) != wantMagic {
		return nil, fmt.Errorf("ipc: invalid magic %q", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	if h.Version != Version {
		return nil, fmt.Errorf("ipc: unsupported version %d", h.Version)
	}
	h.ColumnCount = binary.LittleEndian.Uint16(buf[6:8])
	h.RowCount = binary.LittleEndian.Uint32(buf[8:12])
	h.Checksum = binary.LittleEndian.Uint32(buf[12:16])
	copy(h.Reserved[:], buf[16:64])
	return h, nil
}

const columnCount = 7

// row is one flattened output row across the seven-column schema from
// spec.md §4.8; exactly one of the histogram or scatter fields is
// meaningful per data_type.
type row struct {
	dataType   dataType
	histValue  float64
	histCount  float64
	histBin    float64
	scatterX   float64
	scatterY   float64
	scatterSex string // "" for histogram rows
}

// Encode flattens payload into the seven-column schema, grouped by
// data_type in raw_histogram, dots_histogram, raw_scatter, dots_scatter
// order, and returns the zstd-compressed wire format (spec.md §4.8).
func Encode(payload *vector.Payload) ([]byte, error) {
	rows := make([]row, 0, len(payload.RawHistogram)+len(payload.DotsHistogram)+len(payload.RawScatter)+len(payload.DotsScatter))

	for _, b := range payload.RawHistogram {
		rows = append(rows, row{dataType: dataTypeRawHistogram, histValue: b.Value, histCount: float64(b.Count), histBin: b.BinLo})
	}
	for _, b := range payload.DotsHistogram {
		rows = append(rows, row{dataType: dataTypeDotsHistogram, histValue: b.Value, histCount: float64(b.Count), histBin: b.BinLo})
	}
	for _, s := range payload.RawScatter {
		rows = append(rows, row{dataType: dataTypeRawScatter, scatterX: s.X, scatterY: s.Y, scatterSex: s.Sex})
	}
	for _, s := range payload.DotsScatter {
		rows = append(rows, row{dataType: dataTypeDotsScatter, scatterX: s.X, scatterY: s.Y, scatterSex: s.Sex})
	}

	body, err := encodeBody(rows)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: new zstd writer: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(body, nil)

	h := header{
		Version:     Version,
		ColumnCount: columnCount,
		RowCount:    uint32(len(rows)),
		Checksum:    crc32.ChecksumIEEE(body),
	}
	copy(h.Magic[:], Magic)

	out := make([]byte, 0, HeaderSize+len(compressed))
	out = append(out, encodeHeader(&h)...)
	out = append(out, compressed...)
	return out, nil
}

// Decode reverses Encode, reconstructing the same histogram and scatter
// arrays in the same order (spec.md §8's round-trip invariant).
func Decode(data []byte) (*vector.Payload, error) {
	if len(data) < HeaderSize {
		return nil, errors.New("ipc: truncated frame")
	}
	h, err := decodeHeader(data[:HeaderSize], Magic)
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
		return nil, fmt.Errorf("ipc: decompress body: %w", err)
	}
	if crc32.ChecksumIEEE(body) != h.Checksum {
		return nil, errors.New("ipc: checksum mismatch")
	}

	rows, err := decodeBody(body, int(h.RowCount))
	if err != nil {
		return nil, err
	}

	payload := &vector.Payload{}
	for _, r := range rows {
		switch r.dataType {
		case dataTypeRawHistogram:
			payload.RawHistogram = append(payload.RawHistogram, vector.HistBin{BinLo: r.histBin, Value: r.histValue, Count: int(r.histCount)})
		case dataTypeDotsHistogram:
			payload.DotsHistogram = append(payload.DotsHistogram, vector.HistBin{BinLo: r.histBin, Value: r.histValue, Count: int(r.histCount)})
		case dataTypeRawScatter:
			payload.RawScatter = append(payload.RawScatter, vector.ScatterPoint{X: r.scatterX, Y: r.scatterY, Sex: r.scatterSex})
		case dataTypeDotsScatter:
			payload.DotsScatter = append(payload.DotsScatter, vector.ScatterPoint{X: r.scatterX, Y: r.scatterY, Sex: r.scatterSex})
		default:
			return nil, fmt.Errorf("ipc: unknown data_type %d", r.dataType)
		}
	}
	return payload, nil
}

// encodeBody stripes the seven columns one after another (all
// data_type values, then all hist_values, ...), matching the teacher's
// byte-striping in V13's key-suffix and value-var sections. String
// columns are dictionary coded: a small table of distinct values
// followed by one uint8 index per row.
func encodeBody(rows []row) ([]byte, error) {
	var buf bytes.Buffer

	dataTypeIdx := make([]byte, len(rows))
	for i, r := range rows {
		dataTypeIdx[i] = byte(r.dataType)
	}
	writeStringDict(&buf, dataTypeNames[:], dataTypeIdx)

	writeFloatColumn(&buf, rows, func(r row) float64 { return r.histValue })
	writeFloatColumn(&buf, rows, func(r row) float64 { return r.histCount })
	writeFloatColumn(&buf, rows, func(r row) float64 { return r.histBin })
	writeFloatColumn(&buf, rows, func(r row) float64 { return r.scatterX })
	writeFloatColumn(&buf, rows, func(r row) float64 { return r.scatterY })

	sexDict, sexIdx := buildSexDict(rows)
	writeStringDict(&buf, sexDict, sexIdx)

	return buf.Bytes(), nil
}

func decodeBody(body []byte, n int) ([]row, error) {
	r := bytes.NewReader(body)

	dataTypeNamesOut, dataTypeIdx, err := readStringDict(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode data_type column: %w", err)
	}

	histValue, err := readFloatColumn(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode hist_values column: %w", err)
	}
	histCount, err := readFloatColumn(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode hist_counts column: %w", err)
	}
	histBin, err := readFloatColumn(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode hist_bins column: %w", err)
	}
	scatterX, err := readFloatColumn(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode scatter_x column: %w", err)
	}
	scatterY, err := readFloatColumn(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode scatter_y column: %w", err)
	}

	sexDict, sexIdx, err := readStringDict(r, n)
	if err != nil {
		return nil, fmt.Errorf("ipc: decode scatter_sex column: %w", err)
	}

	rows := make([]row, n)
	for i := 0; i < n; i++ {
		dt, err := parseDataType(dataTypeNamesOut[dataTypeIdx[i]])
		if err != nil {
			return nil, err
		}
		rows[i] = row{
			dataType:   dt,
			histValue:  histValue[i],
			histCount:  histCount[i],
			histBin:    histBin[i],
			scatterX:   scatterX[i],
			scatterY:   scatterY[i],
			scatterSex: sexDict[sexIdx[i]],
		}
	}
	return rows, nil
}

func parseDataType(s string) (dataType, error) {
	for i, name := range dataTypeNames {
		if name == s {
			return dataType(i), nil
		}
	}
	return 0, fmt.Errorf("ipc: unknown data_type %q", s)
}

func buildSexDict(rows []row) ([]string, []byte) {
	dict := []string{""}
	lookup := map[string]byte{"": 0}
	idx := make([]byte, len(rows))
	for i, r := range rows {
		code, ok := lookup[r.scatterSex]
		if !ok {
			code = byte(len(dict))
			lookup[r.scatterSex] = code
			dict = append(dict, r.scatterSex)
		}
		idx[i] = code
	}
	return dict, idx
}

func writeStringDict(buf *bytes.Buffer, dict []string, idx []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(dict)))
	buf.Write(lenBuf[:])
	for _, s := range dict {
		var slen [2]byte
		binary.LittleEndian.PutUint16(slen[:], uint16(len(s)))
		buf.Write(slen[:])
		buf.WriteString(s)
	}
	buf.Write(idx)
}

func readStringDict(r *bytes.Reader, n int) ([]string, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	dictLen := binary.LittleEndian.Uint32(lenBuf[:])

	dict := make([]string, dictLen)
	for i := range dict {
		var slen [2]byte
		if _, err := io.ReadFull(r, slen[:]); err != nil {
			return nil, nil, err
		}
		l := binary.LittleEndian.Uint16(slen[:])
		s := make([]byte, l)
		if _, err := io.ReadFull(r, s); err != nil {
			return nil, nil, err
		}
		dict[i] = string(s)
	}

	idx := make([]byte, n)
	if _, err := io.ReadFull(r, idx); err != nil {
		return nil, nil, err
	}
	return dict, idx, nil
}

func writeFloatColumn(buf *bytes.Buffer, rows []row, sel func(row) float64) {
	var b [8]byte
	for _, r := range rows {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(sel(r)))
		buf.Write(b[:])
	}
}

func readFloatColumn(r *bytes.Reader, n int) ([]float64, error) {
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
