package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

var ErrCorrupt = errors.New("storage: corrupt raw dump")

var rawMagic = [4]byte{'E', 'T', 'R', 'W'}

// WriteHotmap writes one (element, temperature) row per element.
func WriteHotmap(path string, temps []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"element", "temperature"}); err != nil {
		return err
	}
	for i, v := range temps {
		if err := w.Write([]string{strconv.Itoa(i), formatFloat(v)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ReadHotmap(path string) ([]float64, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	temps := make([]float64, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		temps = append(temps, v)
	}
	return temps, nil
}

// ProbeSeries is a sampled probe history: Values[k] holds the probe
// temperatures at Times[k].
type ProbeSeries struct {
	Probes []int       `json:"probes"`
	Times  []float64   `json:"times"`
	Values [][]float64 `json:"values"`
}

func (p *ProbeSeries) Len() int { return len(p.Times) }

func WriteProbes(path string, series *ProbeSeries) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"time"}
	for _, n := range series.Probes {
		header = append(header, fmt.Sprintf("node%d", n))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for k, t := range series.Times {
		row := make([]string, 0, len(series.Probes)+1)
		row = append(row, formatFloat(t))
		for _, v := range series.Values[k] {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ReadProbes(path string) (*ProbeSeries, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	series := &ProbeSeries{}
	if len(records) == 0 {
		return series, nil
	}

	for _, h := range records[0][1:] {
		n, err := strconv.Atoi(strings.TrimPrefix(h, "node"))
		if err != nil || !strings.HasPrefix(h, "node") {
			return nil, fmt.Errorf("%s: bad probe column %q", path, h)
		}
		series.Probes = append(series.Probes, n)
	}

	for i, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for j, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
			}
			vals[j] = v
		}
		series.Times = append(series.Times, vals[0])
		series.Values = append(series.Values, vals[1:])
	}
	return series, nil
}

// WriteRaw stores a rows×cols matrix of float64 as a snappy block preceded by
// a magic and a CRC of the compressed payload.
func WriteRaw(path string, rows [][]float64) error {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}

	var buf bytes.Buffer
	buf.Grow(8 + 8*len(rows)*cols)
	binary.Write(&buf, binary.LittleEndian, uint32(len(rows)))
	binary.Write(&buf, binary.LittleEndian, uint32(cols))
	var word [8]byte
	for i, r := range rows {
		if len(r) != cols {
			return fmt.Errorf("raw dump row %d has %d columns, want %d", i, len(r), cols)
		}
		for _, v := range r {
			binary.LittleEndian.PutUint64(word[:], math.Float64bits(v))
			buf.Write(word[:])
		}
	}

	payload := snappy.Encode(nil, buf.Bytes())
	out := make([]byte, 0, 8+len(payload))
	out = append(out, rawMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(payload))
	out = append(out, payload...)
	return os.WriteFile(path, out, 0644)
}

func ReadRaw(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 || !bytes.Equal(data[:4], rawMagic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	payload := data[8:]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(data[4:8]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: short payload", ErrCorrupt)
	}
	nr := int(binary.LittleEndian.Uint32(raw[0:4]))
	nc := int(binary.LittleEndian.Uint32(raw[4:8]))
	if len(raw) != 8+8*nr*nc {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrCorrupt, len(raw), nr, nc)
	}

	rows := make([][]float64, nr)
	off := 8
	for i := range rows {
		rows[i] = make([]float64, nc)
		for j := range rows[i] {
			rows[i][j] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
			off += 8
		}
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
