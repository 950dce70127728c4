package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/edsrzf/mmap-go"
)

// MMapWriter writes the snapshot layout straight into a mapped file. The
// mapping must be sized with encodedSize beforehand.
type MMapWriter struct {
	data   mmap.MMap
	offset int
}

func NewMMapWriter(data mmap.MMap) *MMapWriter {
	return &MMapWriter{data: data}
}

func (w *MMapWriter) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.data[w.offset:], v)
	w.offset += 4
}

func (w *MMapWriter) WriteFloat64(v float64) {
	binary.LittleEndian.PutUint64(w.data[w.offset:], math.Float64bits(v))
	w.offset += 8
}

func (w *MMapWriter) WriteByte(b byte) error {
	w.data[w.offset] = b
	w.offset++
	return nil
}

func (w *MMapWriter) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	copy(w.data[w.offset:], s)
	w.offset += len(s)
}

func (w *MMapWriter) writeRecord(r cluster.Record) {
	for _, f := range recordFields(&r) {
		w.WriteString(*f)
	}
	w.WriteByte(flagsOf(r))
	for _, p := range []*cluster.Point{r.Origin, r.Destination} {
		if p != nil {
			w.WriteFloat64(p.X)
			w.WriteFloat64(p.Y)
		}
	}
}

// MMapReader reads the snapshot layout from a mapped file. Reads past the
// end of the mapping set Err and return zero values.
type MMapReader struct {
	data   mmap.MMap
	offset int
	Err    error
}

func NewMMapReader(data mmap.MMap) *MMapReader {
	return &MMapReader{data: data}
}

func (r *MMapReader) take(n int) []byte {
	if r.Err != nil {
		return nil
	}
	if n < 0 || r.offset+n > len(r.data) {
		r.Err = fmt.Errorf("%w: read of %d bytes at offset %d past end %d", ErrBadFormat, n, r.offset, len(r.data))
		return nil
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b
}

func (r *MMapReader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *MMapReader) ReadFloat64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return float64frombits(b)
}

func (r *MMapReader) ReadByte() (byte, error) {
	b := r.take(1)
	if b == nil {
		return 0, r.Err
	}
	return b[0], nil
}

// ReadString copies the string out of the mapping, which is unmapped once
// loading finishes.
func (r *MMapReader) ReadString() string {
	n := r.ReadUint32()
	if n > maxStringLen {
		r.Err = fmt.Errorf("%w: string length %d", ErrBadFormat, n)
		return ""
	}
	return string(r.take(int(n)))
}

func (r *MMapReader) readPoint() *cluster.Point {
	p := cluster.Point{X: r.ReadFloat64(), Y: r.ReadFloat64()}
	if r.Err != nil {
		return nil
	}
	return &p
}

func (r *MMapReader) readRecord() cluster.Record {
	var rec cluster.Record
	for _, f := range recordFields(&rec) {
		*f = r.ReadString()
	}
	flags, _ := r.ReadByte()
	if flags&hasOrigin != 0 {
		rec.Origin = r.readPoint()
	}
	if flags&hasDestination != 0 {
		rec.Destination = r.readPoint()
	}
	return rec
}

func saveMMap(filename, slug string, records []cluster.Record) error {
	size := encodedSize(slug, records)

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}

	mmapData, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to mmap file: %w", err)
	}
	defer mmapData.Unmap()

	writer := NewMMapWriter(mmapData)
	writer.WriteUint32(formatVersion)
	writer.WriteString(slug)
	writer.WriteUint32(uint32(len(records)))
	for _, r := range records {
		writer.writeRecord(r)
	}

	if err := mmapData.Flush(); err != nil {
		return fmt.Errorf("failed to flush mmap: %w", err)
	}
	return nil
}

func loadMMap(filename string) (string, []cluster.Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() == 0 {
		return "", nil, fmt.Errorf("%w: empty file", ErrBadFormat)
	}

	mmapData, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return "", nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	defer mmapData.Unmap()

	reader := NewMMapReader(mmapData)
	if version := reader.ReadUint32(); reader.Err == nil && version != formatVersion {
		return "", nil, fmt.Errorf("%w: version %d", ErrBadFormat, version)
	}
	slug := reader.ReadString()
	n := reader.ReadUint32()
	if reader.Err != nil {
		return "", nil, reader.Err
	}

	records := make([]cluster.Record, 0, min(n, 1<<16))
	for i := uint32(0); i < n; i++ {
		rec := reader.readRecord()
		if reader.Err != nil {
			return "", nil, fmt.Errorf("record %d: %w", i, reader.Err)
		}
		records = append(records, rec)
	}
	return slug, records, nil
}
