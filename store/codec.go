package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
)

// formatVersion leads every snapshot file, compressed or not.
const formatVersion uint32 = 1

const (
	hasOrigin      byte = 1 << 0
	hasDestination byte = 1 << 1
)

// maxStringLen bounds length prefixes so a corrupt file cannot make a
// reader allocate gigabytes.
const maxStringLen = 1 << 20

// recordFields returns the string fields in the order they are encoded.
func recordFields(r *cluster.Record) []*string {
	return []*string{&r.ID, &r.MapSlug, &r.Title, &r.Type, &r.Side, &r.VideoURL}
}

func flagsOf(r cluster.Record) byte {
	var f byte
	if r.Origin != nil {
		f |= hasOrigin
	}
	if r.Destination != nil {
		f |= hasDestination
	}
	return f
}

// encoder writes the little-endian snapshot layout to a stream. The first
// error sticks and later writes are skipped.
type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *encoder) putString(s string) {
	e.put(uint32(len(s)))
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *encoder) putPoint(p *cluster.Point) {
	if p == nil {
		return
	}
	e.put(p.X)
	e.put(p.Y)
}

func (e *encoder) header(slug string, n int) {
	e.put(formatVersion)
	e.putString(slug)
	e.put(uint32(n))
}

func (e *encoder) record(r cluster.Record) {
	for _, f := range recordFields(&r) {
		e.putString(*f)
	}
	e.put(flagsOf(r))
	e.putPoint(r.Origin)
	e.putPoint(r.Destination)
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
}

func (d *decoder) getString() string {
	var n uint32
	d.get(&n)
	if d.err != nil {
		return ""
	}
	if n > maxStringLen {
		d.err = fmt.Errorf("%w: string length %d", ErrBadFormat, n)
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrBadFormat, err)
		return ""
	}
	return string(buf)
}

func (d *decoder) getPoint() *cluster.Point {
	var p cluster.Point
	d.get(&p.X)
	d.get(&p.Y)
	if d.err != nil {
		return nil
	}
	return &p
}

func (d *decoder) header() (slug string, n uint32) {
	var version uint32
	d.get(&version)
	if d.err == nil && version != formatVersion {
		d.err = fmt.Errorf("%w: version %d", ErrBadFormat, version)
		return "", 0
	}
	slug = d.getString()
	d.get(&n)
	return slug, n
}

func (d *decoder) record() cluster.Record {
	var r cluster.Record
	for _, f := range recordFields(&r) {
		*f = d.getString()
	}
	var flags byte
	d.get(&flags)
	if flags&hasOrigin != 0 {
		r.Origin = d.getPoint()
	}
	if flags&hasDestination != 0 {
		r.Destination = d.getPoint()
	}
	return r
}

// encodedSize is the exact byte size of a snapshot, used to size memory
// mapped files up front.
func encodedSize(slug string, records []cluster.Record) int64 {
	size := int64(4 + 4 + len(slug) + 4)
	for _, r := range records {
		for _, f := range recordFields(&r) {
			size += 4 + int64(len(*f))
		}
		size++
		if r.Origin != nil {
			size += 16
		}
		if r.Destination != nil {
			size += 16
		}
	}
	return size
}

func float64frombits(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
