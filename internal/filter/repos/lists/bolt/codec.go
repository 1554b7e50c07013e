package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/graph"
)

var errTruncated = errors.New("truncated blob")

// encoder appends varint-framed fields to a byte slice.
type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }
func (e *encoder) varint(v int64) { e.buf = binary.AppendVarint(e.buf, v) }
func (e *encoder) u8(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) blob(b []byte) {
	e.uvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) strs(ss []string) {
	e.uvarint(uint64(len(ss)))
	for _, s := range ss {
		e.str(s)
	}
}

func (e *encoder) uint32s(vs []uint32) {
	e.uvarint(uint64(len(vs)))
	for _, v := range vs {
		e.uvarint(uint64(v))
	}
}

// decoder reads what encoder wrote. The first error sticks and every later
// read returns a zero value.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail(errTruncated)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.fail(errTruncated)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) u8() byte {
	if d.err != nil {
		return 0
	}
	if len(d.buf) == 0 {
		d.fail(errTruncated)
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

// count reads a length and checks it against the bytes left, since every
// counted element takes at least one byte.
func (d *decoder) count() int {
	n := d.uvarint()
	if n > uint64(len(d.buf)) {
		d.fail(errTruncated)
		return 0
	}
	return int(n)
}

func (d *decoder) blob() []byte {
	n := d.count()
	if d.err != nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, d.buf[:n])
	d.buf = d.buf[n:]
	return out
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil {
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *decoder) strs() []string {
	n := d.count()
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) uint32s() []uint32 {
	n := d.count()
	out := make([]uint32, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		v := d.uvarint()
		if v > 0xFFFFFFFF {
			d.fail(fmt.Errorf("value %d overflows uint32", v))
		}
		out = append(out, uint32(v))
	}
	return out
}

func (d *decoder) finish() error {
	if d.err == nil && len(d.buf) != 0 {
		d.fail(fmt.Errorf("%d trailing bytes", len(d.buf)))
	}
	return d.err
}

// seal prefixes payload with its xxhash so corruption is caught on load.
func seal(payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint64(out, xxhash.Sum64(payload))
	return append(out, payload...)
}

func unseal(v []byte) ([]byte, error) {
	if len(v) < 8 {
		return nil, errTruncated
	}
	if binary.BigEndian.Uint64(v[:8]) != xxhash.Sum64(v[8:]) {
		return nil, errors.New("checksum mismatch")
	}
	return v[8:], nil
}

func encodeEntries(entries []domain.Entry) []byte {
	var e encoder
	e.uvarint(uint64(len(entries)))
	for _, en := range entries {
		e.str(en.Text)
		e.u8(byte(en.Kind))
		e.varint(int64(en.Weight))
		e.uvarint(uint64(en.Category))
		e.uvarint(uint64(en.Window))
		// NoEntry is stored as 0 so the common case costs one byte.
		if en.Parent == domain.NoEntry {
			e.uvarint(0)
		} else {
			e.uvarint(uint64(en.Parent) + 1)
		}
		e.uvarint(uint64(len(en.Combination)))
		for _, id := range en.Combination {
			e.uvarint(uint64(id))
		}
	}
	return e.buf
}

func decodeEntries(b []byte) ([]domain.Entry, error) {
	d := decoder{buf: b}
	n := d.count()
	entries := make([]domain.Entry, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		en := domain.Entry{
			Text: d.str(),
			Kind: domain.EntryKind(d.u8()),
		}
		w := d.varint()
		if w < -1<<31 || w > 1<<31-1 {
			d.fail(fmt.Errorf("weight %d out of range", w))
		}
		en.Weight = int32(w)
		en.Category = domain.CategoryID(d.small16())
		en.Window = domain.WindowID(d.small16())
		if p := d.uvarint(); p == 0 {
			en.Parent = domain.NoEntry
		} else {
			en.Parent = domain.EntryID(p - 1)
		}
		if m := d.count(); m > 0 {
			en.Combination = make([]domain.EntryID, 0, m)
			for j := 0; j < m && d.err == nil; j++ {
				en.Combination = append(en.Combination, domain.EntryID(d.uvarint()))
			}
		}
		entries = append(entries, en)
	}
	return entries, d.finish()
}

func (d *decoder) small16() uint16 {
	v := d.uvarint()
	if v > 0xFFFF {
		d.fail(fmt.Errorf("value %d overflows uint16", v))
	}
	return uint16(v)
}

func encodeWindows(ws []domain.TimeWindow) []byte {
	var e encoder
	e.uvarint(uint64(len(ws)))
	for _, w := range ws {
		e.u8(w.Days)
		e.uvarint(uint64(w.Start))
		e.uvarint(uint64(w.End))
	}
	return e.buf
}

func decodeWindows(b []byte) ([]domain.TimeWindow, error) {
	d := decoder{buf: b}
	n := d.count()
	ws := make([]domain.TimeWindow, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		ws = append(ws, domain.TimeWindow{Days: d.u8(), Start: d.small16(), End: d.small16()})
	}
	return ws, d.finish()
}

func encodeStrings(ss []string) []byte {
	var e encoder
	e.strs(ss)
	return e.buf
}

func decodeStrings(b []byte) ([]string, error) {
	d := decoder{buf: b}
	ss := d.strs()
	return ss, d.finish()
}

func encodeOrder(order []uint32) []byte {
	var e encoder
	e.uint32s(order)
	return e.buf
}

func decodeOrder(b []byte) ([]uint32, error) {
	d := decoder{buf: b}
	order := d.uint32s()
	return order, d.finish()
}

func encodeGraph(p graph.Parts) []byte {
	var e encoder
	e.uint32s(p.EdgeStart)
	e.blob(p.EdgeLabel)
	e.uint32s(p.EdgeChild)
	e.uint32s(p.OutStart)
	e.uint32s(p.Outputs)
	return e.buf
}

func decodeGraph(b []byte) (graph.Parts, error) {
	d := decoder{buf: b}
	p := graph.Parts{
		EdgeStart: d.uint32s(),
		EdgeLabel: d.blob(),
		EdgeChild: d.uint32s(),
		OutStart:  d.uint32s(),
		Outputs:   d.uint32s(),
	}
	return p, d.finish()
}
