package pack

import (
	"bytes"
	"fmt"
	"io"

	lz4 "github.com/pierrec/lz4/v3"
	"github.com/tinylib/msgp/msgp"

	"github.com/coroutinely/openfpm-pdata/point"
	"github.com/coroutinely/openfpm-pdata/store"
)

// EncodePositions writes a self-describing (count, dim, then
// count*dim floats) messagepack-primitive stream, used for both the
// ghost position send buffer and the map send buffer (spec.md
// §4.C.1).
func EncodePositions(points []point.Point) []byte {
	dim := 0
	if len(points) > 0 {
		dim = points[0].Dim()
	}
	b := msgp.AppendUint32(nil, uint32(len(points)))
	b = msgp.AppendUint32(b, uint32(dim))
	for _, p := range points {
		for _, v := range p {
			b = msgp.AppendFloat64(b, v)
		}
	}
	return b
}

func DecodePositions(b []byte) ([]point.Point, error) {
	n, b, err := msgp.ReadUint32Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("pack: position count: %w", err)
	}
	dim, b, err := msgp.ReadUint32Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("pack: position dim: %w", err)
	}
	out := make([]point.Point, n)
	for i := range out {
		p := point.New(int(dim))
		for d := range p {
			var v float64
			v, b, err = msgp.ReadFloat64Bytes(b)
			if err != nil {
				return nil, fmt.Errorf("pack: position[%d][%d]: %w", i, d, err)
			}
			p[d] = v
		}
		out[i] = p
	}
	return out, nil
}

// EncodeProps writes a self-describing (count, width, then
// count*width floats) stream for a narrowed property subset.
func EncodeProps(rows []store.Props) []byte {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	b := msgp.AppendUint32(nil, uint32(len(rows)))
	b = msgp.AppendUint32(b, uint32(width))
	for _, r := range rows {
		for _, v := range r {
			b = msgp.AppendFloat64(b, v)
		}
	}
	return b
}

func DecodeProps(b []byte) ([]store.Props, error) {
	n, b, err := msgp.ReadUint32Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("pack: prop count: %w", err)
	}
	width, b, err := msgp.ReadUint32Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("pack: prop width: %w", err)
	}
	out := make([]store.Props, n)
	for i := range out {
		row := make(store.Props, width)
		for j := range row {
			var v float64
			v, b, err = msgp.ReadFloat64Bytes(b)
			if err != nil {
				return nil, fmt.Errorf("pack: prop[%d][%d]: %w", i, j, err)
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// Compress wraps buf in an LZ4 frame — the optional buffer
// compression knob mirrored from the teacher's bundle.Extra.Compression
// (spec.md domain-stack wiring, see SPEC_FULL.md §2).
func Compress(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(buf); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func Decompress(buf []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(buf))
	return io.ReadAll(r)
}
