package pack

import (
	"fmt"

	"github.com/coroutinely/openfpm-pdata/decomp"
	"github.com/coroutinely/openfpm-pdata/label"
	"github.com/coroutinely/openfpm-pdata/point"
	"github.com/coroutinely/openfpm-pdata/store"
)

// GhostPositionBuffer builds the position send buffer for one peer
// (spec.md §4.C.1): pos[local_id] - shifts[shift_id], undoing the
// owner-side periodic wrap so the receiver stores raw, continuous
// coordinates.
func GhostPositionBuffer(c *store.Container, shifts []point.Point, parts []label.GPart) []byte {
	pts := make([]point.Point, len(parts))
	for i, gp := range parts {
		pts[i] = c.Pos[gp.LocalID].Sub(shifts[gp.ShiftID])
	}
	return EncodePositions(pts)
}

// GhostPropertyBuffer builds the property send buffer for one peer: a
// narrowed copy of v_prp[local_id] for the caller-selected ids.
func GhostPropertyBuffer(c *store.Container, ids []int, parts []label.GPart) []byte {
	rows := make([]store.Props, len(parts))
	for i, gp := range parts {
		rows[i] = c.Prp[gp.LocalID].Subset(ids)
	}
	return EncodeProps(rows)
}

// MapSendBuffers buckets m_opart's (unsorted) entries by destination
// pid without physically sorting the table, the way spec.md §4.B.1's
// p_map_req lets the fill-send-buffers step read an unsorted lbl_p as
// if it were grouped by destination.
func MapSendBuffers(c *store.Container, ml *label.MapLabels, peers []decomp.PID) (pos, prp map[decomp.PID][]byte) {
	wantPeer := make(map[decomp.PID]bool, len(peers))
	for _, p := range peers {
		wantPeer[p] = true
	}
	bucketPos := make(map[decomp.PID][]point.Point, len(peers))
	bucketPrp := make(map[decomp.PID][]store.Props, len(peers))
	for _, p := range peers {
		bucketPos[p] = make([]point.Point, 0, ml.PrcSz[p])
		bucketPrp[p] = make([]store.Props, 0, ml.PrcSz[p])
	}
	for _, e := range ml.Opart {
		if e.Target < 0 || !wantPeer[e.Target] {
			// sentinel deletions and peers the caller didn't ask to
			// send to (e.g. MAP_LOCAL restricting to near processes)
			// have no send-buffer slot; see spec.md §9 open question.
			continue
		}
		bucketPos[e.Target] = append(bucketPos[e.Target], c.Pos[e.LocalID])
		bucketPrp[e.Target] = append(bucketPrp[e.Target], c.Prp[e.LocalID])
	}
	pos = make(map[decomp.PID][]byte, len(peers))
	prp = make(map[decomp.PID][]byte, len(peers))
	for _, p := range peers {
		pos[p] = EncodePositions(bucketPos[p])
		prp[p] = EncodeProps(bucketPrp[p])
	}
	return
}

// UnpackAppendPositions appends received ghost/map positions directly
// to v_pos, starting at whatever the container's current length is
// (spec.md §4.C.3: "no intermediate staging").
func UnpackAppendPositions(c *store.Container, buf []byte) error {
	pts, err := DecodePositions(buf)
	if err != nil {
		return err
	}
	for _, p := range pts {
		c.AppendPos(p)
	}
	return nil
}

// UnpackAppendProps appends received property rows, scattering the
// narrowed wire values into full-width rows (unselected properties
// zero-valued) and appending directly to v_prp.
func UnpackAppendProps(c *store.Container, buf []byte, ids []int) error {
	rows, err := DecodeProps(buf)
	if err != nil {
		return err
	}
	for _, r := range rows {
		full := make(store.Props, c.NProp)
		full.ScatterInto(ids, r)
		c.AppendProp(full)
	}
	return nil
}

// UnpackScatterProps overwrites existing property rows starting at
// start with received narrowed values, leaving unselected properties
// untouched — the SKIP_LABELLING ghost_get path, where v_prp was not
// truncated and the destination rows already exist (spec.md §4.D.2,
// §4.D.4 KEEP_PROPERTIES). It returns the number of rows consumed.
func UnpackScatterProps(c *store.Container, buf []byte, ids []int, start int) (int, error) {
	rows, err := DecodeProps(buf)
	if err != nil {
		return 0, err
	}
	for i, r := range rows {
		idx := start + i
		if idx >= len(c.Prp) {
			c.AppendProp(make(store.Props, c.NProp))
		}
		c.Prp[idx].ScatterInto(ids, r)
	}
	return len(rows), nil
}

// PutPropertyBuffer packs the contiguous ghost range [start, start+n)
// for the reverse (ghost_put) direction (spec.md §4.D.3).
func PutPropertyBuffer(c *store.Container, ids []int, start, n int) []byte {
	rows := make([]store.Props, n)
	for i := 0; i < n; i++ {
		rows[i] = c.Prp[start+i].Subset(ids)
	}
	return EncodeProps(rows)
}

// UnpackCombineProps reduces a received put buffer into the owners at
// destIDs using op, property-by-property over ids.
func UnpackCombineProps(c *store.Container, buf []byte, ids []int, destIDs []int, op store.CombineOp) error {
	rows, err := DecodeProps(buf)
	if err != nil {
		return err
	}
	if len(rows) != len(destIDs) {
		return fmt.Errorf("pack: put receipt has %d rows, expected %d", len(rows), len(destIDs))
	}
	for i, r := range rows {
		store.CombineInto(op, c.Prp[destIDs[i]], ids, r)
	}
	return nil
}
