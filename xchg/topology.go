package xchg

import (
	"strconv"
	"strings"

	"github.com/tidwall/buntdb"

	"github.com/coroutinely/openfpm-pdata/cmn/debug"
	"github.com/coroutinely/openfpm-pdata/decomp"
)

// topology is one of the three (peer_list, size_list) pairs of
// spec.md §3, recorded after every call of the operation. GhostPut
// reads the get topology to size the ghost slices it sends back; the
// SKIP_LABELLING path of GhostGet reuses the cached labelling instead
// and does not read it. Kept in an in-memory buntdb index, queryable during
// diagnostics, and never written to disk (Non-goals: no persistence).
type topology struct {
	db *buntdb.DB
}

func newTopology() *topology {
	db, err := buntdb.Open(":memory:")
	debug.AssertNoErr(err)
	return &topology{db: db}
}

func (t *topology) close() error { return t.db.Close() }

// set records peers in order alongside their per-peer size, under key.
func (t *topology) set(key string, peers []decomp.PID, sizes []int) {
	debug.Assert(len(peers) == len(sizes))
	parts := make([]string, len(peers))
	for i, p := range peers {
		parts[i] = strconv.Itoa(int(p)) + ":" + strconv.Itoa(sizes[i])
	}
	_ = t.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, strings.Join(parts, ","), nil)
		return err
	})
}

// get returns the cached peers/sizes for key, and whether it was found.
func (t *topology) get(key string) (peers []decomp.PID, sizes []int, ok bool) {
	_ = t.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return nil // not found
		}
		if v == "" {
			ok = true
			return nil
		}
		for _, part := range strings.Split(v, ",") {
			pidStr, szStr, found := strings.Cut(part, ":")
			if !found {
				continue
			}
			pid, _ := strconv.Atoi(pidStr)
			sz, _ := strconv.Atoi(szStr)
			peers = append(peers, decomp.PID(pid))
			sizes = append(sizes, sz)
		}
		ok = true
		return nil
	})
	return
}

const (
	topoGet = "get"
	topoPut = "put"
	topoMap = "map"
)
