package persistence

import (
	"context"
	"time"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/sirupsen/logrus"
)

// words expands AllowList's cells (which may be multi-register floats) into
// individual (bank, addr) word cells for raw read/write against the Store.
func words(cells []cell) []struct {
	bank registers.Bank
	addr int
} {
	var out []struct {
		bank registers.Bank
		addr int
	}
	for _, c := range cells {
		for i := 0; i < c.width; i++ {
			out = append(out, struct {
				bank registers.Bank
				addr int
			}{c.bank, c.addr + i})
		}
	}
	return out
}

// Restore writes every persisted word back into the register store at
// startup, before any other component begins reading it (spec §4.3 "restore
// on startup").
func Restore(ctx context.Context, persisted *Store, store *registers.Store) error {
	snapshot, err := persisted.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	for bank, values := range snapshot {
		for addr, value := range values {
			if err := store.SetWord(bank, addr, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Poll runs the 1 Hz change-detection loop (spec §4.3) until ctx is
// cancelled: each tick, every allow-listed word is compared against the
// last value observed, and a changed word is written through to persisted
// storage along with a write-log entry.
func Poll(ctx context.Context, persisted *Store, store *registers.Store, log *logrus.Entry, interval time.Duration) {
	cells := words(AllowList)
	last := make(map[registers.Bank]map[int]uint16, 2)
	last[registers.Holding] = map[int]uint16{}
	last[registers.Input] = map[int]uint16{}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		for _, w := range cells {
			v, err := store.GetWord(w.bank, w.addr)
			if err != nil {
				log.WithError(err).WithField("addr", w.addr).Warn("persistence: reading register for poll")
				continue
			}
			if prev, ok := last[w.bank][w.addr]; ok && prev == v {
				continue
			}
			last[w.bank][w.addr] = v
			if err := persisted.Upsert(ctx, w.bank, w.addr, v, now); err != nil {
				log.WithError(err).WithField("addr", w.addr).Error("persistence: writing changed register")
			}
		}
	}
}
