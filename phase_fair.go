package pflock

import "context"

// Phase-fair ticket lock protocol (Brandenburg & Anderson, "Spin-Based
// Reader-Writer Synchronization for Multiprocessor Real-Time Systems").
//
// State is four counters of the same word type:
//
//	rin   readers that started acquiring, in units of rInc; the low byte
//	      carries the writer bits (wPres | phase id)
//	rout  readers that released, in units of rInc
//	win   next writer ticket to hand out
//	wout  writer ticket currently served
//
// The functions below are written once and shared by every storage layout
// (RawLock, PaddedLock). The blocking paths use fetch-and-add and
// fetch-and-and only.
const (
	rInc  = 0x100 // reader increment
	wBits = 0x3   // writer bits in rin
	wPres = 0x2   // writer present bit
	wPhid = 0x1   // writer phase id bit
	wByte = 0xff  // low byte of rin reserved for writer bits
)

// lockShared registers a reader and waits out at most one writer phase.
func lockShared[W word](rin *W) {
	w := fetchAdd(rin, rInc) & wBits
	if w == 0 {
		return
	}
	waitPhase(rin, w)
}

// waitPhase spins until the writer bits of rin differ from w, i.e. the
// writer that was present at registration time has left, or a different
// writer phase is visible.
func waitPhase[W word](rin *W, w W) {
	var spins int
	for loadWord(rin)&wBits == w {
		delay(&spins)
	}
}

func unlockShared[W word](rout *W) {
	fetchAdd(rout, rInc)
}

// tryLockShared fails without touching the counters while a writer is
// present, and never waits. A writer can still announce itself between the
// check and the registration; tryAdmit then decides whether the
// registration may stand.
func tryLockShared[W word](rin *W) bool {
	if loadWord(rin)&wBits != 0 {
		return false
	}
	return tryAdmit(rin, fetchAdd(rin, rInc)&wBits)
}

// tryAdmit finishes a read registration that observed writer bits w.
//
// The writer with bits w announced before the registration, so its snapshot
// does not count this reader, and rout must not be touched. While the bits
// are still w, no later writer can have announced, so the registration is
// withdrawn from rin and nobody ever counted it. Once the bits have changed,
// the reader is admitted exactly as lockShared would admit it. The only
// exception is when the withdrawal itself saw no writer: a writer that
// announced before the registration is restored was not counted, and the
// restored registration is treated as a new one.
func tryAdmit[W word](rin *W, w W) bool {
	for w != 0 {
		if loadWord(rin)&wBits != w {
			return true
		}
		prev := fetchAdd(rin, -W(rInc)) & wBits
		if prev == w {
			return false
		}
		// prev != 0 is a writer that announced after the registration and
		// counted it; it cannot leave before this reader does.
		w = fetchAdd(rin, rInc) & wBits
		if prev != 0 {
			return true
		}
	}
	return true
}

// lockExclusive takes a ticket, waits for its turn, announces itself to
// readers and waits for the readers registered before the announcement.
func lockExclusive[W word](rin, rout, win, wout *W) {
	ticket := fetchAdd(win, 1)
	var spins int
	for loadWord(wout) != ticket {
		delay(&spins)
	}
	drainReaders(rin, rout, ticket, &spins)
}

func drainReaders[W word](rin, rout *W, ticket W, spins *int) {
	snap := announce(rin, ticket)
	for loadWord(rout) != snap {
		delay(spins)
	}
}

// announce publishes the writer bits for ticket and returns the reader
// count observed at that instant.
func announce[W word](rin *W, ticket W) W {
	return fetchAdd(rin, wPres|(ticket&wPhid)) &^ wByte
}

// unlockExclusive clears the writer byte, releasing the readers that
// arrived during this phase, and then serves the next ticket.
func unlockExclusive[W word](rin, wout *W) {
	fetchAnd(rin, ^W(wByte))
	fetchAdd(wout, 1)
}

// tryLockExclusive only joins the ticket queue when its ticket would be
// served immediately: the ticket is drawn by a single compare-and-swap on
// win against the observed wout, so a failed attempt never leaves an
// abandoned ticket behind. If readers are still registered after the
// announcement, the attempt is rolled back with unlockExclusive, which is
// indistinguishable to other goroutines from an empty write phase.
func tryLockExclusive[W word](rin, rout, win, wout *W) bool {
	ticket := loadWord(wout)
	if loadWord(win) != ticket {
		return false
	}
	if loadWord(rin)&^wByte != loadWord(rout) {
		return false
	}
	// win == ticket at the CAS implies wout == ticket: wout never passes
	// win and only grows.
	if !casWord(win, ticket, ticket+1) {
		return false
	}
	snap := announce(rin, ticket)
	if loadWord(rout) == snap {
		return true
	}
	unlockExclusive(rin, wout)
	return false
}

// pollContext retries try until it succeeds or ctx is done.
func pollContext(ctx context.Context, try func() bool) error {
	var spins int
	for {
		if try() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		delay(&spins)
	}
}

// snapshot summarizes the counters for debugging output.
type snapshot struct {
	readers uint64 // registered and not yet released
	writer  bool   // a writer is draining readers or holds the lock
	phase   uint64
	queued  uint64 // writers holding or waiting
}

func readSnapshot[W word](rin, rout, win, wout *W) snapshot {
	in, out := loadWord(rin), loadWord(rout)
	wi, wo := loadWord(win), loadWord(wout)
	return snapshot{
		readers: uint64((in&^wByte)-out) / rInc,
		writer:  in&wPres != 0,
		phase:   uint64(in & wPhid),
		queued:  uint64(wi - wo),
	}
}
