// Package pmemlog implements a persistent, append-only log stored in a
// single fixed-size pool file, meant to live on byte-addressable persistent
// memory (e.g. a file on a DAX mount) but usable on any filesystem.
//
// A pool holds exactly one ordered byte stream. Appends are atomic and
// durable: after a crash an append is either fully present or absent.
//
// # Pool Structure
//
// A pool file is a 64 byte header followed by capacity bytes of data:
//   - magic, version and flags, protected by a checksum
//   - capacity, fixed at creation
//   - tail, the offset one past the last committed byte
//
// The persisted tail is the only thing that decides what was written.
// An append writes and persists the payload past the tail first and
// only then persists the new tail. Opening a pool validates the header
// and trusts the tail; bytes past it are ignored.
//
// # Basic Usage
//
//	p, err := pmemlog.CreateOrOpen("/mnt/pmem/log", 64<<20, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	off, err := p.Append([]byte("hello"))
//	if errors.Is(err, pmemlog.ErrPoolFull) {
//	    // pools never grow
//	}
//
//	d, err := p.Read(off, 5)
//
// The store doesn't frame records. If you need to recover individual
// records, use package recordlog or do your own framing.
//
// # Thread Safety
//
// A Pool is safe for concurrent use. Appends to one pool are serialized
// from reservation of the offset until the new tail is persisted, so
// concurrent appends never overlap. Reads of committed data don't wait
// for appends.
//
// Opening the same path twice, in one process or many, is not supported.
// There is no file locking.
package pmemlog
