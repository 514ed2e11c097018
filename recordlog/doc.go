// Package recordlog frames individual records on top of a pmemlog pool.
//
// pmemlog stores a plain byte stream: once data is in, the boundaries
// between appends are gone. recordlog prefixes every record with its length
// and a crc32c checksum so that records can be listed after a restart:
//
//	u32 length | u32 crc32c(payload) | payload
//
// The header and payload are written with a single AppendV so each frame
// commits atomically.
//
//	off, err := recordlog.Append(p, []byte("event"))
//
//	recs, errFn := recordlog.Records(p)
//	for rec := range recs {
//	    fmt.Printf("%d: %s\n", rec.Offset, rec.Data)
//	}
//	if err := errFn(); err != nil {
//	    // errors.Is(err, recordlog.ErrCorruptRecord)
//	}
//
// Don't mix framed and raw appends in one pool.
package recordlog
