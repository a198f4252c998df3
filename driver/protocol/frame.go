package protocol

import (
	"fmt"

	"github.com/kobuki-driver/kobuki/driver/kobukierrors"
)

// Dispatch splits a payload block into sub-records by header-id/length
// prefix, decodes each into pool, and returns the set of header ids seen
// in this frame (ascending order on iteration, which is also observer
// notification order).
//
// An unrecognised header id aborts the whole frame: the remainder of the
// payload is discarded and FrameMalformed is returned. A recognised id
// whose declared sub-length does not match its fixed schema is skipped
// (not stored, not added to the seen set) and dispatch continues with
// the next sub-record.
func Dispatch(pool *RecordPool, payload []byte) (*SeenSet, error) {
	seen := newSeenSet()

	// The protocol reserves a final byte (akin to an ETX) that is not
	// itself a sub-record; stop once only that byte remains.
	for len(payload) > 1 {
		id := HeaderID(payload[0])
		declaredLen := payload[1]

		expected, recognised := subLen[id]
		if !recognised {
			return seen, kobukierrors.FrameMalformed{
				Reason: fmt.Sprintf("unrecognised header id 0x%02x", byte(id)),
			}
		}

		end := 2 + int(declaredLen)
		if end > len(payload) {
			return seen, kobukierrors.FrameMalformed{
				Reason: fmt.Sprintf("header 0x%02x declares %d bytes but only %d remain", byte(id), declaredLen, len(payload)-2),
			}
		}

		data := payload[2:end]
		if declaredLen != expected {
			// Sub-length mismatch against this id's fixed schema: skip
			// this sub-record but keep parsing the rest of the payload.
			payload = payload[end:]
			continue
		}

		if err := pool.store(id, data); err != nil {
			return seen, kobukierrors.FrameMalformed{Reason: err.Error()}
		}
		seen.insert(id)

		payload = payload[end:]
	}

	return seen, nil
}
