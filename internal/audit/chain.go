package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	dErrors "trustcore/pkg/domain-errors"
)

// GenesisHash anchors the chain: the first entry's PrevHash is 32 zero bytes.
var GenesisHash = hex.EncodeToString(make([]byte, sha256.Size))

// canonicalize converts an entry to its canonical byte representation for
// hashing. Variable-length fields are length-prefixed to prevent ambiguity;
// a record ("ab","c") must never hash like ("a","bc").
func canonicalize(e *Entry) ([]byte, error) {
	buf := make([]byte, 0, 512)

	buf = appendLengthPrefixed(buf, []byte(e.ID))

	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(e.Timestamp.UnixNano()))
	buf = append(buf, timeBytes...)

	buf = appendLengthPrefixed(buf, []byte(e.ActorID))
	buf = appendLengthPrefixed(buf, []byte(e.TenantID))
	buf = appendLengthPrefixed(buf, []byte(e.Action))
	buf = appendLengthPrefixed(buf, []byte(e.ResourceType))
	buf = appendLengthPrefixed(buf, []byte(e.ResourceID))

	if e.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	if e.Metadata != nil {
		// json.Marshal sorts map keys, so this is deterministic
		metadataBytes, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal audit metadata: %w", err)
		}
		buf = appendLengthPrefixed(buf, metadataBytes)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	return buf, nil
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf = append(buf, length...)
	buf = append(buf, data...)
	return buf
}

// ComputeHash returns hex(SHA-256(prevHash || canonical(entry))).
// The entry's own PrevHash and EntryHash fields are not part of the
// canonical bytes; prevHash enters the digest directly.
func ComputeHash(prevHash string, e *Entry) (string, error) {
	prev, err := hex.DecodeString(prevHash)
	if err != nil || len(prev) != sha256.Size {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed previous hash")
	}

	canonical, err := canonicalize(e)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(prev)
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain recomputes every hash in entries (oldest first) and checks
// linkage back to the genesis hash. Returns CodeChainBroken naming the first
// entry that fails, so operators can bisect a tampered log.
func VerifyChain(entries []*Entry) error {
	prev := GenesisHash
	for i, e := range entries {
		if e.PrevHash != prev {
			return dErrors.New(dErrors.CodeChainBroken,
				fmt.Sprintf("entry %d (%s): prev_hash does not match preceding entry", i, e.ID))
		}
		want, err := ComputeHash(prev, e)
		if err != nil {
			return err
		}
		if e.EntryHash != want {
			return dErrors.New(dErrors.CodeChainBroken,
				fmt.Sprintf("entry %d (%s): stored hash does not match recomputed hash", i, e.ID))
		}
		prev = e.EntryHash
	}
	return nil
}
