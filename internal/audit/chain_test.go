package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

func appendTestEntries(t *testing.T, r *Recorder, n int) []*Entry {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	entries := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := r.Append(ctx, Record{
			ActorID:      "user-1",
			TenantID:     "tenant-1",
			Action:       string(ActionLogin),
			ResourceType: "session",
			ResourceID:   "session-1",
			Success:      true,
		})
		require.NoError(t, err)
		entries = append(entries, e)
	}
	return entries
}

func TestChainLinkage(t *testing.T) {
	store := NewInMemoryStore()
	r := NewRecorder(store)
	entries := appendTestEntries(t, r, 3)

	assert.Equal(t, GenesisHash, entries[0].PrevHash)
	assert.Equal(t, entries[0].EntryHash, entries[1].PrevHash)
	assert.Equal(t, entries[1].EntryHash, entries[2].PrevHash)

	assert.NoError(t, r.Verify(context.Background()))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(entries []*Entry)
	}{
		{
			name: "field rewrite breaks hash",
			tamper: func(entries []*Entry) {
				entries[1].ActorID = "attacker"
			},
		},
		{
			name: "success flip breaks hash",
			tamper: func(entries []*Entry) {
				entries[1].Success = false
			},
		},
		{
			name: "timestamp rewrite breaks hash",
			tamper: func(entries []*Entry) {
				entries[1].Timestamp = entries[1].Timestamp.Add(time.Minute)
			},
		},
		{
			name: "relinked prev hash breaks linkage",
			tamper: func(entries []*Entry) {
				entries[2].PrevHash = entries[0].EntryHash
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryStore()
			r := NewRecorder(store)
			appendTestEntries(t, r, 3)

			entries, err := store.ListAll(context.Background())
			require.NoError(t, err)

			tt.tamper(entries)
			err = VerifyChain(entries)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeChainBroken))
		})
	}
}

func TestVerifyChainDetectsDeletion(t *testing.T) {
	store := NewInMemoryStore()
	r := NewRecorder(store)
	appendTestEntries(t, r, 3)

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)

	// drop the middle entry; the third entry's prev no longer matches
	truncated := []*Entry{entries[0], entries[2]}
	err = VerifyChain(truncated)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeChainBroken))
}

func TestVerifyChainEmpty(t *testing.T) {
	assert.NoError(t, VerifyChain(nil))
}

func TestCanonicalizationIsUnambiguous(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &Entry{ID: "01", Timestamp: ts, ActorID: "ab", TenantID: "c"}
	b := &Entry{ID: "01", Timestamp: ts, ActorID: "a", TenantID: "bc"}

	ha, err := ComputeHash(GenesisHash, a)
	require.NoError(t, err)
	hb, err := ComputeHash(GenesisHash, b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestComputeHashRejectsMalformedPrev(t *testing.T) {
	_, err := ComputeHash("not-hex", &Entry{ID: "01"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
