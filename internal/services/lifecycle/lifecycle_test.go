package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sremani/Artifortress-sub001/internal/domain"
	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// fakeStore is a hand-written stand-in for Store. ExpiredTombstones and
// DeleteTombstonedVersion cooperate to reproduce the batched, repeatable-call
// shape of the real Postgres adapter: each call to ExpiredTombstones returns
// up to batchSize tombstones still present in the map, ordered by
// RetentionUntil, and DeleteTombstonedVersion removes one.
type fakeStore struct {
	tombstones map[string]domain.Tombstone // versionID -> tombstone
	blobs      map[string]domain.Blob      // blobID -> blob
	deleted    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tombstones: map[string]domain.Tombstone{}, blobs: map[string]domain.Blob{}}
}

func (f *fakeStore) TombstoneVersion(ctx context.Context, tenantID, versionID, reason string, retentionDays int, now time.Time) (domain.PackageVersion, domain.Tombstone, bool, error) {
	return domain.PackageVersion{}, domain.Tombstone{}, false, nil
}

func (f *fakeStore) ExpiredTombstones(ctx context.Context, batchSize int, now time.Time) ([]domain.Tombstone, error) {
	var out []domain.Tombstone
	for _, t := range f.tombstones {
		if t.Reclaimable(now) {
			out = append(out, t)
		}
	}

	sortTombstonesByRetention(out)

	if len(out) > batchSize {
		out = out[:batchSize]
	}

	return out, nil
}

func sortTombstonesByRetention(ts []domain.Tombstone) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j].RetentionUntil.Before(ts[j-1].RetentionUntil); j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}

func (f *fakeStore) OrphanBlobs(ctx context.Context, batchSize int, graceCutoff time.Time) ([]domain.Blob, error) {
	var out []domain.Blob
	for _, b := range f.blobs {
		if b.ReadyForGC() && b.CreatedAt.Before(graceCutoff) {
			out = append(out, b)
		}
	}

	if len(out) > batchSize {
		out = out[:batchSize]
	}

	return out, nil
}

func (f *fakeStore) CountOrphanBlobs(ctx context.Context, graceCutoff time.Time) (int64, error) {
	blobs, err := f.OrphanBlobs(ctx, len(f.blobs), graceCutoff)
	return int64(len(blobs)), err
}

func (f *fakeStore) DeleteTombstonedVersion(ctx context.Context, tenantID, versionID string) ([]string, error) {
	delete(f.tombstones, versionID)
	f.deleted = append(f.deleted, versionID)

	return nil, nil
}

func (f *fakeStore) DeleteBlob(ctx context.Context, tenantID, blobID string) error {
	delete(f.blobs, blobID)
	return nil
}

type fakeObjectStore struct {
	deletedKeys []string
}

func (f *fakeObjectStore) Delete(ctx context.Context, objectKey string) error {
	f.deletedKeys = append(f.deletedKeys, objectKey)
	return nil
}

func newTestService(store Store, objs ObjectStore) *Service {
	return NewService(store, objs, nil, &mlog.NoneLogger{})
}

// TestRun_GCDrainsExpiredTombstonesInBatches exercises spec S5: two expired
// tombstones with distinct RetentionUntil plus one retained tombstone and
// one orphan blob; three GC execute runs with batchSize=1 must drain the two
// expired tombstones with deleted-version counts [1,1,0], leaving the
// retained tombstone (and its version) untouched.
func TestRun_GCDrainsExpiredTombstonesInBatches(t *testing.T) {
	now := time.Now()
	store := newFakeStore()

	store.tombstones["v-expired-1"] = domain.Tombstone{
		TenantID: "t1", VersionID: "v-expired-1", RetentionUntil: now.Add(-2 * time.Hour),
	}
	store.tombstones["v-expired-2"] = domain.Tombstone{
		TenantID: "t1", VersionID: "v-expired-2", RetentionUntil: now.Add(-1 * time.Hour),
	}
	store.tombstones["v-retained"] = domain.Tombstone{
		TenantID: "t1", VersionID: "v-retained", RetentionUntil: now.Add(24 * time.Hour),
	}

	store.blobs["b-orphan"] = domain.Blob{BlobID: "b-orphan", TenantID: "t1", RefCount: 0, CreatedAt: now.Add(-48 * time.Hour)}

	objs := &fakeObjectStore{}
	svc := newTestService(store, objs)

	var deletedCounts []int

	for i := 0; i < 3; i++ {
		result, err := svc.Run(context.Background(), "t1", GCRequest{BatchSize: 1})
		require.NoError(t, err)
		deletedCounts = append(deletedCounts, result.DeletedVersionCount)
	}

	assert.Equal(t, []int{1, 1, 0}, deletedCounts)
	assert.ElementsMatch(t, []string{"v-expired-1", "v-expired-2"}, store.deleted)

	_, retained := store.tombstones["v-retained"]
	assert.True(t, retained, "retained tombstone must survive GC")
}

// TestRun_DryRunNeverMutates covers spec property 7: a dry-run GC reports
// candidate counts but deletes nothing from either store.
func TestRun_DryRunNeverMutates(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.tombstones["v-expired"] = domain.Tombstone{TenantID: "t1", VersionID: "v-expired", RetentionUntil: now.Add(-time.Hour)}
	store.blobs["b-orphan"] = domain.Blob{BlobID: "b-orphan", TenantID: "t1", RefCount: 0, CreatedAt: now.Add(-48 * time.Hour)}

	objs := &fakeObjectStore{}
	svc := newTestService(store, objs)

	result, err := svc.Run(context.Background(), "t1", GCRequest{DryRun: true, BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "dry_run", result.Mode)
	assert.Equal(t, 1, result.CandidateVersionCount)
	assert.Equal(t, 1, result.CandidateBlobCount)

	assert.Len(t, store.tombstones, 1)
	assert.Len(t, store.blobs, 1)
	assert.Empty(t, objs.deletedKeys)
}
