package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEntry_Validate(t *testing.T) {
	rec := SessionRecord{ID: "A", WriterID: "x", State: StateSteady, Timestamp: 10}

	tests := []struct {
		name    string
		entry   MergeEntry
		wantErr bool
	}{
		{"upsert", UpsertEntry(rec), false},
		{"tombstone", TombstoneEntry(Tombstone{ID: "A", WriterID: "x", Timestamp: 11}), false},
		{"sample", SampleEntry(MetricSample{SessionID: "A", LatencyMs: 12, ErrorRate: 0.1}), false},
		{"unknown kind", MergeEntry{Kind: 99}, true},
		{"upsert without record", MergeEntry{Kind: EntrySessionUpsert}, true},
		{"mixed payloads", MergeEntry{Kind: EntrySessionUpsert, Record: &rec, Sample: &MetricSample{SessionID: "A"}}, true},
		{"tombstone without writer", TombstoneEntry(Tombstone{ID: "A", Timestamp: 1}), true},
		{"sample error rate out of range", SampleEntry(MetricSample{SessionID: "A", ErrorRate: 1.5}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeEntry_StoredRecord(t *testing.T) {
	e := TombstoneEntry(Tombstone{ID: "A", WriterID: "y", Version: 3, Timestamp: 50})
	r, ok := e.StoredRecord()
	require.True(t, ok)
	assert.True(t, r.Deleted)
	assert.Equal(t, int64(50), r.DeletedAt)
	assert.Equal(t, StateTerminated, r.State)
	assert.Equal(t, "A", e.SessionID())

	_, ok = SampleEntry(MetricSample{SessionID: "A"}).StoredRecord()
	assert.False(t, ok)
}

func TestTopology_RegionCounts(t *testing.T) {
	topo := &Topology{
		Nodes: []PlannedNode{
			{Index: 0, Region: "EU"}, {Index: 1, Region: "NA"}, {Index: 2, Region: "EU"},
		},
		Edges: []Edge{{From: 0, To: 1}, {From: 1, To: 2}},
	}
	assert.Equal(t, map[string]int{"EU": 2, "NA": 1}, topo.RegionCounts())
	assert.Equal(t, []int{0, 2}, topo.NodesInRegion("EU"))
	adj := topo.Adjacency()
	assert.ElementsMatch(t, []int{0, 2}, adj[1])
}
