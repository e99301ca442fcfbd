package atomicid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopology_Defaults(t *testing.T) {
	topo := NewTopology()
	assert.Equal(t, DefaultEpoch, topo.Epoch())
	assert.Equal(t, uint16(DefaultNodeID), topo.NodeID())
	assert.Equal(t, uint8(DefaultShardID), topo.ShardID())
}

func TestTopology_SetNodeID(t *testing.T) {
	tests := []struct {
		name    string
		node    int
		wantErr bool
	}{
		{"min", 0, false},
		{"typical", 17, false},
		{"max", MaxNodeID, false},
		{"negative", -1, true},
		{"too large", MaxNodeID + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := NewTopology()
			err := topo.SetNodeID(tt.node)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNodeID)
				assert.Equal(t, uint16(DefaultNodeID), topo.NodeID(), "rejected value must not be stored")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint16(tt.node), topo.NodeID())
		})
	}
}

func TestTopology_SetShardID(t *testing.T) {
	tests := []struct {
		name    string
		shard   int
		wantErr bool
	}{
		{"min", 0, false},
		{"max", MaxShardID, false},
		{"negative", -5, true},
		{"too large", 256, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := NewTopology()
			err := topo.SetShardID(tt.shard)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidShardID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint8(tt.shard), topo.ShardID())
		})
	}
}

func TestTopology_Epoch(t *testing.T) {
	topo := NewTopology()
	topo.SetEpoch(-12345)
	assert.Equal(t, int64(-12345), topo.Epoch())

	topo.ResetEpoch()
	assert.Equal(t, DefaultEpoch, topo.Epoch())

	snap := topo.Snapshot()
	assert.Equal(t, Snapshot{NodeID: DefaultNodeID, ShardID: DefaultShardID, EpochMS: DefaultEpoch}, snap)
}

func TestParseWidth(t *testing.T) {
	tests := []struct {
		in      string
		want    Width
		wantErr bool
	}{
		{"24", W24, false},
		{"x64", W64, false},
		{" X128 ", W128, false},
		{"256", W256, false},
		{"48", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWidth(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedWidth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestID_FromBytes(t *testing.T) {
	_, err := FromBytes(W64, make([]byte, 4))
	assert.ErrorIs(t, err, ErrUnsupportedWidth)
	assert.EqualError(t, err, "4 bytes for x64: unsupported id width")

	_, err = FromBytes(Width(48), make([]byte, 6))
	assert.ErrorIs(t, err, ErrUnsupportedWidth)

	id, err := FromBytes(W32, []byte{0, 0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(258), id.Uint64())
	assert.Equal(t, "00000102", id.String())
	assert.Equal(t, []byte{0, 0, 1, 2}, id.Bytes())
}
