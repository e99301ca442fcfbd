package config

import (
	"testing"

	"atomic_server/pkg/atomicid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, atomicid.DefaultNodeID, cfg.NodeID)
	assert.Equal(t, atomicid.DefaultShardID, cfg.ShardID)
	assert.Equal(t, atomicid.Base36, cfg.Encoding())
	assert.False(t, cfg.LeaseNode())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("NODE_ID", "4095")
	t.Setenv("SHARD_ID", "7")
	t.Setenv("EPOCH_MS", "1700000000000")
	t.Setenv("DEFAULT_ENCODING", "base58")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4095, cfg.NodeID)
	assert.Equal(t, 7, cfg.ShardID)
	assert.Equal(t, int64(1700000000000), cfg.EpochMS)
	assert.Equal(t, atomicid.Base58, cfg.Encoding())
	assert.True(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{"node too large", map[string]string{"NODE_ID": "4096"}, atomicid.ErrInvalidNodeID},
		{"negative node", map[string]string{"NODE_ID": "-2"}, atomicid.ErrInvalidNodeID},
		{"shard too large", map[string]string{"SHARD_ID": "256"}, atomicid.ErrInvalidShardID},
		{"bad encoding", map[string]string{"DEFAULT_ENCODING": "base64"}, atomicid.ErrUnsupportedEncoding},
		{"lease without redis", map[string]string{"NODE_ID": "-1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Lease(t *testing.T) {
	t.Setenv("NODE_ID", "-1")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.LeaseNode())
}
