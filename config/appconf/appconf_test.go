package appconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceTimeout_Default30s(t *testing.T) {
	t.Setenv("VCF_SOURCE_TIMEOUT", "")
	assert.Equal(t, 30*time.Second, SourceTimeout())
}

func TestSourceTimeout_CustomValue(t *testing.T) {
	t.Setenv("VCF_SOURCE_TIMEOUT", "45s")
	assert.Equal(t, 45*time.Second, SourceTimeout())
}

func TestSourceTimeout_ClampedToMin(t *testing.T) {
	t.Setenv("VCF_SOURCE_TIMEOUT", "1s")
	assert.Equal(t, 5*time.Second, SourceTimeout())
}

func TestSourceTimeout_ClampedToMax(t *testing.T) {
	t.Setenv("VCF_SOURCE_TIMEOUT", "1h")
	assert.Equal(t, 5*time.Minute, SourceTimeout())
}

func TestSourceTimeout_InvalidFallsToDefault(t *testing.T) {
	t.Setenv("VCF_SOURCE_TIMEOUT", "garbage")
	assert.Equal(t, 30*time.Second, SourceTimeout())
}

func TestSyncConcurrency_Default4(t *testing.T) {
	t.Setenv("VCF_SYNC_CONCURRENCY", "")
	assert.Equal(t, 4, SyncConcurrency())
}

func TestSyncConcurrency_CustomValue(t *testing.T) {
	t.Setenv("VCF_SYNC_CONCURRENCY", "8")
	assert.Equal(t, 8, SyncConcurrency())
}

func TestSyncConcurrency_Clamped(t *testing.T) {
	t.Setenv("VCF_SYNC_CONCURRENCY", "0")
	assert.Equal(t, 1, SyncConcurrency())

	t.Setenv("VCF_SYNC_CONCURRENCY", "100")
	assert.Equal(t, 32, SyncConcurrency())
}

func TestPruneMissing_DefaultFalse(t *testing.T) {
	t.Setenv("VCF_PRUNE_MISSING", "")
	assert.False(t, PruneMissing())
}

func TestPruneMissing_ExplicitTrue(t *testing.T) {
	t.Setenv("VCF_PRUNE_MISSING", "true")
	assert.True(t, PruneMissing())
}

func TestPruneMissing_InvalidFallsToDefault(t *testing.T) {
	t.Setenv("VCF_PRUNE_MISSING", "garbage")
	assert.False(t, PruneMissing())
}

func TestPort_FromEnvironment(t *testing.T) {
	t.Setenv("VCF_APP_PORT", "9090")
	assert.Equal(t, "9090", Port())
}

func TestDBURL_DevelopmentDefault(t *testing.T) {
	t.Setenv("VCF_DB_URL", "")
	assert.Equal(t, "file:vcfcreds.db", DBURL())
}
