package cephtools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cephtools "github.com/ceph/ceph-tools"
)

func TestTimeUnits(t *testing.T) {
	assert.Equal(t, 1.0, cephtools.Hour)
	assert.Equal(t, 24.0, cephtools.Day)
	assert.Equal(t, 8766.0, cephtools.Year)
	assert.InDelta(t, 1.0, 60*cephtools.Minute, 1e-12)
	assert.InDelta(t, 1.0, 3600*cephtools.Second, 1e-12)
	assert.InDelta(t, 600.0, cephtools.Seconds(10*cephtools.Minute), 1e-9)
}

func TestSizeUnits(t *testing.T) {
	assert.Equal(t, 1e15, cephtools.PiB)
	assert.Equal(t, 2e12, 2*cephtools.TiB)
	assert.Equal(t, float64(1<<30), cephtools.GB)
	assert.Equal(t, float64(1<<40), cephtools.TB)
	assert.NotEqual(t, cephtools.TB, cephtools.TiB)
}

func TestTransferTime(t *testing.T) {
	// 1 TB at 100 MB/s is 10,000 seconds
	assert.InDelta(t, 10000*cephtools.Second, cephtools.TransferTime(1e12, 1e8), 1e-12)
	assert.Equal(t, 0.0, cephtools.TransferTime(1e12, 0))
}
