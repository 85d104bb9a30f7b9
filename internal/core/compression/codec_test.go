package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

func compressible(n int) []byte {
	return bytes.Repeat([]byte("session-state-delta:"), n/20+1)[:n]
}

func TestCodec_RoundTrip(t *testing.T) {
	c := Default()
	defer c.Close()
	data := compressible(4096)

	for _, algo := range []pkgif.Algorithm{pkgif.AlgoS2, pkgif.AlgoZstd, pkgif.AlgoGzip} {
		t.Run(algo.String(), func(t *testing.T) {
			out, used, err := c.Compress(data, algo)
			require.NoError(t, err)
			assert.Equal(t, algo, used)
			assert.Less(t, len(out), len(data))

			back, err := c.Decompress(out, used)
			require.NoError(t, err)
			assert.Equal(t, data, back)
		})
	}
}

func TestCodec_IncompressibleFallsBackToNone(t *testing.T) {
	c := Default()
	data := []byte{0x01}
	out, used, err := c.Compress(data, pkgif.AlgoZstd)
	require.NoError(t, err)
	assert.Equal(t, pkgif.AlgoNone, used)
	assert.Equal(t, data, out)
}

func TestCodec_Select(t *testing.T) {
	c := New(config.CompressionConfig{MinSize: 100, FastThreshold: 1000})

	assert.Equal(t, pkgif.AlgoNone, c.Select(99))
	assert.Equal(t, pkgif.AlgoS2, c.Select(100))
	assert.Equal(t, pkgif.AlgoS2, c.Select(999))
	assert.Equal(t, pkgif.AlgoZstd, c.Select(1000))
}

func TestCodec_Auto(t *testing.T) {
	c := New(config.CompressionConfig{MinSize: 100, FastThreshold: 1000})
	out, used, err := c.Auto(compressible(500))
	require.NoError(t, err)
	assert.Equal(t, pkgif.AlgoS2, used)

	back, err := c.Decompress(out, used)
	require.NoError(t, err)
	assert.Equal(t, compressible(500), back)
}

func TestCodec_Errors(t *testing.T) {
	c := Default()

	_, _, err := c.Compress([]byte("x"), pkgif.Algorithm(9))
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = c.Decompress([]byte("x"), pkgif.Algorithm(9))
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = c.Decompress([]byte("not gzip"), pkgif.AlgoGzip)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = c.Decompress([]byte{0xff, 0xff, 0xff}, pkgif.AlgoS2)
	assert.ErrorIs(t, err, ErrCorrupt)
}
