package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingBlob(t *testing.T) {
	in := []float32{0.5, -1.25, 3, 0}
	blob := EncodeEmbedding(in)
	require.Len(t, blob, 16)

	out, err := DecodeEmbedding(blob, 4)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeEmbedding(blob[:15], 4)
	assert.Error(t, err, "misaligned blob")

	_, err = DecodeEmbedding(blob, 3)
	assert.Error(t, err, "stored dimension disagrees with collection")

	assert.Nil(t, EncodeEmbedding(nil))
}
