package fingerprint

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIsContentAddressed(t *testing.T) {
	a, err := Compute(strings.NewReader("CSC201 lecture one"))
	require.NoError(t, err)
	b, err := Compute(bytes.NewBufferString("CSC201 lecture one"))
	require.NoError(t, err)
	c, err := Compute(strings.NewReader("CSC201 lecture two"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, Valid(a))
	assert.Equal(t, Of([]byte("CSC201 lecture one")), a)
}

func TestComputeKnownVector(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Of(nil))
}

func TestComputeSeekerRewinds(t *testing.T) {
	r := bytes.NewReader([]byte("payload"))
	_, _ = r.Seek(3, io.SeekStart)

	sum, err := ComputeSeeker(r)
	require.NoError(t, err)
	assert.Equal(t, Of([]byte("payload")), sum)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(rest))
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid(strings.Repeat("G", Size)))
	assert.False(t, Valid(strings.Repeat("A", Size)))
	assert.True(t, Valid(strings.Repeat("a", Size)))
}
