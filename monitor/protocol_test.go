package monitor

import (
	"strings"
	"testing"

	"github.com/jd3nn1s/racechrono/diy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRegistrationRoundTrip(t *testing.T) {
	for _, l := range []int{0, 1, 17, 18, 34, 35} {
		expr := strings.Repeat("abcdefghij", 4)[:l]
		chunks := EncodeRegistration(7, expr)
		require.NotEmpty(t, chunks, "length %d", l)

		var text []byte
		for i, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk), diy.MaxPayload)
			assert.Equal(t, uint8(7), chunk[1])
			assert.Equal(t, uint8(i), chunk[2], "sequence numbers increment from zero")
			if i == len(chunks)-1 {
				assert.Equal(t, CommandFinalChunk, chunk[0])
			} else {
				assert.Equal(t, CommandMoreChunk, chunk[0])
				assert.Len(t, chunk, diy.MaxPayload, "only the final chunk may be short")
			}
			text = append(text, chunk[3:]...)
		}
		assert.Equal(t, expr, string(text), "length %d", l)
		assert.Len(t, chunks, chunkCount(expr))
	}
}

func TestEncodeRegistrationChunkCounts(t *testing.T) {
	assert.Len(t, EncodeRegistration(0, ""), 1)
	assert.Len(t, EncodeRegistration(0, strings.Repeat("x", 17)), 1)
	assert.Len(t, EncodeRegistration(0, strings.Repeat("x", 18)), 2)
	assert.Len(t, EncodeRegistration(0, strings.Repeat("x", 34)), 2)
	assert.Len(t, EncodeRegistration(0, strings.Repeat("x", 35)), 3)

	assert.Equal(t, [][]byte{{3, 1, 0, 'r', 'p', 'm'}}, EncodeRegistration(1, "rpm"))
}

func TestDecodeValues(t *testing.T) {
	data := []byte{
		0, 0x00, 0x00, 0x03, 0xe8,
		2, 0xff, 0xff, 0xff, 0xff,
		1, 0x7f, 0xff, 0xff, 0xff,
		9, 0x01,
	}
	assert.Equal(t, []ValueRecord{
		{ID: 0, Raw: 1000},
		{ID: 2, Raw: -1},
		{ID: 1, Raw: RawInvalid},
	}, DecodeValues(data))

	assert.Empty(t, DecodeValues(nil))
	assert.Empty(t, DecodeValues([]byte{1, 2, 3, 4}))

	records := []ValueRecord{{ID: 4, Raw: -123456}, {ID: 0, Raw: 42}}
	assert.Equal(t, records, DecodeValues(EncodeValues(records...)))
}

func TestIsAck(t *testing.T) {
	assert.True(t, isAck([]byte{0, 0}))
	assert.True(t, isAck([]byte{0, 5}))
	assert.False(t, isAck([]byte{1, 0}))
	assert.False(t, isAck([]byte{0}))
	assert.False(t, isAck([]byte{0, 0, 0}))
}
