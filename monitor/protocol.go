package monitor

import (
	"encoding/binary"

	"github.com/jd3nn1s/racechrono/diy"
)

// Commands written to the monitor config characteristic.
const (
	CommandReset      byte = 0
	CommandMoreChunk  byte = 2
	CommandFinalChunk byte = 3
	CommandUpdateAll  byte = 4
)

const (
	chunkHeaderSize = 3
	maxChunkText    = diy.MaxPayload - chunkHeaderSize

	// the chunk sequence number is a single byte
	maxChunks         = 256
	maxExpressionSize = maxChunks * maxChunkText

	// the equation index is a single byte
	maxEquations = 256

	valueRecordSize = 5
)

// EncodeRegistration splits expression into the config writes that register
// it as equation index. The last chunk is always marked final.
func EncodeRegistration(index uint8, expression string) [][]byte {
	text := []byte(expression)
	chunks := make([][]byte, 0, len(text)/maxChunkText+1)
	for seq := 0; ; seq++ {
		n := len(text)
		kind := CommandFinalChunk
		if n > maxChunkText {
			n = maxChunkText
			kind = CommandMoreChunk
		}
		chunk := make([]byte, chunkHeaderSize+n)
		chunk[0] = kind
		chunk[1] = index
		chunk[2] = uint8(seq)
		copy(chunk[chunkHeaderSize:], text[:n])
		chunks = append(chunks, chunk)

		text = text[n:]
		if kind == CommandFinalChunk {
			return chunks
		}
	}
}

func chunkCount(expression string) int {
	if len(expression) == 0 {
		return 1
	}
	return (len(expression) + maxChunkText - 1) / maxChunkText
}

// ValueRecord is a single value update sent by RaceChrono.
type ValueRecord struct {
	ID  uint8
	Raw int32
}

// DecodeValues decodes every complete 5 byte record in data. Trailing bytes
// that do not make up a whole record are ignored.
func DecodeValues(data []byte) []ValueRecord {
	records := make([]ValueRecord, 0, len(data)/valueRecordSize)
	for len(data) >= valueRecordSize {
		records = append(records, ValueRecord{
			ID:  data[0],
			Raw: int32(binary.BigEndian.Uint32(data[1:valueRecordSize])),
		})
		data = data[valueRecordSize:]
	}
	return records
}

// EncodeValues is the inverse of DecodeValues.
func EncodeValues(records ...ValueRecord) []byte {
	buf := make([]byte, 0, len(records)*valueRecordSize)
	for _, r := range records {
		var rec [valueRecordSize]byte
		rec[0] = r.ID
		binary.BigEndian.PutUint32(rec[1:], uint32(r.Raw))
		buf = append(buf, rec[:]...)
	}
	return buf
}

func isAck(data []byte) bool {
	return len(data) == 2 && data[0] == 0
}
