package codec

import (
	"encoding/binary"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// MaxOpusFramesPerBatch is the batch size cap of SPEC_FULL.md §4.10 (8
// Opus frames accumulated before the send queue flushes).
const MaxOpusFramesPerBatch = 8

// AudioBatch is the decoded form of an AUDIO_OPUS_BATCH envelope payload:
// frame_count Opus packets, each independently decodable, with their
// individual byte sizes preserved so the playback pipeline can slice them
// back apart (SPEC_FULL.md §4.11 step 1).
type AudioBatch struct {
	FrameSizes [MaxOpusFramesPerBatch]uint16
	FrameCount int
	OpusBytes  []byte
}

// EncodeAudioBatch serializes an AudioBatch as
// [frame_count(1B)][frame_sizes(uint16 BE) * frame_count][opus_bytes...],
// suitable as the payload of an AUDIO_OPUS_BATCH envelope.
func EncodeAudioBatch(b AudioBatch) []byte {
	out := make([]byte, 1+2*b.FrameCount+len(b.OpusBytes))
	out[0] = byte(b.FrameCount)
	for i := 0; i < b.FrameCount; i++ {
		binary.BigEndian.PutUint16(out[1+2*i:3+2*i], b.FrameSizes[i])
	}
	copy(out[1+2*b.FrameCount:], b.OpusBytes)
	return out
}

// DecodeAudioBatch reverses EncodeAudioBatch, validating that frame_count
// is within bounds and that the declared frame sizes sum to the payload
// actually present.
func DecodeAudioBatch(payload []byte) (AudioBatch, error) {
	if len(payload) < 1 {
		return AudioBatch{}, errors.NewProtocolError("codec.decode_audio_batch", errBadInnerType)
	}
	count := int(payload[0])
	if count > MaxOpusFramesPerBatch {
		return AudioBatch{}, errors.NewProtocolError("codec.decode_audio_batch", errOversized)
	}
	headerLen := 1 + 2*count
	if len(payload) < headerLen {
		return AudioBatch{}, errors.NewProtocolError("codec.decode_audio_batch", errBadInnerType)
	}

	var b AudioBatch
	b.FrameCount = count
	var total int
	for i := 0; i < count; i++ {
		sz := binary.BigEndian.Uint16(payload[1+2*i : 3+2*i])
		b.FrameSizes[i] = sz
		total += int(sz)
	}
	if headerLen+total != len(payload) {
		return AudioBatch{}, errors.NewProtocolError("codec.decode_audio_batch", errBadInnerType)
	}
	b.OpusBytes = payload[headerLen:]
	return b, nil
}
