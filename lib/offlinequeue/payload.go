// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package offlinequeue

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/agentcloud/agentsync/lib/codec"
	"github.com/agentcloud/agentsync/lib/entity"
)

// Payload encodings stored in the payload_encoding column.
const (
	EncodingCBOR     = "cbor"
	EncodingCBORZstd = "cbor+zstd"
)

// compressThreshold is the encoded size above which payloads are
// compressed.
const compressThreshold = 4 << 10

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("offlinequeue: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("offlinequeue: zstd decoder initialization failed: " + err.Error())
	}
}

// encodePayload stores json.Number values as CBOR numbers rather than
// the text strings the codec would otherwise write.
func encodePayload(items []entity.Record) ([]byte, string, error) {
	normalized := make([]entity.Record, len(items))
	for i, item := range items {
		normalized[i] = entity.NormalizeNumbers(item)
	}
	data, err := codec.Marshal(normalized)
	if err != nil {
		return nil, "", fmt.Errorf("encoding payload: %w", err)
	}
	if len(data) <= compressThreshold {
		return data, EncodingCBOR, nil
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return data, EncodingCBOR, nil
	}
	return compressed, EncodingCBORZstd, nil
}

func decodePayload(data []byte, encoding string) ([]entity.Record, error) {
	switch encoding {
	case EncodingCBOR:
	case EncodingCBORZstd:
		decompressed, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		data = decompressed
	default:
		return nil, fmt.Errorf("unknown payload encoding %q", encoding)
	}
	var items []entity.Record
	if err := codec.Unmarshal(data, &items); err != nil {
		diagnostic, _ := codec.Diagnose(data)
		return nil, fmt.Errorf("decoding payload %.120s: %w", diagnostic, err)
	}
	return items, nil
}
