package experiment

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// Checkpoint frame: magic, version, xxhash64 of the payload, payload.
// The payload is the zstd-compressed gob encoding of a Record.
const (
	frameMagic   = "BBCV"
	frameVersion = byte(1)
	headerSize   = len(frameMagic) + 1 + 8
)

var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		return enc
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// encodeRecord serialises rec into a checkpoint frame.
func encodeRecord(rec *Record) ([]byte, error) {
	model.RegisterParamTypes()
	var raw bytes.Buffer
	if err := model.EncodeGob(rec, &raw); err != nil {
		return nil, err
	}

	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	payload := enc.EncodeAll(raw.Bytes(), nil)

	frame := make([]byte, headerSize, headerSize+len(payload))
	copy(frame, frameMagic)
	frame[len(frameMagic)] = frameVersion
	binary.BigEndian.PutUint64(frame[len(frameMagic)+1:], xxhash.Sum64(payload))
	return append(frame, payload...), nil
}

// decodeRecord parses a checkpoint frame. Every structural problem is
// reported as ErrCorruptCheckpoint.
func decodeRecord(frame []byte) (*Record, error) {
	if len(frame) < headerSize || string(frame[:len(frameMagic)]) != frameMagic {
		return nil, errors.Mark(errors.New("bad checkpoint header"), errors.ErrCorruptCheckpoint)
	}
	if v := frame[len(frameMagic)]; v != frameVersion {
		return nil, errors.Mark(errors.Newf("unsupported checkpoint version %d", v), errors.ErrCorruptCheckpoint)
	}
	payload := frame[headerSize:]
	if want := binary.BigEndian.Uint64(frame[len(frameMagic)+1 : headerSize]); xxhash.Sum64(payload) != want {
		return nil, errors.Mark(errors.New("checkpoint checksum mismatch"), errors.ErrCorruptCheckpoint)
	}

	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "zstd decompression failed"), errors.ErrCorruptCheckpoint)
	}

	model.RegisterParamTypes()
	var rec Record
	if err := model.DecodeGob(&rec, bytes.NewReader(raw)); err != nil {
		return nil, errors.Mark(err, errors.ErrCorruptCheckpoint)
	}
	return &rec, nil
}

// cloneRecord deep-copies rec through the codec.
func cloneRecord(rec *Record) (*Record, error) {
	frame, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}
	return decodeRecord(frame)
}
