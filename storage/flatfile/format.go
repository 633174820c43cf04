package flatfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/poiesic/ragstore/core"
	"github.com/poiesic/ragstore/storage"
)

const (
	// indexMagic identifies vector index files (ASCII: "RGV1").
	indexMagic = 0x52475631
	// documentsMagic identifies metadata record files (ASCII: "RGD1").
	documentsMagic = 0x52474431
	// formatVersion is the current on-disk format version.
	formatVersion = 1

	// IndexFileName is the per-tenant vector index artifact.
	IndexFileName = "index.vec"
	// DocumentsFileName is the per-tenant metadata sequence artifact.
	DocumentsFileName = "documents.rec"
)

var (
	errInvalidMagic   = errors.New("invalid magic number")
	errInvalidVersion = errors.New("unsupported format version")
	errChecksum       = errors.New("checksum mismatch")
	errHeaderBounds   = errors.New("header disagrees with file size")
)

// fileHeaderSize is the encoded size of fileHeader.
const fileHeaderSize = 32

// fileHeader is the fixed-size header at the start of both artifacts.
// Count and Dimension are validated against each other at load time;
// Checksum covers the payload that follows the header.
type fileHeader struct {
	Magic     uint32
	Version   uint32
	Dimension uint32
	Reserved  uint32
	Count     uint64
	Checksum  uint32
	Padding   uint32
}

func writeHeader(w io.Writer, magic uint32, dimension int, count int, checksum uint32) error {
	header := fileHeader{
		Magic:     magic,
		Version:   formatVersion,
		Dimension: uint32(dimension),
		Count:     uint64(count),
		Checksum:  checksum,
	}
	return binary.Write(w, binary.LittleEndian, &header)
}

func readHeader(r io.Reader, magic uint32) (*fileHeader, error) {
	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrTruncatedData, err)
	}
	if header.Magic != magic {
		return nil, fmt.Errorf("%w: got 0x%08x", errInvalidMagic, header.Magic)
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("%w: got %d", errInvalidVersion, header.Version)
	}
	return &header, nil
}

// encodeIndex writes the vector index artifact: header followed by the dense
// float32 payload in little-endian order.
func encodeIndex(w io.Writer, partition *core.Partition) error {
	payload := new(bytes.Buffer)
	payload.Grow(len(partition.Vectors) * 4)
	if err := binary.Write(payload, binary.LittleEndian, partition.Vectors); err != nil {
		return err
	}

	checksum := crc32.ChecksumIEEE(payload.Bytes())
	if err := writeHeader(w, indexMagic, partition.Dimension, partition.Count(), checksum); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// decodeIndex reads the vector index artifact and returns the dimension,
// vector count, and dense payload. size is the artifact's byte length on
// disk; the header's claimed payload must fit it before anything is
// allocated, so a corrupt header cannot demand an absurd buffer.
func decodeIndex(r io.Reader, size int64) (dimension int, count int, vectors []float32, err error) {
	header, err := readHeader(r, indexMagic)
	if err != nil {
		return 0, 0, nil, err
	}

	payloadSize := size - fileHeaderSize
	if payloadSize < 0 {
		payloadSize = 0
	}
	switch {
	case header.Dimension == 0:
		if header.Count != 0 {
			return 0, 0, nil, fmt.Errorf("%w: %d vectors with dimension 0", errHeaderBounds, header.Count)
		}
	case header.Count > uint64(payloadSize)/(4*uint64(header.Dimension)):
		return 0, 0, nil, fmt.Errorf("%w: header claims %d vectors of dimension %d, payload is %d bytes",
			errHeaderBounds, header.Count, header.Dimension, payloadSize)
	}

	payload := make([]byte, int(header.Count)*int(header.Dimension)*4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", storage.ErrTruncatedData, err)
	}
	if crc32.ChecksumIEEE(payload) != header.Checksum {
		return 0, 0, nil, errChecksum
	}

	vectors = make([]float32, int(header.Count)*int(header.Dimension))
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, vectors); err != nil {
		return 0, 0, nil, err
	}
	return int(header.Dimension), int(header.Count), vectors, nil
}

// encodeDocuments writes the metadata artifact: header followed by Count
// concatenated MUS-encoded records.
func encodeDocuments(w io.Writer, partition *core.Partition) error {
	payload := new(bytes.Buffer)
	for i := range partition.Records {
		payload.Write(storage.MarshalDocumentRecord(&partition.Records[i]))
	}

	checksum := crc32.ChecksumIEEE(payload.Bytes())
	if err := writeHeader(w, documentsMagic, partition.Dimension, partition.Count(), checksum); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// decodeDocuments reads the metadata artifact and returns the record sequence.
func decodeDocuments(r io.Reader) (dimension int, records []core.DocumentRecord, err error) {
	header, err := readHeader(r, documentsMagic)
	if err != nil {
		return 0, nil, err
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, err
	}
	if crc32.ChecksumIEEE(payload) != header.Checksum {
		return 0, nil, errChecksum
	}

	// Cap the capacity hint by the payload itself; a record is never empty,
	// so a header claiming more records than bytes is lying.
	capacity := header.Count
	if limit := uint64(len(payload)); capacity > limit {
		capacity = limit
	}
	records = make([]core.DocumentRecord, 0, capacity)
	offset := 0
	for i := uint64(0); i < header.Count; i++ {
		record, n, err := storage.DocumentRecordMUS.Unmarshal(payload[offset:])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: record %d: %w", storage.ErrSerializationFailed, i, err)
		}
		records = append(records, record)
		offset += n
	}
	if offset != len(payload) {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes", storage.ErrSerializationFailed, len(payload)-offset)
	}
	return int(header.Dimension), records, nil
}
