package idbstore

import (
	"encoding/binary"
	"fmt"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfEncodingBit0

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfJSON          = vfEncodingBit0
	vfSupportedMask = (vfVer1 | vfJSON)
	vfDefault       = vfVer1

	minValueSize       = 5
	maxValueHeaderSize = binary.MaxVarintLen64 * 5
)

func flagsForEncoding(enc Encoding) valueFlags {
	switch enc {
	case JSON:
		return vfDefault | vfJSON
	default:
		return vfDefault
	}
}

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

func (vf valueFlags) encoding() Encoding {
	if vf&vfJSON != 0 {
		return JSON
	}
	return MsgPack
}

// value is a stored record: a header, the encoded body, and the index keys
// this record contributed when it was written.
type value struct {
	Flags     valueFlags
	SchemaVer uint64 // database version at write time
	ModCount  uint64
	Data      []byte
	Index     []byte
}

func reserveValueHeader(buf []byte) []byte {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	return buf[:maxValueHeaderSize]
}

func putValueHeader(buf []byte, flags valueFlags, schemaVer uint64, modCount uint64, indexOff int) []byte {
	if indexOff > len(buf) {
		panic(fmt.Errorf("invalid indexOff=%d", indexOff)) // sanity check
	}
	if (flags &^ vfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}
	dataSize := indexOff - maxValueHeaderSize
	indexSize := len(buf) - indexOff

	var off = 0
	n := binary.PutUvarint(buf[off:], uint64(flags))
	off += n
	n = binary.PutUvarint(buf[off:], schemaVer)
	off += n
	n = binary.PutUvarint(buf[off:], modCount)
	off += n
	n = binary.PutUvarint(buf[off:], uint64(dataSize))
	off += n
	n = binary.PutUvarint(buf[off:], uint64(indexSize))
	off += n
	headerSize := off
	if headerSize > maxValueHeaderSize {
		panic("internal error")
	}
	if headerSize < maxValueHeaderSize {
		// move the header closer to data
		start := maxValueHeaderSize - headerSize
		copy(buf[start:maxValueHeaderSize], buf[:headerSize])
		return buf[start:]
	} else {
		return buf
	}
}

func (vle *value) decode(data []byte) error {
	orig := data
	if len(data) < minValueSize {
		return dataErrf(orig, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := newByteReader(data)

	v, err := d.Uvarint()
	if err != nil {
		return err
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return dataErrf(orig, d.Pos(), nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags = valueFlags(v)
	if vle.Flags.ver() != vfVer1 {
		return dataErrf(orig, d.Pos(), nil, "invalid value: unsupported format version %d", vle.Flags.ver())
	}

	if vle.SchemaVer, err = d.Uvarint(); err != nil {
		return err
	}
	if vle.ModCount, err = d.Uvarint(); err != nil {
		return err
	}
	dataSize, err := d.Len()
	if err != nil {
		return err
	}
	indexSize, err := d.Len()
	if err != nil {
		return err
	}
	if d.Remaining() != dataSize+indexSize {
		return dataErrf(orig, d.Pos(), nil, "invalid value: got %d bytes for data+index, expected %d bytes", d.Remaining(), dataSize+indexSize)
	}
	vle.Data = must(d.Raw(dataSize))
	vle.Index = must(d.Raw(indexSize))
	return nil
}
