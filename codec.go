package sieve

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// A Codec serializes keys or values for spilling to external storage (and the inverse)
type Codec interface {
	// Encode serializes a single key or value to a write stream
	Encode(w io.Writer, v interface{}) error
	// Decode deserializes a single key or value from a read stream
	Decode(r io.Reader) (interface{}, error)
}

// Uint64Codec serializes integer-typed keys or values as fixed-width little-endian uint64s
type Uint64Codec struct{}

// Encode serializes an integer-typed key or value to a write stream
func (c Uint64Codec) Encode(w io.Writer, v interface{}) error {
	k, ok := keyToUint64(v)
	if !ok {
		return fmt.Errorf("Value type %T is not supported by Uint64Codec", v)
	}
	var buff [8]byte
	binary.LittleEndian.PutUint64(buff[:], k)
	_, err := w.Write(buff[:])
	return err
}

// Decode deserializes a uint64 from a read stream
func (c Uint64Codec) Decode(r io.Reader) (interface{}, error) {
	var buff [8]byte
	if _, err := io.ReadFull(r, buff[:]); err != nil {
		return nil, err
	}
	return binary.LittleEndian.Uint64(buff[:]), nil
}

// Float64Codec serializes float64 values as little-endian IEEE 754 bits
type Float64Codec struct{}

// Encode serializes a float64 value to a write stream
func (c Float64Codec) Encode(w io.Writer, v interface{}) error {
	f, ok := v.(float64)
	if !ok {
		return fmt.Errorf("Value type %T is not supported by Float64Codec", v)
	}
	var buff [8]byte
	binary.LittleEndian.PutUint64(buff[:], math.Float64bits(f))
	_, err := w.Write(buff[:])
	return err
}

// Decode deserializes a float64 from a read stream
func (c Float64Codec) Decode(r io.Reader) (interface{}, error) {
	var buff [8]byte
	if _, err := io.ReadFull(r, buff[:]); err != nil {
		return nil, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buff[:])), nil
}

// BytesCodec serializes []byte keys or values with a uvarint length prefix
type BytesCodec struct{}

// Encode serializes a []byte key or value to a write stream
func (c BytesCodec) Encode(w io.Writer, v interface{}) error {
	b, ok := v.([]byte)
	if !ok {
		return fmt.Errorf("Value type %T is not supported by BytesCodec", v)
	}
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// Decode deserializes a []byte from a read stream
func (c BytesCodec) Decode(r io.Reader) (interface{}, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buff := make([]byte, n)
	if _, err := io.ReadFull(r, buff); err != nil {
		return nil, err
	}
	return buff, nil
}

// StringCodec serializes string keys or values with a uvarint length prefix
type StringCodec struct{}

// Encode serializes a string key or value to a write stream
func (c StringCodec) Encode(w io.Writer, v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("Value type %T is not supported by StringCodec", v)
	}
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Decode deserializes a string from a read stream
func (c StringCodec) Decode(r io.Reader) (interface{}, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buff := make([]byte, n)
	if _, err := io.ReadFull(r, buff); err != nil {
		return nil, err
	}
	return string(buff), nil
}

func writeUvarint(w io.Writer, x uint64) error {
	var buff [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buff[:], x)
	_, err := w.Write(buff[:n])
	return err
}

func readUvarint(r io.Reader) (uint64, error) {
	if br, ok := r.(io.ByteReader); ok {
		return binary.ReadUvarint(br)
	}
	var x uint64
	var s uint
	var buff [1]byte
	for i := 0; i < binary.MaxVarintLen64; i++ {
		if _, err := io.ReadFull(r, buff[:]); err != nil {
			return 0, err
		}
		b := buff[0]
		if b < 0x80 {
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, fmt.Errorf("Encoded uvarint overflows 64 bits")
}
