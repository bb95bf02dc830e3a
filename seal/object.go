package seal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/seal-labs/ibte/ibe"
)

// EncryptedObject is the self-contained result of a Seal call: everything an
// unsealer needs apart from the user secret key shares themselves.
//
// The binary encoding is canonical: fixed field order, big-endian length
// prefixes, no optional fields. Encoding the same object twice yields
// byte-identical output.
type EncryptedObject struct {
	PackageID ibe.PackageID
	Identity  []byte
	Threshold uint8
	ServerIDs []ServerID
	Mode      Mode

	// EncapsulatedShares holds one opaque blob per server, in ServerIDs
	// order. Positions are fixed at seal time.
	EncapsulatedShares [][]byte

	IV         []byte
	AAD        []byte
	Ciphertext []byte
	Tag        []byte
}

// FullIdentity returns the derived identity this object is bound to.
func (o *EncryptedObject) FullIdentity() ibe.FullIdentity {
	return ibe.CreateFullID(o.PackageID, o.Identity)
}

// Validate checks the structural invariants that hold for every well-formed
// object regardless of how it was obtained.
func (o *EncryptedObject) Validate() error {
	if len(o.ServerIDs) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidServerList)
	}
	if len(o.ServerIDs) > 255 {
		return fmt.Errorf("%w: %d servers, at most 255 supported", ErrInvalidServerList, len(o.ServerIDs))
	}
	seen := make(map[ServerID]struct{}, len(o.ServerIDs))
	for _, id := range o.ServerIDs {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate server id %s", ErrInvalidServerList, id.Hex())
		}
		seen[id] = struct{}{}
	}
	if o.Threshold < 1 || int(o.Threshold) > len(o.ServerIDs) {
		return fmt.Errorf("%w: threshold %d with %d servers", ErrInvalidThreshold, o.Threshold, len(o.ServerIDs))
	}
	if !o.Mode.valid() {
		return fmt.Errorf("%w: unknown mode %d", ErrSerialization, o.Mode)
	}
	if len(o.EncapsulatedShares) != len(o.ServerIDs) {
		return fmt.Errorf("%w: %d encapsulated shares for %d servers", ErrSerialization, len(o.EncapsulatedShares), len(o.ServerIDs))
	}
	if o.Mode == ModePlain && (len(o.IV) != 0 || len(o.Ciphertext) != 0 || len(o.Tag) != 0) {
		return fmt.Errorf("%w: plain object carries payload fields", ErrSerialization)
	}
	return nil
}

// MarshalBinary encodes the object in the canonical wire layout:
//
//	PackageID[32]
//	u16 len | Identity
//	Threshold u8
//	u8 count | ServerID[32] * count
//	Mode u8
//	u8 count | (u16 len | share) * count
//	u8 len  | IV
//	u32 len | AAD
//	u32 len | Ciphertext
//	u8 len  | Tag
func (o *EncryptedObject) MarshalBinary() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if len(o.Identity) > 0xffff {
		return nil, fmt.Errorf("%w: identity exceeds %d bytes", ErrSerialization, 0xffff)
	}
	if len(o.IV) > 0xff || len(o.Tag) > 0xff {
		return nil, fmt.Errorf("%w: oversized IV or tag", ErrSerialization)
	}

	var buf bytes.Buffer
	buf.Write(o.PackageID[:])
	writeU16Bytes(&buf, o.Identity)
	buf.WriteByte(o.Threshold)

	buf.WriteByte(uint8(len(o.ServerIDs)))
	for _, id := range o.ServerIDs {
		buf.Write(id[:])
	}

	buf.WriteByte(uint8(o.Mode))

	buf.WriteByte(uint8(len(o.EncapsulatedShares)))
	for i, share := range o.EncapsulatedShares {
		if len(share) > 0xffff {
			return nil, fmt.Errorf("%w: encapsulated share %d exceeds %d bytes", ErrSerialization, i, 0xffff)
		}
		writeU16Bytes(&buf, share)
	}

	buf.WriteByte(uint8(len(o.IV)))
	buf.Write(o.IV)
	writeU32Bytes(&buf, o.AAD)
	writeU32Bytes(&buf, o.Ciphertext)
	buf.WriteByte(uint8(len(o.Tag)))
	buf.Write(o.Tag)

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the canonical wire layout and re-checks the
// structural invariants. Trailing bytes are rejected.
func (o *EncryptedObject) UnmarshalBinary(data []byte) error {
	r := &objectReader{buf: data}

	r.read(o.PackageID[:])
	o.Identity = r.readU16Bytes()
	o.Threshold = r.readByte()

	serverCount := int(r.readByte())
	o.ServerIDs = make([]ServerID, serverCount)
	for i := range o.ServerIDs {
		r.read(o.ServerIDs[i][:])
	}

	o.Mode = Mode(r.readByte())

	shareCount := int(r.readByte())
	o.EncapsulatedShares = make([][]byte, shareCount)
	for i := range o.EncapsulatedShares {
		o.EncapsulatedShares[i] = r.readU16Bytes()
	}

	o.IV = r.readU8Bytes()
	o.AAD = r.readU32Bytes()
	o.Ciphertext = r.readU32Bytes()
	o.Tag = r.readU8Bytes()

	if r.failed {
		return fmt.Errorf("%w: truncated at offset %d", ErrSerialization, r.off)
	}
	if r.off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerialization, len(data)-r.off)
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return nil
}

// ParseEncryptedObject decodes an encrypted object from its canonical bytes.
func ParseEncryptedObject(data []byte) (*EncryptedObject, error) {
	obj := new(EncryptedObject)
	if err := obj.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return obj, nil
}

func writeU16Bytes(buf *bytes.Buffer, b []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func writeU32Bytes(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

// objectReader is a cursor over the wire bytes that latches the first
// out-of-bounds read instead of panicking, so decode paths stay linear.
type objectReader struct {
	buf    []byte
	off    int
	failed bool
}

func (r *objectReader) take(n int) []byte {
	if r.failed || n < 0 || r.off+n > len(r.buf) {
		r.failed = true
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *objectReader) read(dst []byte) {
	if src := r.take(len(dst)); src != nil {
		copy(dst, src)
	}
}

func (r *objectReader) readByte() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *objectReader) readU8Bytes() []byte {
	lb := r.take(1)
	if lb == nil {
		return nil
	}
	return append([]byte(nil), r.take(int(lb[0]))...)
}

func (r *objectReader) readU16Bytes() []byte {
	lb := r.take(2)
	if lb == nil {
		return nil
	}
	return append([]byte(nil), r.take(int(binary.BigEndian.Uint16(lb)))...)
}

func (r *objectReader) readU32Bytes() []byte {
	lb := r.take(4)
	if lb == nil {
		return nil
	}
	return append([]byte(nil), r.take(int(binary.BigEndian.Uint32(lb)))...)
}
