package core

import (
    "encoding/binary"
    "fmt"
    "io"

    log "github.com/sirupsen/logrus"
)

// uint64DataSize returns the size of the data required to represent the data when encoded.
// It returns zero if the type cannot be implemented by the fast path in Read or Write.
func uint64DataSize(data interface{}) uint64 {
    switch data.(type) {
    case int8, uint8, *int8, *uint8:
        return uint64(1)
    case int16, uint16, *int16, *uint16:
        return uint64(2)
    case int32, uint32, *int32, *uint32:
        return uint64(4)
    case int64, uint64, *int64, *uint64:
        return uint64(8)
    case []uint8:
        arru8 := data.([]uint8)
        return uint64(len(arru8))
    }
    return 0
}

func Bytes3ToUint32(b []byte) uint32 {
    nb := []byte{}
    nb = append(nb, 0)
    nb = append(nb, b...)
    return binary.BigEndian.Uint32(nb)
}

// BufReader reads fixed-width big-endian integers from a seekable input.
// Short reads surface as ErrTruncated, never as silent truncation.
type BufReader struct {
    rs io.ReadSeeker
}

func NewBufReader(rs io.ReadSeeker) *BufReader {
    return &BufReader{rs: rs}
}

// wrapErr sorts a stream error into the Truncated kind when the input simply
// ran out, and the IOError kind for any other underlying failure.
func (v *BufReader) wrapErr(err error) error {
    if err == io.EOF || err == io.ErrUnexpectedEOF {
        return fmt.Errorf("%w: %v", ErrTruncated, err)
    }
    return fmt.Errorf("%w: %v", ErrIOError, err)
}

// Read decodes data big-endian, in the manner of binary.Read.
func (v *BufReader) Read(data interface{}) (err error) {
    if err = binary.Read(v.rs, binary.BigEndian, data); err != nil {
        return v.wrapErr(err)
    }
    return
}

func (v *BufReader) ReadU8() (d uint8, err error) {
    err = v.Read(&d)
    return
}

func (v *BufReader) ReadU16() (d uint16, err error) {
    err = v.Read(&d)
    return
}

// ReadU24 packs three bytes into the low bits of a u32.
func (v *BufReader) ReadU24() (d uint32, err error) {
    b := make([]byte, 3)
    if err = v.ReadFull(b); err != nil {
        return
    }
    d = Bytes3ToUint32(b)
    return
}

func (v *BufReader) ReadU32() (d uint32, err error) {
    err = v.Read(&d)
    return
}

func (v *BufReader) ReadU64() (d uint64, err error) {
    err = v.Read(&d)
    return
}

func (v *BufReader) ReadFull(p []byte) (err error) {
    if _, err = io.ReadFull(v.rs, p); err != nil {
        return v.wrapErr(err)
    }
    return
}

func (v *BufReader) ReadBytes(n uint64) (p []byte, err error) {
    p = make([]byte, n)
    err = v.ReadFull(p)
    return
}

func (v *BufReader) Tell() (pos int64) {
    pos, _ = v.rs.Seek(0, io.SeekCurrent)
    return
}

func (v *BufReader) Seek(pos int64) (err error) {
    if _, err = v.rs.Seek(pos, io.SeekStart); err != nil {
        log.Errorf("seek to %v failed, err is %v", pos, err)
        err = fmt.Errorf("%w: %v", ErrIOError, err)
    }
    return
}

func (v *BufReader) Skip(n uint64) (err error) {
    if n == 0 {
        return
    }
    if _, err = v.rs.Seek(int64(n), io.SeekCurrent); err != nil {
        err = fmt.Errorf("%w: %v", ErrIOError, err)
    }
    return
}

// BufWriter mirrors BufReader over an append-only output, tracking the
// running offset of everything written.
type BufWriter struct {
    w   io.Writer
    pos int64
}

func NewBufWriter(w io.Writer) *BufWriter {
    return &BufWriter{w: w}
}

func (v *BufWriter) Write(data interface{}) (err error) {
    if err = binary.Write(v.w, binary.BigEndian, data); err != nil {
        log.Errorf("write %v failed, err is %v", data, err)
        return fmt.Errorf("%w: %v", ErrIOError, err)
    }
    v.pos += int64(uint64DataSize(data))
    return
}

func (v *BufWriter) WriteU8(d uint8) error {
    return v.Write(d)
}

func (v *BufWriter) WriteU16(d uint16) error {
    return v.Write(d)
}

func (v *BufWriter) WriteU24(d uint32) error {
    b := []byte{byte(d >> 16), byte(d >> 8), byte(d)}
    return v.WriteBytes(b)
}

func (v *BufWriter) WriteU32(d uint32) error {
    return v.Write(d)
}

func (v *BufWriter) WriteU64(d uint64) error {
    return v.Write(d)
}

func (v *BufWriter) WriteBytes(p []byte) (err error) {
    var nn int
    if nn, err = v.w.Write(p); err != nil {
        log.Errorf("write %v bytes failed, err is %v", len(p), err)
        return fmt.Errorf("%w: %v", ErrIOError, err)
    }
    v.pos += int64(nn)
    return
}

func (v *BufWriter) Tell() int64 {
    return v.pos
}
