package core

import (
    "errors"
    "fmt"
    "io"

    log "github.com/sirupsen/logrus"
)

const mp4BufSize = 4096

// Box is the capability set dispatched over every box variant.
// DecodeHeader parses the body fields after the size/type header (FullBox
// variants consume version+flags first), EncodeHeader writes them back, and
// CalcSize recomputes the serialized length and stores it in the header.
type Box interface {
    Basic() *Mp4Box
    DecodeHeader(r *BufReader) (err error)
    EncodeHeader(w *BufWriter) (err error)
    CalcSize() uint64
}

type Mp4Box struct {
    // The size is the entire size of the box, including the size and type header, fields,
    // and all contained boxes. This facilitates general parsing of the file.
    //
    // if size is 1 then the actual size is in the field largesize;
    // if size is 0, then this box is the last one in the file, and its contents
    // extend to the end of the file (normally only used for a Media Data Box)
    SmallSize uint32
    LargeSize uint64

    // identifies the box type; standard boxes use a compact type, which is normally four printable
    // characters, to permit ease of identification.
    BoxType uint32

    // The file position where the box header starts.
    StartPos int64

    Boxes    []Box
    UsedSize uint64
}

func NewMp4Box() *Mp4Box {
    v := &Mp4Box{}
    v.BoxType = Mp4BoxTypeForbidden
    v.Boxes = []Box{}
    return v
}

// Get the size of box, whatever small or large size.
func (v *Mp4Box) sz() uint64 {
    if v.SmallSize == Mp4UseLargeSize {
        return v.LargeSize
    }
    return uint64(v.SmallSize)
}

func (v *Mp4Box) left() uint64 {
    return v.sz() - v.UsedSize
}

func (v *Mp4Box) NbHeader() uint64 {
    size := uint64(8)
    if v.SmallSize == Mp4UseLargeSize {
        size += 8
    }
    return size
}

// Get the contained box of specific type.
// @return The first matched box.
func (v *Mp4Box) get(bt uint32) (Box, error) {
    for _, box := range v.Boxes {
        if box.Basic().BoxType == bt {
            return box, nil
        }
    }
    return nil, fmt.Errorf("%w: can't find %v in boxes", ErrMissingRequiredBox, FourccString(bt))
}

// Remove the contained box of specified type.
// @return The removed count.
func (v *Mp4Box) remove(bt uint32) (nbRemoved int) {
    for i := 0; i < len(v.Boxes); {
        if v.Boxes[i].Basic().BoxType == bt {
            v.Boxes = append(v.Boxes[:i], v.Boxes[i+1:]...)
            nbRemoved++
            continue
        }
        i++
    }
    return
}

// Append appends a child box.
func (v *Mp4Box) Append(box Box) {
    v.Boxes = append(v.Boxes, box)
}

func (v *Mp4Box) Basic() *Mp4Box {
    return v
}

func (v *Mp4Box) DecodeHeader(r *BufReader) (err error) {
    return
}

func (v *Mp4Box) EncodeHeader(w *BufWriter) (err error) {
    return
}

// CalcSize of a plain box sums the children; typed variants override.
func (v *Mp4Box) CalcSize() uint64 {
    size := uint64(8)
    for _, box := range v.Boxes {
        size += box.CalcSize()
    }
    v.SmallSize = uint32(size)
    v.LargeSize = 0
    return size
}

func (v *Mp4Box) Read(r *BufReader, data interface{}) (err error) {
    if err = r.Read(data); err != nil {
        return
    }
    v.UsedSize += uint64DataSize(data)
    return
}

func (v *Mp4Box) Skip(r *BufReader, num uint64) {
    if num <= 0 {
        return
    }
    data := make([]uint8, num)
    v.Read(r, data)
}

func (v *Mp4Box) writeHeader(w *BufWriter) (err error) {
    if err = w.WriteU32(v.SmallSize); err != nil {
        return
    }
    if err = w.WriteU32(v.BoxType); err != nil {
        return
    }
    if v.SmallSize == Mp4UseLargeSize {
        err = w.WriteU64(v.LargeSize)
    }
    return
}

// Discovery reads the next box header from r and constructs its typed variant.
func (v *Mp4Box) discovery(r *BufReader) (box Box, err error) {
    pos := r.Tell()
    v.UsedSize = 0

    var smallSize uint32
    if err = v.Read(r, &smallSize); err != nil {
        return
    }

    var bt uint32
    if err = v.Read(r, &bt); err != nil {
        log.Errorf("read type failed, err is %v", err)
        return
    }

    var largeSize uint64
    if smallSize == Mp4UseLargeSize {
        if err = v.Read(r, &largeSize); err != nil {
            log.Errorf("read large size failed, err is %v", err)
            return
        }
        // Only support 31bits size.
        if largeSize > 0x7fffffff {
            err = fmt.Errorf("%w: large size %v overflow", ErrInvalidSize, largeSize)
            return
        }
    }

    switch bt {
    case Mp4BoxTypeFTYP:
        box = NewMp4FileTypeBox()
    case Mp4BoxTypeSTYP:
        box = NewMp4SegmentTypeBox()
    case Mp4BoxTypeFREE, Mp4BoxTypeSKIP:
        box = NewMp4FreeSpaceBox()
    case Mp4BoxTypeMVHD:
        box = NewMp4MovieHeaderBox()
    case Mp4BoxTypeTKHD:
        box = NewMp4TrackHeaderBox()
    case Mp4BoxTypeMDHD:
        box = NewMp4MediaHeaderBox()
    case Mp4BoxTypeHDLR:
        box = NewMp4HandlerReferenceBox()
    case Mp4BoxTypeSTSD:
        box = NewMp4SampleDescriptionBox()
    case Mp4BoxTypeSTSC:
        box = NewMp4Sample2ChunkBox()
    case Mp4BoxTypeSTSZ:
        box = NewMp4SampleSizeBox()
    case Mp4BoxTypeSTCO:
        box = NewMp4ChunkOffsetBox()
    case Mp4BoxTypeSTTS:
        box = NewMp4DecodingTime2SampleBox()
    case Mp4BoxTypeCTTS:
        box = NewMp4CompositionTime2SampleBox()
    case Mp4BoxTypeSTSS:
        box = NewMp4SyncSampleBox()
    case Mp4BoxTypeSIDX:
        box = NewMp4SegmentIndexBox()
    case Mp4BoxTypeMFHD:
        box = NewMp4MovieFragmentHeaderBox()
    case Mp4BoxTypeTFHD:
        box = NewMp4TrackFragmentHeaderBox()
    case Mp4BoxTypeTFDT:
        box = NewMp4TrackFragmentDecodeTimeBox()
    case Mp4BoxTypeTRUN:
        box = NewMp4TrackRunBox()
    case Mp4BoxTypeTREX:
        box = NewMp4TrackExtendsBox()
    case Mp4BoxTypePSSH:
        box = NewMp4ProtectionSystemBox()
    case Mp4BoxTypeMOOV:
        box = NewMp4MovieBox()
    case Mp4BoxTypeTRAK:
        box = &Mp4TrackBox{}
    case Mp4BoxTypeMDIA:
        box = &Mp4MediaBox{}
    case Mp4BoxTypeMINF:
        box = &Mp4MediaInformationBox{}
    case Mp4BoxTypeSTBL:
        box = &Mp4SampleTableBox{}
    case Mp4BoxTypeMOOF:
        box = &Mp4MovieFragmentBox{}
    case Mp4BoxTypeTRAF:
        box = &Mp4TrackFragmentBox{}
    case Mp4BoxTypeUDTA, Mp4BoxTypeEDTS, Mp4BoxTypeMVEX, Mp4BoxTypeDTS:
        box = &Mp4ContainerBox{}
    default:
        sz := uint64(smallSize)
        if smallSize == Mp4UseLargeSize {
            sz = largeSize
        }
        if sz > BoxReadSizeLimit {
            box = NewMp4UnknownBoxRef()
        } else {
            box = NewMp4UnknownBox()
        }
    }

    b := box.Basic()
    b.BoxType = bt
    b.SmallSize = smallSize
    b.LargeSize = largeSize
    b.StartPos = pos
    b.UsedSize = v.UsedSize

    log.Tracef("discovery a new box %v, size=%v at %v", FourccString(bt), b.sz(), pos)
    return
}

// DecodeBoxes parses the children inside the byte window of this box.
// After each child, the stream is reseeked to the child's declared end, so a
// parser that undershoots or overshoots cannot derail the walk.
func (v *Mp4Box) DecodeBoxes(r *BufReader) (err error) {
    end := v.StartPos + int64(v.sz())
    for {
        pos := r.Tell()
        // Trailing padding shorter than a header is tolerated; the parent
        // loop reseeks to this box's declared end anyway.
        if pos+8 > end {
            break
        }

        mb := NewMp4Box()
        var box Box
        if box, err = mb.discovery(r); err != nil {
            if errors.Is(err, ErrTruncated) && r.Tell() == pos {
                // Clean EOF at a box boundary terminates the loop.
                err = nil
                break
            }
            log.Errorf("mp4 discovery contained box failed, err is %v", err)
            return
        }

        b := box.Basic()
        if b.sz() < 8 {
            return fmt.Errorf("%w: box %v size %v < 8", ErrInvalidSize, FourccString(b.BoxType), b.sz())
        }
        if pos+int64(b.sz()) > end {
            return fmt.Errorf("%w: box %v size %v exceeds window end %v", ErrInvalidSize, FourccString(b.BoxType), b.sz(), end)
        }

        if err = box.DecodeHeader(r); err != nil {
            log.Errorf("mp4 decode contained box header failed, err is %v", err)
            return
        }

        if err = r.Seek(pos + int64(b.sz())); err != nil {
            return
        }
        v.Boxes = append(v.Boxes, box)

        log.Tracef("box %v decoded, sub boxes=%v, sz=%v", FourccString(b.BoxType), len(b.Boxes), b.sz())
    }
    return
}

// WriteBox serializes a box: header, body fields, then each child.
func WriteBox(w *BufWriter, box Box) (err error) {
    b := box.Basic()
    if err = b.writeHeader(w); err != nil {
        return
    }
    if err = box.EncodeHeader(w); err != nil {
        return
    }
    for _, child := range b.Boxes {
        if err = WriteBox(w, child); err != nil {
            return
        }
    }
    return
}

// FindBoxByType returns the first match in depth-first pre-order, including box itself.
func FindBoxByType(box Box, bt uint32) Box {
    if box.Basic().BoxType == bt {
        return box
    }
    for _, child := range box.Basic().Boxes {
        if b := FindBoxByType(child, bt); b != nil {
            return b
        }
    }
    return nil
}

// FindAllBoxesByType appends every match in depth-first pre-order.
func FindAllBoxesByType(box Box, bt uint32) (out []Box) {
    if box.Basic().BoxType == bt {
        out = append(out, box)
    }
    for _, child := range box.Basic().Boxes {
        out = append(out, FindAllBoxesByType(child, bt)...)
    }
    return
}

// DumpBox prints the box tree for inspection.
func DumpBox(w io.Writer, box Box, prefix string) {
    b := box.Basic()
    fmt.Fprintf(w, "%s%s size: %v\n", prefix, FourccString(b.BoxType), b.sz())
    for _, child := range b.Boxes {
        DumpBox(w, child, prefix+". ")
    }
}

// Mp4RootBox is the logical pseudo-box over the top-level boxes of a file.
// It is serialized as the concatenation of its children only, no header.
type Mp4RootBox struct {
    Mp4Box
}

func NewMp4RootBox() *Mp4RootBox {
    v := &Mp4RootBox{}
    v.BoxType = Mp4BoxTypeROOT
    v.SmallSize = 0x7fffffff
    return v
}

func (v *Mp4RootBox) Parse(r *BufReader) (err error) {
    v.StartPos = r.Tell()
    return v.DecodeBoxes(r)
}

func (v *Mp4RootBox) Write(w *BufWriter) (err error) {
    for _, box := range v.Boxes {
        box.CalcSize()
        if err = WriteBox(w, box); err != nil {
            return
        }
    }
    return
}

func (v *Mp4RootBox) Moov() (*Mp4MovieBox, error) {
    if box, err := v.get(Mp4BoxTypeMOOV); err != nil {
        return nil, err
    } else {
        return box.(*Mp4MovieBox), nil
    }
}

// Mp4ContainerBox is a box that carries no fields of its own, just children
// (udta, edts, mvex, dts).
type Mp4ContainerBox struct {
    Mp4Box
}

func NewMp4ContainerBox(bt uint32) *Mp4ContainerBox {
    v := &Mp4ContainerBox{}
    v.BoxType = bt
    return v
}

func (v *Mp4ContainerBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4ContainerBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

// Mp4UnknownBox holds the opaque body of a tag the registry does not know.
// It round-trips byte-for-byte.
type Mp4UnknownBox struct {
    Mp4Box
    Data []uint8
}

func NewMp4UnknownBox() *Mp4UnknownBox {
    return &Mp4UnknownBox{}
}

func (v *Mp4UnknownBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4UnknownBox) DecodeHeader(r *BufReader) (err error) {
    v.Data = make([]uint8, v.left())
    return v.Read(r, v.Data)
}

func (v *Mp4UnknownBox) EncodeHeader(w *BufWriter) (err error) {
    return w.WriteBytes(v.Data)
}

func (v *Mp4UnknownBox) CalcSize() uint64 {
    size := v.NbHeader() + uint64(len(v.Data))
    if v.SmallSize == Mp4UseLargeSize {
        v.LargeSize = size
    } else {
        v.SmallSize = uint32(size)
    }
    return size
}

// Mp4UnknownBoxRef records only the file offset and original size of a body
// that exceeds BoxReadSizeLimit, so mdat never loads into memory. It can be
// serialized only while the source reader is still attached: the body is then
// streamed back out of the input.
type Mp4UnknownBoxRef struct {
    Mp4Box
    Offset int64
    Source *BufReader
}

func NewMp4UnknownBoxRef() *Mp4UnknownBoxRef {
    return &Mp4UnknownBoxRef{}
}

func (v *Mp4UnknownBoxRef) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4UnknownBoxRef) DecodeHeader(r *BufReader) (err error) {
    v.Offset = r.Tell()
    v.Source = r
    return
}

func (v *Mp4UnknownBoxRef) EncodeHeader(w *BufWriter) (err error) {
    if v.Source == nil {
        return fmt.Errorf("box %v has no source to stream %v bytes from", FourccString(v.BoxType), v.left())
    }
    if err = v.Source.Seek(v.Offset); err != nil {
        return
    }
    left := v.sz() - v.NbHeader()
    buf := make([]byte, mp4BufSize)
    for left > 0 {
        chunk := buf
        if left < mp4BufSize {
            chunk = buf[:left]
        }
        if err = v.Source.ReadFull(chunk); err != nil {
            return
        }
        if err = w.WriteBytes(chunk); err != nil {
            return
        }
        left -= uint64(len(chunk))
    }
    return
}

// The size of a ref box cannot be recomputed, the body was never loaded.
func (v *Mp4UnknownBoxRef) CalcSize() uint64 {
    return v.sz()
}

// Mp4FreeSpaceBox, the contents are irrelevant and preserved.
type Mp4FreeSpaceBox struct {
    Mp4Box
    Data []uint8
}

func NewMp4FreeSpaceBox() *Mp4FreeSpaceBox {
    v := &Mp4FreeSpaceBox{}
    v.BoxType = Mp4BoxTypeFREE
    return v
}

func (v *Mp4FreeSpaceBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4FreeSpaceBox) DecodeHeader(r *BufReader) (err error) {
    v.Data = make([]uint8, v.left())
    return v.Read(r, v.Data)
}

func (v *Mp4FreeSpaceBox) EncodeHeader(w *BufWriter) (err error) {
    return w.WriteBytes(v.Data)
}

func (v *Mp4FreeSpaceBox) CalcSize() uint64 {
    size := uint64(8) + uint64(len(v.Data))
    v.SmallSize = uint32(size)
    return size
}

/**
 * 4.2 Object Structure
 * ISO_IEC_14496-12-base-format-2012.pdf, page 17
 */
type Mp4FullBox struct {
    Mp4Box
    Version uint8
    Flags   uint32
}

func (v *Mp4FullBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4FullBox) NbHeader() uint64 {
    return v.Mp4Box.NbHeader() + 4
}

func (v *Mp4FullBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Read(r, &v.Flags); err != nil {
        log.Errorf("read full box header failed, err is %v", err)
        return
    }
    v.Version = uint8((v.Flags >> 24) & 0xff)
    v.Flags = v.Flags & 0x00ffffff
    return
}

func (v *Mp4FullBox) EncodeHeader(w *BufWriter) (err error) {
    return w.WriteU32(uint32(v.Version)<<24 | (v.Flags & 0x00ffffff))
}
