package core

/**
 * 8.1.1 Media Data Box (mdat)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 29
 * This box contains the media data. This variant is the authoring side used by
 * the segmenter; when parsing, a large mdat becomes an Mp4UnknownBoxRef and the
 * payload stays in the file.
 */
type Mp4MediaDataBox struct {
    Mp4Box
    Data []uint8
}

func NewMp4MediaDataBox() *Mp4MediaDataBox {
    v := &Mp4MediaDataBox{}
    v.BoxType = Mp4BoxTypeMDAT
    return v
}

func (v *Mp4MediaDataBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4MediaDataBox) DecodeHeader(r *BufReader) (err error) {
    v.Data = make([]uint8, v.left())
    return v.Read(r, v.Data)
}

func (v *Mp4MediaDataBox) EncodeHeader(w *BufWriter) (err error) {
    return w.WriteBytes(v.Data)
}

func (v *Mp4MediaDataBox) CalcSize() uint64 {
    size := uint64(8) + uint64(len(v.Data))
    v.SmallSize = uint32(size)
    return size
}
