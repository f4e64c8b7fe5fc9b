package core

import (
    "bytes"

    log "github.com/sirupsen/logrus"
)

/**
 * 8.4.3 Handler Reference Box (hdlr)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 37
 * This box within a Media Box declares the process by which the media-data in the track is presented, and thus,
 * the nature of the media in a track. For example, a video track would be handled by a video handler.
 */
type Mp4HandlerReferenceBox struct {
    Mp4FullBox
    PreDefined uint32
    // an integer containing one of the following values, or a value from a derived specification:
    //      'vide', Video track
    //      'soun', Audio track
    HandlerType uint32
    // The raw name bytes, a null-terminated string in UTF-8 characters which gives a
    // human-readable name for the track type. Kept verbatim to round-trip padding.
    NameData []uint8
}

func NewMp4HandlerReferenceBox() *Mp4HandlerReferenceBox {
    v := &Mp4HandlerReferenceBox{}
    v.BoxType = Mp4BoxTypeHDLR
    return v
}

func (v *Mp4HandlerReferenceBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4HandlerReferenceBox) Name() string {
    if i := bytes.IndexByte(v.NameData, 0); i >= 0 {
        return string(v.NameData[:i])
    }
    return string(v.NameData)
}

func (v *Mp4HandlerReferenceBox) SetName(name string) {
    v.NameData = append([]uint8(name), 0)
}

func (v *Mp4HandlerReferenceBox) IsVideo() bool {
    return v.HandlerType == Mp4HandlerTypeVIDE
}

func (v *Mp4HandlerReferenceBox) IsAudio() bool {
    return v.HandlerType == Mp4HandlerTypeSOUN
}

func (v *Mp4HandlerReferenceBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if err = v.Read(r, &v.PreDefined); err != nil {
        log.Errorf("read hdlr pre defined failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.HandlerType); err != nil {
        log.Errorf("read hdlr handler type failed, err is %v", err)
        return
    }

    // reserved: 3*u32.
    v.Skip(r, 12)

    v.NameData = make([]uint8, v.left())
    if err = v.Read(r, v.NameData); err != nil {
        log.Errorf("read hdlr name failed, err is %v", err)
        return
    }

    log.Tracef("decode hdlr success, type=%v name=%v", FourccString(v.HandlerType), v.Name())
    return
}

func (v *Mp4HandlerReferenceBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(v.PreDefined); err != nil {
        return
    }
    if err = w.WriteU32(v.HandlerType); err != nil {
        return
    }
    if err = w.WriteBytes(make([]byte, 12)); err != nil {
        return
    }
    return w.WriteBytes(v.NameData)
}

func (v *Mp4HandlerReferenceBox) CalcSize() uint64 {
    size := uint64(12+4+4+12) + uint64(len(v.NameData))
    v.SmallSize = uint32(size)
    return size
}
