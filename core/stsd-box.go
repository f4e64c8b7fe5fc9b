package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

// Mp4SampleEntryData is one length-prefixed sample description. The body is
// kept opaque so any muxer can extract the codec-specific configuration
// (avcC, esds) without this package decoding elementary stream syntax.
type Mp4SampleEntryData struct {
    EntryType uint32
    Data      []uint8
}

/**
 * 8.5.2 Sample Description Box (stsd)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 43
 */
type Mp4SampleDescriptionBox struct {
    Mp4FullBox
    Entries []*Mp4SampleEntryData
}

func NewMp4SampleDescriptionBox() *Mp4SampleDescriptionBox {
    v := &Mp4SampleDescriptionBox{}
    v.BoxType = Mp4BoxTypeSTSD
    return v
}

func (v *Mp4SampleDescriptionBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

// EntryTypeString is the fourcc of the first sample description, e.g. avc1 or mp4a.
func (v *Mp4SampleDescriptionBox) EntryTypeString() string {
    if len(v.Entries) == 0 {
        return ""
    }
    return FourccString(v.Entries[0].EntryType)
}

// Desc is the opaque body of the first sample description.
func (v *Mp4SampleDescriptionBox) Desc() []uint8 {
    if len(v.Entries) == 0 {
        return nil
    }
    return v.Entries[0].Data
}

// Clone deep-copies the box so the segmenter can splice it into a fresh stbl
// without sharing the subtree.
func (v *Mp4SampleDescriptionBox) Clone() *Mp4SampleDescriptionBox {
    nv := NewMp4SampleDescriptionBox()
    nv.Version, nv.Flags = v.Version, v.Flags
    for _, entry := range v.Entries {
        ne := &Mp4SampleEntryData{EntryType: entry.EntryType}
        ne.Data = append([]uint8{}, entry.Data...)
        nv.Entries = append(nv.Entries, ne)
    }
    nv.CalcSize()
    return nv
}

func (v *Mp4SampleDescriptionBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    var nbEntries uint32
    if err = v.Read(r, &nbEntries); err != nil {
        log.Errorf("read stsd entry count failed, err is %v", err)
        return
    }

    for i := uint32(0); i < nbEntries; i++ {
        if v.left() < 8 {
            return fmt.Errorf("%w: stsd declares %v entries, body ends at %v", ErrMalformedTable, nbEntries, i)
        }

        var length, entryType uint32
        if err = v.Read(r, &length); err != nil {
            return
        }
        if err = v.Read(r, &entryType); err != nil {
            return
        }
        if length < 8 || uint64(length-8) > v.left() {
            return fmt.Errorf("%w: stsd entry %v length %v", ErrMalformedTable, i, length)
        }

        entry := &Mp4SampleEntryData{EntryType: entryType}
        entry.Data = make([]uint8, length-8)
        if err = v.Read(r, entry.Data); err != nil {
            log.Errorf("read stsd entry %v body failed, err is %v", i, err)
            return
        }
        v.Entries = append(v.Entries, entry)
    }

    log.Tracef("decode stsd success, entries=%v type=%v", len(v.Entries), v.EntryTypeString())
    return
}

func (v *Mp4SampleDescriptionBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(uint32(len(v.Entries))); err != nil {
        return
    }
    for _, entry := range v.Entries {
        if err = w.WriteU32(uint32(8 + len(entry.Data))); err != nil {
            return
        }
        if err = w.WriteU32(entry.EntryType); err != nil {
            return
        }
        if err = w.WriteBytes(entry.Data); err != nil {
            return
        }
    }
    return
}

func (v *Mp4SampleDescriptionBox) CalcSize() uint64 {
    size := uint64(16)
    for _, entry := range v.Entries {
        size += 8 + uint64(len(entry.Data))
    }
    v.SmallSize = uint32(size)
    return size
}
