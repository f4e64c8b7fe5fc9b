package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

/**
 * 8.16.3 Segment Index Box (sidx)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 103
 * Provides a compact index of one media stream within the media segment to which it applies.
 * The reference triples are stored flat, three u32 per entry: (reference, subsegment
 * duration, SAP flags); bit 31 of the flags marks SAP-at-start.
 */
type Mp4SegmentIndexBox struct {
    Mp4FullBox
    ReferenceId uint32
    TimeScale   uint32
    EarliestPts uint64
    FirstOffset uint64
    Data        []uint32
}

func NewMp4SegmentIndexBox() *Mp4SegmentIndexBox {
    v := &Mp4SegmentIndexBox{
        ReferenceId: 1,
        TimeScale:   1000,
    }
    v.BoxType = Mp4BoxTypeSIDX
    v.Version = 1
    return v
}

func (v *Mp4SegmentIndexBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4SegmentIndexBox) ReferenceCount() int {
    return len(v.Data) / 3
}

func (v *Mp4SegmentIndexBox) SubsegmentDuration(n int) uint32 {
    return v.Data[n*3+1]
}

func (v *Mp4SegmentIndexBox) StartsWithSAP(n int) bool {
    return (v.Data[n*3+2] & 0x80000000) != 0
}

func (v *Mp4SegmentIndexBox) AddReference(ref, duration, sapFlags uint32) {
    v.Data = append(v.Data, ref, duration, sapFlags)
}

func (v *Mp4SegmentIndexBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if v.Version > 1 {
        return fmt.Errorf("%w: sidx version %v", ErrUnsupportedVersion, v.Version)
    }

    if err = v.Read(r, &v.ReferenceId); err != nil {
        log.Errorf("read sidx reference id failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.TimeScale); err != nil {
        log.Errorf("read sidx timescale failed, err is %v", err)
        return
    }

    if v.Version == 0 {
        var tmp uint32
        if err = v.Read(r, &tmp); err != nil {
            return
        }
        v.EarliestPts = uint64(tmp)
        if err = v.Read(r, &tmp); err != nil {
            return
        }
        v.FirstOffset = uint64(tmp)
    } else {
        if err = v.Read(r, &v.EarliestPts); err != nil {
            return
        }
        if err = v.Read(r, &v.FirstOffset); err != nil {
            return
        }
    }

    var reserved, nbReferences uint16
    if err = v.Read(r, &reserved); err != nil {
        return
    }
    if err = v.Read(r, &nbReferences); err != nil {
        return
    }
    if uint64(nbReferences)*12 > v.left() {
        return fmt.Errorf("%w: sidx declares %v references, %v bytes left", ErrMalformedTable, nbReferences, v.left())
    }

    v.Data = make([]uint32, 0, int(nbReferences)*3)
    for i := uint16(0); i < nbReferences; i++ {
        for j := 0; j < 3; j++ {
            var d uint32
            if err = v.Read(r, &d); err != nil {
                return
            }
            v.Data = append(v.Data, d)
        }
    }
    log.Tracef("decode sidx success, references=%v", nbReferences)
    return
}

func (v *Mp4SegmentIndexBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(v.ReferenceId); err != nil {
        return
    }
    if err = w.WriteU32(v.TimeScale); err != nil {
        return
    }
    if v.Version == 0 {
        if err = w.WriteU32(uint32(v.EarliestPts)); err != nil {
            return
        }
        if err = w.WriteU32(uint32(v.FirstOffset)); err != nil {
            return
        }
    } else {
        if err = w.WriteU64(v.EarliestPts); err != nil {
            return
        }
        if err = w.WriteU64(v.FirstOffset); err != nil {
            return
        }
    }
    if err = w.WriteU16(0); err != nil {
        return
    }
    if err = w.WriteU16(uint16(v.ReferenceCount())); err != nil {
        return
    }
    for _, d := range v.Data {
        if err = w.WriteU32(d); err != nil {
            return
        }
    }
    return
}

func (v *Mp4SegmentIndexBox) CalcSize() uint64 {
    size := uint64(40) + uint64(len(v.Data))*4
    if v.Version == 0 {
        size -= 8
    }
    v.SmallSize = uint32(size)
    return size
}

/**
 * 8.8.5 Movie Fragment Header Box (mfhd)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 67
 * The sequence number starts at 1 and increases for each movie fragment, in the
 * order they occur in the file.
 */
type Mp4MovieFragmentHeaderBox struct {
    Mp4FullBox
    Sequence uint32
}

func NewMp4MovieFragmentHeaderBox() *Mp4MovieFragmentHeaderBox {
    v := &Mp4MovieFragmentHeaderBox{Sequence: 1}
    v.BoxType = Mp4BoxTypeMFHD
    return v
}

func (v *Mp4MovieFragmentHeaderBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4MovieFragmentHeaderBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }
    return v.Read(r, &v.Sequence)
}

func (v *Mp4MovieFragmentHeaderBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    return w.WriteU32(v.Sequence)
}

func (v *Mp4MovieFragmentHeaderBox) CalcSize() uint64 {
    v.SmallSize = 16
    return 16
}

/**
 * 8.8.7 Track Fragment Header Box (tfhd)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 68
 * Each movie fragment can add zero or more fragments to each track.
 * Every optional field selected by the flags is honored on both directions.
 */
type Mp4TrackFragmentHeaderBox struct {
    Mp4FullBox
    TrackId         uint32
    BaseDataOffset  uint64
    SampleDescIdx   uint32
    DefaultDuration uint32
    DefaultSize     uint32
    DefaultFlags    uint32
}

func NewMp4TrackFragmentHeaderBox() *Mp4TrackFragmentHeaderBox {
    v := &Mp4TrackFragmentHeaderBox{TrackId: 1}
    v.BoxType = Mp4BoxTypeTFHD
    return v
}

func (v *Mp4TrackFragmentHeaderBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4TrackFragmentHeaderBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if err = v.Read(r, &v.TrackId); err != nil {
        log.Errorf("read tfhd track id failed, err is %v", err)
        return
    }
    if v.Flags&Mp4TfhdFlagBaseDataOffset != 0 {
        if err = v.Read(r, &v.BaseDataOffset); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagSampleDescIdx != 0 {
        if err = v.Read(r, &v.SampleDescIdx); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagDefaultDuration != 0 {
        if err = v.Read(r, &v.DefaultDuration); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagDefaultSize != 0 {
        if err = v.Read(r, &v.DefaultSize); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagDefaultFlags != 0 {
        if err = v.Read(r, &v.DefaultFlags); err != nil {
            return
        }
    }
    return
}

func (v *Mp4TrackFragmentHeaderBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(v.TrackId); err != nil {
        return
    }
    if v.Flags&Mp4TfhdFlagBaseDataOffset != 0 {
        if err = w.WriteU64(v.BaseDataOffset); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagSampleDescIdx != 0 {
        if err = w.WriteU32(v.SampleDescIdx); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagDefaultDuration != 0 {
        if err = w.WriteU32(v.DefaultDuration); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagDefaultSize != 0 {
        if err = w.WriteU32(v.DefaultSize); err != nil {
            return
        }
    }
    if v.Flags&Mp4TfhdFlagDefaultFlags != 0 {
        if err = w.WriteU32(v.DefaultFlags); err != nil {
            return
        }
    }
    return
}

func (v *Mp4TrackFragmentHeaderBox) CalcSize() uint64 {
    size := uint64(16)
    if v.Flags&Mp4TfhdFlagBaseDataOffset != 0 {
        size += 8
    }
    if v.Flags&Mp4TfhdFlagSampleDescIdx != 0 {
        size += 4
    }
    if v.Flags&Mp4TfhdFlagDefaultDuration != 0 {
        size += 4
    }
    if v.Flags&Mp4TfhdFlagDefaultSize != 0 {
        size += 4
    }
    if v.Flags&Mp4TfhdFlagDefaultFlags != 0 {
        size += 4
    }
    v.SmallSize = uint32(size)
    return size
}

/**
 * 8.8.12 Track Fragment Decode Time Box (tfdt)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 72
 * Provides the absolute decode time of the first sample of the fragment.
 * This system always writes version 1 (64-bit).
 */
type Mp4TrackFragmentDecodeTimeBox struct {
    Mp4FullBox
    BaseMediaDecodeTime uint64
}

func NewMp4TrackFragmentDecodeTimeBox() *Mp4TrackFragmentDecodeTimeBox {
    v := &Mp4TrackFragmentDecodeTimeBox{}
    v.BoxType = Mp4BoxTypeTFDT
    v.Version = 1
    return v
}

func (v *Mp4TrackFragmentDecodeTimeBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4TrackFragmentDecodeTimeBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }
    if v.Version == 1 {
        return v.Read(r, &v.BaseMediaDecodeTime)
    }
    var tmp uint32
    if err = v.Read(r, &tmp); err != nil {
        return
    }
    v.BaseMediaDecodeTime = uint64(tmp)
    return
}

func (v *Mp4TrackFragmentDecodeTimeBox) EncodeHeader(w *BufWriter) (err error) {
    v.Version = 1
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    return w.WriteU64(v.BaseMediaDecodeTime)
}

func (v *Mp4TrackFragmentDecodeTimeBox) CalcSize() uint64 {
    v.Version = 1
    v.SmallSize = 20
    return 20
}

/**
 * 8.8.8 Track Fragment Run Box (trun)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 69
 * Per-sample rows are the u32 fields selected by the flags, stored flat in
 * row order: duration, size, flags, composition time offset.
 */
type Mp4TrackRunBox struct {
    Mp4FullBox
    NbSamples        uint32
    DataOffset       int32
    FirstSampleFlags uint32
    Data             []uint32
}

func NewMp4TrackRunBox() *Mp4TrackRunBox {
    v := &Mp4TrackRunBox{}
    v.BoxType = Mp4BoxTypeTRUN
    return v
}

func (v *Mp4TrackRunBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4TrackRunBox) fields() uint32 {
    f := uint32(0)
    if v.Flags&Mp4TrunFlagSampleDuration != 0 {
        f++
    }
    if v.Flags&Mp4TrunFlagSampleSize != 0 {
        f++
    }
    if v.Flags&Mp4TrunFlagSampleFlags != 0 {
        f++
    }
    if v.Flags&Mp4TrunFlagSampleCts != 0 {
        f++
    }
    return f
}

// AddSample appends one row of selected fields and bumps the sample count.
func (v *Mp4TrackRunBox) AddSample(row ...uint32) {
    v.Data = append(v.Data, row...)
    v.NbSamples++
}

func (v *Mp4TrackRunBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if err = v.Read(r, &v.NbSamples); err != nil {
        log.Errorf("read trun sample count failed, err is %v", err)
        return
    }
    if v.Flags&Mp4TrunFlagDataOffset != 0 {
        if err = v.Read(r, &v.DataOffset); err != nil {
            return
        }
    }
    if v.Flags&Mp4TrunFlagFirstSampleFlags != 0 {
        if err = v.Read(r, &v.FirstSampleFlags); err != nil {
            return
        }
    }

    n := uint64(v.NbSamples) * uint64(v.fields())
    if n*4 > v.left() {
        return fmt.Errorf("%w: trun declares %v rows, %v bytes left", ErrMalformedTable, v.NbSamples, v.left())
    }
    v.Data = make([]uint32, n)
    for i := uint64(0); i < n; i++ {
        if err = v.Read(r, &v.Data[i]); err != nil {
            return
        }
    }
    return
}

func (v *Mp4TrackRunBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(v.NbSamples); err != nil {
        return
    }
    if v.Flags&Mp4TrunFlagDataOffset != 0 {
        if err = w.Write(v.DataOffset); err != nil {
            return
        }
    }
    if v.Flags&Mp4TrunFlagFirstSampleFlags != 0 {
        if err = w.WriteU32(v.FirstSampleFlags); err != nil {
            return
        }
    }
    for _, d := range v.Data {
        if err = w.WriteU32(d); err != nil {
            return
        }
    }
    return
}

func (v *Mp4TrackRunBox) CalcSize() uint64 {
    size := uint64(16)
    if v.Flags&Mp4TrunFlagDataOffset != 0 {
        size += 4
    }
    if v.Flags&Mp4TrunFlagFirstSampleFlags != 0 {
        size += 4
    }
    size += uint64(len(v.Data)) * 4
    v.SmallSize = uint32(size)
    return size
}

/**
 * 8.8.3 Track Extends Box (trex)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 65
 * Sets up the defaults used by the movie fragments.
 */
type Mp4TrackExtendsBox struct {
    Mp4FullBox
    TrackId         uint32
    DefaultDescIdx  uint32
    DefaultDuration uint32
    DefaultSize     uint32
    DefaultFlags    uint32
}

func NewMp4TrackExtendsBox() *Mp4TrackExtendsBox {
    v := &Mp4TrackExtendsBox{TrackId: 1, DefaultDescIdx: 1}
    v.BoxType = Mp4BoxTypeTREX
    return v
}

func (v *Mp4TrackExtendsBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4TrackExtendsBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }
    if err = v.Read(r, &v.TrackId); err != nil {
        return
    }
    if err = v.Read(r, &v.DefaultDescIdx); err != nil {
        return
    }
    if err = v.Read(r, &v.DefaultDuration); err != nil {
        return
    }
    if err = v.Read(r, &v.DefaultSize); err != nil {
        return
    }
    return v.Read(r, &v.DefaultFlags)
}

func (v *Mp4TrackExtendsBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(v.TrackId); err != nil {
        return
    }
    if err = w.WriteU32(v.DefaultDescIdx); err != nil {
        return
    }
    if err = w.WriteU32(v.DefaultDuration); err != nil {
        return
    }
    if err = w.WriteU32(v.DefaultSize); err != nil {
        return
    }
    return w.WriteU32(v.DefaultFlags)
}

func (v *Mp4TrackExtendsBox) CalcSize() uint64 {
    v.SmallSize = 32
    return 32
}

/**
 * Protection System Specific Header Box (pssh)
 * ISO_IEC_23001-7, 8.1. Parsed for inspection only; no cryptographic
 * operations are performed on the payload.
 */
type Mp4ProtectionSystemBox struct {
    Mp4FullBox
    SystemId [16]uint8
    KIds     [][16]uint8
    Data     []uint8
}

func NewMp4ProtectionSystemBox() *Mp4ProtectionSystemBox {
    v := &Mp4ProtectionSystemBox{}
    v.BoxType = Mp4BoxTypePSSH
    return v
}

func (v *Mp4ProtectionSystemBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4ProtectionSystemBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if err = v.Read(r, v.SystemId[:]); err != nil {
        log.Errorf("read pssh system id failed, err is %v", err)
        return
    }

    if v.Version > 0 {
        var nbKids uint32
        if err = v.Read(r, &nbKids); err != nil {
            return
        }
        if uint64(nbKids)*16 > v.left() {
            return fmt.Errorf("%w: pssh declares %v kids, %v bytes left", ErrMalformedTable, nbKids, v.left())
        }
        v.KIds = make([][16]uint8, nbKids)
        for i := uint32(0); i < nbKids; i++ {
            if err = v.Read(r, v.KIds[i][:]); err != nil {
                return
            }
        }
    }

    var nbData uint32
    if err = v.Read(r, &nbData); err != nil {
        return
    }
    if uint64(nbData) > v.left() {
        return fmt.Errorf("%w: pssh declares %v data bytes, %v left", ErrMalformedTable, nbData, v.left())
    }
    v.Data = make([]uint8, nbData)
    if err = v.Read(r, v.Data); err != nil {
        return
    }
    log.Tracef("decode pssh success, kids=%v data=%v", len(v.KIds), len(v.Data))
    return
}

func (v *Mp4ProtectionSystemBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteBytes(v.SystemId[:]); err != nil {
        return
    }
    if v.Version > 0 {
        if err = w.WriteU32(uint32(len(v.KIds))); err != nil {
            return
        }
        for i := range v.KIds {
            if err = w.WriteBytes(v.KIds[i][:]); err != nil {
                return
            }
        }
    }
    if err = w.WriteU32(uint32(len(v.Data))); err != nil {
        return
    }
    return w.WriteBytes(v.Data)
}

func (v *Mp4ProtectionSystemBox) CalcSize() uint64 {
    size := uint64(12+16+4) + uint64(len(v.Data))
    if v.Version > 0 {
        size += 4 + uint64(len(v.KIds))*16
    }
    v.SmallSize = uint32(size)
    return size
}
