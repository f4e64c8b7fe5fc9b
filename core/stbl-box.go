package core

import (
    "fmt"
    "sort"

    log "github.com/sirupsen/logrus"
)

type Mp4StscEntry struct {
    FirstChunk      uint32
    SamplesPerChunk uint32
    SampleDescIdx   uint32
}

/**
 * 8.7.4 Sample To Chunk Box (stsc)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 58
 * Samples within the media data are grouped into chunks. Chunks can be of different sizes, and the samples
 * within a chunk can have different sizes. This table can be used to find the chunk that contains a sample,
 * its position, and the associated sample description.
 */
type Mp4Sample2ChunkBox struct {
    Mp4FullBox
    Entries []Mp4StscEntry
}

func NewMp4Sample2ChunkBox() *Mp4Sample2ChunkBox {
    v := &Mp4Sample2ChunkBox{}
    v.BoxType = Mp4BoxTypeSTSC
    return v
}

func (v *Mp4Sample2ChunkBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

// SampleToChunk maps a 0-based sample index to a 0-based chunk index by
// walking the run-length entries.
func (v *Mp4Sample2ChunkBox) SampleToChunk(n uint32) uint32 {
    ofs := uint32(0)
    ch := uint32(1)
    lch := uint32(1)
    lspc := uint32(1)
    for _, entry := range v.Entries {
        ofs += (entry.FirstChunk - lch) * lspc
        if n < ofs {
            break
        }
        ch = entry.FirstChunk + (n-ofs)/entry.SamplesPerChunk
        lspc = entry.SamplesPerChunk
        lch = entry.FirstChunk
    }
    return ch - 1
}

func (v *Mp4Sample2ChunkBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    var nbEntries uint32
    if err = v.Read(r, &nbEntries); err != nil {
        log.Errorf("read stsc entry count failed, err is %v", err)
        return
    }
    if uint64(nbEntries)*12 > v.left() {
        return fmt.Errorf("%w: stsc declares %v entries, %v bytes left", ErrMalformedTable, nbEntries, v.left())
    }

    v.Entries = make([]Mp4StscEntry, nbEntries)
    for i := uint32(0); i < nbEntries; i++ {
        entry := &v.Entries[i]
        if err = v.Read(r, &entry.FirstChunk); err != nil {
            return
        }
        if err = v.Read(r, &entry.SamplesPerChunk); err != nil {
            return
        }
        if err = v.Read(r, &entry.SampleDescIdx); err != nil {
            return
        }
    }
    log.Tracef("decode stsc success, entries=%v", nbEntries)
    return
}

func (v *Mp4Sample2ChunkBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(uint32(len(v.Entries))); err != nil {
        return
    }
    for _, entry := range v.Entries {
        if err = w.WriteU32(entry.FirstChunk); err != nil {
            return
        }
        if err = w.WriteU32(entry.SamplesPerChunk); err != nil {
            return
        }
        if err = w.WriteU32(entry.SampleDescIdx); err != nil {
            return
        }
    }
    return
}

func (v *Mp4Sample2ChunkBox) CalcSize() uint64 {
    size := uint64(16) + uint64(len(v.Entries))*12
    v.SmallSize = uint32(size)
    return size
}

/**
 * 8.7.3.2 Sample Size Box (stsz)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 58
 * Either one constant sample size, or per-sample sizes.
 */
type Mp4SampleSizeBox struct {
    Mp4FullBox
    ConstantSize uint32
    NbSamples    uint32
    Sizes        []uint32
}

func NewMp4SampleSizeBox() *Mp4SampleSizeBox {
    v := &Mp4SampleSizeBox{}
    v.BoxType = Mp4BoxTypeSTSZ
    return v
}

func (v *Mp4SampleSizeBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4SampleSizeBox) SampleCount() uint32 {
    return v.NbSamples
}

func (v *Mp4SampleSizeBox) SampleSize(n uint32) uint32 {
    if v.ConstantSize != 0 {
        return v.ConstantSize
    }
    return v.Sizes[n]
}

func (v *Mp4SampleSizeBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if err = v.Read(r, &v.ConstantSize); err != nil {
        log.Errorf("read stsz constant size failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.NbSamples); err != nil {
        log.Errorf("read stsz sample count failed, err is %v", err)
        return
    }

    if v.ConstantSize != 0 {
        return
    }

    if uint64(v.NbSamples)*4 > v.left() {
        return fmt.Errorf("%w: stsz declares %v samples, %v bytes left", ErrMalformedTable, v.NbSamples, v.left())
    }
    v.Sizes = make([]uint32, v.NbSamples)
    for i := uint32(0); i < v.NbSamples; i++ {
        if err = v.Read(r, &v.Sizes[i]); err != nil {
            return
        }
    }
    log.Tracef("decode stsz success, samples=%v", v.NbSamples)
    return
}

func (v *Mp4SampleSizeBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(v.ConstantSize); err != nil {
        return
    }
    if err = w.WriteU32(v.NbSamples); err != nil {
        return
    }
    if v.ConstantSize != 0 {
        return
    }
    for _, size := range v.Sizes {
        if err = w.WriteU32(size); err != nil {
            return
        }
    }
    return
}

func (v *Mp4SampleSizeBox) CalcSize() uint64 {
    size := uint64(20)
    if v.ConstantSize == 0 {
        size += uint64(len(v.Sizes)) * 4
    }
    v.SmallSize = uint32(size)
    return size
}

/**
 * 8.7.5 Chunk Offset Box (stco)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 59
 * The chunk offset table gives the index of each chunk into the containing file.
 */
type Mp4ChunkOffsetBox struct {
    Mp4FullBox
    Offsets []uint32
}

func NewMp4ChunkOffsetBox() *Mp4ChunkOffsetBox {
    v := &Mp4ChunkOffsetBox{}
    v.BoxType = Mp4BoxTypeSTCO
    return v
}

func (v *Mp4ChunkOffsetBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4ChunkOffsetBox) ChunkCount() uint32 {
    return uint32(len(v.Offsets))
}

func (v *Mp4ChunkOffsetBox) Offset(chunk uint32) uint32 {
    return v.Offsets[chunk]
}

// MoveAll shifts every chunk offset, for rewrites that displace mdat.
func (v *Mp4ChunkOffsetBox) MoveAll(ofs int32) {
    for i := range v.Offsets {
        v.Offsets[i] = uint32(int32(v.Offsets[i]) + ofs)
    }
}

func (v *Mp4ChunkOffsetBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    var nbChunks uint32
    if err = v.Read(r, &nbChunks); err != nil {
        log.Errorf("read stco chunk count failed, err is %v", err)
        return
    }
    if uint64(nbChunks)*4 > v.left() {
        return fmt.Errorf("%w: stco declares %v chunks, %v bytes left", ErrMalformedTable, nbChunks, v.left())
    }

    v.Offsets = make([]uint32, nbChunks)
    for i := uint32(0); i < nbChunks; i++ {
        if err = v.Read(r, &v.Offsets[i]); err != nil {
            return
        }
    }
    log.Tracef("decode stco success, chunks=%v", nbChunks)
    return
}

func (v *Mp4ChunkOffsetBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(uint32(len(v.Offsets))); err != nil {
        return
    }
    for _, offset := range v.Offsets {
        if err = w.WriteU32(offset); err != nil {
            return
        }
    }
    return
}

func (v *Mp4ChunkOffsetBox) CalcSize() uint64 {
    size := uint64(16) + uint64(len(v.Offsets))*4
    v.SmallSize = uint32(size)
    return size
}

type Mp4SttsEntry struct {
    SampleCount uint32
    SampleDelta uint32
}

/**
 * 8.6.1.2 Decoding Time to Sample Box (stts)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 48
 * A compact run-length version of the table mapping decode time to sample number.
 */
type Mp4DecodingTime2SampleBox struct {
    Mp4FullBox
    Entries []Mp4SttsEntry
}

func NewMp4DecodingTime2SampleBox() *Mp4DecodingTime2SampleBox {
    v := &Mp4DecodingTime2SampleBox{}
    v.BoxType = Mp4BoxTypeSTTS
    return v
}

func (v *Mp4DecodingTime2SampleBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

// TotalCount is the number of samples the table covers.
func (v *Mp4DecodingTime2SampleBox) TotalCount() (count uint64) {
    for _, entry := range v.Entries {
        count += uint64(entry.SampleCount)
    }
    return
}

// SampleToTime returns the decode timestamp of a 0-based sample index.
// An index beyond the table returns the total duration.
func (v *Mp4DecodingTime2SampleBox) SampleToTime(n uint32) uint64 {
    t := uint64(0)
    for _, entry := range v.Entries {
        if n < entry.SampleCount {
            return t + uint64(n)*uint64(entry.SampleDelta)
        }
        n -= entry.SampleCount
        t += uint64(entry.SampleCount) * uint64(entry.SampleDelta)
    }
    return t
}

func (v *Mp4DecodingTime2SampleBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    var nbEntries uint32
    if err = v.Read(r, &nbEntries); err != nil {
        log.Errorf("read stts entry count failed, err is %v", err)
        return
    }
    if uint64(nbEntries)*8 > v.left() {
        return fmt.Errorf("%w: stts declares %v entries, %v bytes left", ErrMalformedTable, nbEntries, v.left())
    }

    v.Entries = make([]Mp4SttsEntry, nbEntries)
    for i := uint32(0); i < nbEntries; i++ {
        entry := &v.Entries[i]
        if err = v.Read(r, &entry.SampleCount); err != nil {
            return
        }
        if err = v.Read(r, &entry.SampleDelta); err != nil {
            return
        }
    }
    log.Tracef("decode stts success, entries=%v", nbEntries)
    return
}

func (v *Mp4DecodingTime2SampleBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(uint32(len(v.Entries))); err != nil {
        return
    }
    for _, entry := range v.Entries {
        if err = w.WriteU32(entry.SampleCount); err != nil {
            return
        }
        if err = w.WriteU32(entry.SampleDelta); err != nil {
            return
        }
    }
    return
}

func (v *Mp4DecodingTime2SampleBox) CalcSize() uint64 {
    size := uint64(16) + uint64(len(v.Entries))*8
    v.SmallSize = uint32(size)
    return size
}

type Mp4CttsEntry struct {
    SampleCount  uint32
    SampleOffset uint32
}

/**
 * 8.6.1.3 Composition Time to Sample Box (ctts)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 49
 * Provides the offset between decoding time and composition time.
 */
type Mp4CompositionTime2SampleBox struct {
    Mp4FullBox
    Entries []Mp4CttsEntry
}

func NewMp4CompositionTime2SampleBox() *Mp4CompositionTime2SampleBox {
    v := &Mp4CompositionTime2SampleBox{}
    v.BoxType = Mp4BoxTypeCTTS
    return v
}

func (v *Mp4CompositionTime2SampleBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4CompositionTime2SampleBox) TotalCount() (count uint64) {
    for _, entry := range v.Entries {
        count += uint64(entry.SampleCount)
    }
    return
}

// SampleToOffset returns the composition offset of a 0-based sample index.
func (v *Mp4CompositionTime2SampleBox) SampleToOffset(n uint32) uint32 {
    ofs := uint32(0)
    s := uint32(0)
    for _, entry := range v.Entries {
        ofs = entry.SampleOffset
        s += entry.SampleCount
        if n < s {
            break
        }
    }
    return ofs
}

func (v *Mp4CompositionTime2SampleBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    var nbEntries uint32
    if err = v.Read(r, &nbEntries); err != nil {
        log.Errorf("read ctts entry count failed, err is %v", err)
        return
    }
    if uint64(nbEntries)*8 > v.left() {
        return fmt.Errorf("%w: ctts declares %v entries, %v bytes left", ErrMalformedTable, nbEntries, v.left())
    }

    v.Entries = make([]Mp4CttsEntry, nbEntries)
    for i := uint32(0); i < nbEntries; i++ {
        entry := &v.Entries[i]
        if err = v.Read(r, &entry.SampleCount); err != nil {
            return
        }
        if err = v.Read(r, &entry.SampleOffset); err != nil {
            return
        }
    }
    log.Tracef("decode ctts success, entries=%v", nbEntries)
    return
}

func (v *Mp4CompositionTime2SampleBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(uint32(len(v.Entries))); err != nil {
        return
    }
    for _, entry := range v.Entries {
        if err = w.WriteU32(entry.SampleCount); err != nil {
            return
        }
        if err = w.WriteU32(entry.SampleOffset); err != nil {
            return
        }
    }
    return
}

func (v *Mp4CompositionTime2SampleBox) CalcSize() uint64 {
    size := uint64(16) + uint64(len(v.Entries))*8
    v.SmallSize = uint32(size)
    return size
}

/**
 * 8.6.2 Sync Sample Box (stss)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 51
 * Provides a compact marking of the sync samples within the stream. The table is arranged in strictly
 * increasing order of sample number. If it is absent, every sample is a sync sample.
 */
type Mp4SyncSampleBox struct {
    Mp4FullBox
    // 1-based sample indices, sorted ascending.
    Samples []uint32
}

func NewMp4SyncSampleBox() *Mp4SyncSampleBox {
    v := &Mp4SyncSampleBox{}
    v.BoxType = Mp4BoxTypeSTSS
    return v
}

func (v *Mp4SyncSampleBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

// Include reports whether the 1-based sample index is a sync point.
func (v *Mp4SyncSampleBox) Include(sample uint32) bool {
    i := sort.Search(len(v.Samples), func(i int) bool {
        return v.Samples[i] >= sample
    })
    return i < len(v.Samples) && v.Samples[i] == sample
}

func (v *Mp4SyncSampleBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    var nbEntries uint32
    if err = v.Read(r, &nbEntries); err != nil {
        log.Errorf("read stss entry count failed, err is %v", err)
        return
    }
    if uint64(nbEntries)*4 > v.left() {
        return fmt.Errorf("%w: stss declares %v entries, %v bytes left", ErrMalformedTable, nbEntries, v.left())
    }

    v.Samples = make([]uint32, nbEntries)
    for i := uint32(0); i < nbEntries; i++ {
        if err = v.Read(r, &v.Samples[i]); err != nil {
            return
        }
    }
    log.Tracef("decode stss success, entries=%v", nbEntries)
    return
}

func (v *Mp4SyncSampleBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }
    if err = w.WriteU32(uint32(len(v.Samples))); err != nil {
        return
    }
    for _, sample := range v.Samples {
        if err = w.WriteU32(sample); err != nil {
            return
        }
    }
    return
}

func (v *Mp4SyncSampleBox) CalcSize() uint64 {
    size := uint64(16) + uint64(len(v.Samples))*4
    v.SmallSize = uint32(size)
    return size
}
