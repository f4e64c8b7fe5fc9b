package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

// Sample is one coded frame located through the stbl tables.
type Sample struct {
    Dts       uint64
    TimeScale uint32
    Cto       uint32
    HasCto    bool
    IsSync    bool
    Payload   []uint8
}

// SampleIndex answers per-sample queries against the stbl tables of one trak:
// chunk, file offset, decode timestamp, composition offset and sync flag.
type SampleIndex struct {
    stsc *Mp4Sample2ChunkBox
    stsz *Mp4SampleSizeBox
    stco *Mp4ChunkOffsetBox
    stts *Mp4DecodingTime2SampleBox
    // ctts and stss are optional; absent means zero offsets and all-sync.
    ctts *Mp4CompositionTime2SampleBox
    stss *Mp4SyncSampleBox

    timeScale uint32
}

func NewSampleIndex(trak *Mp4TrackBox) (v *SampleIndex, err error) {
    v = &SampleIndex{}

    if v.stsc, err = trak.Stsc(); err != nil {
        return nil, err
    }
    if v.stsz, err = trak.Stsz(); err != nil {
        return nil, err
    }
    if v.stco, err = trak.Stco(); err != nil {
        return nil, err
    }
    if v.stts, err = trak.Stts(); err != nil {
        return nil, err
    }

    v.ctts, _ = trak.Ctts()
    v.stss, _ = trak.Stss()

    var mdhd *Mp4MediaHeaderBox
    if mdhd, err = trak.Mdhd(); err != nil {
        return nil, err
    }
    v.timeScale = mdhd.TimeScale

    if total := v.stts.TotalCount(); total != uint64(v.stsz.SampleCount()) {
        return nil, fmt.Errorf("%w: stts covers %v samples, stsz has %v", ErrMalformedTable, total, v.stsz.SampleCount())
    }
    if v.ctts != nil {
        if total := v.ctts.TotalCount(); total != uint64(v.stsz.SampleCount()) {
            return nil, fmt.Errorf("%w: ctts covers %v samples, stsz has %v", ErrMalformedTable, total, v.stsz.SampleCount())
        }
    }

    log.Tracef("sample index ready, samples=%v chunks=%v timescale=%v", v.Count(), v.stco.ChunkCount(), v.timeScale)
    return
}

func (v *SampleIndex) Count() uint32 {
    return v.stsz.SampleCount()
}

func (v *SampleIndex) TimeScale() uint32 {
    return v.timeScale
}

func (v *SampleIndex) checkRange(n uint32) error {
    if n >= v.Count() {
        return fmt.Errorf("%w: sample %v beyond count %v", ErrMalformedTable, n, v.Count())
    }
    return nil
}

// SampleToChunk maps a 0-based sample index to its 0-based chunk index.
func (v *SampleIndex) SampleToChunk(n uint32) (uint32, error) {
    if err := v.checkRange(n); err != nil {
        return 0, err
    }
    chunk := v.stsc.SampleToChunk(n)
    if chunk >= v.stco.ChunkCount() {
        return 0, fmt.Errorf("%w: sample %v maps to chunk %v, stco has %v", ErrMalformedTable, n, chunk, v.stco.ChunkCount())
    }
    return chunk, nil
}

// SampleToTime returns the decode timestamp of the sample, in the media timescale.
func (v *SampleIndex) SampleToTime(n uint32) uint64 {
    return v.stts.SampleToTime(n)
}

// SampleToOffset returns the composition offset, zero when ctts is absent.
func (v *SampleIndex) SampleToOffset(n uint32) uint32 {
    if v.ctts == nil {
        return 0
    }
    return v.ctts.SampleToOffset(n)
}

// IsSyncPoint reports whether the 0-based sample starts an independently
// decodable run. Absent stss means every sample is a sync point.
func (v *SampleIndex) IsSyncPoint(n uint32) bool {
    if v.stss == nil {
        return true
    }
    return v.stss.Include(n + 1)
}

func (v *SampleIndex) SampleSize(n uint32) (uint32, error) {
    if err := v.checkRange(n); err != nil {
        return 0, err
    }
    return v.stsz.SampleSize(n), nil
}

// FileOffset resolves the absolute file position of the sample payload:
// the chunk base from stco plus the sizes of the preceding samples in the
// same chunk.
func (v *SampleIndex) FileOffset(n uint32) (uint64, error) {
    chunk, err := v.SampleToChunk(n)
    if err != nil {
        return 0, err
    }

    var ofs uint64
    for i := n; i > 0; i-- {
        if v.stsc.SampleToChunk(i-1) != chunk {
            break
        }
        ofs += uint64(v.stsz.SampleSize(i - 1))
    }
    return uint64(v.stco.Offset(chunk)) + ofs, nil
}

// SampleReader iterates the samples of one track sequentially, keeping the
// current chunk and the running offset inside it so consecutive reads cost
// one table walk each. States: Ready(pos) and EOS.
type SampleReader struct {
    index *SampleIndex

    pos           uint32
    currentChunk  uint32
    hasChunk      bool
    offsetInChunk uint64
}

func NewSampleReader(index *SampleIndex) *SampleReader {
    return &SampleReader{index: index}
}

func (v *SampleReader) Pos() uint32 {
    return v.pos
}

func (v *SampleReader) EOS() bool {
    return v.pos >= v.index.Count()
}

// Seek repositions the reader and recomputes the chunk state from scratch.
// Seeking past the last sample is an error.
func (v *SampleReader) Seek(s uint32) (err error) {
    if s >= v.index.Count() {
        return fmt.Errorf("%w: seek to sample %v beyond count %v", ErrTruncated, s, v.index.Count())
    }

    if v.currentChunk, err = v.index.SampleToChunk(s); err != nil {
        return
    }
    v.hasChunk = true
    v.offsetInChunk = 0
    for i := s; i > 0; i-- {
        if v.index.stsc.SampleToChunk(i-1) != v.currentChunk {
            break
        }
        v.offsetInChunk += uint64(v.index.stsz.SampleSize(i - 1))
    }
    v.pos = s
    return
}

// Read returns the sample at the current position and advances. Reading when
// EOS is an error.
func (v *SampleReader) Read(r *BufReader) (s *Sample, err error) {
    if v.EOS() {
        return nil, fmt.Errorf("%w: read beyond last sample %v", ErrTruncated, v.index.Count())
    }

    var chunk uint32
    if chunk, err = v.index.SampleToChunk(v.pos); err != nil {
        return
    }
    if !v.hasChunk || chunk != v.currentChunk {
        v.currentChunk = chunk
        v.hasChunk = true
        v.offsetInChunk = 0
    }

    size := v.index.stsz.SampleSize(v.pos)
    fileOffset := uint64(v.index.stco.Offset(chunk)) + v.offsetInChunk

    if err = r.Seek(int64(fileOffset)); err != nil {
        return
    }

    s = &Sample{
        Dts:       v.index.SampleToTime(v.pos),
        TimeScale: v.index.timeScale,
        HasCto:    v.index.ctts != nil,
        IsSync:    v.index.IsSyncPoint(v.pos),
    }
    s.Cto = v.index.SampleToOffset(v.pos)
    if s.Payload, err = r.ReadBytes(uint64(size)); err != nil {
        log.Errorf("read sample %v payload %v bytes at %v failed, err is %v", v.pos, size, fileOffset, err)
        return nil, err
    }

    v.pos++
    v.offsetInChunk += uint64(size)
    return
}
