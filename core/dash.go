package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

// DashInitFileName is the conventional name of the init segment of a stream.
func DashInitFileName(trackIdx int) string {
    return fmt.Sprintf("init-stream%d.m4s", trackIdx)
}

// DashSegmentFileName is the conventional name of one media segment.
func DashSegmentFileName(trackIdx int, frag uint32) string {
    return fmt.Sprintf("chunk-stream%d-%05d.m4s", trackIdx, frag)
}

// DashSegmenter emits a CMAF-compatible init segment plus a stream of media
// fragments (styp/sidx/moof/mdat) for one track, cut at sync-point boundaries.
// Payload bytes are streamed out of the source on demand, so the footprint is
// bounded by the metadata plus the current fragment.
type DashSegmenter struct {
    trak  *Mp4TrackBox
    input *BufReader

    index  *SampleIndex
    reader *SampleReader

    // The target fragment duration in media timescale units, 5s by default.
    SegDuration uint64
    TrackIdx    int

    frag            uint32
    defaultDuration uint32
}

func NewDashSegmenter(trak *Mp4TrackBox, input *BufReader) (v *DashSegmenter, err error) {
    v = &DashSegmenter{trak: trak, input: input}
    if v.index, err = NewSampleIndex(trak); err != nil {
        return nil, err
    }
    v.reader = NewSampleReader(v.index)
    v.SegDuration = 5 * uint64(v.index.TimeScale())
    return
}

func (v *DashSegmenter) Eos() bool {
    return v.reader.EOS()
}

func (v *DashSegmenter) TimeScale() uint32 {
    return v.index.TimeScale()
}

func (v *DashSegmenter) FragmentNumber() uint32 {
    return v.frag
}

// InitSegment builds the ftyp+moov init segment. The source stsd is cloned
// into the fresh stbl, everything else is authored from scratch.
func (v *DashSegmenter) InitSegment() (root *Mp4RootBox, err error) {
    var srcTkhd *Mp4TrackHeaderBox
    if srcTkhd, err = v.trak.Tkhd(); err != nil {
        return
    }
    var srcMdhd *Mp4MediaHeaderBox
    if srcMdhd, err = v.trak.Mdhd(); err != nil {
        return
    }
    var srcHdlr *Mp4HandlerReferenceBox
    if srcHdlr, err = v.trak.Hdlr(); err != nil {
        return
    }
    var srcStsd *Mp4SampleDescriptionBox
    if srcStsd, err = v.trak.Stsd(); err != nil {
        return
    }

    ftyp := NewMp4FileTypeBox()
    ftyp.MajorBrand = Mp4BoxBrandISO5
    ftyp.MinorVersion = 512
    ftyp.SetCompatibleBrands(Mp4BoxBrandISO6, Mp4BoxBrandMP41)

    mvhd := NewMp4MovieHeaderBox()
    mvhd.TimeScale = srcMdhd.TimeScale
    mvhd.DurationInTbn = 0
    mvhd.NextTrackId = 3

    tkhd := NewMp4TrackHeaderBox()
    tkhd.TrackId = 1
    tkhd.Duration = 0
    tkhd.Volume = srcTkhd.Volume
    tkhd.Width = srcTkhd.Width
    tkhd.Height = srcTkhd.Height

    mdhd := NewMp4MediaHeaderBox()
    mdhd.TimeScale = srcMdhd.TimeScale
    mdhd.Language = srcMdhd.Language

    hdlr := NewMp4HandlerReferenceBox()
    hdlr.HandlerType = srcHdlr.HandlerType
    if hdlr.IsAudio() {
        hdlr.SetName("SoundHandler")
    } else {
        hdlr.SetName("VideoHandler")
    }

    stbl := NewMp4SampleTableBox()
    stbl.Append(srcStsd.Clone())
    stbl.Append(NewMp4DecodingTime2SampleBox())
    stbl.Append(NewMp4Sample2ChunkBox())
    stbl.Append(NewMp4SampleSizeBox())
    stbl.Append(NewMp4ChunkOffsetBox())

    minf := NewMp4MediaInformationBox()
    minf.Append(stbl)

    mdia := NewMp4MediaBox()
    mdia.Append(mdhd)
    mdia.Append(hdlr)
    mdia.Append(minf)

    trak := NewMp4TrackBox()
    trak.Append(tkhd)
    trak.Append(mdia)

    mvex := NewMp4ContainerBox(Mp4BoxTypeMVEX)
    mvex.Append(NewMp4TrackExtendsBox())

    moov := NewMp4MovieBox()
    moov.Append(mvhd)
    moov.Append(trak)
    moov.Append(mvex)

    root = NewMp4RootBox()
    root.Append(ftyp)
    root.Append(moov)

    log.Infof("dash init segment built, type=%v timescale=%v", FourccString(srcHdlr.HandlerType), srcMdhd.TimeScale)
    return
}

// NextSegment builds one media fragment. A fragment closes when the next
// candidate sample's DTS exceeds SegDuration times the fragment number, the
// next sample is itself a sync point, and at least one sample was emitted;
// the final fragment closes on EOS.
func (v *DashSegmenter) NextSegment() (root *Mp4RootBox, err error) {
    if v.reader.EOS() {
        return nil, fmt.Errorf("%w: no samples left for another fragment", ErrTruncated)
    }

    v.frag++
    baseDts := v.index.SampleToTime(v.reader.Pos())

    styp := NewMp4SegmentTypeBox()
    styp.MajorBrand = Mp4BoxBrandMSDH
    styp.MinorVersion = 0
    styp.SetCompatibleBrands(Mp4BoxBrandMSDH, Mp4BoxBrandMSIX)

    sidx := NewMp4SegmentIndexBox()
    sidx.TimeScale = v.index.TimeScale()
    sidx.EarliestPts = baseDts

    mfhd := NewMp4MovieFragmentHeaderBox()
    mfhd.Sequence = v.frag

    tfhd := NewMp4TrackFragmentHeaderBox()
    tfhd.Flags = Mp4TfhdFlagDefaultBaseIsMoof | Mp4TfhdFlagDefaultDuration | Mp4TfhdFlagDefaultSize | Mp4TfhdFlagDefaultFlags
    tfhd.DefaultFlags = Mp4SampleFlagsNoSync

    tfdt := NewMp4TrackFragmentDecodeTimeBox()
    tfdt.BaseMediaDecodeTime = baseDts

    trun := NewMp4TrackRunBox()
    trun.Flags = Mp4TrunFlagDataOffset | Mp4TrunFlagSampleSize | Mp4TrunFlagSampleFlags | Mp4TrunFlagSampleCts

    mdat := NewMp4MediaDataBox()

    var firstDts, lastDts uint64
    var nbSamples uint32
    for !v.reader.EOS() {
        pos := v.reader.Pos()
        if nbSamples > 0 && v.index.SampleToTime(pos) > v.SegDuration*uint64(v.frag) && v.index.IsSyncPoint(pos) {
            break
        }

        var s *Sample
        if s, err = v.reader.Read(v.input); err != nil {
            return nil, err
        }

        flags := uint32(Mp4SampleFlagsNoSync)
        if s.IsSync {
            flags = Mp4SampleFlagsSync
        }
        trun.AddSample(uint32(len(s.Payload)), flags, s.Cto)
        mdat.Data = append(mdat.Data, s.Payload...)

        if nbSamples == 0 {
            firstDts = s.Dts
            tfhd.DefaultSize = uint32(len(s.Payload))
        }
        lastDts = s.Dts
        nbSamples++
    }

    // The estimate is undefined for a single sample; reuse the previous one.
    if nbSamples > 1 {
        v.defaultDuration = uint32((lastDts - firstDts) / uint64(nbSamples-1))
    }
    tfhd.DefaultDuration = v.defaultDuration

    traf := NewMp4TrackFragmentBox()
    traf.Append(tfhd)
    traf.Append(tfdt)
    traf.Append(trun)

    moof := NewMp4MovieFragmentBox()
    moof.Append(mfhd)
    moof.Append(traf)

    moofSize := moof.CalcSize()
    trun.DataOffset = int32(moofSize + 8)

    duration := v.index.SampleToTime(v.reader.Pos()) - baseDts
    sidx.AddReference(uint32(moofSize+mdat.CalcSize()), uint32(duration), 1<<31)

    root = NewMp4RootBox()
    root.Append(styp)
    root.Append(sidx)
    root.Append(moof)
    root.Append(mdat)

    log.Infof("dash fragment %v built, samples=%v duration=%v base=%v", v.frag, nbSamples, duration, baseDts)
    return
}
