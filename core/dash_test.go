package core

import (
    "bytes"
    "errors"
    "testing"
)

// dashSourceTrak is a 9-sample track with uniform delta of one second and
// sync points at samples 1, 4, 7 (1-based), all payloads 4 bytes in one chunk
// starting at byte 64 of the source file.
func dashSourceTrak() (*Mp4TrackBox, []byte) {
    stsc := NewMp4Sample2ChunkBox()
    stsc.Entries = []Mp4StscEntry{{FirstChunk: 1, SamplesPerChunk: 9, SampleDescIdx: 1}}
    stco := NewMp4ChunkOffsetBox()
    stco.Offsets = []uint32{64}
    stss := NewMp4SyncSampleBox()
    stss.Samples = []uint32{1, 4, 7}

    stsd := NewMp4SampleDescriptionBox()
    stsd.Entries = append(stsd.Entries, &Mp4SampleEntryData{
        EntryType: StringFourcc("avc1"),
        Data:      bytes.Repeat([]byte{0xaa}, 70),
    })

    trak := testTrak(1000, Mp4HandlerTypeVIDE,
        stsd, stsc, constSizeStsz(9, 4), stco, singleEntryStts(9, 1000), stss)

    file := make([]byte, 64+9*4)
    for n := 0; n < 9; n++ {
        for i := 0; i < 4; i++ {
            file[64+n*4+i] = byte(n)
        }
    }
    return trak, file
}

func audioSourceTrak() *Mp4TrackBox {
    stsc := NewMp4Sample2ChunkBox()
    stsc.Entries = []Mp4StscEntry{{FirstChunk: 1, SamplesPerChunk: 4, SampleDescIdx: 1}}
    stco := NewMp4ChunkOffsetBox()
    stco.Offsets = []uint32{32}

    stsd := NewMp4SampleDescriptionBox()
    stsd.Entries = append(stsd.Entries, &Mp4SampleEntryData{
        EntryType: StringFourcc("mp4a"),
        Data:      bytes.Repeat([]byte{0xbb}, 28),
    })

    return testTrak(44100, Mp4HandlerTypeSOUN,
        stsd, stsc, constSizeStsz(4, 8), stco, singleEntryStts(4, 1024))
}

func TestDashInitSegment(t *testing.T) {
    trak := audioSourceTrak()
    input := NewBufReader(bytes.NewReader(make([]byte, 64)))

    seg, err := NewDashSegmenter(trak, input)
    if err != nil {
        t.Fatal(err)
    }
    init, err := seg.InitSegment()
    if err != nil {
        t.Fatal(err)
    }

    data := serializeRoot(t, init)
    root := parseRoot(t, data)
    if len(root.Boxes) != 2 {
        t.Fatalf("init has %v children", len(root.Boxes))
    }

    ftyp := root.Boxes[0].(*Mp4FileTypeBox)
    if ftyp.MajorBrand != Mp4BoxBrandISO5 || ftyp.MinorVersion != 512 {
        t.Fatalf("ftyp %v/%v", FourccString(ftyp.MajorBrand), ftyp.MinorVersion)
    }
    if len(ftyp.CompatibleBrands) != 2 || ftyp.CompatibleBrands[0] != Mp4BoxBrandISO6 || ftyp.CompatibleBrands[1] != Mp4BoxBrandMP41 {
        t.Fatalf("ftyp compat %v", ftyp.CompatibleBrands)
    }

    moov, err := root.Moov()
    if err != nil {
        t.Fatal(err)
    }
    mvhd, err := moov.Mvhd()
    if err != nil {
        t.Fatal(err)
    }
    if mvhd.TimeScale != 44100 || mvhd.DurationInTbn != 0 || mvhd.NextTrackId != 3 {
        t.Fatalf("mvhd %+v", mvhd)
    }

    otrak, err := moov.Audio()
    if err != nil {
        t.Fatal(err)
    }
    hdlr, err := otrak.Hdlr()
    if err != nil {
        t.Fatal(err)
    }
    if hdlr.HandlerType != Mp4HandlerTypeSOUN || hdlr.Name() != "SoundHandler" {
        t.Fatalf("hdlr %v %q", FourccString(hdlr.HandlerType), hdlr.Name())
    }

    tkhd, err := otrak.Tkhd()
    if err != nil {
        t.Fatal(err)
    }
    if tkhd.TrackId != 1 || tkhd.Duration != 0 || tkhd.Flags != 3 {
        t.Fatalf("tkhd %+v", tkhd)
    }

    stsd, err := otrak.Stsd()
    if err != nil {
        t.Fatal(err)
    }
    if stsd.EntryTypeString() != "mp4a" || len(stsd.Desc()) != 28 {
        t.Fatalf("stsd %v %v", stsd.EntryTypeString(), len(stsd.Desc()))
    }
    for _, bt := range []uint32{Mp4BoxTypeSTTS, Mp4BoxTypeSTSC, Mp4BoxTypeSTSZ, Mp4BoxTypeSTCO} {
        if FindBoxByType(otrak, bt) == nil {
            t.Fatalf("init stbl misses %v", FourccString(bt))
        }
    }

    trex := FindBoxByType(root, Mp4BoxTypeTREX)
    if trex == nil {
        t.Fatal("mvex/trex missing")
    }
    if trex.(*Mp4TrackExtendsBox).TrackId != 1 {
        t.Fatalf("trex track %v", trex.(*Mp4TrackExtendsBox).TrackId)
    }
}

func TestDashSegmentation(t *testing.T) {
    trak, file := dashSourceTrak()
    input := NewBufReader(bytes.NewReader(file))

    seg, err := NewDashSegmenter(trak, input)
    if err != nil {
        t.Fatal(err)
    }
    if seg.SegDuration != 5000 {
        t.Fatalf("default seg duration %v", seg.SegDuration)
    }
    seg.SegDuration = 2 * 1000

    type fragCheck struct {
        base     uint64
        samples  []byte
        duration uint32
    }
    expected := []fragCheck{
        {0, []byte{0, 1, 2}, 3000},
        {3000, []byte{3, 4, 5}, 3000},
        {6000, []byte{6, 7, 8}, 3000},
    }

    var totalDuration uint64
    for i, want := range expected {
        if seg.Eos() {
            t.Fatalf("eos before fragment %v", i+1)
        }
        media, err := seg.NextSegment()
        if err != nil {
            t.Fatalf("fragment %v failed, err is %v", i+1, err)
        }

        root := parseRoot(t, serializeRoot(t, media))
        if len(root.Boxes) != 4 {
            t.Fatalf("fragment has %v children", len(root.Boxes))
        }

        styp := root.Boxes[0].(*Mp4FileTypeBox)
        if styp.BoxType != Mp4BoxTypeSTYP || styp.MajorBrand != Mp4BoxBrandMSDH {
            t.Fatalf("styp %v/%v", FourccString(styp.BoxType), FourccString(styp.MajorBrand))
        }

        sidx := root.Boxes[1].(*Mp4SegmentIndexBox)
        if sidx.Version != 1 || sidx.TimeScale != 1000 || sidx.EarliestPts != want.base {
            t.Fatalf("sidx ts=%v pts=%v", sidx.TimeScale, sidx.EarliestPts)
        }
        if sidx.ReferenceCount() != 1 || sidx.SubsegmentDuration(0) != want.duration || !sidx.StartsWithSAP(0) {
            t.Fatalf("sidx refs=%v dur=%v", sidx.ReferenceCount(), sidx.SubsegmentDuration(0))
        }
        totalDuration += uint64(sidx.SubsegmentDuration(0))

        moof := root.Boxes[2].(*Mp4MovieFragmentBox)
        mfhd, err := moof.Mfhd()
        if err != nil {
            t.Fatal(err)
        }
        if mfhd.Sequence != uint32(i+1) {
            t.Fatalf("mfhd sequence %v", mfhd.Sequence)
        }

        traf, err := moof.Traf()
        if err != nil {
            t.Fatal(err)
        }
        tfhd, err := traf.Tfhd()
        if err != nil {
            t.Fatal(err)
        }
        if tfhd.Flags&Mp4TfhdFlagDefaultBaseIsMoof == 0 || tfhd.DefaultFlags != Mp4SampleFlagsNoSync {
            t.Fatalf("tfhd flags %x defaults %x", tfhd.Flags, tfhd.DefaultFlags)
        }
        if tfhd.DefaultDuration != 1000 || tfhd.DefaultSize != 4 {
            t.Fatalf("tfhd defaults dur=%v size=%v", tfhd.DefaultDuration, tfhd.DefaultSize)
        }

        tfdt, err := traf.Tfdt()
        if err != nil {
            t.Fatal(err)
        }
        if tfdt.BaseMediaDecodeTime != want.base {
            t.Fatalf("tfdt base %v, want %v", tfdt.BaseMediaDecodeTime, want.base)
        }

        trun, err := traf.Trun()
        if err != nil {
            t.Fatal(err)
        }
        if trun.NbSamples != uint32(len(want.samples)) {
            t.Fatalf("trun samples %v", trun.NbSamples)
        }
        if trun.DataOffset != int32(moof.sz()+8) {
            t.Fatalf("trun data offset %v, moof size %v", trun.DataOffset, moof.sz())
        }
        for j := range want.samples {
            size, flags := trun.Data[j*3], trun.Data[j*3+1]
            if size != 4 {
                t.Fatalf("row %v size %v", j, size)
            }
            wantFlags := uint32(Mp4SampleFlagsNoSync)
            if j == 0 {
                // Every fragment starts at a sync point.
                wantFlags = Mp4SampleFlagsSync
            }
            if flags != wantFlags {
                t.Fatalf("row %v flags %x, want %x", j, flags, wantFlags)
            }
        }

        mdat := root.Boxes[3].(*Mp4UnknownBox)
        if mdat.BoxType != Mp4BoxTypeMDAT {
            t.Fatalf("fourth child %v", FourccString(mdat.BoxType))
        }
        var payload []byte
        for _, n := range want.samples {
            payload = append(payload, bytes.Repeat([]byte{n}, 4)...)
        }
        if !bytes.Equal(mdat.Data, payload) {
            t.Fatalf("mdat %v, want %v", mdat.Data, payload)
        }

        // The sidx reference length covers moof plus mdat.
        if got := sidx.Data[0]; got != uint32(moof.sz()+mdat.sz()) {
            t.Fatalf("sidx reference %v, moof+mdat %v", got, moof.sz()+mdat.sz())
        }
    }

    if !seg.Eos() {
        t.Fatal("segmenter should be at EOS")
    }
    if _, err := seg.NextSegment(); !errors.Is(err, ErrTruncated) {
        t.Fatalf("next segment at EOS should fail, got %v", err)
    }

    // The fragment durations cover the whole track.
    index, err := NewSampleIndex(trak)
    if err != nil {
        t.Fatal(err)
    }
    if total := index.SampleToTime(index.Count()); totalDuration != total {
        t.Fatalf("fragments cover %v, track %v", totalDuration, total)
    }
}

func TestDashFileNames(t *testing.T) {
    if name := DashInitFileName(0); name != "init-stream0.m4s" {
        t.Fatalf("init name %v", name)
    }
    if name := DashSegmentFileName(1, 7); name != "chunk-stream1-00007.m4s" {
        t.Fatalf("segment name %v", name)
    }
}

// A single-sample final fragment reuses the previous fragment's duration
// estimate.
func TestDashSingleSampleFragmentDuration(t *testing.T) {
    stsc := NewMp4Sample2ChunkBox()
    stsc.Entries = []Mp4StscEntry{{FirstChunk: 1, SamplesPerChunk: 4, SampleDescIdx: 1}}
    stco := NewMp4ChunkOffsetBox()
    stco.Offsets = []uint32{0}
    stss := NewMp4SyncSampleBox()
    stss.Samples = []uint32{1, 4}

    trak := testTrak(1000, Mp4HandlerTypeVIDE,
        stsc, constSizeStsz(4, 2), stco, singleEntryStts(4, 1000), stss)
    input := NewBufReader(bytes.NewReader(make([]byte, 8)))

    seg, err := NewDashSegmenter(trak, input)
    if err != nil {
        t.Fatal(err)
    }
    seg.SegDuration = 2000

    first, err := seg.NextSegment()
    if err != nil {
        t.Fatal(err)
    }
    second, err := seg.NextSegment()
    if err != nil {
        t.Fatal(err)
    }

    tfhd1 := FindBoxByType(first, Mp4BoxTypeTFHD).(*Mp4TrackFragmentHeaderBox)
    tfhd2 := FindBoxByType(second, Mp4BoxTypeTFHD).(*Mp4TrackFragmentHeaderBox)
    if tfhd1.DefaultDuration != 1000 {
        t.Fatalf("first fragment duration %v", tfhd1.DefaultDuration)
    }
    if tfhd2.DefaultDuration != tfhd1.DefaultDuration {
        t.Fatalf("single-sample fragment duration %v, want previous %v", tfhd2.DefaultDuration, tfhd1.DefaultDuration)
    }
}
