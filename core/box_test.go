package core

import (
    "bytes"
    "errors"
    "testing"
)

func appendU32(b []byte, d uint32) []byte {
    return append(b, byte(d>>24), byte(d>>16), byte(d>>8), byte(d))
}

func serializeRoot(t *testing.T, root *Mp4RootBox) []byte {
    t.Helper()
    var buf bytes.Buffer
    if err := root.Write(NewBufWriter(&buf)); err != nil {
        t.Fatalf("write root failed, err is %v", err)
    }
    return buf.Bytes()
}

func parseRoot(t *testing.T, data []byte) *Mp4RootBox {
    t.Helper()
    root := NewMp4RootBox()
    if err := root.Parse(NewBufReader(bytes.NewReader(data))); err != nil {
        t.Fatalf("parse failed, err is %v", err)
    }
    return root
}

// The 48-byte two-box file: an ftyp with four compatible brands and a free
// box with an 8-byte body.
func ftypFreeFile() []byte {
    var data []byte
    data = appendU32(data, 0x20)
    data = appendU32(data, Mp4BoxTypeFTYP)
    data = appendU32(data, Mp4BoxBrandISOM)
    data = appendU32(data, 0x200)
    data = appendU32(data, Mp4BoxBrandISOM)
    data = appendU32(data, Mp4BoxBrandISO2)
    data = appendU32(data, Mp4BoxBrandAVC1)
    data = appendU32(data, Mp4BoxBrandMP41)

    data = appendU32(data, 0x10)
    data = appendU32(data, Mp4BoxTypeFREE)
    data = append(data, make([]byte, 8)...)
    return data
}

func TestParseFtypFree(t *testing.T) {
    data := ftypFreeFile()
    root := parseRoot(t, data)

    if len(root.Boxes) != 2 {
        t.Fatalf("expect 2 children, got %v", len(root.Boxes))
    }

    ftyp, ok := root.Boxes[0].(*Mp4FileTypeBox)
    if !ok {
        t.Fatalf("first child is %T", root.Boxes[0])
    }
    if ftyp.MajorBrand != Mp4BoxBrandISOM || ftyp.MinorVersion != 0x200 {
        t.Fatalf("ftyp %v/%v", FourccString(ftyp.MajorBrand), ftyp.MinorVersion)
    }
    if len(ftyp.CompatibleBrands) != 4 || ftyp.CompatibleBrands[3] != Mp4BoxBrandMP41 {
        t.Fatalf("compat brands %v", ftyp.CompatibleBrands)
    }

    if _, ok := root.Boxes[1].(*Mp4FreeSpaceBox); !ok {
        t.Fatalf("second child is %T", root.Boxes[1])
    }

    if out := serializeRoot(t, root); !bytes.Equal(out, data) {
        t.Fatalf("round trip mismatch\n in: %v\nout: %v", data, out)
    }
}

func TestUnknownBoxRoundTrip(t *testing.T) {
    var data []byte
    data = appendU32(data, 8+5)
    data = appendU32(data, StringFourcc("abcd"))
    data = append(data, 'h', 'e', 'l', 'l', 'o')

    root := parseRoot(t, data)
    if len(root.Boxes) != 1 {
        t.Fatalf("expect 1 child, got %v", len(root.Boxes))
    }
    unk, ok := root.Boxes[0].(*Mp4UnknownBox)
    if !ok {
        t.Fatalf("child is %T", root.Boxes[0])
    }
    if string(unk.Data) != "hello" {
        t.Fatalf("body %q", unk.Data)
    }

    if out := serializeRoot(t, root); !bytes.Equal(out, data) {
        t.Fatalf("unknown box must round trip byte-for-byte")
    }
}

func TestParseInvalidSize(t *testing.T) {
    var data []byte
    data = appendU32(data, 4)
    data = appendU32(data, StringFourcc("abcd"))

    root := NewMp4RootBox()
    err := root.Parse(NewBufReader(bytes.NewReader(data)))
    if !errors.Is(err, ErrInvalidSize) {
        t.Fatalf("size<8 should fail, got %v", err)
    }
}

func TestParseChildExceedsWindow(t *testing.T) {
    var data []byte
    data = appendU32(data, 16)
    data = appendU32(data, Mp4BoxTypeMOOV)
    data = appendU32(data, 0x20) // child claims past the moov window
    data = appendU32(data, StringFourcc("abcd"))
    data = append(data, make([]byte, 0x20)...)

    root := NewMp4RootBox()
    err := root.Parse(NewBufReader(bytes.NewReader(data)))
    if !errors.Is(err, ErrInvalidSize) {
        t.Fatalf("overrun child should fail, got %v", err)
    }
}

func TestParseTruncatedBody(t *testing.T) {
    var data []byte
    data = appendU32(data, 0x20)
    data = appendU32(data, Mp4BoxTypeFTYP)
    data = appendU32(data, Mp4BoxBrandISOM)
    // body ends early

    root := NewMp4RootBox()
    err := root.Parse(NewBufReader(bytes.NewReader(data)))
    if !errors.Is(err, ErrTruncated) {
        t.Fatalf("truncated body should fail, got %v", err)
    }
}

func buildMoovTree() *Mp4RootBox {
    mvhd := NewMp4MovieHeaderBox()
    mvhd.TimeScale = 1000
    mvhd.DurationInTbn = 90000
    mvhd.NextTrackId = 2

    tkhd := NewMp4TrackHeaderBox()
    tkhd.TrackId = 1
    tkhd.Duration = 90000
    tkhd.Width = 640 << 16
    tkhd.Height = 480 << 16

    mdhd := NewMp4MediaHeaderBox()
    mdhd.TimeScale = 90000
    mdhd.Duration = 8100000
    mdhd.Language = 0x55c4

    hdlr := NewMp4HandlerReferenceBox()
    hdlr.HandlerType = Mp4HandlerTypeVIDE
    hdlr.SetName("VideoHandler")

    stsd := NewMp4SampleDescriptionBox()
    stsd.Entries = append(stsd.Entries, &Mp4SampleEntryData{
        EntryType: StringFourcc("avc1"),
        Data:      bytes.Repeat([]byte{0xaa}, 70),
    })

    stts := NewMp4DecodingTime2SampleBox()
    stts.Entries = []Mp4SttsEntry{{SampleCount: 3, SampleDelta: 3000}}

    stsc := NewMp4Sample2ChunkBox()
    stsc.Entries = []Mp4StscEntry{{FirstChunk: 1, SamplesPerChunk: 3, SampleDescIdx: 1}}

    stsz := NewMp4SampleSizeBox()
    stsz.NbSamples = 3
    stsz.Sizes = []uint32{10, 20, 30}

    stco := NewMp4ChunkOffsetBox()
    stco.Offsets = []uint32{4096}

    stss := NewMp4SyncSampleBox()
    stss.Samples = []uint32{1}

    ctts := NewMp4CompositionTime2SampleBox()
    ctts.Entries = []Mp4CttsEntry{{SampleCount: 3, SampleOffset: 3000}}

    stbl := NewMp4SampleTableBox()
    for _, b := range []Box{stsd, stts, ctts, stss, stsc, stsz, stco} {
        stbl.Append(b)
    }

    minf := NewMp4MediaInformationBox()
    minf.Append(stbl)

    mdia := NewMp4MediaBox()
    mdia.Append(mdhd)
    mdia.Append(hdlr)
    mdia.Append(minf)

    trak := NewMp4TrackBox()
    trak.Append(tkhd)
    trak.Append(mdia)

    moov := NewMp4MovieBox()
    moov.Append(mvhd)
    moov.Append(trak)

    ftyp := NewMp4FileTypeBox()
    ftyp.MajorBrand = Mp4BoxBrandISOM
    ftyp.MinorVersion = 512
    ftyp.SetCompatibleBrands(Mp4BoxBrandISOM, Mp4BoxBrandISO2, Mp4BoxBrandMP41)

    root := NewMp4RootBox()
    root.Append(ftyp)
    root.Append(moov)
    return root
}

// Authoring, serializing, reparsing and serializing again must be bit-exact,
// and every header size must agree with the serialized length.
func TestMoovRoundTrip(t *testing.T) {
    first := serializeRoot(t, buildMoovTree())
    root := parseRoot(t, first)
    second := serializeRoot(t, root)
    if !bytes.Equal(first, second) {
        t.Fatalf("reparse round trip mismatch")
    }

    moov, err := root.Moov()
    if err != nil {
        t.Fatal(err)
    }
    mvhd, err := moov.Mvhd()
    if err != nil {
        t.Fatal(err)
    }
    if mvhd.TimeScale != 1000 || mvhd.DurationInTbn != 90000 {
        t.Fatalf("mvhd %v/%v", mvhd.TimeScale, mvhd.DurationInTbn)
    }

    video, err := moov.Video()
    if err != nil {
        t.Fatal(err)
    }
    tkhd, err := video.Tkhd()
    if err != nil {
        t.Fatal(err)
    }
    if tkhd.Width>>16 != 640 || tkhd.Height>>16 != 480 {
        t.Fatalf("tkhd %vx%v", tkhd.Width>>16, tkhd.Height>>16)
    }
    hdlr, err := video.Hdlr()
    if err != nil {
        t.Fatal(err)
    }
    if !hdlr.IsVideo() || hdlr.Name() != "VideoHandler" {
        t.Fatalf("hdlr %v %q", FourccString(hdlr.HandlerType), hdlr.Name())
    }
}

func TestCalcSizeMatchesSerialized(t *testing.T) {
    root := buildMoovTree()
    data := serializeRoot(t, root)

    var walk func(box Box)
    walk = func(box Box) {
        b := box.Basic()
        var buf bytes.Buffer
        if err := WriteBox(NewBufWriter(&buf), box); err != nil {
            t.Fatalf("write %v failed, err is %v", FourccString(b.BoxType), err)
        }
        if size := box.CalcSize(); size != uint64(buf.Len()) {
            t.Fatalf("%v calc size %v, serialized %v", FourccString(b.BoxType), size, buf.Len())
        }
        if b.sz() != uint64(buf.Len()) {
            t.Fatalf("%v header size %v, serialized %v", FourccString(b.BoxType), b.sz(), buf.Len())
        }
        for _, child := range b.Boxes {
            walk(child)
        }
    }
    for _, box := range root.Boxes {
        walk(box)
    }

    total := 0
    for _, box := range root.Boxes {
        total += int(box.Basic().sz())
    }
    if total != len(data) {
        t.Fatalf("children sizes %v, file %v", total, len(data))
    }
}

func TestFindByType(t *testing.T) {
    root := buildMoovTree()

    if box := FindBoxByType(root, Mp4BoxTypeHDLR); box == nil {
        t.Fatal("hdlr not found")
    }
    if box := FindBoxByType(root, Mp4BoxTypeMOOF); box != nil {
        t.Fatal("moof should be absent")
    }

    // Pre-order: the first stsd-bearing node from the top.
    stbl := FindBoxByType(root, Mp4BoxTypeSTBL)
    if stbl == nil {
        t.Fatal("stbl not found")
    }
    if self := FindBoxByType(stbl, Mp4BoxTypeSTBL); self != stbl {
        t.Fatal("find must include self")
    }

    traks := FindAllBoxesByType(root, Mp4BoxTypeTRAK)
    if len(traks) != 1 {
        t.Fatalf("traks %v", len(traks))
    }
    tables := FindAllBoxesByType(root, Mp4BoxTypeSTSZ)
    if len(tables) != 1 {
        t.Fatalf("stsz %v", len(tables))
    }
}

func TestRemoveChild(t *testing.T) {
    root := buildMoovTree()
    moov, _ := root.Moov()
    if nb := moov.remove(Mp4BoxTypeMVHD); nb != 1 {
        t.Fatalf("removed %v", nb)
    }
    if _, err := moov.Mvhd(); !errors.Is(err, ErrMissingRequiredBox) {
        t.Fatalf("mvhd should be gone, got %v", err)
    }
}

// A fresh free box appended after parse survives the rewrite.
func TestAppendFreeAndRewrite(t *testing.T) {
    root := parseRoot(t, ftypFreeFile())

    fbox := NewMp4FreeSpaceBox()
    fbox.Data = append([]byte("Hello!"), make([]byte, 18)...)
    root.Append(fbox)

    out := serializeRoot(t, root)
    if len(out) != 48+32 {
        t.Fatalf("rewritten file is %v bytes", len(out))
    }

    again := parseRoot(t, out)
    if len(again.Boxes) != 3 {
        t.Fatalf("expect 3 children, got %v", len(again.Boxes))
    }
    last := again.Boxes[2].(*Mp4FreeSpaceBox)
    if !bytes.HasPrefix(last.Data, []byte("Hello!")) {
        t.Fatalf("free body %q", last.Data)
    }
}

func TestTfhdOptionalFieldsRoundTrip(t *testing.T) {
    tfhd := NewMp4TrackFragmentHeaderBox()
    tfhd.Flags = Mp4TfhdFlagDefaultBaseIsMoof | Mp4TfhdFlagDefaultDuration | Mp4TfhdFlagDefaultSize | Mp4TfhdFlagDefaultFlags
    tfhd.TrackId = 7
    tfhd.DefaultDuration = 1001
    tfhd.DefaultSize = 4096
    tfhd.DefaultFlags = Mp4SampleFlagsNoSync
    tfhd.CalcSize()

    var buf bytes.Buffer
    if err := WriteBox(NewBufWriter(&buf), tfhd); err != nil {
        t.Fatal(err)
    }
    if buf.Len() != 16+12 {
        t.Fatalf("tfhd size %v", buf.Len())
    }

    root := parseRoot(t, buf.Bytes())
    got := root.Boxes[0].(*Mp4TrackFragmentHeaderBox)
    if got.TrackId != 7 || got.DefaultDuration != 1001 || got.DefaultSize != 4096 || got.DefaultFlags != Mp4SampleFlagsNoSync {
        t.Fatalf("tfhd %+v", got)
    }
}

func TestMvhdVersionHandling(t *testing.T) {
    // A v2 mvhd must be rejected, not skipped.
    var data []byte
    data = appendU32(data, 120)
    data = appendU32(data, Mp4BoxTypeMVHD)
    data = appendU32(data, 2<<24)
    data = append(data, make([]byte, 108)...)

    root := NewMp4RootBox()
    err := root.Parse(NewBufReader(bytes.NewReader(data)))
    if !errors.Is(err, ErrUnsupportedVersion) {
        t.Fatalf("mvhd v2 should fail, got %v", err)
    }
}

// A ref box streams its body back out of the attached source; without one,
// serialization is refused.
func TestUnknownBoxRefStreamsFromSource(t *testing.T) {
    var file []byte
    file = appendU32(file, 8+7)
    file = appendU32(file, Mp4BoxTypeMDAT)
    file = append(file, []byte("payload")...)

    source := NewBufReader(bytes.NewReader(file))

    ref := NewMp4UnknownBoxRef()
    ref.BoxType = Mp4BoxTypeMDAT
    ref.SmallSize = uint32(len(file))
    ref.StartPos = 0
    ref.Offset = 8
    ref.Source = source

    var buf bytes.Buffer
    if err := WriteBox(NewBufWriter(&buf), ref); err != nil {
        t.Fatalf("write ref failed, err is %v", err)
    }
    if !bytes.Equal(buf.Bytes(), file) {
        t.Fatalf("streamed %v, want %v", buf.Bytes(), file)
    }

    ref.Source = nil
    if err := WriteBox(NewBufWriter(&bytes.Buffer{}), ref); err == nil {
        t.Fatal("write without source should fail")
    }
}

// A box using the 64-bit largesize header is tolerated and keeps its shape.
func TestLargeSizeBoxRoundTrip(t *testing.T) {
    var data []byte
    data = appendU32(data, Mp4UseLargeSize)
    data = appendU32(data, StringFourcc("abcd"))
    data = append(data, 0, 0, 0, 0, 0, 0, 0, 16+5)
    data = append(data, 'h', 'e', 'l', 'l', 'o')

    root := parseRoot(t, data)
    unk, ok := root.Boxes[0].(*Mp4UnknownBox)
    if !ok {
        t.Fatalf("child is %T", root.Boxes[0])
    }
    if string(unk.Data) != "hello" || unk.sz() != 21 {
        t.Fatalf("body %q sz %v", unk.Data, unk.sz())
    }

    if out := serializeRoot(t, root); !bytes.Equal(out, data) {
        t.Fatalf("largesize round trip mismatch\n in: %v\nout: %v", data, out)
    }
}
