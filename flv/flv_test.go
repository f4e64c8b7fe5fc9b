package flv

import (
    "bytes"
    "testing"

    "panda.com/mp4dash/core"
)

func TestMuxerHeaderAndVideoTags(t *testing.T) {
    var buf bytes.Buffer
    muxer := NewMuxer(&buf)

    if err := muxer.WriteHeader(true, false); err != nil {
        t.Fatal(err)
    }

    avcc := []byte{0x01, 0x64, 0x00, 0x1f, 0xff}
    if err := muxer.WriteVideoConfig(avcc); err != nil {
        t.Fatal(err)
    }

    s := &core.Sample{
        Dts:       90000,
        TimeScale: 90000,
        Cto:       9000,
        HasCto:    true,
        IsSync:    true,
        Payload:   []byte{0x00, 0x00, 0x00, 0x01, 0x65},
    }
    if err := muxer.WriteVideoSample(s); err != nil {
        t.Fatal(err)
    }

    data := buf.Bytes()
    if !bytes.HasPrefix(data, []byte{'F', 'L', 'V', 1, FlagHasVideo, 0, 0, 0, 9, 0, 0, 0, 0}) {
        t.Fatalf("header %v", data[:13])
    }

    demuxer := NewDemuxer(bytes.NewReader(data))
    flags, err := demuxer.ReadHeader()
    if err != nil {
        t.Fatal(err)
    }
    if flags != FlagHasVideo {
        t.Fatalf("flags %x", flags)
    }

    // The AVC sequence header tag.
    th, err := demuxer.ReadTagHeader()
    if err != nil {
        t.Fatal(err)
    }
    if th.Type != TagTypeVideo || th.Timestamp != 0 || th.Size != uint32(5+len(avcc)) {
        t.Fatalf("config tag %+v", th)
    }
    if err := demuxer.SkipTag(th); err != nil {
        t.Fatal(err)
    }

    // The NALU tag, with the dts rescaled to ms and the key frame marker.
    th, err = demuxer.ReadTagHeader()
    if err != nil {
        t.Fatal(err)
    }
    if th.Type != TagTypeVideo || th.Timestamp != 1000 || th.Size != uint32(5+len(s.Payload)) {
        t.Fatalf("nalu tag %+v", th)
    }

    body := make([]byte, th.Size)
    copy(body, data[len(data)-int(th.Size)-4:])
    if body[0] != (KeyFrame<<4|CodecIdAVC) || body[1] != AvcNALU {
        t.Fatalf("nalu body %v", body[:2])
    }
    // cto 9000/90000 = 100ms in the 24-bit field.
    if cts := uint32(body[2])<<16 | uint32(body[3])<<8 | uint32(body[4]); cts != 100 {
        t.Fatalf("cts %v", cts)
    }
}

func TestMuxerAudioTags(t *testing.T) {
    var buf bytes.Buffer
    muxer := NewMuxer(&buf)

    if err := muxer.WriteHeader(false, true); err != nil {
        t.Fatal(err)
    }
    if err := muxer.WriteAudioConfig([]byte{0x12, 0x10}); err != nil {
        t.Fatal(err)
    }

    s := &core.Sample{
        Dts:       22050,
        TimeScale: 44100,
        Payload:   []byte{0xde, 0xad, 0xbe, 0xef},
    }
    if err := muxer.WriteAudioSample(s); err != nil {
        t.Fatal(err)
    }

    demuxer := NewDemuxer(bytes.NewReader(buf.Bytes()))
    flags, err := demuxer.ReadHeader()
    if err != nil {
        t.Fatal(err)
    }
    if flags != FlagHasAudio {
        t.Fatalf("flags %x", flags)
    }

    th, err := demuxer.ReadTagHeader()
    if err != nil {
        t.Fatal(err)
    }
    if th.Type != TagTypeAudio || th.Size != 4 || th.Timestamp != 0 {
        t.Fatalf("config tag %+v", th)
    }
    if err := demuxer.SkipTag(th); err != nil {
        t.Fatal(err)
    }

    th, err = demuxer.ReadTagHeader()
    if err != nil {
        t.Fatal(err)
    }
    if th.Type != TagTypeAudio || th.Size != 6 || th.Timestamp != 500 {
        t.Fatalf("raw tag %+v", th)
    }
}

func TestAvcConfig(t *testing.T) {
    record := []byte{0x01, 0x64, 0x00, 0x1f, 0xff, 0xe1}

    // A visual sample entry body: 78 bytes of fixed fields, then the avcC box.
    desc := bytes.Repeat([]byte{0}, 78)
    desc = append(desc, 0, 0, 0, byte(8+len(record)))
    desc = append(desc, []byte("avcC")...)
    desc = append(desc, record...)
    // A trailing btrt box must not leak into the config.
    desc = append(desc, 0, 0, 0, 20)
    desc = append(desc, []byte("btrt")...)
    desc = append(desc, bytes.Repeat([]byte{0xcc}, 12)...)

    got, err := AvcConfig(desc)
    if err != nil {
        t.Fatal(err)
    }
    if !bytes.Equal(got, record) {
        t.Fatalf("avcc %v, want %v", got, record)
    }

    if _, err := AvcConfig(bytes.Repeat([]byte{0}, 40)); err == nil {
        t.Fatal("missing avcC should fail")
    }
}

func TestAudioSpecificConfig(t *testing.T) {
    asc := []byte{0x12, 0x10}

    // Build the esds descriptor chain inside out.
    dsi := append([]byte{0x05, byte(len(asc))}, asc...)
    dcd := []byte{0x04, byte(13 + len(dsi))}
    dcd = append(dcd, 0x40, 0x15)
    dcd = append(dcd, bytes.Repeat([]byte{0}, 11)...)
    dcd = append(dcd, dsi...)
    esd := []byte{0x03, byte(3 + len(dcd))}
    esd = append(esd, 0, 1, 0)
    esd = append(esd, dcd...)

    // An audio sample entry body: 28 bytes of fixed fields, then the esds box.
    desc := bytes.Repeat([]byte{0}, 28)
    desc = append(desc, 0, 0, 0, byte(12+len(esd)))
    desc = append(desc, []byte("esds")...)
    desc = append(desc, 0, 0, 0, 0)
    desc = append(desc, esd...)

    got, err := AudioSpecificConfig(desc)
    if err != nil {
        t.Fatal(err)
    }
    if !bytes.Equal(got, asc) {
        t.Fatalf("asc %v, want %v", got, asc)
    }

    if _, err := AudioSpecificConfig(bytes.Repeat([]byte{0}, 28)); err == nil {
        t.Fatal("missing esds should fail")
    }
}
