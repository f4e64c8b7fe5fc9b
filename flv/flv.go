package flv

import (
    "fmt"
    "io"

    log "github.com/sirupsen/logrus"

    "panda.com/mp4dash/core"
)

const (
    TagTypeAudio  = 8
    TagTypeVideo  = 9
    TagTypeScript = 18
)

const (
    // Type flags of the file header.
    FlagHasVideo = 0x01
    FlagHasAudio = 0x04
)

const (
    KeyFrame   = 1
    InterFrame = 2

    CodecIdAVC = 7
    // AAC sound tag prefix: AAC, 44kHz, 16bit, stereo.
    SoundAAC = 0xaf
)

const (
    AvcSequenceHeader = 0
    AvcNALU           = 1

    AacSequenceHeader = 0
    AacRaw            = 1
)

// TagHeader is the 11-byte header before every tag body.
type TagHeader struct {
    Type      uint8
    Size      uint32 // 24bit data size
    Timestamp uint32 // 24bit + 8bit extension
    StreamId  uint32 // 24bit, always 0
}

// Muxer writes an FLV stream of AVC video and AAC audio tags fed by the
// sample reader of the mp4 core.
type Muxer struct {
    w *core.BufWriter
}

func NewMuxer(w io.Writer) *Muxer {
    return &Muxer{w: core.NewBufWriter(w)}
}

// WriteHeader writes the 9-byte file header plus the first zero
// previous-tag-size marker.
func (v *Muxer) WriteHeader(hasVideo, hasAudio bool) (err error) {
    flags := uint8(0)
    if hasVideo {
        flags |= FlagHasVideo
    }
    if hasAudio {
        flags |= FlagHasAudio
    }

    if err = v.w.WriteBytes([]byte{'F', 'L', 'V', 1, flags}); err != nil {
        return
    }
    if err = v.w.WriteU32(9); err != nil {
        return
    }
    return v.w.WriteU32(0)
}

func (v *Muxer) writeTag(tagType uint8, timestamp uint32, data []byte) (err error) {
    if err = v.w.WriteU8(tagType); err != nil {
        return
    }
    if err = v.w.WriteU24(uint32(len(data))); err != nil {
        return
    }
    if err = v.w.WriteU24(timestamp & 0x00ffffff); err != nil {
        return
    }
    if err = v.w.WriteU8(uint8(timestamp >> 24)); err != nil {
        return
    }
    if err = v.w.WriteU24(0); err != nil {
        return
    }
    if err = v.w.WriteBytes(data); err != nil {
        return
    }
    // Previous tag size covers the 11-byte header plus the body.
    return v.w.WriteU32(uint32(11 + len(data)))
}

// WriteVideoConfig writes the AVC sequence header tag from the avcC payload.
func (v *Muxer) WriteVideoConfig(avcc []byte) (err error) {
    data := make([]byte, 0, 5+len(avcc))
    data = append(data, 0x10|CodecIdAVC, AvcSequenceHeader, 0, 0, 0)
    data = append(data, avcc...)
    return v.writeTag(TagTypeVideo, 0, data)
}

// WriteVideoSample writes one AVC NALU tag; the frame type follows the sync
// flag and the composition offset is rescaled to milliseconds.
func (v *Muxer) WriteVideoSample(s *core.Sample) (err error) {
    if s.TimeScale == 0 {
        return fmt.Errorf("video sample with zero timescale")
    }

    frame := uint8(InterFrame)
    if s.IsSync {
        frame = KeyFrame
    }
    cts := uint32(uint64(s.Cto) * 1000 / uint64(s.TimeScale))

    data := make([]byte, 0, 5+len(s.Payload))
    data = append(data, frame<<4|CodecIdAVC, AvcNALU, uint8(cts>>16), uint8(cts>>8), uint8(cts))
    data = append(data, s.Payload...)

    timestamp := uint32(s.Dts * 1000 / uint64(s.TimeScale))
    return v.writeTag(TagTypeVideo, timestamp, data)
}

// WriteAudioConfig writes the AAC sequence header tag from the
// AudioSpecificConfig payload.
func (v *Muxer) WriteAudioConfig(asc []byte) (err error) {
    data := make([]byte, 0, 2+len(asc))
    data = append(data, SoundAAC, AacSequenceHeader)
    data = append(data, asc...)
    return v.writeTag(TagTypeAudio, 0, data)
}

// WriteAudioSample writes one raw AAC tag.
func (v *Muxer) WriteAudioSample(s *core.Sample) (err error) {
    if s.TimeScale == 0 {
        return fmt.Errorf("audio sample with zero timescale")
    }

    data := make([]byte, 0, 2+len(s.Payload))
    data = append(data, SoundAAC, AacRaw)
    data = append(data, s.Payload...)

    timestamp := uint32(s.Dts * 1000 / uint64(s.TimeScale))
    return v.writeTag(TagTypeAudio, timestamp, data)
}

// Demuxer reads back the file header and tag headers, enough to inspect or
// skip through a stream.
type Demuxer struct {
    r *core.BufReader
}

func NewDemuxer(r io.ReadSeeker) *Demuxer {
    return &Demuxer{r: core.NewBufReader(r)}
}

// ReadHeader consumes the file header and the first previous-tag-size marker,
// returning the type flags.
func (v *Demuxer) ReadHeader() (flags uint8, err error) {
    sig, err := v.r.ReadBytes(3)
    if err != nil {
        return
    }
    if string(sig) != "FLV" {
        return 0, fmt.Errorf("invalid flv signature %q", sig)
    }
    if _, err = v.r.ReadU8(); err != nil {
        return
    }
    if flags, err = v.r.ReadU8(); err != nil {
        return
    }
    var dataOffset uint32
    if dataOffset, err = v.r.ReadU32(); err != nil {
        return
    }
    if err = v.r.Seek(int64(dataOffset)); err != nil {
        return
    }
    _, err = v.r.ReadU32()
    return
}

// ReadTagHeader reads the next tag header; the caller may SkipTag afterwards.
func (v *Demuxer) ReadTagHeader() (th TagHeader, err error) {
    if th.Type, err = v.r.ReadU8(); err != nil {
        return
    }
    if th.Size, err = v.r.ReadU24(); err != nil {
        return
    }
    var low, high uint32
    if low, err = v.r.ReadU24(); err != nil {
        return
    }
    var ext uint8
    if ext, err = v.r.ReadU8(); err != nil {
        return
    }
    high = uint32(ext) << 24
    th.Timestamp = high | low
    th.StreamId, err = v.r.ReadU24()
    return
}

// SkipTag skips the tag body and the trailing previous-tag-size marker.
func (v *Demuxer) SkipTag(th TagHeader) (err error) {
    if err = v.r.Skip(uint64(th.Size)); err != nil {
        return
    }
    var prev uint32
    if prev, err = v.r.ReadU32(); err != nil {
        return
    }
    if prev != 11+th.Size {
        log.Warnf("previous tag size %v mismatches tag %v", prev, 11+th.Size)
    }
    return
}
