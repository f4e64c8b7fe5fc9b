package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

/**
 * 8.4.2 Media Header Box (mdhd)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 36
 * The media header declares overall information that is media-independent, and relevant to characteristics of
 * the media in a track.
 */
type Mp4MediaHeaderBox struct {
    Mp4FullBox
    CreateTime uint64
    ModTime    uint64
    // an integer that specifies the time-scale for this media; this is the number of time units that
    // pass in one second.
    TimeScale uint32
    Duration  uint64
    // the language code for this media. See ISO 639-2/T for the set of three character
    // codes. Each character is packed as the difference between its ASCII value and 0x60.
    Language   uint16
    PreDefined uint16
}

func NewMp4MediaHeaderBox() *Mp4MediaHeaderBox {
    v := &Mp4MediaHeaderBox{}
    v.BoxType = Mp4BoxTypeMDHD
    return v
}

func (v *Mp4MediaHeaderBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4MediaHeaderBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if v.Version > 1 {
        return fmt.Errorf("%w: mdhd version %v", ErrUnsupportedVersion, v.Version)
    }

    if v.Version == 1 {
        if err = v.Read(r, &v.CreateTime); err != nil {
            log.Errorf("mdhd read create time failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.ModTime); err != nil {
            log.Errorf("mdhd read mod time failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.TimeScale); err != nil {
            log.Errorf("mdhd read timescale failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.Duration); err != nil {
            log.Errorf("mdhd read duration failed, err is %v", err)
            return
        }
    } else {
        var tmp uint32
        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("mdhd read create time failed, err is %v", err)
            return
        }
        v.CreateTime = uint64(tmp)

        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("mdhd read mod time failed, err is %v", err)
            return
        }
        v.ModTime = uint64(tmp)

        if err = v.Read(r, &v.TimeScale); err != nil {
            log.Errorf("mdhd read time scale failed, err is %v", err)
            return
        }

        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("mdhd read duration failed, err is %v", err)
            return
        }
        v.Duration = uint64(tmp)
    }

    if err = v.Read(r, &v.Language); err != nil {
        log.Errorf("mdhd read language failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.PreDefined); err != nil {
        log.Errorf("mdhd read pre defined failed, err is %v", err)
        return
    }

    log.Tracef("decode mdhd success, timescale=%v duration=%v", v.TimeScale, v.Duration)
    return
}

func (v *Mp4MediaHeaderBox) EncodeHeader(w *BufWriter) (err error) {
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }

    if v.Version == 1 {
        if err = w.WriteU64(v.CreateTime); err != nil {
            return
        }
        if err = w.WriteU64(v.ModTime); err != nil {
            return
        }
        if err = w.WriteU32(v.TimeScale); err != nil {
            return
        }
        if err = w.WriteU64(v.Duration); err != nil {
            return
        }
    } else {
        if err = w.WriteU32(uint32(v.CreateTime)); err != nil {
            return
        }
        if err = w.WriteU32(uint32(v.ModTime)); err != nil {
            return
        }
        if err = w.WriteU32(v.TimeScale); err != nil {
            return
        }
        if err = w.WriteU32(uint32(v.Duration)); err != nil {
            return
        }
    }

    if err = w.WriteU16(v.Language); err != nil {
        return
    }
    return w.WriteU16(v.PreDefined)
}

func (v *Mp4MediaHeaderBox) CalcSize() uint64 {
    size := uint64(12 + 16 + 4)
    if v.Version == 1 {
        size += 12
    }
    v.SmallSize = uint32(size)
    return size
}
