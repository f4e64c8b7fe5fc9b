package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

/**
 * 8.3.2 Track Header Box (tkhd)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 32
 */
type Mp4TrackHeaderBox struct {
    Mp4FullBox
    CreateTime     uint64
    ModTime        uint64
    TrackId        uint32
    Duration       uint64
    Layer          int16
    AlternateGroup int16
    Volume         int16
    Matrix         [9]int32
    // width and height are 16.16 fixed-point.
    Width  int32
    Height int32
}

func NewMp4TrackHeaderBox() *Mp4TrackHeaderBox {
    v := &Mp4TrackHeaderBox{
        Matrix: [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000},
    }
    v.BoxType = Mp4BoxTypeTKHD
    v.Flags = 0x03
    return v
}

func (v *Mp4TrackHeaderBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4TrackHeaderBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if v.Version > 1 {
        return fmt.Errorf("%w: tkhd version %v", ErrUnsupportedVersion, v.Version)
    }

    if v.Version == 1 {
        if err = v.Read(r, &v.CreateTime); err != nil {
            log.Errorf("tkhd read create time failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.ModTime); err != nil {
            log.Errorf("tkhd read mod time failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.TrackId); err != nil {
            log.Errorf("tkhd read track id failed, err is %v", err)
            return
        }
        v.Skip(r, 4)
        if err = v.Read(r, &v.Duration); err != nil {
            log.Errorf("tkhd read duration failed, err is %v", err)
            return
        }
    } else {
        var tmp uint32
        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("tkhd read create time failed, err is %v", err)
            return
        }
        v.CreateTime = uint64(tmp)

        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("tkhd read mod time failed, err is %v", err)
            return
        }
        v.ModTime = uint64(tmp)

        if err = v.Read(r, &v.TrackId); err != nil {
            log.Errorf("tkhd read track id failed, err is %v", err)
            return
        }

        v.Skip(r, 4)

        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("tkhd read duration failed, err is %v", err)
            return
        }
        v.Duration = uint64(tmp)
    }

    v.Skip(r, 8)

    if err = v.Read(r, &v.Layer); err != nil {
        log.Errorf("read tkhd layer failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.AlternateGroup); err != nil {
        log.Errorf("read tkhd alternate group failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.Volume); err != nil {
        log.Errorf("read tkhd volume failed, err is %v", err)
        return
    }

    v.Skip(r, 2)

    for i := 0; i < len(v.Matrix); i++ {
        if err = v.Read(r, &v.Matrix[i]); err != nil {
            log.Errorf("read tkhd matrix %d failed, err is %v", i, err)
            return
        }
    }

    if err = v.Read(r, &v.Width); err != nil {
        log.Errorf("read tkhd width failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.Height); err != nil {
        log.Errorf("read tkhd height failed, err is %v", err)
        return
    }

    log.Tracef("decode tkhd success, track=%v %vx%v", v.TrackId, v.Width>>16, v.Height>>16)
    return
}

func (v *Mp4TrackHeaderBox) EncodeHeader(w *BufWriter) (err error) {
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
        if err = w.WriteU32(v.TrackId); err != nil {
            return
        }
        if err = w.WriteU32(0); err != nil {
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
        if err = w.WriteU32(v.TrackId); err != nil {
            return
        }
        if err = w.WriteU32(0); err != nil {
            return
        }
        if err = w.WriteU32(uint32(v.Duration)); err != nil {
            return
        }
    }

    if err = w.WriteU64(0); err != nil {
        return
    }
    if err = w.Write(v.Layer); err != nil {
        return
    }
    if err = w.Write(v.AlternateGroup); err != nil {
        return
    }
    if err = w.Write(v.Volume); err != nil {
        return
    }
    if err = w.WriteU16(0); err != nil {
        return
    }
    for i := 0; i < len(v.Matrix); i++ {
        if err = w.Write(v.Matrix[i]); err != nil {
            return
        }
    }
    if err = w.Write(v.Width); err != nil {
        return
    }
    return w.Write(v.Height)
}

func (v *Mp4TrackHeaderBox) CalcSize() uint64 {
    size := uint64(12 + 17*4)
    if v.Version == 1 {
        size += 3 * 8
    } else {
        size += 3 * 4
    }
    v.SmallSize = uint32(size)
    return size
}
