package core

import (
    "fmt"

    log "github.com/sirupsen/logrus"
)

/**
 * 8.2.2 Movie Header Box (mvhd)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 31
 */
type Mp4MovieHeaderBox struct {
    Mp4FullBox
    // an integer that declares the creation time of the presentation (in seconds since
    // midnight, Jan. 1, 1904, in UTC time)
    CreateTime uint64
    // an integer that declares the most recent time the presentation was modified (in
    // seconds since midnight, Jan. 1, 1904, in UTC time)
    ModTime uint64
    // an integer that specifies the time-scale for the entire presentation; this is the number of
    // time units that pass in one second.
    TimeScale uint32
    // an integer that declares length of the presentation (in the indicated timescale). This property
    // is derived from the presentation's tracks: the value of this field corresponds to the duration of the
    // longest track in the presentation.
    DurationInTbn uint64
    // a fixed point 16.16 number that indicates the preferred rate to play the presentation; 1.0
    // (0x00010000) is normal forward playback
    Rate uint32
    // a fixed point 8.8 number that indicates the preferred playback volume. 1.0 (0x0100) is full volume.
    Volume uint16
    // a transformation matrix for the video; (u,v,w) are restricted here to (0,0,1), hex values (0,0,0x40000000).
    Matrix [9]int32
    // a non-zero integer that indicates a value to use for the track ID of the next track to be
    // added to this presentation.
    NextTrackId uint32
}

func NewMp4MovieHeaderBox() *Mp4MovieHeaderBox {
    v := &Mp4MovieHeaderBox{
        Rate:   0x00010000,
        Volume: 0x0100,
        Matrix: [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000},
    }
    v.BoxType = Mp4BoxTypeMVHD
    return v
}

// Get the duration in ms
func (v *Mp4MovieHeaderBox) Duration() uint64 {
    if v.TimeScale > 0 {
        return v.DurationInTbn * 1000 / uint64(v.TimeScale)
    }
    return 0
}

func (v *Mp4MovieHeaderBox) Basic() *Mp4Box {
    return &v.Mp4FullBox.Mp4Box
}

func (v *Mp4MovieHeaderBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Mp4FullBox.DecodeHeader(r); err != nil {
        return
    }

    if v.Version > 1 {
        return fmt.Errorf("%w: mvhd version %v", ErrUnsupportedVersion, v.Version)
    }

    if v.Version == 1 {
        if err = v.Read(r, &v.CreateTime); err != nil {
            log.Errorf("read mvhd create time failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.ModTime); err != nil {
            log.Errorf("read mvhd mod time failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.TimeScale); err != nil {
            log.Errorf("read mvhd time scale failed, err is %v", err)
            return
        }
        if err = v.Read(r, &v.DurationInTbn); err != nil {
            log.Errorf("read mvhd duration failed, err is %v", err)
            return
        }
    } else {
        var tmp uint32
        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("read mvhd create time failed, err is %v", err)
            return
        }
        v.CreateTime = uint64(tmp)

        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("read mvhd mod time failed, err is %v", err)
            return
        }
        v.ModTime = uint64(tmp)

        if err = v.Read(r, &v.TimeScale); err != nil {
            log.Errorf("read mvhd time scale failed, err is %v", err)
            return
        }

        if err = v.Read(r, &tmp); err != nil {
            log.Errorf("read mvhd duration failed, err is %v", err)
            return
        }
        v.DurationInTbn = uint64(tmp)
    }

    if err = v.Read(r, &v.Rate); err != nil {
        log.Errorf("read mvhd rate failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.Volume); err != nil {
        log.Errorf("read mvhd volume failed, err is %v", err)
        return
    }

    // reserved: u16 + 2*u32.
    v.Skip(r, 10)

    for i := 0; i < len(v.Matrix); i++ {
        if err = v.Read(r, &v.Matrix[i]); err != nil {
            log.Errorf("read mvhd matrix %d failed, err is %v", i, err)
            return
        }
    }

    // pre_defined: 6*u32.
    v.Skip(r, 24)

    if err = v.Read(r, &v.NextTrackId); err != nil {
        log.Errorf("read mvhd next track id failed, err is %v", err)
        return
    }

    log.Tracef("decode mvhd success, timescale=%v duration=%v", v.TimeScale, v.DurationInTbn)
    return
}

// Serialization is always version 0.
func (v *Mp4MovieHeaderBox) EncodeHeader(w *BufWriter) (err error) {
    v.Version = 0
    if err = v.Mp4FullBox.EncodeHeader(w); err != nil {
        return
    }

    if err = w.WriteU32(uint32(v.CreateTime)); err != nil {
        return
    }
    if err = w.WriteU32(uint32(v.ModTime)); err != nil {
        return
    }
    if err = w.WriteU32(v.TimeScale); err != nil {
        return
    }
    if err = w.WriteU32(uint32(v.DurationInTbn)); err != nil {
        return
    }
    if err = w.WriteU32(v.Rate); err != nil {
        return
    }
    if err = w.WriteU16(v.Volume); err != nil {
        return
    }
    if err = w.WriteBytes(make([]byte, 10)); err != nil {
        return
    }
    for i := 0; i < len(v.Matrix); i++ {
        if err = w.Write(v.Matrix[i]); err != nil {
            return
        }
    }
    if err = w.WriteBytes(make([]byte, 24)); err != nil {
        return
    }
    return w.WriteU32(v.NextTrackId)
}

func (v *Mp4MovieHeaderBox) CalcSize() uint64 {
    size := uint64(108)
    v.SmallSize = uint32(size)
    return size
}
