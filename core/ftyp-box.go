package core

import (
    log "github.com/sirupsen/logrus"
)

/**
 * 4.3 File Type Box (ftyp)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 17
 * Files written to this version of this specification must contain a file-type box. For compatibility with an earlier
 * version of this specification, files may be conformant to this specification and not contain a file-type box.
 *
 * The segment type box (styp) shares the layout, with the segment brands.
 */
type Mp4FileTypeBox struct {
    Mp4Box
    MajorBrand       uint32
    MinorVersion     uint32
    CompatibleBrands []uint32
}

func NewMp4FileTypeBox() *Mp4FileTypeBox {
    v := &Mp4FileTypeBox{
        MajorBrand: Mp4BoxBrandForbidden,
    }
    v.BoxType = Mp4BoxTypeFTYP
    return v
}

func NewMp4SegmentTypeBox() *Mp4FileTypeBox {
    v := NewMp4FileTypeBox()
    v.BoxType = Mp4BoxTypeSTYP
    return v
}

func (v *Mp4FileTypeBox) SetCompatibleBrands(brands ...uint32) {
    v.CompatibleBrands = append([]uint32{}, brands...)
}

func (v *Mp4FileTypeBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4FileTypeBox) DecodeHeader(r *BufReader) (err error) {
    if err = v.Read(r, &v.MajorBrand); err != nil {
        log.Errorf("read major brand failed, err is %v", err)
        return
    }
    if err = v.Read(r, &v.MinorVersion); err != nil {
        log.Errorf("read minor version failed, err is %v", err)
        return
    }

    // Compatible brands to the end of the box.
    for v.left() >= 4 {
        var brand uint32
        if err = v.Read(r, &brand); err != nil {
            log.Errorf("read brand failed, err is %v", err)
            return
        }
        v.CompatibleBrands = append(v.CompatibleBrands, brand)
    }
    return
}

func (v *Mp4FileTypeBox) EncodeHeader(w *BufWriter) (err error) {
    if err = w.WriteU32(v.MajorBrand); err != nil {
        return
    }
    if err = w.WriteU32(v.MinorVersion); err != nil {
        return
    }
    for _, brand := range v.CompatibleBrands {
        if err = w.WriteU32(brand); err != nil {
            return
        }
    }
    return
}

func (v *Mp4FileTypeBox) CalcSize() uint64 {
    size := uint64(16) + uint64(len(v.CompatibleBrands))*4
    v.SmallSize = uint32(size)
    return size
}
