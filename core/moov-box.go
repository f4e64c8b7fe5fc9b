package core

/**
 * 8.2.1 Movie Box (moov)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 30
 * The metadata for a presentation is stored in the single Movie Box which occurs at the top-level of a file.
 * Normally this box is close to the beginning or end of the file, though this is not required.
 */
type Mp4MovieBox struct {
    Mp4Box
}

func NewMp4MovieBox() *Mp4MovieBox {
    v := &Mp4MovieBox{}
    v.BoxType = Mp4BoxTypeMOOV
    return v
}

func (v *Mp4MovieBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4MovieBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

// Get the header of moov.
func (v *Mp4MovieBox) Mvhd() (*Mp4MovieHeaderBox, error) {
    if box, err := v.get(Mp4BoxTypeMVHD); err != nil {
        return nil, err
    } else {
        return box.(*Mp4MovieHeaderBox), nil
    }
}

func (v *Mp4MovieBox) Tracks() (tracks []*Mp4TrackBox) {
    for _, box := range v.Boxes {
        if tbox, ok := box.(*Mp4TrackBox); ok {
            tracks = append(tracks, tbox)
        }
    }
    return
}

func (v *Mp4MovieBox) Video() (*Mp4TrackBox, error) {
    for _, tbox := range v.Tracks() {
        if tbox.TrackType() == Mp4TrackTypeVideo {
            return tbox, nil
        }
    }
    return nil, ErrMissingRequiredBox
}

func (v *Mp4MovieBox) Audio() (*Mp4TrackBox, error) {
    for _, tbox := range v.Tracks() {
        if tbox.TrackType() == Mp4TrackTypeAudio {
            return tbox, nil
        }
    }
    return nil, ErrMissingRequiredBox
}

/**
 * 8.3.1 Track Box (trak)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 32
 * This is a container box for a single track of a presentation. A presentation consists of one or more tracks.
 * Each track is independent of the other tracks in the presentation and carries its own temporal and spatial
 * information. Each track will contain its associated Media Box.
 */
type Mp4TrackBox struct {
    Mp4Box
}

func NewMp4TrackBox() *Mp4TrackBox {
    v := &Mp4TrackBox{}
    v.BoxType = Mp4BoxTypeTRAK
    return v
}

func (v *Mp4TrackBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4TrackBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

func (v *Mp4TrackBox) TrackType() int {
    if box, err := v.mdia(); err != nil {
        return Mp4TrackTypeForbidden
    } else {
        return box.trackType()
    }
}

func (v *Mp4TrackBox) Tkhd() (*Mp4TrackHeaderBox, error) {
    if box, err := v.get(Mp4BoxTypeTKHD); err != nil {
        return nil, err
    } else {
        return box.(*Mp4TrackHeaderBox), nil
    }
}

func (v *Mp4TrackBox) Mdhd() (*Mp4MediaHeaderBox, error) {
    if box, err := v.mdia(); err != nil {
        return nil, err
    } else {
        return box.mdhd()
    }
}

func (v *Mp4TrackBox) Hdlr() (*Mp4HandlerReferenceBox, error) {
    if box, err := v.mdia(); err != nil {
        return nil, err
    } else {
        return box.hdlr()
    }
}

func (v *Mp4TrackBox) Stsd() (*Mp4SampleDescriptionBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.stsd()
    }
}

func (v *Mp4TrackBox) Stsc() (*Mp4Sample2ChunkBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.stsc()
    }
}

func (v *Mp4TrackBox) Stts() (*Mp4DecodingTime2SampleBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.stts()
    }
}

func (v *Mp4TrackBox) Ctts() (*Mp4CompositionTime2SampleBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.ctts()
    }
}

func (v *Mp4TrackBox) Stsz() (*Mp4SampleSizeBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.stsz()
    }
}

func (v *Mp4TrackBox) Stss() (*Mp4SyncSampleBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.stss()
    }
}

func (v *Mp4TrackBox) Stco() (*Mp4ChunkOffsetBox, error) {
    if box, err := v.stbl(); err != nil {
        return nil, err
    } else {
        return box.stco()
    }
}

func (v *Mp4TrackBox) mdia() (*Mp4MediaBox, error) {
    if box, err := v.get(Mp4BoxTypeMDIA); err != nil {
        return nil, err
    } else {
        return box.(*Mp4MediaBox), nil
    }
}

func (v *Mp4TrackBox) minf() (*Mp4MediaInformationBox, error) {
    if box, err := v.mdia(); err != nil {
        return nil, err
    } else {
        return box.minf()
    }
}

func (v *Mp4TrackBox) stbl() (*Mp4SampleTableBox, error) {
    if box, err := v.minf(); err != nil {
        return nil, err
    } else {
        return box.stbl()
    }
}

/**
 * 8.4.1 Media Box (mdia)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 36
 * The media declaration container contains all the objects that declare information about the media data within a
 * track.
 */
type Mp4MediaBox struct {
    Mp4Box
}

func NewMp4MediaBox() *Mp4MediaBox {
    v := &Mp4MediaBox{}
    v.BoxType = Mp4BoxTypeMDIA
    return v
}

func (v *Mp4MediaBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4MediaBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

func (v *Mp4MediaBox) mdhd() (*Mp4MediaHeaderBox, error) {
    if box, err := v.get(Mp4BoxTypeMDHD); err != nil {
        return nil, err
    } else {
        return box.(*Mp4MediaHeaderBox), nil
    }
}

func (v *Mp4MediaBox) hdlr() (*Mp4HandlerReferenceBox, error) {
    if box, err := v.get(Mp4BoxTypeHDLR); err != nil {
        return nil, err
    } else {
        return box.(*Mp4HandlerReferenceBox), nil
    }
}

func (v *Mp4MediaBox) minf() (*Mp4MediaInformationBox, error) {
    if box, err := v.get(Mp4BoxTypeMINF); err != nil {
        return nil, err
    } else {
        return box.(*Mp4MediaInformationBox), nil
    }
}

func (v *Mp4MediaBox) trackType() int {
    if hdlr, err := v.hdlr(); err == nil {
        if hdlr.HandlerType == Mp4HandlerTypeSOUN {
            return Mp4TrackTypeAudio
        }
        if hdlr.HandlerType == Mp4HandlerTypeVIDE {
            return Mp4TrackTypeVideo
        }
    }
    return Mp4TrackTypeForbidden
}

/**
 * 8.4.4 Media Information Box (minf)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 38
 * This box contains all the objects that declare characteristic information of the media in the track.
 */
type Mp4MediaInformationBox struct {
    Mp4Box
}

func NewMp4MediaInformationBox() *Mp4MediaInformationBox {
    v := &Mp4MediaInformationBox{}
    v.BoxType = Mp4BoxTypeMINF
    return v
}

func (v *Mp4MediaInformationBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4MediaInformationBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

func (v *Mp4MediaInformationBox) stbl() (*Mp4SampleTableBox, error) {
    if box, err := v.get(Mp4BoxTypeSTBL); err != nil {
        return nil, err
    } else {
        return box.(*Mp4SampleTableBox), nil
    }
}

/**
 * 8.5.1 Sample Table Box (stbl)
 * ISO_IEC_14496-12-base-format-2012.pdf, page 40
 * The sample table contains all the time and data indexing of the media samples in a track. Using the tables
 * here, it is possible to locate samples in time, determine their type (e.g. I-frame or not), and determine their
 * size, container, and offset into that container.
 */
type Mp4SampleTableBox struct {
    Mp4Box
}

func NewMp4SampleTableBox() *Mp4SampleTableBox {
    v := &Mp4SampleTableBox{}
    v.BoxType = Mp4BoxTypeSTBL
    return v
}

func (v *Mp4SampleTableBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4SampleTableBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

func (v *Mp4SampleTableBox) stsd() (*Mp4SampleDescriptionBox, error) {
    if box, err := v.get(Mp4BoxTypeSTSD); err != nil {
        return nil, err
    } else {
        return box.(*Mp4SampleDescriptionBox), nil
    }
}

func (v *Mp4SampleTableBox) stsc() (*Mp4Sample2ChunkBox, error) {
    if box, err := v.get(Mp4BoxTypeSTSC); err != nil {
        return nil, err
    } else {
        return box.(*Mp4Sample2ChunkBox), nil
    }
}

func (v *Mp4SampleTableBox) stts() (*Mp4DecodingTime2SampleBox, error) {
    if box, err := v.get(Mp4BoxTypeSTTS); err != nil {
        return nil, err
    } else {
        return box.(*Mp4DecodingTime2SampleBox), nil
    }
}

func (v *Mp4SampleTableBox) ctts() (*Mp4CompositionTime2SampleBox, error) {
    if box, err := v.get(Mp4BoxTypeCTTS); err != nil {
        return nil, err
    } else {
        return box.(*Mp4CompositionTime2SampleBox), nil
    }
}

func (v *Mp4SampleTableBox) stss() (*Mp4SyncSampleBox, error) {
    if box, err := v.get(Mp4BoxTypeSTSS); err != nil {
        return nil, err
    } else {
        return box.(*Mp4SyncSampleBox), nil
    }
}

func (v *Mp4SampleTableBox) stsz() (*Mp4SampleSizeBox, error) {
    if box, err := v.get(Mp4BoxTypeSTSZ); err != nil {
        return nil, err
    } else {
        return box.(*Mp4SampleSizeBox), nil
    }
}

func (v *Mp4SampleTableBox) stco() (*Mp4ChunkOffsetBox, error) {
    if box, err := v.get(Mp4BoxTypeSTCO); err != nil {
        return nil, err
    } else {
        return box.(*Mp4ChunkOffsetBox), nil
    }
}

// Mp4MovieFragmentBox, the moof container of one fragment.
type Mp4MovieFragmentBox struct {
    Mp4Box
}

func NewMp4MovieFragmentBox() *Mp4MovieFragmentBox {
    v := &Mp4MovieFragmentBox{}
    v.BoxType = Mp4BoxTypeMOOF
    return v
}

func (v *Mp4MovieFragmentBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4MovieFragmentBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

func (v *Mp4MovieFragmentBox) Mfhd() (*Mp4MovieFragmentHeaderBox, error) {
    if box, err := v.get(Mp4BoxTypeMFHD); err != nil {
        return nil, err
    } else {
        return box.(*Mp4MovieFragmentHeaderBox), nil
    }
}

func (v *Mp4MovieFragmentBox) Traf() (*Mp4TrackFragmentBox, error) {
    if box, err := v.get(Mp4BoxTypeTRAF); err != nil {
        return nil, err
    } else {
        return box.(*Mp4TrackFragmentBox), nil
    }
}

// Mp4TrackFragmentBox, the traf container of one track's run in a fragment.
type Mp4TrackFragmentBox struct {
    Mp4Box
}

func NewMp4TrackFragmentBox() *Mp4TrackFragmentBox {
    v := &Mp4TrackFragmentBox{}
    v.BoxType = Mp4BoxTypeTRAF
    return v
}

func (v *Mp4TrackFragmentBox) Basic() *Mp4Box {
    return &v.Mp4Box
}

func (v *Mp4TrackFragmentBox) DecodeHeader(r *BufReader) (err error) {
    return v.DecodeBoxes(r)
}

func (v *Mp4TrackFragmentBox) Tfhd() (*Mp4TrackFragmentHeaderBox, error) {
    if box, err := v.get(Mp4BoxTypeTFHD); err != nil {
        return nil, err
    } else {
        return box.(*Mp4TrackFragmentHeaderBox), nil
    }
}

func (v *Mp4TrackFragmentBox) Tfdt() (*Mp4TrackFragmentDecodeTimeBox, error) {
    if box, err := v.get(Mp4BoxTypeTFDT); err != nil {
        return nil, err
    } else {
        return box.(*Mp4TrackFragmentDecodeTimeBox), nil
    }
}

func (v *Mp4TrackFragmentBox) Trun() (*Mp4TrackRunBox, error) {
    if box, err := v.get(Mp4BoxTypeTRUN); err != nil {
        return nil, err
    } else {
        return box.(*Mp4TrackRunBox), nil
    }
}
