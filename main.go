package main

import (
    "flag"
    "fmt"
    "io/ioutil"
    "os"
    "path/filepath"

    ol "github.com/ossrs/go-oryx-lib/logger"
    "gopkg.in/yaml.v3"

    "panda.com/mp4dash/core"
    "panda.com/mp4dash/flv"
)

const version = "0.2.0"

// The dash mode also accepts a yaml config; flags that were explicitly set
// win over the values they duplicate.
type appConfig struct {
    Input      string `yaml:"input"`
    OutDir     string `yaml:"out_dir"`
    Track      int    `yaml:"track"`
    SegSeconds uint64 `yaml:"seg_seconds"`
}

func main() {
    fmt.Println(fmt.Sprintf("mp4dash:%v, remux mp4 to dash segments or flv", version))

    var mp4Url, mode, outDir, confFile string
    var trackIdx int
    var segSeconds uint64
    flag.StringVar(&mp4Url, "url", "./test.mp4", "mp4 file to be parsed")
    flag.StringVar(&mode, "mode", "dump", "one of dump, dash, flv")
    flag.StringVar(&outDir, "out", "./out", "output directory")
    flag.IntVar(&trackIdx, "track", 0, "track index, not the track id")
    flag.Uint64Var(&segSeconds, "seg", 5, "dash segment duration in seconds")
    flag.StringVar(&confFile, "conf", "", "optional yaml config file")
    flag.Parse()

    if confFile != "" {
        var conf appConfig
        data, err := ioutil.ReadFile(confFile)
        if err != nil {
            ol.E(nil, fmt.Sprintf("read config %v failed, err is %v", confFile, err))
            os.Exit(1)
        }
        if err = yaml.Unmarshal(data, &conf); err != nil {
            ol.E(nil, fmt.Sprintf("parse config %v failed, err is %v", confFile, err))
            os.Exit(1)
        }

        set := map[string]bool{}
        flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
        if !set["url"] && conf.Input != "" {
            mp4Url = conf.Input
        }
        if !set["out"] && conf.OutDir != "" {
            outDir = conf.OutDir
        }
        if !set["track"] {
            trackIdx = conf.Track
        }
        if !set["seg"] && conf.SegSeconds != 0 {
            segSeconds = conf.SegSeconds
        }
    }

    ol.T(nil, "the input mp4 url is:", mp4Url)

    f, err := os.Open(mp4Url)
    if err != nil {
        ol.E(nil, fmt.Sprintf("open file %v failed, err is %v", mp4Url, err))
        os.Exit(1)
    }
    defer f.Close()

    r := core.NewBufReader(f)
    root := core.NewMp4RootBox()
    if err = root.Parse(r); err != nil {
        ol.E(nil, fmt.Sprintf("parse %v failed, err is %v", mp4Url, err))
        os.Exit(1)
    }

    switch mode {
    case "dump":
        core.DumpBox(os.Stdout, root, "")
    case "dash":
        err = doDash(root, r, outDir, trackIdx, segSeconds)
    case "flv":
        err = doFlv(root, r, outDir, trackIdx)
    default:
        err = fmt.Errorf("unknown mode %v", mode)
    }
    if err != nil {
        ol.E(nil, fmt.Sprintf("mode %v failed, err is %v", mode, err))
        os.Exit(1)
    }
}

func pickTrack(root *core.Mp4RootBox, trackIdx int) (*core.Mp4TrackBox, error) {
    moov, err := root.Moov()
    if err != nil {
        return nil, err
    }
    tracks := moov.Tracks()
    if trackIdx < 0 || trackIdx >= len(tracks) {
        return nil, fmt.Errorf("track %v out of %v tracks", trackIdx, len(tracks))
    }
    return tracks[trackIdx], nil
}

func writeSegmentFile(name string, root *core.Mp4RootBox) (err error) {
    f, err := os.Create(name)
    if err != nil {
        return
    }
    defer f.Close()
    return root.Write(core.NewBufWriter(f))
}

func doDash(root *core.Mp4RootBox, r *core.BufReader, outDir string, trackIdx int, segSeconds uint64) (err error) {
    trak, err := pickTrack(root, trackIdx)
    if err != nil {
        return
    }

    seg, err := core.NewDashSegmenter(trak, r)
    if err != nil {
        return
    }
    seg.TrackIdx = trackIdx
    if segSeconds > 0 {
        seg.SegDuration = segSeconds * uint64(seg.TimeScale())
    }

    if err = os.MkdirAll(outDir, 0755); err != nil {
        return
    }

    init, err := seg.InitSegment()
    if err != nil {
        return
    }
    if err = writeSegmentFile(filepath.Join(outDir, core.DashInitFileName(trackIdx)), init); err != nil {
        return
    }

    for !seg.Eos() {
        var media *core.Mp4RootBox
        if media, err = seg.NextSegment(); err != nil {
            return
        }
        name := filepath.Join(outDir, core.DashSegmentFileName(trackIdx, seg.FragmentNumber()))
        if err = writeSegmentFile(name, media); err != nil {
            return
        }
        ol.T(nil, fmt.Sprintf("wrote %v", name))
    }
    return
}

func doFlv(root *core.Mp4RootBox, r *core.BufReader, outDir string, trackIdx int) (err error) {
    trak, err := pickTrack(root, trackIdx)
    if err != nil {
        return
    }

    hdlr, err := trak.Hdlr()
    if err != nil {
        return
    }
    stsd, err := trak.Stsd()
    if err != nil {
        return
    }

    index, err := core.NewSampleIndex(trak)
    if err != nil {
        return
    }
    reader := core.NewSampleReader(index)

    if err = os.MkdirAll(outDir, 0755); err != nil {
        return
    }
    of, err := os.Create(filepath.Join(outDir, "out.flv"))
    if err != nil {
        return
    }
    defer of.Close()

    muxer := flv.NewMuxer(of)
    if err = muxer.WriteHeader(hdlr.IsVideo(), hdlr.IsAudio()); err != nil {
        return
    }

    if hdlr.IsVideo() {
        var avcc []byte
        if avcc, err = flv.AvcConfig(stsd.Desc()); err != nil {
            return
        }
        if err = muxer.WriteVideoConfig(avcc); err != nil {
            return
        }
    } else if hdlr.IsAudio() {
        var asc []byte
        if asc, err = flv.AudioSpecificConfig(stsd.Desc()); err != nil {
            return
        }
        if err = muxer.WriteAudioConfig(asc); err != nil {
            return
        }
    }

    for !reader.EOS() {
        var s *core.Sample
        if s, err = reader.Read(r); err != nil {
            return
        }
        if hdlr.IsVideo() {
            err = muxer.WriteVideoSample(s)
        } else {
            err = muxer.WriteAudioSample(s)
        }
        if err != nil {
            return
        }
    }
    return
}
