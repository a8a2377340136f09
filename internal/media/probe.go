package media

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrUnsupported is returned by Probe for locators with no recognised
// media extension.
var ErrUnsupported = errors.New("unsupported media type")

// Info describes what is known about an item before it is decoded.
// Zero Width/Height or Duration means unknown.
type Info struct {
	Type     Type
	Width    int
	Height   int
	Duration time.Duration
}

// Probe inspects a local file. MP4/MOV headers are parsed for the natural
// video size and duration; images get DefaultImageDuration; anything else
// only has its existence checked.
func Probe(path string) (Info, error) {
	info := Info{Type: Detect(path)}
	if info.Type == Unknown {
		return info, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	if info.Type == Image {
		info.Duration = DefaultImageDuration * time.Second
		return info, nil
	}
	if !isoExts[ext(path)] {
		return info, nil
	}

	file, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return info, fmt.Errorf("decode mp4: %w", err)
	}
	moov := file.Moov
	if moov == nil && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return info, fmt.Errorf("no moov box in %s", path)
	}

	if moov.Mvhd != nil && moov.Mvhd.Timescale > 0 {
		info.Duration = ticksToDuration(float64(moov.Mvhd.Duration), float64(moov.Mvhd.Timescale))
	}

	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Tkhd != nil {
			info.Width = int(uint32(trak.Tkhd.Width) >> 16)
			info.Height = int(uint32(trak.Tkhd.Height) >> 16)
		}
		if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Timescale > 0 && mdhd.Duration > 0 {
			info.Duration = ticksToDuration(float64(mdhd.Duration), float64(mdhd.Timescale))
		}
		break
	}

	return info, nil
}

func ticksToDuration(ticks, timescale float64) time.Duration {
	return time.Duration(ticks / timescale * float64(time.Second))
}
