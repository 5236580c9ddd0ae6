package streaminfo

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrNoVideoTrack is returned when an MP4 file has no AVC video track.
var ErrNoVideoTrack = errors.New("streaminfo: no AVC video track")

// track is the part of a video trak needed to rebuild Annex-B pictures.
type track struct {
	id     uint32
	params []byte
	stbl   *mp4.StblBox
}

// ReadMP4 extracts the video track of a fragmented or progressive MP4 file
// as Annex-B pictures, one per sample. Sync samples are prefixed with the
// parameter sets from the sample description, so the pictures concatenate
// into the same kind of stream an encoder session emits.
func ReadMP4(r io.ReadSeeker) ([][]byte, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	if file.IsFragmented() {
		return readFragmented(file)
	}
	return readProgressive(file, r)
}

func findVideoTrack(moov *mp4.MoovBox) (track, bool) {
	if moov == nil {
		return track{}, false
	}
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			continue
		}
		for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
			avc1, ok := child.(*mp4.VisualSampleEntryBox)
			if !ok || avc1.AvcC == nil {
				continue
			}
			var params []byte
			for _, sps := range avc1.AvcC.SPSnalus {
				params = appendStartCode(params, sps)
			}
			for _, pps := range avc1.AvcC.PPSnalus {
				params = appendStartCode(params, pps)
			}
			return track{id: trak.Tkhd.TrackID, params: params, stbl: trak.Mdia.Minf.Stbl}, true
		}
	}
	return track{}, false
}

func readFragmented(file *mp4.File) ([][]byte, error) {
	if file.Init == nil {
		return nil, ErrNoVideoTrack
	}
	video, ok := findVideoTrack(file.Init.Moov)
	if !ok {
		return nil, ErrNoVideoTrack
	}

	var trex *mp4.TrexBox
	if file.Init.Moov.Mvex != nil {
		for _, t := range file.Init.Moov.Mvex.Trexs {
			if t.TrackID == video.id {
				trex = t
				break
			}
		}
	}

	var pictures [][]byte
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return nil, fmt.Errorf("get samples: %w", err)
			}
			for _, sample := range samples {
				pictures = append(pictures, video.picture(sample.Data, sample.IsSync()))
			}
		}
	}
	return pictures, nil
}

func readProgressive(file *mp4.File, r io.ReadSeeker) ([][]byte, error) {
	video, ok := findVideoTrack(file.Moov)
	if !ok {
		return nil, ErrNoVideoTrack
	}
	stbl := video.stbl
	if stbl.Stsz == nil {
		return nil, fmt.Errorf("no stsz box found")
	}

	sync := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			sync[nr] = true
		}
	}

	var pictures [][]byte
	for nr := uint32(1); nr <= stbl.Stsz.SampleNumber; nr++ {
		data, err := readSample(stbl, r, nr)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", nr, err)
		}
		// Without an stss box every sample is a sync sample.
		pictures = append(pictures, video.picture(data, stbl.Stss == nil || sync[nr]))
	}
	return pictures, nil
}

// readSample reads one sample of a progressive file through the chunk tables.
func readSample(stbl *mp4.StblBox, r io.ReadSeeker, nr uint32) ([]byte, error) {
	if stbl.Stsc == nil {
		return nil, fmt.Errorf("missing stsc box")
	}

	chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
	if err != nil {
		return nil, fmt.Errorf("get chunk nr: %w", err)
	}

	var offset uint64
	switch {
	case stbl.Stco != nil:
		offset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk %d out of range", chunkNr)
		}
		offset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("no stco or co64 box")
	}

	for s := uint32(firstInChunk); s < nr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}

	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	data := make([]byte, stbl.Stsz.GetSampleSize(int(nr)))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}

// picture converts a length-prefixed sample to Annex-B.
func (t track) picture(sample []byte, sync bool) []byte {
	var out []byte
	if sync {
		out = append(out, t.params...)
	}
	for off := 0; off+4 <= len(sample); {
		n := int(sample[off])<<24 | int(sample[off+1])<<16 | int(sample[off+2])<<8 | int(sample[off+3])
		off += 4
		if off+n > len(sample) {
			break
		}
		out = appendStartCode(out, sample[off:off+n])
		off += n
	}
	return out
}

func appendStartCode(dst, nalu []byte) []byte {
	dst = append(dst, 0, 0, 0, 1)
	return append(dst, nalu...)
}
