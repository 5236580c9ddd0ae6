package streaminfo

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/user/avcstream/pkg/mocks"
)

var (
	testIDR   = []byte{0x65, 0x88, 0x84, 0x21}
	testSlice = []byte{0x41, 0x9A, 0x02, 0x03}
)

func TestStats_Add(t *testing.T) {
	var s Stats

	fragments := [][]byte{
		mocks.AnnexB(mocks.DefaultSPS, mocks.DefaultPPS, testIDR),
		mocks.AnnexB(testSlice),
		nil,
		mocks.AnnexB(testSlice),
		mocks.AnnexB(mocks.DefaultSPS, mocks.DefaultPPS, testIDR),
	}

	var total int64
	for i, f := range fragments {
		if err := s.Add(f); err != nil {
			t.Fatalf("Add(%d) failed: %v", i, err)
		}
		total += int64(len(f))
	}

	if s.Fragments != 4 {
		t.Errorf("expected 4 fragments, got %d", s.Fragments)
	}
	if s.Bytes != total {
		t.Errorf("expected %d bytes, got %d", total, s.Bytes)
	}
	if s.KeyFrames != 2 {
		t.Errorf("expected 2 keyframes, got %d", s.KeyFrames)
	}

	counts := map[h264.NALUType]int{
		h264.NALUTypeSPS:    2,
		h264.NALUTypePPS:    2,
		h264.NALUTypeIDR:    2,
		h264.NALUTypeNonIDR: 2,
	}
	for typ, want := range counts {
		if got := s.Count(typ); got != want {
			t.Errorf("%v: expected %d, got %d", typ, want, got)
		}
	}

	summary := s.String()
	if !strings.HasPrefix(summary, "4 fragments") {
		t.Errorf("unexpected summary %q", summary)
	}
	t.Logf("Stats:\n%s", summary)
}

func TestStats_AddMalformed(t *testing.T) {
	var s Stats

	if err := s.Add([]byte{0x65, 0x88}); err == nil {
		t.Error("expected an error for a fragment without start code")
	}
	if s.Fragments != 0 {
		t.Errorf("malformed fragments must not be counted, got %d", s.Fragments)
	}
}

func TestDescribeParameterSets(t *testing.T) {
	desc, err := DescribeParameterSets(mocks.DefaultParameterSets)
	if err != nil {
		t.Fatalf("DescribeParameterSets failed: %v", err)
	}

	if desc.Width != 1280 || desc.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", desc.Width, desc.Height)
	}
	if desc.Profile() != "High" {
		t.Errorf("expected High profile, got %s", desc.Profile())
	}
	if desc.Level() != "3.1" {
		t.Errorf("expected level 3.1, got %s", desc.Level())
	}
	if desc.SPSCount != 1 || desc.PPSCount != 1 {
		t.Errorf("expected one SPS and one PPS, got %d and %d", desc.SPSCount, desc.PPSCount)
	}
}

func TestDescribeParameterSets_NoSPS(t *testing.T) {
	_, err := DescribeParameterSets(mocks.AnnexB(mocks.DefaultPPS))
	if !errors.Is(err, ErrNoSPS) {
		t.Errorf("expected ErrNoSPS, got %v", err)
	}
}

func TestDescription_Names(t *testing.T) {
	tests := []struct {
		desc    Description
		profile string
		level   string
	}{
		{Description{ProfileIDC: 66, LevelIDC: 30}, "Baseline", "3.0"},
		{Description{ProfileIDC: 77, LevelIDC: 40}, "Main", "4.0"},
		{Description{ProfileIDC: 100, LevelIDC: 51}, "High", "5.1"},
		{Description{ProfileIDC: 99, LevelIDC: 9}, "profile 99", "0.9"},
	}

	for _, tt := range tests {
		if got := tt.desc.Profile(); got != tt.profile {
			t.Errorf("Profile(%d) = %s, want %s", tt.desc.ProfileIDC, got, tt.profile)
		}
		if got := tt.desc.Level(); got != tt.level {
			t.Errorf("Level(%d) = %s, want %s", tt.desc.LevelIDC, got, tt.level)
		}
	}
}

func TestFindParameterSets(t *testing.T) {
	stream := bytes.Join([][]byte{
		mocks.AnnexB([]byte{0x09, 0xF0}),
		mocks.DefaultParameterSets,
		mocks.AnnexB(testIDR, testSlice, mocks.DefaultSPS),
	}, nil)

	got := FindParameterSets(stream)
	if !bytes.Equal(got, mocks.DefaultParameterSets) {
		t.Errorf("expected %x, got %x", mocks.DefaultParameterSets, got)
	}

	if got := FindParameterSets(mocks.AnnexB(testIDR)); got != nil {
		t.Errorf("expected nil without parameter sets, got %x", got)
	}
}

func TestSplitPictures(t *testing.T) {
	secondSlice := []byte{0x41, 0x40, 0x11} // first_mb_in_slice != 0
	fragment := mocks.AnnexB(
		[]byte{0x09, 0xF0},
		mocks.DefaultSPS, mocks.DefaultPPS, testIDR,
		testSlice, secondSlice,
		testSlice,
		[]byte{0x06, 0x05, 0x01, 0xFF},
	)

	pictures, err := SplitPictures(fragment)
	if err != nil {
		t.Fatalf("SplitPictures failed: %v", err)
	}
	if len(pictures) != 3 {
		t.Fatalf("expected 3 pictures, got %d", len(pictures))
	}

	if !pictures[0].IDR || len(pictures[0].NALUs) != 3 {
		t.Errorf("picture 0: expected IDR with parameter sets, got %d NALUs (IDR %v)", len(pictures[0].NALUs), pictures[0].IDR)
	}
	if !bytes.Equal(pictures[0].NALUs[0], mocks.DefaultSPS) {
		t.Error("picture 0 must start with the SPS")
	}
	if pictures[1].IDR || len(pictures[1].NALUs) != 2 {
		t.Errorf("picture 1: expected two slices, got %d", len(pictures[1].NALUs))
	}
	if len(pictures[2].NALUs) != 1 {
		t.Errorf("picture 2: trailing SEI must be dropped, got %d NALUs", len(pictures[2].NALUs))
	}
}

func TestReadMP4_NotMP4(t *testing.T) {
	if _, err := ReadMP4(bytes.NewReader(mocks.DefaultParameterSets)); err == nil {
		t.Error("expected an error for Annex-B input")
	}
}
