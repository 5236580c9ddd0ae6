package tssink

import (
	"testing"

	"github.com/user/avcstream/pkg/mocks"
)

func TestSink_WritesTransportStream(t *testing.T) {
	fs := mocks.NewFileSystem()

	sink, err := Create(fs, "/out/stream.ts", 30)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fragments := [][]byte{
		mocks.AnnexB(mocks.DefaultSPS, mocks.DefaultPPS, []byte{0x65, 0x88, 0x84, 0x21}),
		mocks.AnnexB([]byte{0x41, 0x9A, 0x02, 0x03}),
		nil,
		mocks.AnnexB([]byte{0x41, 0x9A, 0x04, 0x05}, []byte{0x41, 0x9A, 0x06, 0x07}),
	}
	for i, f := range fragments {
		if err := sink.WriteFragment(f); err != nil {
			t.Fatalf("WriteFragment(%d) failed: %v", i, err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if sink.Pictures() != 4 {
		t.Errorf("expected 4 pictures, got %d", sink.Pictures())
	}

	data, ok := fs.GetFile("/out/stream.ts")
	if !ok || len(data) == 0 {
		t.Fatal("no output written")
	}
	if len(data)%188 != 0 {
		t.Errorf("expected whole 188-byte packets, got %d bytes", len(data))
	}
	for off := 0; off < len(data); off += 188 {
		if data[off] != 0x47 {
			t.Fatalf("packet at %d lacks the sync byte", off)
		}
	}
}

func TestSink_RejectsMalformedFragment(t *testing.T) {
	sink := New(nopWriteCloser{}, 30)

	if err := sink.WriteFragment([]byte{0x65, 0x88}); err == nil {
		t.Error("expected an error for a fragment without start code")
	}
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
