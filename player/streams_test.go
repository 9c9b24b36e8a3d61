package player

import (
	"errors"
	"testing"

	"github.com/averon/playback/media"
)

func testDescriptors() []media.StreamDescriptor {
	return []media.StreamDescriptor{
		{Index: 0, Kind: media.KindVideo, Codec: "h264"},
		{Index: 1, Kind: media.KindAudio, Codec: "aac", Language: "eng"},
		{Index: 2, Kind: media.KindAudio, Codec: "aac", Language: "jpn"},
	}
}

func TestStreamTableLifecycle(t *testing.T) {
	t.Parallel()

	var tbl streamTable
	if tbl.count() != 0 {
		t.Fatalf("empty table count = %d", tbl.count())
	}

	tbl.reset(testDescriptors())
	if tbl.count() != 3 {
		t.Fatalf("count = %d, want 3", tbl.count())
	}

	// Streams start disabled.
	for i := 0; i < 3; i++ {
		if tbl.routable(i) {
			t.Errorf("stream %d routable before enable", i)
		}
	}

	if err := tbl.setEnabled(1, true); err != nil {
		t.Fatal(err)
	}
	if !tbl.routable(1) || tbl.routable(0) {
		t.Error("enable did not take effect on the right stream")
	}

	desc, enabled, err := tbl.get(1)
	if err != nil || !enabled || desc.Language != "eng" {
		t.Errorf("get(1) = %+v, %v, %v", desc, enabled, err)
	}

	tbl.clear()
	if tbl.count() != 0 || tbl.routable(1) {
		t.Error("clear did not empty the table")
	}
}

func TestStreamTableRangeErrors(t *testing.T) {
	t.Parallel()

	var tbl streamTable
	tbl.reset(testDescriptors())

	for _, i := range []int{-1, 3, 99} {
		if _, _, err := tbl.get(i); !errors.Is(err, ErrInvalidStreamIndex) {
			t.Errorf("get(%d) error = %v, want ErrInvalidStreamIndex", i, err)
		}
		if err := tbl.setEnabled(i, true); !errors.Is(err, ErrInvalidStreamIndex) {
			t.Errorf("setEnabled(%d) error = %v, want ErrInvalidStreamIndex", i, err)
		}
		if tbl.routable(i) {
			t.Errorf("routable(%d) = true for out-of-range index", i)
		}
	}
}

func TestStreamTableAnyEnabled(t *testing.T) {
	t.Parallel()

	var tbl streamTable
	tbl.reset(testDescriptors())

	if tbl.anyEnabled(media.KindAudio) {
		t.Error("anyEnabled before any enable")
	}
	tbl.setEnabled(0, true)
	if tbl.anyEnabled(media.KindAudio) {
		t.Error("video enable should not satisfy audio query")
	}
	if !tbl.anyEnabled(media.KindVideo) {
		t.Error("video enable not observed")
	}
	tbl.setEnabled(2, true)
	if !tbl.anyEnabled(media.KindAudio) {
		t.Error("audio enable not observed")
	}
}
