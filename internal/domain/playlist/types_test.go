package playlist_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/serenata/internal/domain/playlist"
)

func intPtr(i int) *int { return &i }

func threeTracks() []playlist.Track {
	return []playlist.Track{
		{ID: "1", ExternalMediaID: "a"},
		{ID: "2", ExternalMediaID: "b"},
		{ID: "3", ExternalMediaID: "c"},
	}
}

func TestInitialTrack(t *testing.T) {
	// never returns an impossible index so an unexpected random pick fails.
	never := func(n int) int { return 99 }
	last := func(n int) int { return n - 1 }

	tests := []struct {
		name     string
		record   playlist.Record
		intn     func(int) int
		expected int
	}{
		{"empty playlist", playlist.Record{}, never, -1},
		{"configured in range", playlist.Record{Playlist: threeTracks(), Settings: playlist.Settings{InitialTrack: intPtr(1)}}, never, 1},
		{"configured zero", playlist.Record{Playlist: threeTracks(), Settings: playlist.Settings{InitialTrack: intPtr(0)}}, never, 0},
		{"configured out of range", playlist.Record{Playlist: threeTracks(), Settings: playlist.Settings{InitialTrack: intPtr(3)}}, last, 2},
		{"configured negative", playlist.Record{Playlist: threeTracks(), Settings: playlist.Settings{InitialTrack: intPtr(-1)}}, last, 2},
		{"unset falls back to random", playlist.Record{Playlist: threeTracks()}, last, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.InitialTrack(tt.intn))
		})
	}
}

func TestSlideIntervalDefault(t *testing.T) {
	assert.Equal(t, 5*time.Second, playlist.Settings{}.SlideInterval())
	assert.Equal(t, 5*time.Second, playlist.Settings{AutoSlideInterval: -3}.SlideInterval())
	assert.Equal(t, 2500*time.Millisecond, playlist.Settings{AutoSlideInterval: 2500}.SlideInterval())
}

func TestTrackIndex(t *testing.T) {
	rec := playlist.Record{Playlist: threeTracks()}
	assert.Equal(t, 2, rec.TrackIndex("3"))
	assert.Equal(t, -1, rec.TrackIndex("9"))
}

func TestIDUnmarshal(t *testing.T) {
	var ids []playlist.ID
	require.NoError(t, json.Unmarshal([]byte(`[1, "x", 42]`), &ids))
	assert.Equal(t, []playlist.ID{"1", "x", "42"}, ids)

	var bad playlist.ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &bad))
}

func TestValidate(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		rec := playlist.Record{
			Playlist: threeTracks(),
			Photos:   []playlist.Photo{{URL: "/1.jpg"}},
			Settings: playlist.Settings{InitialTrack: intPtr(2)},
		}
		assert.NoError(t, rec.Validate())
	})

	t.Run("empty record is valid", func(t *testing.T) {
		assert.NoError(t, (&playlist.Record{}).Validate())
	})

	t.Run("collects every problem", func(t *testing.T) {
		rec := playlist.Record{
			Playlist: []playlist.Track{
				{ID: "1", ExternalMediaID: "a"},
				{ID: "1", ExternalMediaID: ""},
			},
			Photos:   []playlist.Photo{{URL: " "}},
			Settings: playlist.Settings{InitialTrack: intPtr(5), AutoSlideInterval: -1},
		}

		err := rec.Validate()
		require.Error(t, err)

		var verr *playlist.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Problems, 5)
		assert.Contains(t, err.Error(), `duplicate track id "1"`)
	})
}
