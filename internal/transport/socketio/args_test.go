package socketio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/playlist"
)

func TestArgFloat(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    float64
		wantErr bool
	}{
		{"number", 0.25, 0.25, false},
		{"int", 3, 3, false},
		{"numeric string", "0.5", 0.5, false},
		{"word", "half", 0, true},
		{"object", map[string]interface{}{"v": 1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := argFloat(payload("x", tt.value), "x")
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgMissing(t *testing.T) {
	_, err := argFloat(nil, "x")
	assert.ErrorIs(t, err, errBadArgument)

	_, err = argString([]any{"not an object"}, "slug")
	assert.ErrorIs(t, err, errBadArgument)

	_, err = argBool(payload("value", nil), "value")
	assert.ErrorIs(t, err, errBadArgument)
}

func TestArgBoolIsStrict(t *testing.T) {
	v, err := argBool(payload("inside", true), "inside")
	require.NoError(t, err)
	assert.True(t, v)

	_, err = argBool(payload("inside", "yes"), "inside")
	assert.ErrorIs(t, err, errBadArgument)

	_, err = argBool(payload("inside", float64(1)), "inside")
	assert.ErrorIs(t, err, errBadArgument)
}

func TestArgIDAcceptsNumbers(t *testing.T) {
	id, err := argID(payload("id", "t-1"), "id")
	require.NoError(t, err)
	assert.Equal(t, playlist.ID("t-1"), id)

	id, err = argID(payload("id", float64(42)), "id")
	require.NoError(t, err)
	assert.Equal(t, playlist.ID("42"), id)

	_, err = argID(payload("id", []interface{}{1}), "id")
	assert.ErrorIs(t, err, errBadArgument)
}

func TestArgWidgetState(t *testing.T) {
	st, err := argWidgetState(payload("state", float64(1)))
	require.NoError(t, err)
	assert.Equal(t, playback.WidgetPlaying, st)

	st, err = argWidgetState(payload("state", float64(-1)))
	require.NoError(t, err)
	assert.Equal(t, playback.WidgetUnstarted, st)

	st, err = argWidgetState(payload("state", "paused"))
	require.NoError(t, err)
	assert.Equal(t, playback.WidgetPaused, st)

	_, err = argWidgetState(payload("state", "dancing"))
	assert.ErrorIs(t, err, errBadArgument)
}
