package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)

	require.NoError(t, cam.Open())
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err)
		f.Close()
	}

	_, err = cam.ReadFrame()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
	assert.Equal(t, 2, cam.Reads())
}

func TestMockCamera_Loop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	require.NoError(t, cam.Open())
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err, "iteration %d", i)
		f.Close()
	}
}

func TestMockCamera_EmptyLoop(t *testing.T) {
	cam := NewMockCamera(nil, true)
	require.NoError(t, cam.Open())

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
}

func TestMockCamera_FPSHistory(t *testing.T) {
	cam := NewMockCamera(nil, false)

	cam.SetFPS(15)
	cam.SetFPS(0)
	cam.SetFPS(5)

	assert.Equal(t, 5, cam.FPS())
	assert.Equal(t, []int{15, 5}, cam.FPSHistory())
}
