package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"facebridge/server/internal/model"
	"facebridge/server/internal/notify"
)

type fakeWorker struct {
	lastCmd string
	resp    json.RawMessage
	err     error
}

func (f *fakeWorker) Analyze(_ context.Context, frame, actions string, detector, faceModel *string) (json.RawMessage, error) {
	f.lastCmd = "analyze"
	return f.resp, f.err
}

func (f *fakeWorker) Verify(_ context.Context, img1, img2 string, detector, faceModel *string) (json.RawMessage, error) {
	f.lastCmd = "verify"
	return f.resp, f.err
}

func (f *fakeWorker) Detect(_ context.Context, frame string, detector *string) (json.RawMessage, error) {
	f.lastCmd = "detect"
	return f.resp, f.err
}

type fakeMarkers struct {
	id  int64
	err error
}

func (f *fakeMarkers) AddMarker(clipID int64, timestamp float64) (int64, error) {
	return f.id, f.err
}

func newTestDispatcher(w WorkerCaller, m MarkerStore) *Dispatcher {
	log := zap.NewNop().Sugar()
	if w == nil {
		w = &fakeWorker{}
	}
	if m == nil {
		m = &fakeMarkers{id: 1}
	}
	return NewDispatcher(log, notify.New(log, 16), w, m)
}

func reqID(v uint64) *uint64 { return &v }

func TestDispatchTestServerConnection(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	resp := d.Dispatch(context.Background(), model.Request{
		RequestID: reqID(1),
		Command:   "test_server_connection",
		Payload:   json.RawMessage(`{}`),
	})

	assert.Equal(t, model.StatusOK, resp.Status)
	assert.Equal(t, "test_server_connection", resp.Command)
	assert.Equal(t, "Server is alive!", resp.Data)
	require.NotNil(t, resp.RequestID)
	assert.Equal(t, uint64(1), *resp.RequestID)
}

func TestDispatchFetchJSONEchoesPayload(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	resp := d.Dispatch(context.Background(), model.Request{
		RequestID: reqID(7),
		Command:   "fetch_JSON",
		Payload:   json.RawMessage(`{"a":1}`),
	})

	assert.Equal(t, model.StatusOK, resp.Status)
	assert.JSONEq(t, `{"a":1}`, string(resp.Data.(json.RawMessage)))
}

func TestDispatchEmotionList(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	resp := d.Dispatch(context.Background(), model.Request{
		Command: "fetch_deepFaceCameraEmotionList",
	})

	assert.Equal(t, model.StatusOK, resp.Status)
	assert.Equal(t, []string{"happy", "sad", "angry"}, resp.Data)
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	resp := d.Dispatch(context.Background(), model.Request{
		RequestID: reqID(42),
		Command:   "reticulate_splines",
	})

	assert.Equal(t, model.StatusError, resp.Status)
	assert.Equal(t, "reticulate_splines", resp.Command, "error response must echo the command")
	assert.Equal(t, map[string]string{"message": "Unknown command"}, resp.Data)
	require.NotNil(t, resp.RequestID)
	assert.Equal(t, uint64(42), *resp.RequestID)
}

func TestDispatchUnknownCommandWithoutRequestID(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	resp := d.Dispatch(context.Background(), model.Request{Command: "nope"})

	assert.Equal(t, model.StatusError, resp.Status)
	assert.Nil(t, resp.RequestID, "absent requestId must stay absent")
}

func TestDispatchAnalyzeCallsWorker(t *testing.T) {
	w := &fakeWorker{resp: json.RawMessage(`{"emotion":"happy"}`)}
	d := newTestDispatcher(w, nil)

	resp := d.Dispatch(context.Background(), model.Request{
		Command: "analyze",
		Payload: json.RawMessage(`{"frame":"f.png","actions":"emotion","detector":"opencv"}`),
	})

	assert.Equal(t, "analyze", w.lastCmd)
	assert.Equal(t, model.StatusOK, resp.Status)
	assert.JSONEq(t, `{"emotion":"happy"}`, string(resp.Data.(json.RawMessage)))
}

func TestDispatchWorkerErrorStaysWellFormed(t *testing.T) {
	w := &fakeWorker{err: errors.New("worker link not connected")}
	d := newTestDispatcher(w, nil)

	resp := d.Dispatch(context.Background(), model.Request{
		RequestID: reqID(5),
		Command:   "verify",
		Payload:   json.RawMessage(`{"img1":"a.png","img2":"b.png"}`),
	})

	assert.Equal(t, model.StatusError, resp.Status)
	assert.Equal(t, "verify", resp.Command)
	assert.Equal(t, map[string]string{"message": "worker link not connected"}, resp.Data)
}

func TestDispatchAddMarker(t *testing.T) {
	m := &fakeMarkers{id: 9}
	d := newTestDispatcher(nil, m)

	resp := d.Dispatch(context.Background(), model.Request{
		Command: "add_marker",
		Payload: json.RawMessage(`{"clipId":3,"timestamp":12.5}`),
	})

	assert.Equal(t, model.StatusOK, resp.Status)
	assert.Equal(t, map[string]int64{"markerId": 9}, resp.Data)
}
