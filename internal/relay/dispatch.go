package relay

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"facebridge/server/internal/model"
	"facebridge/server/internal/notify"
)

// WorkerCaller is the slice of the worker subsystem the dispatcher
// needs. Kept as an interface so tests can substitute a fake worker.
type WorkerCaller interface {
	Analyze(ctx context.Context, frame, actions string, detector, faceModel *string) (json.RawMessage, error)
	Verify(ctx context.Context, img1, img2 string, detector, faceModel *string) (json.RawMessage, error)
	Detect(ctx context.Context, frame string, detector *string) (json.RawMessage, error)
}

// MarkerStore persists timeline markers received over the relay.
type MarkerStore interface {
	AddMarker(clipID int64, timestamp float64) (int64, error)
}

// Handler handles one named command and always returns a well-formed
// response; protocol-level failures are expressed in the response, not
// as an error.
type Handler func(ctx context.Context, req model.Request) model.Response

// Dispatcher routes parsed request envelopes to named command
// handlers by exact match. Unknown commands get an error response that
// still echoes the command name and request id.
type Dispatcher struct {
	log      *zap.SugaredLogger
	notifier *notify.Notifier
	handlers map[string]Handler
}

func NewDispatcher(log *zap.SugaredLogger, n *notify.Notifier, worker WorkerCaller, markers MarkerStore) *Dispatcher {
	d := &Dispatcher{
		log:      log.Named("dispatch"),
		notifier: n,
	}
	d.handlers = map[string]Handler{
		"test_server_connection":          d.testServerConnection,
		"fetch_JSON":                      d.fetchJSON,
		"fetch_deepFaceCameraEmotionList": d.fetchEmotionList,
		"analyze":                         d.analyze(worker),
		"verify":                          d.verify(worker),
		"detect":                          d.detect(worker),
		"add_marker":                      d.addMarker(markers),
	}
	return d
}

// Dispatch never fails outright: every parseable request yields
// exactly one response.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.Request) model.Response {
	d.log.Debugf("dispatching command %q", req.Command)
	h, ok := d.handlers[req.Command]
	if !ok {
		return model.Error(req, "Unknown command")
	}
	return h(ctx, req)
}

func (d *Dispatcher) testServerConnection(_ context.Context, req model.Request) model.Response {
	d.notifier.CEPStatus("Connected (server connection tested successfully)")
	return model.OK(req, "Server is alive!")
}

// fetchJSON echoes the payload back verbatim.
func (d *Dispatcher) fetchJSON(_ context.Context, req model.Request) model.Response {
	return model.OK(req, req.Payload)
}

func (d *Dispatcher) fetchEmotionList(_ context.Context, req model.Request) model.Response {
	return model.OK(req, []string{"happy", "sad", "angry"})
}

type analyzePayload struct {
	Frame    string  `json:"frame"`
	Actions  string  `json:"actions"`
	Detector *string `json:"detector"`
	Model    *string `json:"model"`
}

func (d *Dispatcher) analyze(worker WorkerCaller) Handler {
	return func(ctx context.Context, req model.Request) model.Response {
		var p analyzePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return model.Error(req, "Invalid payload")
		}
		data, err := worker.Analyze(ctx, p.Frame, p.Actions, p.Detector, p.Model)
		if err != nil {
			d.log.Warnf("analyze failed: %v", err)
			return model.Error(req, err.Error())
		}
		return model.OK(req, data)
	}
}

type verifyPayload struct {
	Img1     string  `json:"img1"`
	Img2     string  `json:"img2"`
	Detector *string `json:"detector"`
	Model    *string `json:"model"`
}

func (d *Dispatcher) verify(worker WorkerCaller) Handler {
	return func(ctx context.Context, req model.Request) model.Response {
		var p verifyPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return model.Error(req, "Invalid payload")
		}
		data, err := worker.Verify(ctx, p.Img1, p.Img2, p.Detector, p.Model)
		if err != nil {
			d.log.Warnf("verify failed: %v", err)
			return model.Error(req, err.Error())
		}
		return model.OK(req, data)
	}
}

type detectPayload struct {
	Frame    string  `json:"frame"`
	Detector *string `json:"detector"`
}

func (d *Dispatcher) detect(worker WorkerCaller) Handler {
	return func(ctx context.Context, req model.Request) model.Response {
		var p detectPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return model.Error(req, "Invalid payload")
		}
		data, err := worker.Detect(ctx, p.Frame, p.Detector)
		if err != nil {
			d.log.Warnf("detect failed: %v", err)
			return model.Error(req, err.Error())
		}
		return model.OK(req, data)
	}
}

type markerPayload struct {
	ClipID    int64   `json:"clipId"`
	Timestamp float64 `json:"timestamp"`
}

func (d *Dispatcher) addMarker(markers MarkerStore) Handler {
	return func(_ context.Context, req model.Request) model.Response {
		var p markerPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return model.Error(req, "Invalid payload")
		}
		id, err := markers.AddMarker(p.ClipID, p.Timestamp)
		if err != nil {
			d.log.Warnf("add_marker failed: %v", err)
			return model.Error(req, err.Error())
		}
		return model.OK(req, map[string]int64{"markerId": id})
	}
}
