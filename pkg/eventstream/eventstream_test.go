package eventstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/gizmo-platform/copter/pkg/flight"
)

func TestStreamRelaysControllerEvents(t *testing.T) {
	es := New(hclog.NewNullLogger())
	var _ flight.Observer = es

	srv := httptest.NewServer(http.HandlerFunc(es.Handler))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for es.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(time.Millisecond)
	}

	es.StateChanged(flight.StateWaypointsMoving, flight.TaskWaypoints)
	es.DispatchRejected(flight.TaskUtility, "busy")

	_, msg, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var st map[string]any
	if err := json.Unmarshal(msg, &st); err != nil {
		t.Fatal(err)
	}
	if st["Type"] != float64(EventTypeState) || st["State"] != "waypoints-moving" || st["Task"] != "waypoints" {
		t.Errorf("state event = %s", msg)
	}

	_, msg, err = c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var rej EventTask
	if err := json.Unmarshal(msg, &rej); err != nil {
		t.Fatal(err)
	}
	if rej.Type != EventTypeDispatchRejected || rej.Reason != "busy" {
		t.Errorf("rejection event = %s", msg)
	}
}

func TestNewSubscriberGetsCurrentState(t *testing.T) {
	es := New(hclog.NewNullLogger())
	es.StateChanged(flight.StateUtilityTakeoff, flight.TaskUtility)
	es.PublishLogLine("not retained")

	srv := httptest.NewServer(http.HandlerFunc(es.Handler))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.CloseNow()

	_, msg, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var st EventState
	if err := json.Unmarshal(msg, &st); err != nil {
		t.Fatal(err)
	}
	if st.Type != EventTypeState || st.State != flight.StateUtilityTakeoff || st.Task != flight.TaskUtility {
		t.Errorf("replayed event = %s", msg)
	}
}
