package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry field is nil")
	}
	if r.MemberPackets == nil || r.ClientCommands == nil || r.LaneTasks == nil {
		t.Error("metric vectors must be initialised")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
	body := scrape(t, Handler())
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestRecordHelpers(t *testing.T) {
	r := NewRegistry()

	r.RecordMemberPacket(true)
	r.RecordMemberPacket(true)
	r.RecordMemberPacket(false)
	r.RecordCommand("get-count", true, time.Millisecond)
	r.RecordCommand("get-count", false, time.Millisecond)
	r.RecordAnnouncement(nil)
	r.RecordAnnouncement(errors.New("unreachable"))
	r.TaskQueued("io", 3)
	r.TaskExecuted("io", "remove-endpoint", nil, time.Millisecond)
	r.FatalErrors.Inc()

	body := scrape(t, r.Handler())
	want := []string{
		`gridmesh_member_packets_total{source="member"} 2`,
		`gridmesh_member_packets_total{source="unknown"} 1`,
		`gridmesh_client_commands_total{operation="get-count",status="success"} 1`,
		`gridmesh_client_commands_total{operation="get-count",status="failure"} 1`,
		`gridmesh_discovery_announcements_total{result="failed"} 1`,
		`gridmesh_lane_queue_depth{lane="io"} 3`,
		`gridmesh_lane_tasks_total{kind="remove-endpoint",lane="io",result="ok"} 1`,
		`gridmesh_fatal_errors_total 1`,
		`gridmesh_client_command_duration_seconds_count{operation="get-count"} 2`,
	}
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("expected %s", w)
		}
	}
}

type fakeState struct{}

func (fakeState) MemberCount() int    { return 4 }
func (fakeState) PendingIOTasks() int { return 2 }
func (fakeState) Active() bool        { return true }

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewCollector(fakeState{}))

	body := scrape(t, r.Handler())
	for _, w := range []string{
		"gridmesh_members 4",
		"gridmesh_io_lane_pending_tasks 2",
		"gridmesh_node_active 1",
	} {
		if !strings.Contains(body, w) {
			t.Errorf("expected %s", w)
		}
	}
}
