package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Status is the payload of GET /api/status.
type Status struct {
	Source        string  `json:"source"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
	Subscribers   int     `json:"subscribers"`
	Frames        uint64  `json:"framesBroadcast"`
	Dropped       uint64  `json:"framesDropped"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryMB      float64 `json:"memoryMB"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.hub.Stats()
	status := Status{
		Source:        s.sourceName,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Subscribers:   stats.Subscribers,
		Frames:        stats.Frames,
		Dropped:       stats.Dropped,
	}

	// Process metrics are best-effort; the status page still renders
	// without them.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			status.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			status.MemoryMB = float64(mem.RSS) / 1024 / 1024
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Error("failed to encode status", "error", err)
	}
}
