package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/orium/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers reports host and process resources
type SystemHandlers struct {
	log       zerolog.Logger
	runsDB    *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates system handlers. runsDB may be nil.
func NewSystemHandlers(log zerolog.Logger, runsDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handlers", "system").Logger(),
		runsDB:    runsDB,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system
type SystemStatusResponse struct {
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	MemoryUsedMB  float64         `json:"memory_used_mb"`
	MemoryTotalMB float64         `json:"memory_total_mb"`
	HeapAllocMB   float64         `json:"heap_alloc_mb"`
	Goroutines    int             `json:"goroutines"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	RunsDB        *database.Stats `json:"runs_db,omitempty"`
}

// HandleSystemStatus returns CPU, memory and database statistics
// GET /api/system
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}

	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		resp.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		resp.MemoryPercent = memStat.UsedPercent
		resp.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024
		resp.MemoryTotalMB = float64(memStat.Total) / 1024 / 1024
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	resp.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024

	if h.runsDB != nil {
		stats, err := h.runsDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get runs database statistics")
		} else {
			resp.RunsDB = stats
		}
	}

	h.writeJSON(w, resp)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
