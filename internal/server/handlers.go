package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/luckfunc/stockbot/internal/commands"
	"github.com/luckfunc/stockbot/internal/scheduler"
)

// StatusResponse body of /api/status
type StatusResponse struct {
	Status        string                `json:"status"`
	Version       string                `json:"version,omitempty"`
	Bot           string                `json:"bot,omitempty"`
	Started       time.Time             `json:"started"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	DedupSymbols  int                   `json:"dedup_symbols"`
	Commands      []string              `json:"commands"`
	Jobs          []scheduler.EntryInfo `json:"jobs"`
	CPUPercent    float64               `json:"cpu_percent"`
	MemoryPercent float64               `json:"memory_percent"`
}

type commandView struct {
	Name    string
	Aliases string
	Example string
}

type indexView struct {
	Bot      string
	Uptime   string
	Commands []commandView
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8" /><title>stockbot</title></head>
<body>
  <h1>{{if .Bot}}{{.Bot}}{{else}}stockbot{{end}}</h1>
  <p>Up {{.Uptime}}</p>
  <table>
    <thead><tr><th>Command</th><th>Aliases</th><th>Example</th></tr></thead>
    <tbody>
    {{range .Commands}}
      <tr><td>{{.Name}}</td><td>{{.Aliases}}</td><td><code>{{.Example}}</code></td></tr>
    {{end}}
    </tbody>
  </table>
</body>
</html>`))

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := indexView{
		Bot:    s.botName(),
		Uptime: time.Since(s.cfg.Started).Truncate(time.Second).String(),
	}
	for _, cmd := range s.commandList() {
		view.Commands = append(view.Commands, commandView{
			Name:    cmd.Name(),
			Aliases: strings.Join(cmd.Aliases(), ", "),
			Example: commands.ExampleFor(cmd),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, view); err != nil {
		s.log.Error().Err(err).Msg("Failed to render index")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:        "ok",
		Version:       s.cfg.Version,
		Bot:           s.botName(),
		Started:       s.cfg.Started,
		UptimeSeconds: int64(time.Since(s.cfg.Started).Seconds()),
		Commands:      []string{},
		Jobs:          []scheduler.EntryInfo{},
	}
	if s.cfg.Commands != nil {
		resp.Commands = append(resp.Commands, s.cfg.Commands.Names()...)
	}
	if s.cfg.Dedup != nil {
		resp.DedupSymbols = s.cfg.Dedup.Len()
	}
	if s.cfg.Jobs != nil {
		resp.Jobs = append(resp.Jobs, s.cfg.Jobs.Entries()...)
	}
	resp.CPUPercent, resp.MemoryPercent = s.systemStats()

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) commandList() []commands.Command {
	if s.cfg.Commands == nil {
		return nil
	}
	return s.cfg.Commands.ListForHelp()
}

func (s *Server) botName() string {
	if s.cfg.Self == nil {
		return ""
	}
	return s.cfg.Self().Name
}

// systemStats CPU and RAM usage percentages
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
