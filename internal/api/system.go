package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/omeyang/docdemo/internal/catalog"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
	"github.com/omeyang/docdemo/pkg/util/xjson"
)

// Banner GET / 的响应体。
type Banner struct {
	Message       string   `json:"message"`
	Version       string   `json:"version"`
	Documentation string   `json:"documentation"`
	Endpoints     []string `json:"endpoints"`
}

// Health GET /healthz 的响应体。
type Health struct {
	Status  string        `json:"status"`
	Mongo   string        `json:"mongo"`
	Breaker string        `json:"breaker"`
	Guards  []xinit.Stats `json:"guards"`
}

// SeedResponse POST /seed-data 的响应体。
type SeedResponse struct {
	Message string `json:"message"`
	catalog.SeedResult
}

const (
	statusHealthy   = "Healthy"
	statusUnhealthy = "Unhealthy"
)

func (s *Server) banner(w http.ResponseWriter, _ *http.Request) {
	_ = xjson.Write(w, http.StatusOK, "", Banner{
		Message:       "Document Database Sample API",
		Version:       s.opts.version,
		Documentation: "/healthz",
		Endpoints:     []string{"/products", "/customers", "/orders", "/notes"},
	})
}

// healthz 下游不可达时返回 503，守卫统计始终附带。
// 熔断器打开不影响探活结果。
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:  statusHealthy,
		Mongo:   statusHealthy,
		Breaker: s.breaker.State().String(),
		Guards:  make([]xinit.Stats, 0, len(s.opts.guards)),
	}
	for _, g := range s.opts.guards {
		h.Guards = append(h.Guards, g.Stats())
	}
	status := http.StatusOK
	if s.opts.health != nil {
		if err := s.opts.health(r.Context()); err != nil {
			h.Status, h.Mongo = statusUnhealthy, err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	_ = xjson.Write(w, status, "", h)
}

func (s *Server) seedData(w http.ResponseWriter, r *http.Request) {
	if s.svc.Seeder == nil {
		notFound(w)
		return
	}
	res, err := call(r, s, func(ctx context.Context) (*catalog.SeedResult, error) {
		return s.svc.Seeder.SeedAll(ctx)
	})
	if err != nil {
		p := mapError(err)
		p.Detail = fmt.Sprintf("Failed to seed data: %v", err)
		if p.Status >= http.StatusInternalServerError {
			s.log.Error(r.Context(), "seed data failed", xlog.Err(err))
		}
		writeProblem(w, p)
		return
	}
	_ = xjson.Write(w, http.StatusOK, "", SeedResponse{
		Message:    "Sample data created successfully",
		SeedResult: *res,
	})
}
