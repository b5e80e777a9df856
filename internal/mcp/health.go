package mcp

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents the health check result
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Profile   string    `json:"profile,omitempty"`
	Client    string    `json:"client,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck performs a health check on the MCP server
func (s *Server) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	s.mu.RLock()
	clientApp := s.clientApp
	s.mu.RUnlock()

	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Profile:   s.options.ProfileName,
		Client:    clientApp,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    []Check{},
	}

	backendCheck := Check{Name: "backend", Status: "ok"}
	if s.client == nil {
		backendCheck.Status = "failed"
		backendCheck.Error = "backend client not initialized"
		status.Status = "unhealthy"
	} else {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if _, err := s.client.ListAgents(ctx); err != nil {
			backendCheck.Status = "failed"
			backendCheck.Error = fmt.Sprintf("connection test failed: %v", err)
			status.Status = "unhealthy"
		}
	}
	status.Checks = append(status.Checks, backendCheck)

	auditCheck := Check{Name: "audit_logger", Status: "ok"}
	if s.logger == nil {
		auditCheck.Status = "warning"
		auditCheck.Error = "audit logging disabled"
		status.degrade()
	}
	status.Checks = append(status.Checks, auditCheck)

	rateCheck := Check{Name: "rate_limiter", Status: "ok"}
	switch {
	case s.rateLimiter == nil || s.options.RateLimit <= 0:
		rateCheck.Status = "disabled"
	case s.rateLimiter.Remaining() == 0:
		rateCheck.Status = "warning"
		rateCheck.Error = "rate limit exceeded"
		status.degrade()
	}
	status.Checks = append(status.Checks, rateCheck)

	return status, nil
}

func (h *HealthStatus) degrade() {
	if h.Status == "healthy" {
		h.Status = "degraded"
	}
}

// handleHealthCheck processes health check requests via MCP
func (s *Server) handleHealthCheck(ctx context.Context) (interface{}, error) {
	health, err := s.HealthCheck(ctx)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"status":    health.Status,
		"timestamp": health.Timestamp.Format(time.RFC3339),
		"uptime":    health.Uptime,
		"profile":   health.Profile,
	}

	if health.Status != "healthy" {
		checks := make(map[string]interface{})
		for _, check := range health.Checks {
			checkInfo := map[string]string{"status": check.Status}
			if check.Error != "" {
				checkInfo["error"] = check.Error
			}
			checks[check.Name] = checkInfo
		}
		result["checks"] = checks
	}

	return result, nil
}
