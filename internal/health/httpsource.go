package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// endpointReport is the JSON body a health endpoint may return. All fields
// are optional; a plain 200 with an empty body still counts as available.
type endpointReport struct {
	Score        *float64 `json:"score"`
	RegionStatus string   `json:"region_status"`
	Replication  *struct {
		CDCActive             bool    `json:"cdc_active"`
		ReplicationLagSeconds float64 `json:"replication_lag_seconds"`
		ConsistencyScore      float64 `json:"consistency_score"`
	} `json:"replication"`
}

// HTTPSource probes an HTTP health endpoint, used for database, replication
// and network checks where the target exposes a status URL.
type HTTPSource struct {
	name     string
	role     Role
	endpoint config.ProbeEndpoint
	client   *http.Client
}

// NewHTTPSource creates a source probing the given endpoint.
func NewHTTPSource(name string, role Role, endpoint config.ProbeEndpoint) *HTTPSource {
	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		name:     name,
		role:     role,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return s.name }
func (s *HTTPSource) Role() Role   { return s.role }

func (s *HTTPSource) Probe(ctx context.Context) (*model.HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("health endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	report := &model.HealthReport{
		Source:    s.name,
		Timestamp: time.Now().UTC(),
		LatencyMs: float64(latency.Milliseconds()),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		report.Score = 0
		report.Available = false
		report.RegionStatus = model.RegionUnknown
		return report, nil
	}

	report.Available = true
	report.Score = 1.0
	report.RegionStatus = model.RegionHealthy

	var body endpointReport
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Score != nil {
			report.Score = *body.Score
		}
		if rs := model.RegionStatus(body.RegionStatus); rs.Valid() {
			report.RegionStatus = rs
		}
		if body.Replication != nil {
			report.Replication = &model.ReplicationHealth{
				CDCActive:             body.Replication.CDCActive,
				ReplicationLagSeconds: body.Replication.ReplicationLagSeconds,
				ConsistencyScore:      body.Replication.ConsistencyScore,
			}
		}
	}

	return report, nil
}
