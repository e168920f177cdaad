package mysql

import (
	"context"
	"fmt"
	"time"

	"go-vboa-hmi-api/internal/alerts"
)

// ServiceStats contains lightweight DB health and alert volume counters.
type ServiceStats struct {
	PingMS           int64            `json:"ping_ms"`
	AlertsTotal      int64            `json:"alerts_total"`
	AlertsByEntity   map[string]int64 `json:"alerts_by_entity"`
	UnsolvedAlerts   int64            `json:"unsolved_alerts"`
	AlertsLast24h    int64            `json:"alerts_last_24h"`
	AlertDefinitions int64            `json:"alert_definitions"`
}

// ServiceStats returns MySQL health and high-level alert counters.
func (s *Store) ServiceStats(ctx context.Context) (*ServiceStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return nil, err
	}

	out := &ServiceStats{
		PingMS:         time.Since(start).Milliseconds(),
		AlertsByEntity: map[string]int64{},
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts;`).Scan(&out.AlertDefinitions); err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	for _, entity := range alerts.Entities {
		t := alertTables[entity]

		var total, unsolved, recent int64
		q := fmt.Sprintf(`
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN solved IS NULL OR solved = 0 THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN notification_time >= ? THEN 1 ELSE 0 END), 0)
FROM %s;`, t.table)
		if err := s.db.QueryRowContext(ctx, q, since).Scan(&total, &unsolved, &recent); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}

		out.AlertsByEntity[string(entity)] = total
		out.AlertsTotal += total
		out.UnsolvedAlerts += unsolved
		out.AlertsLast24h += recent
	}

	return out, nil
}
