package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"go-vboa-hmi-api/internal/alerts"
)

// AlertFilter narrows alert queries.
type AlertFilter struct {
	Range  alerts.Range
	Limit  int
	Offset int
}

type alertTable struct {
	table     string
	uuidCol   string
	entityCol string
}

var alertTables = map[alerts.Entity]alertTable{
	alerts.EntitySource:      {table: "source_alerts", uuidCol: "source_alert_uuid", entityCol: "source_uuid"},
	alerts.EntityEvent:       {table: "event_alerts", uuidCol: "event_alert_uuid", entityCol: "event_uuid"},
	alerts.EntityAnnotation:  {table: "annotation_alerts", uuidCol: "annotation_alert_uuid", entityCol: "annotation_uuid"},
	alerts.EntityReport:      {table: "report_alerts", uuidCol: "report_alert_uuid", entityCol: "report_uuid"},
	alerts.EntityExplicitRef: {table: "explicit_ref_alerts", uuidCol: "explicit_ref_alert_uuid", entityCol: "explicit_ref_uuid"},
}

// alertQuery builds the select for one entity table. Table and column names
// come from alertTables only.
func alertQuery(entity alerts.Entity, f AlertFilter, excludeSignatures []string) (string, []any, error) {
	t, ok := alertTables[entity]
	if !ok {
		return "", nil, fmt.Errorf("unknown alert entity %q", entity)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
SELECT
  x.%[2]s,
  a.name,
  COALESCE(a.severity, 0),
  COALESCE(a.description, ''),
  COALESCE(x.message, ''),
  x.validated,
  x.notified,
  x.solved,
  x.solved_time,
  x.notification_time,
  x.ingestion_time,
  COALESCE(x.generator, ''),
  COALESCE(x.justification, ''),
  COALESCE(g.name, ''),
  x.%[3]s
FROM %[1]s x
JOIN alerts a
  ON a.alert_uuid = x.alert_uuid
LEFT JOIN alert_groups g
  ON g.alert_group_uuid = a.alert_group_uuid
WHERE x.notification_time >= ?
  AND x.notification_time <= ?`, t.table, t.uuidCol, t.entityCol)

	args := []any{f.Range.Start.UTC(), f.Range.Stop.UTC()}

	if entity == alerts.EntitySource && len(excludeSignatures) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(excludeSignatures)), ",")
		fmt.Fprintf(&b, `
  AND NOT EXISTS (
    SELECT 1
    FROM sources s
    JOIN dim_signatures d
      ON d.dim_signature_uuid = s.dim_signature_uuid
    WHERE s.source_uuid = x.source_uuid
      AND d.dim_signature IN (%s)
  )`, placeholders)
		for _, sig := range excludeSignatures {
			args = append(args, sig)
		}
	}

	b.WriteString(`
ORDER BY x.notification_time ASC, x.` + t.uuidCol + ` ASC
LIMIT ? OFFSET ?;`)
	args = append(args, f.Limit, f.Offset)

	return b.String(), args, nil
}

// ListAlerts returns the alerts of one entity kind notified within the
// filter range, oldest first.
func (s *Store) ListAlerts(ctx context.Context, entity alerts.Entity, f AlertFilter) ([]alerts.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	query, args, err := alertQuery(entity, f, s.excludeSignatures)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s alerts: %w", strings.ToLower(string(entity)), err)
	}
	defer rows.Close()

	out := make([]alerts.Alert, 0, max(f.Limit, 0))
	for rows.Next() {
		var (
			a                           alerts.Alert
			validated, notified, solved sql.NullBool
			solvedTime, ingestion       sql.NullTime
			notification                time.Time
			entityUUID                  sql.NullString
		)
		if err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.Severity,
			&a.Description,
			&a.Message,
			&validated,
			&notified,
			&solved,
			&solvedTime,
			&notification,
			&ingestion,
			&a.Generator,
			&a.Justification,
			&a.Group,
			&entityUUID,
		); err != nil {
			return nil, fmt.Errorf("scan %s alert: %w", strings.ToLower(string(entity)), err)
		}

		a.Entity = entity
		a.SeverityLabel = alerts.SeverityLabel(a.Severity)
		a.NotificationTime = notification.UTC()
		a.EntityUUID = entityUUID.String
		a.Validated = nullBoolPtr(validated)
		a.Notified = nullBoolPtr(notified)
		a.Solved = nullBoolPtr(solved)
		if solvedTime.Valid {
			v := solvedTime.Time.UTC()
			a.SolvedTime = &v
		}
		if ingestion.Valid {
			a.IngestionTime = ingestion.Time.UTC()
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAllAlerts queries every entity kind concurrently. Results are
// concatenated in alerts.Entities order; the limit applies per entity.
func (s *Store) ListAllAlerts(ctx context.Context, f AlertFilter) ([]alerts.Alert, error) {
	return listAll(ctx, alerts.Entities, f, s.ListAlerts)
}

type listFunc func(ctx context.Context, entity alerts.Entity, f AlertFilter) ([]alerts.Alert, error)

func listAll(ctx context.Context, entities []alerts.Entity, f AlertFilter, list listFunc) ([]alerts.Alert, error) {
	results := make([][]alerts.Alert, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(alertTables))
	for i, entity := range entities {
		g.Go(func() error {
			items, err := list(gctx, entity, f)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]alerts.Alert, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func nullBoolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
