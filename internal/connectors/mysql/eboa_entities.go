package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go-vboa-hmi-api/internal/alerts"
	"go-vboa-hmi-api/internal/eboa"
)

// EventFilter narrows event queries. Events overlapping Range are returned;
// empty name and system lists do not filter.
type EventFilter struct {
	Range        alerts.Range
	GaugeNames   []string
	GaugeSystems []string
	Limit        int
	Offset       int
}

// AnnotationFilter narrows annotation queries by ingestion time and
// annotation configuration.
type AnnotationFilter struct {
	Range   alerts.Range
	Names   []string
	Systems []string
	Limit   int
	Offset  int
}

func appendIn(b *strings.Builder, args []any, column string, values []string) []any {
	if len(values) == 0 {
		return args
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	fmt.Fprintf(b, `
  AND %s IN (%s)`, column, placeholders)
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

func eventQuery(f EventFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
SELECT
  e.event_uuid,
  g.name,
  COALESCE(g.system, ''),
  COALESCE(er.explicit_ref, ''),
  COALESCE(e.explicit_ref_uuid, ''),
  COALESCE(s.name, ''),
  COALESCE(e.source_uuid, ''),
  e.start,
  e.stop,
  e.ingestion_time
FROM events e
JOIN gauges g
  ON g.gauge_uuid = e.gauge_uuid
LEFT JOIN explicit_refs er
  ON er.explicit_ref_uuid = e.explicit_ref_uuid
LEFT JOIN sources s
  ON s.source_uuid = e.source_uuid
WHERE e.visible = TRUE
  AND e.start <= ?
  AND e.stop >= ?`)
	args := []any{f.Range.Stop.UTC(), f.Range.Start.UTC()}
	args = appendIn(&b, args, "g.name", f.GaugeNames)
	args = appendIn(&b, args, "g.system", f.GaugeSystems)
	b.WriteString(`
ORDER BY e.start ASC, e.event_uuid ASC
LIMIT ? OFFSET ?;`)
	args = append(args, f.Limit, f.Offset)
	return b.String(), args
}

func annotationQuery(f AnnotationFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
SELECT
  n.annotation_uuid,
  c.name,
  COALESCE(c.system, ''),
  COALESCE(er.explicit_ref, ''),
  COALESCE(n.explicit_ref_uuid, ''),
  COALESCE(s.name, ''),
  COALESCE(n.source_uuid, ''),
  n.ingestion_time
FROM annotations n
JOIN annotation_cnfs c
  ON c.annotation_cnf_uuid = n.annotation_cnf_uuid
LEFT JOIN explicit_refs er
  ON er.explicit_ref_uuid = n.explicit_ref_uuid
LEFT JOIN sources s
  ON s.source_uuid = n.source_uuid
WHERE n.visible = TRUE
  AND n.ingestion_time >= ?
  AND n.ingestion_time <= ?`)
	args := []any{f.Range.Start.UTC(), f.Range.Stop.UTC()}
	args = appendIn(&b, args, "c.name", f.Names)
	args = appendIn(&b, args, "c.system", f.Systems)
	b.WriteString(`
ORDER BY n.ingestion_time ASC, n.annotation_uuid ASC
LIMIT ? OFFSET ?;`)
	args = append(args, f.Limit, f.Offset)
	return b.String(), args
}

// ListEvents returns visible events overlapping the filter range, ordered
// by start.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]eboa.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	query, args := eventQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]eboa.Event, 0, max(f.Limit, 0))
	for rows.Next() {
		var (
			e         eboa.Event
			ingestion sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.GaugeName,
			&e.GaugeSystem,
			&e.ExplicitRef,
			&e.ExplicitRefUUID,
			&e.Source,
			&e.SourceUUID,
			&e.Start,
			&e.Stop,
			&ingestion,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Start = e.Start.UTC()
		e.Stop = e.Stop.UTC()
		if ingestion.Valid {
			e.IngestionTime = ingestion.Time.UTC()
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAnnotations returns visible annotations ingested within the filter
// range, oldest first.
func (s *Store) ListAnnotations(ctx context.Context, f AnnotationFilter) ([]eboa.Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	query, args := annotationQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	out := make([]eboa.Annotation, 0, max(f.Limit, 0))
	for rows.Next() {
		var (
			a         eboa.Annotation
			ingestion time.Time
		)
		if err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.System,
			&a.ExplicitRef,
			&a.ExplicitRefUUID,
			&a.Source,
			&a.SourceUUID,
			&ingestion,
		); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.IngestionTime = ingestion.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
