package gateway

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// jsonSafe converts driver-native values to plain JSON-safe types. Temporal
// and spatial values become ISO strings or string fallbacks; graph elements
// become maps. The gateway never returns opaque driver objects.
func jsonSafe(value any) any {
	switch v := value.(type) {
	case nil, bool, int64, float64, string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case dbtype.Date:
		return v.Time().Format("2006-01-02")
	case dbtype.LocalDateTime:
		return v.Time().Format("2006-01-02T15:04:05")
	case dbtype.LocalTime:
		return v.Time().Format("15:04:05")
	case dbtype.Time:
		return v.Time().Format("15:04:05Z07:00")
	case dbtype.Duration:
		return v.String()
	case dbtype.Point2D:
		return v.String()
	case dbtype.Point3D:
		return v.String()
	case dbtype.Node:
		return map[string]any{
			"element_id": v.ElementId,
			"labels":     v.Labels,
			"properties": jsonSafeMap(v.Props),
		}
	case dbtype.Relationship:
		return map[string]any{
			"element_id": v.ElementId,
			"type":       v.Type,
			"properties": jsonSafeMap(v.Props),
		}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = jsonSafe(item)
		}
		return out
	case map[string]any:
		return jsonSafeMap(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func jsonSafeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonSafe(v)
	}
	return out
}
