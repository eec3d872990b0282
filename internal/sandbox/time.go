package sandbox

import "time"

// nowISO stamps upsertIndex's "_updated_at" field (spec.md section 4.4).
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
