package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case strings.HasPrefix(subject, "visits."):
		var p VisitEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.VisitID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("visit_id is required"))
		}
	case subject == SubjectCacheInvalidate:
		var p CacheInvalidatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if len(p.Keys) == 0 && len(p.Prefixes) == 0 {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("keys or prefixes required"))
		}
	}
	return nil
}
