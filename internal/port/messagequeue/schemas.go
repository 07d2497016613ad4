package messagequeue

// VisitEventPayload is the schema for visits.* messages.
type VisitEventPayload struct {
	VisitID    string `json:"visit_id"`
	PromoterID string `json:"promoter_id"`
	StoreID    string `json:"store_id"`
	BrandID    string `json:"brand_id"`
	VisitDate  string `json:"visit_date"`
	Status     int    `json:"status"`
	ActorID    string `json:"actor_id"`
}

// Audience limits live delivery to the visit's promoter; managers and
// analysts see every visit.
func (p VisitEventPayload) Audience() []string {
	return []string{p.PromoterID}
}

// CacheInvalidatePayload is the schema for cache.invalidate messages.
// Keys are removed exactly; Prefixes remove every key starting with them.
type CacheInvalidatePayload struct {
	Origin   string   `json:"origin"` // instance ID of the publisher
	Keys     []string `json:"keys,omitempty"`
	Prefixes []string `json:"prefixes,omitempty"`
}
