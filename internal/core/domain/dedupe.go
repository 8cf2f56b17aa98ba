package domain

// IdentityKey returns the deduplication key for a record: the PDF URL,
// falling back to the source URL, falling back to the decision reference.
// An empty return means the record has no identity at all.
func (r DecisionRecord) IdentityKey() string {
	if r.PDFURL != "" {
		return r.PDFURL
	}
	if r.SourceURL != "" {
		return r.SourceURL
	}
	return r.DecisionReference
}

// DedupeRecords removes duplicate records, keeping the first occurrence of
// each identity key and preserving input order. Records with no identity
// are dropped. The operation is idempotent: applying it twice yields the
// same result as once.
func DedupeRecords(records []DecisionRecord) []DecisionRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]DecisionRecord, 0, len(records))
	for _, r := range records {
		key := r.IdentityKey()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
