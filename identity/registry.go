// Package identity folds identity announcements into a public-key registry.
package identity

import "memochat/models"

// Build returns the registry described by records. Records arrive newest
// first, so the first announcement seen for an address wins. Message records
// are ignored.
func Build(records []models.MemoRecord) models.IdentityRegistry {
	keys := make(map[string][]byte)
	for _, record := range records {
		if record.Kind != models.RecordIdentity || record.Identity == nil {
			continue
		}

		id := record.Identity
		if id.SenderAddress == "" || len(id.PublicKey) == 0 {
			continue
		}
		if _, seen := keys[id.SenderAddress]; seen {
			continue
		}
		keys[id.SenderAddress] = id.PublicKey
	}

	return models.NewIdentityRegistry(keys)
}
