// Package access builds the tenant and role predicate applied to every
// knowledge retrieval.
package access

import (
	"fmt"
	"strings"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// Build returns the predicate for a request: the document tenant must equal
// tenantID, and either role is among the document access roles or the
// document is publicly visible.
func Build(tenantID string, role domain.UserRole) (domain.AccessPredicate, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.AccessPredicate{}, fmt.Errorf("tenant_id is required")
	}
	if !role.Valid() {
		return domain.AccessPredicate{}, fmt.Errorf("unknown role %q", role)
	}
	return domain.AccessPredicate{
		TenantID:         tenantID,
		AllowedRoles:     []domain.UserRole{role},
		PublicVisibility: domain.VisibilityPublic,
	}, nil
}

// Matches evaluates the predicate against document metadata.
func Matches(p domain.AccessPredicate, md domain.DocumentMetadata) bool {
	if p.TenantID == "" || md.TenantID != p.TenantID {
		return false
	}
	if p.PublicVisibility != "" && md.Visibility == p.PublicVisibility {
		return true
	}
	for _, allowed := range p.AllowedRoles {
		for _, r := range md.AccessRoles {
			if r == allowed {
				return true
			}
		}
	}
	return false
}

// Filter keeps only the documents the predicate admits.
func Filter(p domain.AccessPredicate, docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	out := make([]domain.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		if Matches(p, d.Metadata) {
			out = append(out, d)
		}
	}
	return out
}

// QdrantFilter translates the predicate into a Qdrant filter object so the
// vector store applies it server-side.
func QdrantFilter(p domain.AccessPredicate) map[string]any {
	should := make([]any, 0, len(p.AllowedRoles)+1)
	for _, r := range p.AllowedRoles {
		should = append(should, matchCondition("access_roles", string(r)))
	}
	if p.PublicVisibility != "" {
		should = append(should, matchCondition("document_visibility", string(p.PublicVisibility)))
	}
	// Qdrant requires every must condition and at least one should condition.
	return map[string]any{
		"must":   []any{matchCondition("tenant_id", p.TenantID)},
		"should": should,
	}
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}
