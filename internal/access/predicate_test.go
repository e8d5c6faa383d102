package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

func TestBuildRejectsMissingScope(t *testing.T) {
	_, err := Build("  ", domain.UserRoleCustomer)
	assert.Error(t, err)
	_, err = Build("t1", domain.UserRole("admin"))
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	p, err := Build("t1", domain.UserRoleCustomer)
	require.NoError(t, err)

	cases := []struct {
		name string
		md   domain.DocumentMetadata
		want bool
	}{
		{"role match", domain.DocumentMetadata{TenantID: "t1", AccessRoles: []domain.UserRole{domain.UserRoleCustomer}, Visibility: domain.VisibilityPrivate}, true},
		{"public", domain.DocumentMetadata{TenantID: "t1", AccessRoles: []domain.UserRole{domain.UserRoleAssociate}, Visibility: domain.VisibilityPublic}, true},
		{"associate only", domain.DocumentMetadata{TenantID: "t1", AccessRoles: []domain.UserRole{domain.UserRoleAssociate}, Visibility: domain.VisibilityPrivate}, false},
		{"other tenant public", domain.DocumentMetadata{TenantID: "t2", AccessRoles: []domain.UserRole{domain.UserRoleCustomer}, Visibility: domain.VisibilityPublic}, false},
		{"no tenant", domain.DocumentMetadata{Visibility: domain.VisibilityPublic}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(p, tc.md))
		})
	}
}

func TestFilterNeverLeaksAcrossTenants(t *testing.T) {
	var docs []domain.RetrievedDocument
	tenants := []string{"t1", "t2", "t3"}
	roles := [][]domain.UserRole{{domain.UserRoleCustomer}, {domain.UserRoleAssociate}, {domain.UserRoleCustomer, domain.UserRoleAssociate}, nil}
	vis := []domain.Visibility{domain.VisibilityPublic, domain.VisibilityPrivate}
	for _, tn := range tenants {
		for _, rs := range roles {
			for _, v := range vis {
				docs = append(docs, domain.RetrievedDocument{Metadata: domain.DocumentMetadata{TenantID: tn, AccessRoles: rs, Visibility: v}})
			}
		}
	}

	for _, tn := range tenants {
		for _, role := range []domain.UserRole{domain.UserRoleCustomer, domain.UserRoleAssociate} {
			p, err := Build(tn, role)
			require.NoError(t, err)
			for _, d := range Filter(p, docs) {
				assert.Equal(t, tn, d.Metadata.TenantID)
				ok := d.Metadata.Visibility == domain.VisibilityPublic
				for _, r := range d.Metadata.AccessRoles {
					ok = ok || r == role
				}
				assert.True(t, ok, "document %+v admitted for %s", d.Metadata, role)
			}
		}
	}
}

func TestQdrantFilterShape(t *testing.T) {
	p, err := Build("t1", domain.UserRoleAssociate)
	require.NoError(t, err)

	f := QdrantFilter(p)
	must := f["must"].([]any)
	require.Len(t, must, 1)
	assert.Equal(t, "tenant_id", must[0].(map[string]any)["key"])

	should := f["should"].([]any)
	require.Len(t, should, 2)
	assert.Equal(t, "access_roles", should[0].(map[string]any)["key"])
	assert.Equal(t, map[string]any{"value": "Public"}, should[1].(map[string]any)["match"])
}
