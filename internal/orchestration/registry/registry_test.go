package registry

import (
	"os"
	"path/filepath"
	"testing"

	"audit-orchestrator/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := Default()

	assert.Equal(t, []models.HandlerID{
		models.HandlerInternalAudit,
		models.HandlerSOP,
		models.HandlerQualitySystems,
		models.HandlerExternalRegulatory,
		models.HandlerExternalConference,
	}, r.IDs())
	assert.Equal(t, models.HandlerInternalAudit, r.DefaultHandler())
	assert.Equal(t, 5, r.Len())

	qs, ok := r.Get(models.HandlerQualitySystems)
	require.True(t, ok)
	assert.True(t, qs.EntitySensitive)
	assert.True(t, qs.HasPrimary(models.IntentQualityAnalysis))
	assert.True(t, qs.HasSecondary(models.IntentSupplierAudit))

	for _, d := range r.Descriptors() {
		if d.ID != models.HandlerQualitySystems {
			assert.False(t, d.EntitySensitive, d.ID)
		}
		assert.NotEmpty(t, d.SystemPrompt, d.ID)
		assert.NotEmpty(t, d.Index, d.ID)
	}

	_, ok = r.Get("web_scraper")
	assert.False(t, ok)
	assert.Equal(t, -1, r.Position("web_scraper"))
	assert.Equal(t, 2, r.Position(models.HandlerQualitySystems))
}

func TestRegistry_DescriptorsAreCopies(t *testing.T) {
	r := Default()

	d, _ := r.Get(models.HandlerSOP)
	d.Keywords[0] = "mutated"
	all := r.Descriptors()
	all[0].PrimaryIntents[0] = models.IntentGeneralAudit

	again, _ := r.Get(models.HandlerSOP)
	assert.Equal(t, "sop", again.Keywords[0])
	assert.Equal(t, models.IntentAuditChecklist, r.Descriptors()[0].PrimaryIntents[0])
}

func TestExportParseRoundTrip(t *testing.T) {
	r := Default()

	data, err := r.Export()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	if diff := cmp.Diff(r.Descriptors(), parsed.Descriptors()); diff != "" {
		t.Errorf("descriptors mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, r.DefaultHandler(), parsed.DefaultHandler())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_handler: sop
handlers:
  - id: internal_audit
    primary_intents: [audit_checklist]
    keywords: [audit]
  - id: sop
    primary_intents: [sop_review]
    secondary_intents: [delta_analysis]
    keywords: [sop, procedures]
    index: sop-v2
    namespace: site-a
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, models.HandlerSOP, r.DefaultHandler())
	sop, ok := r.Get(models.HandlerSOP)
	require.True(t, ok)
	assert.Equal(t, "sop-v2", sop.Index)
	assert.Equal(t, "site-a", sop.Namespace)
	assert.Equal(t, 1.0, sop.Weight)

	ia, _ := r.Get(models.HandlerInternalAudit)
	assert.Equal(t, "internal_audit", ia.Index)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "not yaml",
			yaml:    "handlers: [",
			wantErr: "parse registry",
		},
		{
			name:    "no handlers",
			yaml:    "handlers: []",
			wantErr: "invalid registry",
		},
		{
			name: "missing keywords",
			yaml: `
handlers:
  - id: sop
    primary_intents: [sop_review]
`,
			wantErr: "invalid registry",
		},
		{
			name: "bad id",
			yaml: `
handlers:
  - id: Bad-Id
    primary_intents: [sop_review]
    keywords: [sop]
`,
			wantErr: "invalid registry",
		},
		{
			name: "duplicate id",
			yaml: `
handlers:
  - id: sop
    primary_intents: [sop_review]
    keywords: [sop]
  - id: sop
    primary_intents: [sop_review]
    keywords: [sop]
`,
			wantErr: "duplicate handler id",
		},
		{
			name: "unknown intent",
			yaml: `
handlers:
  - id: sop
    primary_intents: [gossip]
    keywords: [sop]
`,
			wantErr: "unknown intent",
		},
		{
			name: "unknown default",
			yaml: `
default_handler: web_scraper
handlers:
  - id: sop
    primary_intents: [sop_review]
    keywords: [sop]
`,
			wantErr: "is not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_DefaultsToFirstHandler(t *testing.T) {
	r, err := New([]models.HandlerDescriptor{
		{ID: models.HandlerSOP, Keywords: []string{"sop"}},
		{ID: models.HandlerInternalAudit, Keywords: []string{"audit"}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, models.HandlerSOP, r.DefaultHandler())
}
