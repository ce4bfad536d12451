package extract

import (
	"testing"

	"vcfcreds/domain/credential"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullSpecification = `{
	"hostSpecs":[
		{"hostname":"esxi-1","credentials":{"username":"root","password":"E1"}},
		{"hostname":"esxi-2","credentials":{"username":"root","password":"E2"}}
	],
	"vcenterSpec":{"vcenterHostname":"vc1","rootVcenterPassword":"R1","adminUserSsoPassword":"A1","ssoDomain":"vsphere.local"},
	"nsxtSpec":{
		"nsxtManagers":[{"hostname":"nsx-1"}],
		"vipFqdn":"nsx-vip",
		"rootNsxtManagerPassword":"NR","nsxtAdminPassword":"NA","nsxtAuditPassword":"NU"
	},
	"sddcManagerSpec":{"hostname":"sddc","rootPassword":"SR","localUserPassword":"SL"},
	"vcfOperationsSpec":{"loadBalancerFqdn":"ops","adminUserPassword":"OA",
		"nodes":[{"hostname":"ops-1","type":"master","rootUserPassword":"O1"}]},
	"vcfOperationsFleetManagementSpec":{"hostname":"fleet","rootUserPassword":"FR","adminUserPassword":"FA"},
	"vcfOperationsCollectorSpec":{"hostname":"logs","rootUserPassword":"LR"}
}`

func kinds(records []credential.Record) []credential.ResourceKind {
	out := make([]credential.ResourceKind, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ResourceKind)
	}
	return out
}

func TestEngine_ExtractAll(t *testing.T) {
	engine := NewEngine()

	t.Run("emits records in rule order", func(t *testing.T) {
		out, err := engine.ExtractAll(decode(t, fullSpecification), installerScope)
		require.NoError(t, err)

		assert.Empty(t, out.Warnings)
		assert.Equal(t, []credential.ResourceKind{
			credential.ResourceESXiHost, credential.ResourceESXiHost,
			credential.ResourceManagementVM, credential.ResourceManagementVM,
			credential.ResourceNetworkManager, credential.ResourceNetworkManager, credential.ResourceNetworkManager,
			credential.ResourceNetworkManagerVIP, credential.ResourceNetworkManagerVIP, credential.ResourceNetworkManagerVIP,
			credential.ResourceDeploymentManager, credential.ResourceDeploymentManager, credential.ResourceDeploymentManager,
			credential.ResourceOpsSuite, credential.ResourceOpsSuiteMaster,
			credential.ResourceOpsNetworkFleet, credential.ResourceOpsNetworkFleet,
			credential.ResourceOpsLogCollector,
		}, kinds(out.Records))

		for _, rec := range out.Records {
			assert.Equal(t, credential.ProvenanceInstaller, rec.Provenance)
			assert.Equal(t, "env_test", rec.DeploymentID)
		}
	})

	t.Run("is deterministic for identical input", func(t *testing.T) {
		first, err := engine.ExtractAll(decode(t, fullSpecification), installerScope)
		require.NoError(t, err)
		second, err := engine.ExtractAll(decode(t, fullSpecification), installerScope)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("skips absent sections silently", func(t *testing.T) {
		out, err := engine.ExtractAll(decode(t, `{}`), installerScope)
		require.NoError(t, err)

		assert.Empty(t, out.Records)
		assert.Empty(t, out.Warnings)
	})

	t.Run("isolates malformed sections", func(t *testing.T) {
		out, err := engine.ExtractAll(decode(t, `{
			"hostSpecs":null,
			"vcenterSpec":"vc1",
			"nsxtSpec":[],
			"sddcManagerSpec":{"hostname":"sddc","rootPassword":"SR","localUserPassword":"SL"},
			"vcfOperationsCollectorSpec":{"hostname":"logs","rootUserPassword":"LR"}
		}`), installerScope)
		require.NoError(t, err)

		assert.Len(t, out.Records, 4)
		require.Len(t, out.Warnings, 3)
		assert.Equal(t, "hosts", out.Warnings[0].Rule)
		assert.Equal(t, "vcenter", out.Warnings[1].Rule)
		assert.Equal(t, "nsxt", out.Warnings[2].Rule)
	})

	t.Run("keeps empty passwords and warns", func(t *testing.T) {
		out, err := engine.ExtractAll(decode(t, `{"vcfOperationsCollectorSpec":{"hostname":"logs","rootUserPassword":""}}`), installerScope)
		require.NoError(t, err)

		require.Len(t, out.Records, 1)
		assert.Equal(t, "", out.Records[0].Password)
		require.Len(t, out.Warnings, 1)
		assert.Equal(t, credential.WarningEmptySecret, out.Warnings[0].Kind)
		assert.Equal(t, "logs", out.Warnings[0].Hostname)
		assert.Equal(t, "vcf-operations-collector", out.Warnings[0].Rule)
	})

	t.Run("runs manager rules over descriptor lists", func(t *testing.T) {
		out, err := engine.ExtractAll(decode(t, `[{"username":"root","password":"P","credentialType":"SSH","accountType":"USER",
			"resource":{"resourceName":"esxi-1","resourceType":"ESXI"}}]`), managerScope)
		require.NoError(t, err)

		require.Len(t, out.Records, 1)
		assert.Equal(t, credential.ProvenanceManager, out.Records[0].Provenance)
	})

	t.Run("rejects documents that are not containers", func(t *testing.T) {
		for _, doc := range []any{nil, "spec", 12.0, []any{}} {
			_, err := engine.ExtractAll(doc, installerScope)
			assert.ErrorIs(t, err, ErrUnusableDocument)
		}

		_, err := engine.ExtractAll(map[string]any{}, managerScope)
		assert.ErrorIs(t, err, ErrUnusableDocument)

		_, err = engine.ExtractAll(map[string]any{}, Scope{Provenance: "BOGUS"})
		assert.ErrorIs(t, err, ErrUnusableDocument)
	})
}

func TestEngine_RecoversFromPanickingRule(t *testing.T) {
	engine := NewEngine(WithInstallerRules(
		Rule{Name: "broken", Section: "vcenterSpec", Extract: func(raw any, scope Scope) Result {
			var m map[string]any
			m["boom"] = raw
			return Result{}
		}},
		Rule{Name: "collector", Section: "vcfOperationsCollectorSpec", Extract: extractCollector},
	))

	out, err := engine.ExtractAll(decode(t, `{
		"vcenterSpec":{},
		"vcfOperationsCollectorSpec":{"hostname":"logs","rootUserPassword":"LR"}
	}`), installerScope)
	require.NoError(t, err)

	require.Len(t, out.Records, 1)
	assert.Equal(t, "logs", out.Records[0].Hostname)
	require.Len(t, out.Warnings, 1)
	assert.True(t, out.Warnings[0].Suspect)
	assert.Equal(t, "broken", out.Warnings[0].Rule)
}
