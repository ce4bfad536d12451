// Package extract turns installer specification documents and manager
// credential descriptors into flat credential records.
//
// Each section of an upstream document is handled by one Rule. Rules never
// fail: anything they cannot make sense of becomes a warning and the rest of
// the document is still extracted.
package extract

import (
	"fmt"

	"vcfcreds/domain/credential"

	log "github.com/sirupsen/logrus"
)

// Scope carries what every record produced in one pass is tagged with.
type Scope struct {
	Provenance   credential.Provenance
	DeploymentID string
	Logger       *log.Entry
}

func (s Scope) logger() *log.Entry {
	if s.Logger != nil {
		return s.Logger
	}
	return log.NewEntry(log.StandardLogger())
}

func (s Scope) record(hostname, username, password string, mechanism credential.AuthMechanism, class credential.AccountClass, kind credential.ResourceKind) credential.Record {
	return credential.Record{
		Hostname:      hostname,
		Username:      username,
		Password:      password,
		AuthMechanism: mechanism,
		AccountClass:  class,
		ResourceKind:  kind,
		Provenance:    s.Provenance,
		DeploymentID:  s.DeploymentID,
	}
}

// Result is what one rule contributes to a pass.
type Result struct {
	Records  []credential.Record
	Warnings []credential.Warning
}

func (r *Result) add(records ...credential.Record) {
	r.Records = append(r.Records, records...)
}

func (r *Result) warn(hostname, format string, args ...any) {
	r.Warnings = append(r.Warnings, credential.Warning{
		Kind:     credential.WarningExtraction,
		Hostname: hostname,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Rule extracts the records of one document section. Section names the
// top-level key the rule reads; an empty Section hands the rule the whole
// document.
type Rule struct {
	Name    string
	Section string
	Extract func(raw any, scope Scope) Result
}

// InstallerRules returns the rules applied to an installer specification, in
// the order their records are emitted.
func InstallerRules() []Rule {
	return []Rule{
		{Name: "hosts", Section: "hostSpecs", Extract: extractHosts},
		{Name: "vcenter", Section: "vcenterSpec", Extract: extractVCenter},
		{Name: "nsxt", Section: "nsxtSpec", Extract: extractNSX},
		{Name: "sddc-manager", Section: "sddcManagerSpec", Extract: extractSDDCManager},
		{Name: "vcf-operations", Section: "vcfOperationsSpec", Extract: extractOperations},
		{Name: "vcf-operations-fleet", Section: "vcfOperationsFleetManagementSpec", Extract: extractFleetManagement},
		{Name: "vcf-operations-collector", Section: "vcfOperationsCollectorSpec", Extract: extractCollector},
	}
}

// ManagerRules returns the rules applied to the manager's descriptor list.
func ManagerRules() []Rule {
	return []Rule{
		{Name: "manager-credentials", Extract: extractManagerCredentials},
	}
}
