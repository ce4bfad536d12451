// Package credential contains the domain for the credentials fetched from a
// deployment and the password history kept for them.
package credential

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("credential not found")

type AuthMechanism string

const (
	AuthSSH AuthMechanism = "SSH"
	AuthAPI AuthMechanism = "API"
	AuthSSO AuthMechanism = "SSO"
)

type AccountClass string

const (
	AccountUser    AccountClass = "USER"
	AccountService AccountClass = "SERVICE"
)

type ResourceKind string

const (
	ResourceESXiHost          ResourceKind = "ESXI_HOST"
	ResourceManagementVM      ResourceKind = "MANAGEMENT_VM"
	ResourceNetworkManager    ResourceKind = "NETWORK_MANAGER"
	ResourceNetworkManagerVIP ResourceKind = "NETWORK_MANAGER_VIP"
	ResourceDeploymentManager ResourceKind = "DEPLOYMENT_MANAGER"
	ResourceOpsSuite          ResourceKind = "OPS_SUITE"
	ResourceOpsSuiteMaster    ResourceKind = "OPS_SUITE_MASTER"
	ResourceOpsSuiteReplica   ResourceKind = "OPS_SUITE_REPLICA"
	ResourceOpsSuiteData      ResourceKind = "OPS_SUITE_DATA"
	ResourceOpsSuiteNode      ResourceKind = "OPS_SUITE_NODE"
	ResourceOpsNetworkFleet   ResourceKind = "OPS_NETWORK_FLEET"
	ResourceOpsLogCollector   ResourceKind = "OPS_LOG_COLLECTOR"
	ResourceOther             ResourceKind = "OTHER"
)

type Provenance string

const (
	ProvenanceInstaller Provenance = "INSTALLER"
	ProvenanceManager   Provenance = "MANAGER"
)

// ChangeSync tags history entries written while reconciling a sync pass.
const ChangeSync = "SYNC"

// NaturalKey identifies the same logical account across sync passes.
type NaturalKey struct {
	Hostname     string
	Username     string
	ResourceKind ResourceKind
	DeploymentID string
}

// Record is a credential as extracted from an upstream source. It is never
// mutated after extraction; a changed password supersedes the stored one.
type Record struct {
	Hostname      string        `json:"hostname"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	AuthMechanism AuthMechanism `json:"auth_mechanism"`
	AccountClass  AccountClass  `json:"account_class"`
	ResourceKind  ResourceKind  `json:"resource_kind"`
	Domain        *string       `json:"domain"`
	Provenance    Provenance    `json:"provenance"`
	DeploymentID  string        `json:"deployment_id"`
}

func (r Record) Key() NaturalKey {
	return NaturalKey{
		Hostname:     r.Hostname,
		Username:     r.Username,
		ResourceKind: r.ResourceKind,
		DeploymentID: r.DeploymentID,
	}
}

// DomainName returns the domain or an empty string when none applies.
func (r Record) DomainName() string {
	if r.Domain == nil {
		return ""
	}
	return *r.Domain
}

// HistoryEntry is the archive instruction produced when a password is superseded.
type HistoryEntry struct {
	OldPassword  string    `json:"old_password"`
	SupersededAt time.Time `json:"superseded_at"`
	ChangeSource string    `json:"change_source"`
}

// Credential is a Record persisted for an environment.
type Credential struct {
	ID            string            `json:"id"`
	EnvironmentID string            `json:"environment_id" gorm:"index"`
	Hostname      string            `json:"hostname"`
	Username      string            `json:"username"`
	Password      string            `json:"password"`
	AuthMechanism AuthMechanism     `json:"credential_type"`
	AccountClass  AccountClass      `json:"account_type"`
	ResourceKind  ResourceKind      `json:"resource_type"`
	Domain        string            `json:"domain_name"`
	Provenance    Provenance        `json:"source"`
	LastUpdated   time.Time         `json:"last_updated"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	History       []PasswordHistory `json:"-" gorm:"foreignKey:CredentialID;constraint:OnDelete:CASCADE"`
}

func (c Credential) Key() NaturalKey {
	return NaturalKey{
		Hostname:     c.Hostname,
		Username:     c.Username,
		ResourceKind: c.ResourceKind,
		DeploymentID: c.EnvironmentID,
	}
}

// Apply copies the extracted fields of r onto c, leaving identity untouched.
func (c *Credential) Apply(r Record) {
	c.Hostname = r.Hostname
	c.Username = r.Username
	c.Password = r.Password
	c.AuthMechanism = r.AuthMechanism
	c.AccountClass = r.AccountClass
	c.ResourceKind = r.ResourceKind
	c.Domain = r.DomainName()
	c.Provenance = r.Provenance
}

type PasswordHistory struct {
	ID           string    `json:"id"`
	CredentialID string    `json:"credential_id" gorm:"index"`
	Password     string    `json:"password"`
	ChangedAt    time.Time `json:"changed_at"`
	ChangedBy    string    `json:"changed_by"`
}

type CredentialFilters struct {
	ResourceKind *ResourceKind
	Provenance   *Provenance
}
