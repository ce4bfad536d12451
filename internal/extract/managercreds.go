package extract

import (
	"sort"
	"strings"

	"vcfcreds/domain/credential"

	log "github.com/sirupsen/logrus"
)

var managerResourceKinds = map[string]credential.ResourceKind{
	"ESXI":                            credential.ResourceESXiHost,
	"VCENTER":                         credential.ResourceManagementVM,
	"PSC":                             credential.ResourceManagementVM,
	"NSXT_MANAGER":                    credential.ResourceNetworkManager,
	"NSX_MANAGER":                     credential.ResourceNetworkManager,
	"NSXT_VIP":                        credential.ResourceNetworkManagerVIP,
	"NSX_VIP":                         credential.ResourceNetworkManagerVIP,
	"SDDC_MANAGER":                    credential.ResourceDeploymentManager,
	"VROPS":                           credential.ResourceOpsSuite,
	"VCF_OPERATIONS":                  credential.ResourceOpsSuite,
	"VRLI":                            credential.ResourceOpsLogCollector,
	"VCF_OPERATIONS_LOGS":             credential.ResourceOpsLogCollector,
	"VRNI":                            credential.ResourceOpsNetworkFleet,
	"VRSLCM":                          credential.ResourceOpsNetworkFleet,
	"VCF_OPERATIONS_FLEET_MANAGEMENT": credential.ResourceOpsNetworkFleet,
}

var managerAccountClasses = map[string]credential.AccountClass{
	"USER":    credential.AccountUser,
	"SERVICE": credential.AccountService,
	"SYSTEM":  credential.AccountService,
}

var managerMechanisms = map[string]credential.AuthMechanism{
	"SSH": credential.AuthSSH,
	"API": credential.AuthAPI,
	"SSO": credential.AuthSSO,
}

// resource is the component a manager descriptor belongs to.
type resource struct {
	name   string
	kind   credential.ResourceKind
	domain string
}

type descriptorShape string

const (
	shapeFlat          descriptorShape = "flat"
	shapeCredentialSet descriptorShape = "credential-set"
)

// descriptorProbes are tried in order. A flat descriptor is one credential
// element; a credential set carries several credentials keyed by role name.
var descriptorProbes = []struct {
	shape descriptorShape
	match func(desc map[string]any) bool
}{
	{shapeFlat, func(desc map[string]any) bool {
		_, hasUser := desc[keyUsername]
		return hasUser
	}},
	{shapeCredentialSet, func(desc map[string]any) bool {
		_, ok := asObject(desc[keyCredentials])
		return ok
	}},
}

func extractManagerCredentials(raw any, scope Scope) Result {
	var res Result

	descriptors, ok := asList(raw)
	if !ok {
		res.warn("", "descriptor list is %s, want array", describeType(raw))
		return res
	}

	for i, item := range descriptors {
		desc, ok := asObject(item)
		if !ok {
			res.warn("", "descriptor[%d] is %s, want object", i, describeType(item))
			continue
		}

		rsrc := resolveResource(desc)
		if rsrc.name == "" {
			res.warn("", "descriptor[%d] has no resource name", i)
			continue
		}
		if rsrc.kind == "" {
			res.warn(rsrc.name, "unrecognised resource type %q, recording as %s", resourceTypeOf(desc), credential.ResourceOther)
			rsrc.kind = credential.ResourceOther
		}

		shape, matched := probeDescriptor(desc)
		if !matched {
			res.warn(rsrc.name, "descriptor[%d] carries no credentials", i)
			continue
		}
		scope.logger().WithFields(log.Fields{
			"host":  rsrc.name,
			"probe": shape,
		}).Debug("resolved descriptor shape")

		switch shape {
		case shapeFlat:
			extractManagerCredential(&res, scope, rsrc, desc, "")
		case shapeCredentialSet:
			set, _ := asObject(desc[keyCredentials])
			roles := make([]string, 0, len(set))
			for role := range set {
				roles = append(roles, role)
			}
			sort.Strings(roles)
			for _, role := range roles {
				cred, ok := asObject(set[role])
				if !ok {
					res.warn(rsrc.name, "credential set %q is %s, want object", role, describeType(set[role]))
					continue
				}
				extractManagerCredential(&res, scope, rsrc, cred, role)
			}
		}
	}

	return res
}

func probeDescriptor(desc map[string]any) (descriptorShape, bool) {
	for _, probe := range descriptorProbes {
		if probe.match(desc) {
			return probe.shape, true
		}
	}
	return "", false
}

func resourceTypeOf(desc map[string]any) string {
	if r, ok := asObject(desc["resource"]); ok {
		if t := firstString(r, "resourceType"); t != "" {
			return t
		}
	}
	return firstString(desc, "resourceType")
}

// resolveResource reads the nested resource object, falling back to fields
// on the descriptor itself. An unknown resource type leaves kind empty.
func resolveResource(desc map[string]any) resource {
	var r resource
	if nested, ok := asObject(desc["resource"]); ok {
		r.name = firstString(nested, "resourceName", "fqdn")
		r.domain = firstString(nested, "domainName")
	}
	if r.name == "" {
		r.name = firstString(desc, "resourceName", keyHostname)
	}
	if r.domain == "" {
		r.domain = firstString(desc, "domainName")
	}
	r.kind = managerResourceKinds[strings.ToUpper(resourceTypeOf(desc))]
	return r
}

// extractManagerCredential emits one record for cred. role is the key of the
// credential within a set, or empty for a flat descriptor. Missing types fall
// back to what the role name implies.
func extractManagerCredential(res *Result, scope Scope, rsrc resource, cred map[string]any, role string) {
	label := role
	if label == "" {
		label = "credential"
	}

	username, ok, err := stringField(cred, keyUsername)
	if err != nil || !ok || username == "" {
		res.warn(rsrc.name, "skipping %s: no username", label)
		return
	}
	password, err := secret(cred, keyPassword)
	if err != nil {
		res.warn(rsrc.name, "skipping %s: %v", username, err)
		return
	}

	mechanism, class := roleDefaults(role)

	if t := firstString(cred, "credentialType"); t != "" {
		if m, known := managerMechanisms[strings.ToUpper(t)]; known {
			mechanism = m
		} else {
			res.warn(rsrc.name, "unrecognised credential type %q for %s, recording as %s", t, username, credential.AuthAPI)
			mechanism = credential.AuthAPI
		}
	} else if role == "" {
		res.warn(rsrc.name, "no credential type for %s, recording as %s", username, mechanism)
	}

	if t := firstString(cred, "accountType"); t != "" {
		if c, known := managerAccountClasses[strings.ToUpper(t)]; known {
			class = c
		} else {
			res.warn(rsrc.name, "unrecognised account type %q for %s, recording as %s", t, username, credential.AccountUser)
			class = credential.AccountUser
		}
	} else if role == "" {
		res.warn(rsrc.name, "no account type for %s, recording as %s", username, class)
	}

	rec := scope.record(rsrc.name, username, password, mechanism, class, rsrc.kind)
	if rsrc.domain != "" {
		domain := rsrc.domain
		rec.Domain = &domain
	}
	res.add(rec)
}

// roleDefaults guesses the account from a role name such as "root user
// credentials". A flat descriptor without types is recorded as an API user.
func roleDefaults(role string) (credential.AuthMechanism, credential.AccountClass) {
	if role == "" {
		return credential.AuthAPI, credential.AccountUser
	}
	if strings.Contains(strings.ToLower(role), "root") {
		return credential.AuthSSH, credential.AccountUser
	}
	return credential.AuthAPI, credential.AccountService
}
