package extract

import (
	"vcfcreds/domain/credential"
)

const defaultSSODomain = "vsphere.local"

func extractVCenter(raw any, scope Scope) Result {
	var res Result

	spec, ok := asObject(raw)
	if !ok {
		res.warn("", "vcenterSpec is %s, want object", describeType(raw))
		return res
	}

	hostname := firstString(spec, "vcenterHostname", keyHostname)
	if hostname == "" {
		res.warn("", "vcenterSpec has no vcenterHostname")
		return res
	}

	ssoDomain := firstString(spec, "ssoDomain")
	if ssoDomain == "" {
		ssoDomain = defaultSSODomain
	}

	if password, err := secret(spec, "rootVcenterPassword"); err != nil {
		res.warn(hostname, "skipping root: %v", err)
	} else {
		res.add(scope.record(hostname, "root", password,
			credential.AuthSSH, credential.AccountUser, credential.ResourceManagementVM))
	}

	if password, err := secret(spec, "adminUserSsoPassword"); err != nil {
		res.warn(hostname, "skipping SSO administrator: %v", err)
	} else {
		rec := scope.record(hostname, "administrator@"+ssoDomain, password,
			credential.AuthSSO, credential.AccountService, credential.ResourceManagementVM)
		rec.Domain = &ssoDomain
		res.add(rec)
	}

	return res
}
