package extract

import (
	"vcfcreds/domain/credential"
)

// sharedSecret is one password that applies to the same account on every
// node of a cluster.
type sharedSecret struct {
	username  string
	password  string
	mechanism credential.AuthMechanism
	class     credential.AccountClass
}

func (s sharedSecret) recordFor(scope Scope, hostname string, kind credential.ResourceKind) credential.Record {
	return scope.record(hostname, s.username, s.password, s.mechanism, s.class, kind)
}

var nsxAccounts = []applianceAccount{
	{"root", "rootNsxtManagerPassword", credential.AuthSSH, credential.AccountUser},
	{"admin", "nsxtAdminPassword", credential.AuthAPI, credential.AccountService},
	{"audit", "nsxtAuditPassword", credential.AuthAPI, credential.AccountService},
}

func extractNSX(raw any, scope Scope) Result {
	var res Result

	spec, ok := asObject(raw)
	if !ok {
		res.warn("", "nsxtSpec is %s, want object", describeType(raw))
		return res
	}

	secrets := make([]sharedSecret, 0, len(nsxAccounts))
	for _, acct := range nsxAccounts {
		password, err := secret(spec, acct.passwordKey)
		if err != nil {
			res.warn("", "skipping %s on all network manager nodes: %v", acct.username, err)
			continue
		}
		secrets = append(secrets, sharedSecret{
			username:  acct.username,
			password:  password,
			mechanism: acct.mechanism,
			class:     acct.class,
		})
	}

	var nodes []string
	switch managers := spec["nsxtManagers"].(type) {
	case []any:
		for i, item := range managers {
			node, ok := asObject(item)
			if !ok {
				res.warn("", "nsxtManagers[%d] is %s, want object", i, describeType(item))
				continue
			}
			hostname := firstString(node, keyHostname, "name")
			if hostname == "" {
				res.warn("", "nsxtManagers[%d] has no hostname", i)
				continue
			}
			nodes = append(nodes, hostname)
		}
	case nil:
		res.warn("", "nsxtSpec lists no nsxtManagers")
	default:
		res.warn("", "nsxtManagers is %s, want array", describeType(managers))
	}

	for _, hostname := range nodes {
		for _, s := range secrets {
			res.add(s.recordFor(scope, hostname, credential.ResourceNetworkManager))
		}
	}

	if vip := firstString(spec, "vipFqdn", "vip"); vip != "" {
		for _, s := range secrets {
			res.add(s.recordFor(scope, vip, credential.ResourceNetworkManagerVIP))
		}
	}

	return res
}
