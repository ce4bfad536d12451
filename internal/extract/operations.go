package extract

import (
	"strings"

	"vcfcreds/domain/credential"
)

var opsNodeKinds = map[string]credential.ResourceKind{
	"master":  credential.ResourceOpsSuiteMaster,
	"replica": credential.ResourceOpsSuiteReplica,
	"data":    credential.ResourceOpsSuiteData,
}

func extractOperations(raw any, scope Scope) Result {
	var res Result

	spec, ok := asObject(raw)
	if !ok {
		res.warn("", "vcfOperationsSpec is %s, want object", describeType(raw))
		return res
	}

	lb := firstString(spec, "loadBalancerFqdn")
	password, err := secret(spec, "adminUserPassword")
	switch {
	case err == nil && lb != "":
		res.add(scope.record(lb, "admin", password,
			credential.AuthAPI, credential.AccountService, credential.ResourceOpsSuite))
	case err == nil:
		res.warn("", "skipping admin: vcfOperationsSpec has no loadBalancerFqdn")
	case lb != "":
		res.warn(lb, "skipping admin: %v", err)
	}

	switch nodes := spec["nodes"].(type) {
	case []any:
		for i, item := range nodes {
			node, ok := asObject(item)
			if !ok {
				res.warn("", "nodes[%d] is %s, want object", i, describeType(item))
				continue
			}
			extractOperationsNode(&res, scope, i, node)
		}
	case nil:
	default:
		res.warn("", "nodes is %s, want array", describeType(nodes))
	}

	return res
}

func extractOperationsNode(res *Result, scope Scope, i int, node map[string]any) {
	hostname := firstString(node, keyHostname)
	if hostname == "" {
		res.warn("", "nodes[%d] has no hostname", i)
		return
	}

	nodeType := firstString(node, "type")
	kind, known := opsNodeKinds[strings.ToLower(nodeType)]
	if !known {
		res.warn(hostname, "unrecognised node type %q, recording as %s", nodeType, credential.ResourceOpsSuiteNode)
		kind = credential.ResourceOpsSuiteNode
	}

	password, err := secret(node, "rootUserPassword")
	if err != nil {
		res.warn(hostname, "skipping root: %v", err)
		return
	}
	res.add(scope.record(hostname, "root", password,
		credential.AuthSSH, credential.AccountUser, kind))
}

// applianceAccount is one fixed account of a single-host appliance.
type applianceAccount struct {
	username    string
	passwordKey string
	mechanism   credential.AuthMechanism
	class       credential.AccountClass
}

// applianceRule extracts appliances that expose a hostname and a fixed set of
// accounts, each with its own password field.
func applianceRule(section string, kind credential.ResourceKind, accounts ...applianceAccount) func(raw any, scope Scope) Result {
	return func(raw any, scope Scope) Result {
		var res Result

		spec, ok := asObject(raw)
		if !ok {
			res.warn("", "%s is %s, want object", section, describeType(raw))
			return res
		}

		hostname := firstString(spec, keyHostname)
		if hostname == "" {
			res.warn("", "%s has no hostname", section)
			return res
		}

		for _, acct := range accounts {
			password, err := secret(spec, acct.passwordKey)
			if err != nil {
				res.warn(hostname, "skipping %s: %v", acct.username, err)
				continue
			}
			res.add(scope.record(hostname, acct.username, password, acct.mechanism, acct.class, kind))
		}
		return res
	}
}

var (
	extractFleetManagement = applianceRule("vcfOperationsFleetManagementSpec", credential.ResourceOpsNetworkFleet,
		applianceAccount{"root", "rootUserPassword", credential.AuthSSH, credential.AccountUser},
		applianceAccount{"admin", "adminUserPassword", credential.AuthAPI, credential.AccountService},
	)

	extractCollector = applianceRule("vcfOperationsCollectorSpec", credential.ResourceOpsLogCollector,
		applianceAccount{"root", "rootUserPassword", credential.AuthSSH, credential.AccountUser},
	)
)
