package extract

import (
	"vcfcreds/domain/credential"

	log "github.com/sirupsen/logrus"
)

type hostShape string

const (
	shapeCredentialList   hostShape = "credential-list"
	shapeCredentialObject hostShape = "credential-object"
	shapeDirectFields     hostShape = "direct-fields"
)

// hostProbe recognises one way a host descriptor carries its credentials.
// match returns the credential objects found, or false when the shape does
// not apply to the descriptor.
type hostProbe struct {
	shape hostShape
	match func(host map[string]any) ([]map[string]any, bool)
}

// hostProbes are tried in order; the first match wins.
var hostProbes = []hostProbe{
	{
		shape: shapeCredentialList,
		match: func(host map[string]any) ([]map[string]any, bool) {
			list, ok := asList(host[keyCredentials])
			if !ok {
				return nil, false
			}
			found := make([]map[string]any, 0, len(list))
			for _, item := range list {
				// nil marks a malformed entry
				obj, _ := asObject(item)
				found = append(found, obj)
			}
			return found, true
		},
	},
	{
		shape: shapeCredentialObject,
		match: func(host map[string]any) ([]map[string]any, bool) {
			obj, ok := asObject(host[keyCredentials])
			if !ok {
				return nil, false
			}
			return []map[string]any{obj}, true
		},
	},
	{
		shape: shapeDirectFields,
		match: func(host map[string]any) ([]map[string]any, bool) {
			_, hasUser := host[keyUsername]
			_, hasPassword := host[keyPassword]
			if !hasUser && !hasPassword {
				return nil, false
			}
			return []map[string]any{host}, true
		},
	},
}

func extractHosts(raw any, scope Scope) Result {
	var res Result

	hosts, ok := asList(raw)
	if !ok {
		res.warn("", "hostSpecs is %s, want array", describeType(raw))
		return res
	}

	for i, item := range hosts {
		host, ok := asObject(item)
		if !ok {
			res.warn("", "hostSpecs[%d] is %s, want object", i, describeType(item))
			continue
		}

		hostname := firstString(host, keyHostname, "ipAddress")
		if hostname == "" {
			res.warn("", "hostSpecs[%d] has no hostname or ipAddress", i)
			continue
		}

		probe, creds, ok := probeHost(host)
		if !ok {
			res.warn(hostname, "host descriptor carries no credentials")
			continue
		}
		scope.logger().WithFields(log.Fields{
			"host":  hostname,
			"probe": probe,
		}).Debug("resolved host credentials")
		if len(creds) == 0 {
			res.warn(hostname, "host credential list is empty")
			continue
		}

		for j, cred := range creds {
			if cred == nil {
				res.warn(hostname, "credentials[%d] is not an object", j)
				continue
			}
			username, ok, err := stringField(cred, keyUsername)
			if err != nil || !ok || username == "" {
				res.warn(hostname, "host credential has no username")
				continue
			}
			password, err := secret(cred, keyPassword)
			if err != nil {
				res.warn(hostname, "skipping %s: %v", username, err)
				continue
			}
			res.add(scope.record(hostname, username, password,
				credential.AuthSSH, credential.AccountUser, credential.ResourceESXiHost))
		}
	}

	return res
}

func probeHost(host map[string]any) (hostShape, []map[string]any, bool) {
	for _, probe := range hostProbes {
		if creds, ok := probe.match(host); ok {
			return probe.shape, creds, true
		}
	}
	return "", nil, false
}
