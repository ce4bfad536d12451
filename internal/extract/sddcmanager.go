package extract

import (
	"vcfcreds/domain/credential"
)

func extractSDDCManager(raw any, scope Scope) Result {
	var res Result

	spec, ok := asObject(raw)
	if !ok {
		res.warn("", "sddcManagerSpec is %s, want object", describeType(raw))
		return res
	}

	hostname := firstString(spec, keyHostname)
	if hostname == "" {
		res.warn("", "sddcManagerSpec has no hostname")
		return res
	}

	if password, err := secret(spec, "rootPassword"); err != nil {
		res.warn(hostname, "skipping root: %v", err)
	} else {
		res.add(scope.record(hostname, "root", password,
			credential.AuthSSH, credential.AccountUser, credential.ResourceDeploymentManager))
	}

	// admin@local and vcf share localUserPassword.
	local, localErr := secret(spec, "localUserPassword")
	if localErr != nil {
		res.warn(hostname, "skipping admin@local: %v", localErr)
	} else {
		res.add(scope.record(hostname, "admin@local", local,
			credential.AuthAPI, credential.AccountService, credential.ResourceDeploymentManager))
	}

	vcfPassword := local
	ssh, sshErr := secret(spec, "sshPassword")
	switch {
	case sshErr == nil && localErr != nil:
		vcfPassword = ssh
	case sshErr == nil && ssh != local:
		res.warn(hostname, "sshPassword differs from localUserPassword, using sshPassword for vcf")
		vcfPassword = ssh
	case localErr != nil:
		res.warn(hostname, "skipping vcf: no localUserPassword or sshPassword")
		return res
	}

	res.add(scope.record(hostname, "vcf", vcfPassword,
		credential.AuthSSH, credential.AccountService, credential.ResourceDeploymentManager))

	return res
}
