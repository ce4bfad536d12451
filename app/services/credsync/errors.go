package credsync

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// SyncError reports a pass that produced no plan: every configured source
// failed, or none was configured. Errs holds one error per failed source.
type SyncError struct {
	DeploymentID string
	Errs         *multierror.Error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s failed: %s", e.DeploymentID, flatten(e.Errs))
}

func (e *SyncError) Unwrap() error {
	return e.Errs
}

// flatten renders the errors on one line for logs and API responses.
func flatten(errs *multierror.Error) string {
	if errs == nil || len(errs.Errors) == 0 {
		return "unknown error"
	}
	s := errs.Errors[0].Error()
	for _, err := range errs.Errors[1:] {
		s += "; " + err.Error()
	}
	return s
}
