package broker

import "fmt"

// AssumeRoleError is returned when a role in a target account cannot be assumed.
type AssumeRoleError struct {
	Err       error
	AccountID string
	RoleName  string
	Region    string
}

func (err AssumeRoleError) Error() string {
	return fmt.Sprintf("unable to assume role %s in account %s (%s): %v", err.RoleName, err.AccountID, err.Region, err.Err)
}

func (err AssumeRoleError) Unwrap() error {
	return err.Err
}
