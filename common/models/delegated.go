package models

import "time"

// DelegatedAdministrator is a (account, service principal) delegation.
// At most one record exists per pair.
type DelegatedAdministrator struct {
	AccountID             string     `yaml:"-" json:"account_id"`
	ServicePrincipal      string     `yaml:"ServicePrincipal" json:"service_principal"`
	DelegationEnabledDate *time.Time `yaml:"DelegationEnabledDate,omitempty" json:"delegation_enabled_date,omitempty"`
}

// DelegatedAccount is an account registered as a delegated administrator
type DelegatedAccount struct {
	ID   string
	Name string
}
