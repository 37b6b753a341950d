package models

// Environment is the {test, production} partition a key belongs to.
// It is purely a data tag, not a real deployment boundary.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// Secret prefixes are fixed per environment and never shared.
const (
	SecretPrefixTest       = "sk_test_"
	SecretPrefixProduction = "sk_live_"
)

// Valid reports whether e is one of the known environments.
func (e Environment) Valid() bool {
	return e == EnvironmentTest || e == EnvironmentProduction
}

// SecretPrefix returns the designated secret prefix for the environment.
// Unknown environments fall back to the test prefix so callers validating
// input up front never see an empty prefix.
func (e Environment) SecretPrefix() string {
	if e == EnvironmentProduction {
		return SecretPrefixProduction
	}
	return SecretPrefixTest
}
