package models

// FlagSet maps feature-flag names to their enabled state. It serializes
// as a flat JSON object.
type FlagSet map[string]bool
