package data

import "embed"

var (
	// Policies holds the policy files shipped with chorum. policy.yaml is
	// used when no policy file is configured.
	//
	//go:embed policy.yaml all:examples
	Policies embed.FS
)
