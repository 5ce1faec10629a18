// Package chorum contains the version number and protocol constants shared
// by every part of the board.
package chorum

// Version is the current version of chorum.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// BasePrefix is a global prefix for all routes. Set with --base-prefix.
var BasePrefix = ""

// APIPrefix is the path prefix of every JSON API route.
const APIPrefix = "/api/"

const (
	// ChallengeVersion is the version of the HC1 challenge layout handed to
	// miners in every begin response.
	ChallengeVersion = 1

	// MinMinerVersion is the oldest miner protocol accepted at commit time.
	MinMinerVersion = 1

	// DefaultRequiredPrefix is the hex prefix a proof digest must start with
	// when no other difficulty is configured.
	DefaultRequiredPrefix = "21e8"

	// DefaultChallengeTTLSeconds is how long a client has to mine a proof.
	DefaultChallengeTTLSeconds = 300
)
