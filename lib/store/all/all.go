// Package all registers every store backend. Import it for side effects.
package all

import (
	_ "github.com/nozmo-king/chorum/lib/store/bbolt"
	_ "github.com/nozmo-king/chorum/lib/store/s3api"
	_ "github.com/nozmo-king/chorum/lib/store/sqlite"
	_ "github.com/nozmo-king/chorum/lib/store/valkey"
)
