// Command bookingctl is the operator tool of the booking service.  It
// talks to MySQL and Redis directly and needs the same DB_* and REDIS_*
// variables as the server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
