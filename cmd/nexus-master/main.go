// Command nexus-master runs the cluster master (C5): it accepts framework
// and slave registrations, issues resource offers via the configured
// allocator policy, and tracks task state until a peer disconnects or a
// new master takes over leadership.
package main

import (
	"math/rand"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	nexuslog "github.com/nexus-sched/nexus/internal/log"
)

func main() {
	rand.Seed(time.Now().UnixNano())
	if err := nexuslog.Setup(nexuslog.DefaultConfig()); err != nil {
		log.WithError(err).Fatal("nexus-master: invalid logging config")
	}

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("nexus-master: fatal error")
		os.Exit(exitCodeFor(err))
	}
}
