// Command nexus-slave runs a slave agent (C6): it advertises its total
// resources to the master, launches and kills executors for the tasks it is
// handed through the configured isolation backend (C7). It connects to the
// one configured master address at startup and does not redial: once that
// connection drops, the slave stops sending to the master.
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
		log.WithError(err).Fatal("nexus-slave: invalid logging config")
	}

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("nexus-slave: fatal error")
		os.Exit(exitCodeFor(err))
	}
}
