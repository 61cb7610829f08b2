// SPDX-License-Identifier: MIT

// Package main demonstrates wiring an iceport.Port to a real UDP socket and
// registering a single signaled session, mirroring
// examples/turn-server/simple/main.go's flag-driven setup style.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	iceport "github.com/AirenSoft/ice-port"
)

type staticDescription struct {
	ufrag, pwd string
}

func (d staticDescription) ICEUfrag() string                { return d.ufrag }
func (d staticDescription) ICEPwd() string                  { return d.pwd }
func (d staticDescription) Candidates() []iceport.Candidate { return nil }

type loggingObserver struct {
	log logging.LeveledLogger
}

func (o loggingObserver) OnStateChanged(_ iceport.PhysicalPort, info iceport.SessionInfo, newState iceport.State) {
	o.log.Infof("session %d: state %s", info.SessionID, newState)
}

func (o loggingObserver) OnDataReceived(_ iceport.PhysicalPort, info iceport.SessionInfo, data []byte) {
	o.log.Debugf("session %d: %d bytes forwarded", info.SessionID, len(data))
}

func main() {
	portFlag := flag.Int("port", 10000, "UDP port to listen on")
	localUfrag := flag.String("local-ufrag", "", "Local (offer) ICE ufrag")
	localPwd := flag.String("local-pwd", "", "Local (offer) ICE password")
	remoteUfrag := flag.String("remote-ufrag", "", "Remote (peer) ICE ufrag")
	remotePwd := flag.String("remote-pwd", "", "Remote (peer) ICE password")
	flag.Parse()

	if *localUfrag == "" || *remoteUfrag == "" {
		log.Fatal("-local-ufrag and -remote-ufrag are required")
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	logger := loggerFactory.NewLogger("ice-port-demo")

	metrics := iceport.NewMetrics(nil)

	port := iceport.New(iceport.Config{
		LoggerFactory: loggerFactory,
		Metrics:       metrics,
		SessionExpiry: 30 * time.Second,
	}, loggingObserver{log: logger})
	port.SetFactory(iceport.NewUDPPhysicalPortFactory(port, logger))

	if err := port.Listen([]iceport.Candidate{
		{Transport: "udp", IP: net.IPv4zero, PortStart: *portFlag, PortEnd: *portFlag},
	}); err != nil {
		log.Fatalf("listen: %v", err)
	}

	if err := port.AddSession(1,
		staticDescription{ufrag: *localUfrag, pwd: *localPwd},
		staticDescription{ufrag: *remoteUfrag, pwd: *remotePwd},
	); err != nil {
		log.Fatalf("add session: %v", err)
	}

	logger.Infof("listening on udp/%d", *portFlag)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := port.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}
