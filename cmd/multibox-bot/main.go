// multibox-bot is a headless client for poking at a running server: it
// discovers the server over mDNS (or takes -server), connects with a fresh
// player id, streams random direction inputs and prints the position updates
// it gets back.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/yy58/multiboxes/discovery"
	"github.com/yy58/multiboxes/protocol"
)

func main() {
	var (
		serverFlag = flag.String("server", "", "server address host:port; empty means discover via mDNS")
		inputHz    = flag.Int("input-hz", 10, "how often to send a direction input")
		quiet      = flag.Bool("quiet", false, "only print own position updates")
	)
	flag.Parse()

	server, err := resolveServer(*serverFlag)
	if err != nil {
		log.Fatalf("resolve server: %v", err)
	}
	log.Printf("server at %s", server)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	localIP, err := discovery.LocalIP()
	if err != nil {
		log.Fatalf("local ip: %v", err)
	}
	localPort := conn.LocalAddr().(*net.UDPAddr).Port

	playerID := uuid.NewString()
	log.Printf("joining as %s, listening on %s:%d", playerID, localIP, localPort)

	payload, err := protocol.Encode(protocol.MsgConnect, protocol.Connect{
		PlayerID:   playerID,
		ClientIP:   localIP.String(),
		ClientPort: localPort,
	})
	if err != nil {
		log.Fatalf("encode connect: %v", err)
	}
	if _, err := conn.WriteToUDP(payload, server); err != nil {
		log.Fatalf("send connect: %v", err)
	}

	go receiveUpdates(conn, playerID, *quiet)

	ticker := time.NewTicker(time.Second / time.Duration(*inputHz))
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	dirs := []int{-1, 0, 1}
	for {
		select {
		case <-quit:
			log.Println("bye")
			return
		case <-ticker.C:
			payload, err := protocol.Encode(protocol.MsgUpdateVelocity, protocol.UpdateVelocity{
				PlayerID: playerID,
				VX:       dirs[rand.Intn(len(dirs))],
				VY:       dirs[rand.Intn(len(dirs))],
				Angular:  dirs[rand.Intn(len(dirs))],
			})
			if err != nil {
				log.Printf("encode input: %v", err)
				continue
			}
			if _, err := conn.WriteToUDP(payload, server); err != nil {
				log.Printf("send input: %v", err)
			}
		}
	}
}

func resolveServer(addr string) (*net.UDPAddr, error) {
	if addr != "" {
		return net.ResolveUDPAddr("udp", addr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return discovery.Browse(ctx)
}

func receiveUpdates(conn *net.UDPConn, playerID string, quiet bool) {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		up, err := protocol.DecodeUpdatePosition(buf[:n])
		if err != nil {
			continue
		}
		if quiet && up.PlayerID != playerID {
			continue
		}
		log.Printf("%s at (%.1f, %.1f) angle %.2f", up.PlayerID, up.X, up.Y, up.Angle)
	}
}
