package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"ribosim/internal/logging"
	"ribosim/internal/services"
)

const mdnsDomain = "local."

// Advertiser publishes the bridge over mDNS so headsets on the same network
// can find it without configuration.
type Advertiser struct {
	server  *zeroconf.Server
	service string
	logger  *slog.Logger
}

// Advertise registers service on port. The instance name includes the host
// name so several benches can share a classroom network.
func Advertise(service string, port int, protein string, logger *slog.Logger) (*Advertiser, error) {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "bench"
	}
	instance := fmt.Sprintf("ribosim-%s", host)
	txt := []string{"path=/ws", "api=/api"}
	if protein != "" {
		txt = append(txt, "protein="+protein)
	}
	server, err := zeroconf.Register(instance, service, mdnsDomain, port, txt, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "bridge", "advertise", service, err)
	}
	a := &Advertiser{
		server:  server,
		service: service,
		logger:  logging.NewComponentLogger(logger, "mdns"),
	}
	a.logger.Info("bridge advertised",
		logging.String("instance", instance),
		logging.String("service", service),
		logging.Int("port", port),
		logging.String(logging.FieldEventType, "mdns_registered"),
	)
	return a, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Debug("bridge advertisement withdrawn", logging.String("service", a.service))
}

// Peer is a bridge found on the network.
type Peer struct {
	Instance string   `json:"instance"`
	Host     string   `json:"host"`
	Address  string   `json:"address"`
	Port     int      `json:"port"`
	Text     []string `json:"txt,omitempty"`
}

// URL is the bridge base address.
func (p Peer) URL() string {
	return fmt.Sprintf("http://%s:%d", p.Address, p.Port)
}

// Discover browses for service until timeout elapses or ctx ends and returns
// every peer seen with a usable IPv4 address.
func Discover(ctx context.Context, service string, timeout time.Duration) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "bridge", "discover", "init resolver", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		peers []Peer
	)
	go func(results <-chan *zeroconf.ServiceEntry) {
		seen := make(map[string]struct{})
		for entry := range results {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			if _, dup := seen[entry.Instance]; dup {
				continue
			}
			seen[entry.Instance] = struct{}{}
			mu.Lock()
			peers = append(peers, Peer{
				Instance: entry.Instance,
				Host:     entry.HostName,
				Address:  entry.AddrIPv4[0].String(),
				Port:     entry.Port,
				Text:     entry.Text,
			})
			mu.Unlock()
		}
	}(entries)

	if err := resolver.Browse(ctx, service, mdnsDomain, entries); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "bridge", "discover", "browse", err)
	}
	<-ctx.Done()
	mu.Lock()
	defer mu.Unlock()
	return append([]Peer(nil), peers...), nil
}
