package display

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/hashicorp/mdns"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

// ServiceType is the DNS-SD type the feed is advertised under.
const ServiceType = "_specacc._tcp"

// Advertisement describes the feed for mDNS browsers.
type Advertisement struct {
	Name     string
	Port     int
	Channels int
	Tuning   sdr.Tuning
}

func (a Advertisement) txt() []string {
	txt := []string{
		"path=" + FeedPath,
		"snapshot=" + SnapshotPath,
	}
	if a.Channels > 0 {
		txt = append(txt, "nch="+strconv.Itoa(a.Channels))
	}
	if a.Tuning.CenterFrequency > 0 {
		txt = append(txt, "fc="+strconv.FormatFloat(a.Tuning.CenterFrequency, 'f', -1, 64))
	}
	if a.Tuning.SampleRate > 0 {
		txt = append(txt, "fs="+strconv.FormatFloat(a.Tuning.SampleRate, 'f', -1, 64))
	}
	return txt
}

// Advertise publishes the feed via mDNS until ctx is done.
func Advertise(ctx context.Context, a Advertisement, logger *slog.Logger) error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("listing local addresses: %w", err)
	}

	service, err := mdns.NewMDNSService(a.Name, ServiceType, "", "", a.Port, ips, a.txt())
	if err != nil {
		return fmt.Errorf("creating mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("starting mdns server: %w", err)
	}

	logger.Info("advertising display feed",
		slog.String("name", a.Name),
		slog.String("type", ServiceType),
		slog.Int("port", a.Port))

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			logger.Warn(fmt.Sprintf("mdns shutdown: %s", err))
		}
	}()

	return nil
}

func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
