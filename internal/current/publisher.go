package current

import (
	"encoding/json"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// MulticastAddr is the UDP multicast group/port current-weather
// snapshots are published to, per spec.md §6.
const MulticastAddr = "224.0.0.120:11461"

const multicastTTL = 2

// Publisher sends CurrentWeather snapshots as single JSON UDP datagrams
// to MulticastAddr, out the first non-loopback IPv4 interface, with
// TTL=2 so the datagram can cross one router hop but no further.
type Publisher struct {
	pconn *ipv4.PacketConn
	raw   net.PacketConn
	dst   *net.UDPAddr
}

// NewPublisher opens the outgoing multicast socket.
func NewPublisher() (*Publisher, error) {
	iface, err := firstNonLoopbackIPv4Interface()
	if err != nil {
		return nil, fmt.Errorf("current: publisher: %w", err)
	}
	dst, err := net.ResolveUDPAddr("udp4", MulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("current: publisher: resolve %s: %w", MulticastAddr, err)
	}
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("current: publisher: listen: %w", err)
	}
	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetMulticastTTL(multicastTTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("current: publisher: set TTL: %w", err)
	}
	if err := pconn.SetMulticastInterface(iface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("current: publisher: set interface %s: %w", iface.Name, err)
	}
	return &Publisher{pconn: pconn, raw: conn, dst: dst}, nil
}

// Publish serializes w to JSON and sends it as a single UDP datagram.
func (p *Publisher) Publish(w CurrentWeather) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("current: publish: marshal: %w", err)
	}
	if _, err := p.pconn.WriteTo(data, nil, p.dst); err != nil {
		return fmt.Errorf("current: publish: write: %w", err)
	}
	return nil
}

// Close releases the outgoing socket.
func (p *Publisher) Close() error {
	return p.raw.Close()
}

// firstNonLoopbackIPv4Interface returns the first up, non-loopback
// network interface carrying an IPv4 address, matching spec.md §4.3's
// "first non-loopback IPv4 interface" rule.
func firstNonLoopbackIPv4Interface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifaces {
		ifc := ifaces[i]
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if ok && ipnet.IP.To4() != nil {
				return &ifc, nil
			}
		}
	}
	return nil, fmt.Errorf("no up, non-loopback IPv4 interface found")
}
