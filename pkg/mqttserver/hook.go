package mqttserver

import (
	"net"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// CopterHook limits what remote clients may do on the broker.
type CopterHook struct {
	mqtt.HookBase

	l       hclog.Logger
	prefix  string
	trusted []*net.IPNet
}

func newHook(l hclog.Logger, prefix string, trusted []*net.IPNet) *CopterHook {
	return &CopterHook{l: l, prefix: prefix, trusted: trusted}
}

// Provides flags which methods the server will invoke this hook for.
// Adding or removing methods in this file requires updating this
// value!
func (ch *CopterHook) Provides(b byte) bool {
	provides := map[byte]struct{}{
		mqtt.OnACLCheck:            {},
		mqtt.OnConnectAuthenticate: {},
		mqtt.OnConnect:             {},
		mqtt.OnDisconnect:          {},
		mqtt.OnStarted:             {},
		mqtt.OnSubscribed:          {},
	}
	_, ok := provides[b]
	return ok
}

// ID identifies this hook in the listing.
func (ch *CopterHook) ID() string {
	return "CopterHook"
}

// OnStarted happens after the listeners are bound and the server is
// ready to process connections.
func (ch *CopterHook) OnStarted() {
	ch.l.Info("Ready for connections")
}

// OnConnect fires when a client connects, and we use this to forcibly
// clear all state for clients connecting to the server.
func (ch *CopterHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	ch.l.Debug("Client Connect", "client", cl.ID, "remote", cl.Net.Remote)
	cl.ClearInflights()
	return nil
}

// OnDisconnect fires when a client is disconnected for any reason.
func (ch *CopterHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	ch.l.Info("Client Disconnected", "client", cl.ID, "expired", expire)
}

// OnConnectAuthenticate allows anyone to connect, but what they can
// then do is limited by OnACLCheck.
func (ch *CopterHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	return true
}

// OnACLCheck works out if a client may use a topic.  Clients on the
// aircraft itself, or in a trusted network, may do anything.  Everyone
// else may publish sensor readings and read the status.
func (ch *CopterHook) OnACLCheck(cl *mqtt.Client, topic string, write bool) bool {
	host, _, err := net.SplitHostPort(cl.Net.Remote)
	if err != nil {
		return false
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	for _, n := range ch.trusted {
		if n.Contains(ip) {
			return true
		}
	}

	if write {
		return strings.HasPrefix(topic, ch.prefix+"/sensors/")
	}
	return topic == ch.prefix+"/status"
}

// OnSubscribed logs subscriptions as they come in for a given client.
// Useful for debugging and normally a noop.
func (ch *CopterHook) OnSubscribed(cl *mqtt.Client, pk packets.Packet, reasonCodes []byte) {
	s := cl.State.Subscriptions.GetAll()
	subs := []string{}
	for k := range s {
		subs = append(subs, k)
	}
	ch.l.Debug("Subscribed", "client", cl.ID, "subscriptions", subs)
}
