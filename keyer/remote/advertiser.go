package remote

/*------------------------------------------------------------------
 *
 * Purpose:	Announce the keyer's remote-stream TCP service using
 *		DNS-SD, so a console on the same network can find the
 *		keyer without a configured address. See SPEC_FULL.md
 *		§4.8.
 *
 *---------------------------------------------------------------*/

import (
	"context"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const ServiceType = "_ironkeyer._tcp"

// Advertiser wraps brutella/dnssd to publish the remote-stream TCP
// port on the local network.
type Advertiser struct {
	logger *log.Logger
	cancel context.CancelFunc
}

// Advertise starts announcing name on ServiceType at port, returning
// an Advertiser the caller must Close when the stream shuts down.
func Advertise(name string, port int, logger *log.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("component", "remote_advertiser")

	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, err
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, err
	}

	if _, err := rp.Add(sv); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Advertiser{logger: logger, cancel: cancel}

	logger.Info("advertising remote stream", "name", name, "port", port, "type", ServiceType)

	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dns-sd responder error", "err", err)
		}
	}()

	return a, nil
}

func (a *Advertiser) Close() error {
	a.cancel()
	return nil
}

// BrowseOnce resolves the first instance of ServiceType currently
// visible on the network, for a client configured to auto-discover
// rather than use a fixed address.
func BrowseOnce(ctx context.Context) (addr string, err error) {
	found := make(chan string, 1)

	addFn := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 {
			return
		}
		select {
		case found <- e.IPs[0].String():
		default:
		}
	}
	rmvFn := func(e dnssd.BrowseEntry) {}

	go func() { _ = dnssd.LookupType(ctx, ServiceType, addFn, rmvFn) }()

	select {
	case addr = <-found:
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
