// Package discovery browses the local network for Barrier/Synergy/Deskflow
// servers advertising over mDNS, sparing a user from typing in an address
// by hand.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// ServiceTypes are the mDNS service names servers of each lineage have been
// observed to advertise under; browsing all three covers whichever fork a
// given server happens to be.
var ServiceTypes = []string{"_barrier._tcp", "_synergy._tcp", "_deskflow._tcp"}

// Server is one discovered candidate.
type Server struct {
	Name string
	Host string
	Port int
}

// Browse listens for mDNS announcements across all ServiceTypes until ctx
// is canceled, calling found for every server seen (possibly more than
// once, as services refresh their TTL).
func Browse(ctx context.Context, found func(Server)) error {
	resolver, err := dnssd.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: creating resolver: %w", err)
	}

	addFn := func(e dnssd.BrowseEntry) {
		host := e.Host
		if len(e.IPs) > 0 {
			host = e.IPs[0].String()
		}

		found(Server{Name: e.Name, Host: host, Port: e.Port})
	}

	removeFn := func(dnssd.BrowseEntry) {}

	errCh := make(chan error, len(ServiceTypes))

	for _, svc := range ServiceTypes {
		svc := svc

		go func() {
			// Browse blocks until ctx is canceled, so each service type
			// gets its own goroutine rather than running the three
			// sequentially.
			errCh <- resolver.Browse(ctx, svc, "local.", addFn, removeFn)
		}()
	}

	for range ServiceTypes {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			return fmt.Errorf("discovery: browsing: %w", err)
		}
	}

	return nil
}
