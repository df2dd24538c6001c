/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is one network address of a store node
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses "host:port"
func ParseEndpoint(s string) (Endpoint, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("bad endpoint %q: %w", s, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return Endpoint{}, fmt.Errorf("bad endpoint %q: invalid port", s)
	}
	if host == "" {
		host = "localhost"
	}
	return Endpoint{Host: host, Port: p}, nil
}

// ParseEndpoints parses a pool of endpoints, order is preserved
func ParseEndpoints(list []string) ([]Endpoint, error) {
	if len(list) == 0 {
		return nil, errNoEndpoints
	}
	eps := make([]Endpoint, 0, len(list))
	for _, s := range list {
		ep, err := ParseEndpoint(s)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}
