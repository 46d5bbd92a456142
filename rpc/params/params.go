// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params holds the payload types exchanged with the controller
// by the connection core: login, redirection, keepalive and the
// all-watcher.
package params

import (
	"net"
	"strconv"

	"gopkg.in/macaroon.v2"

	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
)

// HostPort associates an address with a port.
type HostPort struct {
	Value string `json:"value"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
	Port  int    `json:"port"`
}

// NetAddr returns the host:port form of the address.
func (hp HostPort) NetAddr() string {
	return net.JoinHostPort(hp.Value, strconv.Itoa(hp.Port))
}

// FlattenHostPorts returns the host:port form of every address held by
// servers, in order, without duplicates.
func FlattenHostPorts(servers [][]HostPort) []string {
	var addrs []string
	seen := make(map[string]bool)
	for _, server := range servers {
		for _, hp := range server {
			addr := hp.NetAddr()
			if seen[addr] {
				continue
			}
			seen[addr] = true
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// LoginRequest holds credentials for identifying an entity to the
// controller.
type LoginRequest struct {
	AuthTag       string           `json:"auth-tag"`
	Credentials   string           `json:"credentials"`
	Nonce         string           `json:"nonce"`
	Macaroons     []macaroon.Slice `json:"macaroons"`
	CLIArgs       string           `json:"cli-args,omitempty"`
	UserData      string           `json:"user-data"`
	ClientVersion string           `json:"client-version,omitempty"`
}

// AuthUserInfo describes a logged-in local user or remote identity.
type AuthUserInfo struct {
	DisplayName      string `json:"display-name"`
	Identity         string `json:"identity"`
	ControllerAccess string `json:"controller-access"`
	ModelAccess      string `json:"model-access"`
}

// FacadeVersions describes the available facades and what versions of
// each one are available.
type FacadeVersions struct {
	Name     string `json:"name"`
	Versions []int  `json:"versions"`
}

// LoginResult holds the result of an Admin Login call.
type LoginResult struct {
	// DischargeRequired implies that the login request has failed, and none of
	// the other fields are populated. It contains a macaroon which, when
	// discharged, will grant access on a subsequent call to Login.
	DischargeRequired *macaroon.Macaroon `json:"discharge-required,omitempty"`

	// DischargeRequiredReason holds the reason that the above discharge was
	// required.
	DischargeRequiredReason string `json:"discharge-required-error,omitempty"`

	// Servers is the list of API server addresses.
	Servers [][]HostPort `json:"servers,omitempty"`

	// PublicDNSName holds the public host name of the controller, if any.
	PublicDNSName string `json:"public-dns-name,omitempty"`

	// ModelTag is the tag for the model that is being connected to.
	ModelTag string `json:"model-tag,omitempty"`

	// ControllerTag is the tag for the controller that runs the API servers.
	ControllerTag string `json:"controller-tag,omitempty"`

	// UserInfo describes the authenticated user, if any.
	UserInfo *AuthUserInfo `json:"user-info,omitempty"`

	// Facades describes all the available API facade versions to the
	// authenticated client.
	Facades []FacadeVersions `json:"facades,omitempty"`

	// ServerVersion holds the version of the API server that we are
	// connected to.
	ServerVersion string `json:"server-version,omitempty"`
}

// RedirectInfoResult holds the result of a RedirectInfo call.
type RedirectInfoResult struct {
	// Servers holds an entry for each server in the controller that
	// the client is being redirected to.
	Servers [][]HostPort `json:"servers"`

	// CACert holds the CA certificate for the server.
	CACert string `json:"ca-cert"`
}

// RedirectErrorInfo is the error info sent alongside a redirection
// required error.
type RedirectErrorInfo struct {
	Servers         [][]HostPort `json:"servers"`
	CACert          string       `json:"ca-cert"`
	ControllerTag   string       `json:"controller-tag,omitempty"`
	ControllerAlias string       `json:"controller-alias,omitempty"`
}

// AllWatcherId holds the id of an AllWatcher.
type AllWatcherId struct {
	AllWatcherId string `json:"watcher-id"`
}

// AllWatcherNextResults holds deltas returned from calling AllWatcher.Next().
type AllWatcherNextResults struct {
	Deltas []multiwatcher.Delta `json:"deltas"`
}
