// SPDX-License-Identifier: MIT

package iceport

import (
	"net"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// SDPSessionDescription is the canonical SessionDescription, reading
// ice-ufrag/ice-pwd and candidate lines out of a parsed
// github.com/pion/sdp/v3.SessionDescription the way arzzra-soft_phone's and
// dkeye-Voice's media builders walk session/media attribute lists. A
// session-level attribute is used when present; otherwise the media
// descriptions are searched in order and the first match wins, matching how browsers fold
// ice-ufrag/ice-pwd up to the session level only when every m-line agrees.
type SDPSessionDescription struct {
	SD *sdp.SessionDescription
}

func (d SDPSessionDescription) ICEUfrag() string { return d.attribute("ice-ufrag") }
func (d SDPSessionDescription) ICEPwd() string   { return d.attribute("ice-pwd") }

func (d SDPSessionDescription) attribute(key string) string {
	if d.SD == nil {
		return ""
	}

	if v, ok := findAttribute(d.SD.Attributes, key); ok {
		return v
	}

	for _, media := range d.SD.MediaDescriptions {
		if v, ok := findAttribute(media.Attributes, key); ok {
			return v
		}
	}

	return ""
}

func findAttribute(attrs []sdp.Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}

	return "", false
}

// Candidates extracts "a=candidate" lines from every media description,
// translated into the coalesced-listener shape Listen consumes. Only
// "host" candidates carry a usable local port range; other types describe
// the remote side and are skipped here since this port only ever binds its
// own local endpoints.
func (d SDPSessionDescription) Candidates() []Candidate {
	if d.SD == nil {
		return nil
	}

	var out []Candidate
	for _, media := range d.SD.MediaDescriptions {
		for _, a := range media.Attributes {
			if a.Key != "candidate" {
				continue
			}

			c, ok := parseCandidateLine(a.Value)
			if ok {
				out = append(out, c)
			}
		}
	}

	return out
}

// parseCandidateLine parses the subset of RFC 5245 §15.1's candidate-attribute
// grammar this port needs: foundation component transport priority address
// port "typ" type ...
func parseCandidateLine(value string) (Candidate, bool) {
	fields := strings.Fields(value)
	if len(fields) < 8 {
		return Candidate{}, false
	}

	if fields[6] != "typ" || fields[7] != "host" {
		return Candidate{}, false
	}

	transport := strings.ToLower(fields[2])
	if transport != "udp" && transport != "tcp" {
		return Candidate{}, false
	}

	ip := net.ParseIP(fields[4])
	if ip == nil {
		return Candidate{}, false
	}

	port, err := strconv.Atoi(fields[5])
	if err != nil || port <= 0 {
		return Candidate{}, false
	}

	return Candidate{Transport: transport, IP: ip, PortStart: port, PortEnd: port}, true
}
