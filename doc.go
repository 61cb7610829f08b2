// SPDX-License-Identifier: MIT

// Package iceport terminates the ICE connectivity-check layer of a WebRTC
// media server. It classifies incoming datagrams, drives a STUN binding
// handshake keyed by short-term ufrag/password credentials, tracks
// sessions in a lock-ordered three-table registry, and forwards
// application-layer payloads to registered observers.
//
// A Port is constructed once with New, told how to bind listening
// endpoints via SetFactory, and driven by a transport
// collaborator calling OnConnected/OnData/OnDisconnected as datagrams and
// TCP connection events arrive. AddSession registers a signaled peer
// connection before any packet for it can be authenticated; Send routes
// application data back out through the session's bound socket.
package iceport
