// Package security groups the broker's access checks. See package auth for
// handshake validation and transport tokens, and package ratelimit for
// listener load shedding.
package security
