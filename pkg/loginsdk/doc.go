// Package loginsdk is a small Go client for the passcode login service.
// It drives the two-phase flow end to end: submit an identifier, receive
// the code out of band, submit the code, get a bearer token back.
//
// The client keeps the login session cookie between the two phases, so a
// single Client instance must be used for a complete flow.
package loginsdk
