// Package validate holds the input rules shared by the protocol dispatcher
// and the configuration loader.
//
// Names are checked with go-playground/validator: at most 31 printable
// ASCII characters and never the '|' field separator. ConfigFile reports
// every entry of a server.config file that the loader would clamp or
// ignore, which backs the check-config command.
package validate
