// Package logging configures the process-wide logrus logger.
//
// Packages log through a component-scoped entry:
//
//	var logger = logrus.WithField("component", "room")
//
// Setup is called once at startup, before any listener is opened.
package logging
