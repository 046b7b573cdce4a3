// Package avatarlog wires up the structured logger used throughout avatar,
// following the pattern in the teacher repo's pkg/log package: a
// *logrus.Entry carrying static fields, JSON-formatted, routed to a file
// under the project's .avatar-cli directory in debug mode and discarded
// otherwise.
package avatarlog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Fields identifies the build/session metadata stamped onto every entry.
type Fields struct {
	Version          string
	ProjectInternalID string
	SessionToken     string
}

// New returns a logger. When debug is true, or AVATAR_DEBUG=TRUE is set in
// the environment, logs are written to development.log under configDir;
// otherwise only errors are logged, and they are discarded.
func New(configDir string, debug bool, fields Fields) *logrus.Entry {
	var log *logrus.Logger
	if debug || os.Getenv("AVATAR_DEBUG") == "TRUE" {
		log = newDevelopmentLogger(configDir)
	} else {
		log = newProductionLogger()
	}

	log.Formatter = &logrus.JSONFormatter{}

	return log.WithFields(logrus.Fields{
		"debug":              debug,
		"version":            fields.Version,
		"projectInternalId":  fields.ProjectInternalID,
		"sessionToken":       fields.SessionToken,
	})
}

func logLevel() logrus.Level {
	strLevel := os.Getenv("AVATAR_LOG_LEVEL")
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(configDir string) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logLevel())

	if configDir == "" {
		log.SetOutput(os.Stderr)
		return log
	}

	file, err := os.OpenFile(filepath.Join(configDir, "development.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.SetOutput(os.Stderr)
		return log
	}
	log.SetOutput(file)
	return log
}

func newProductionLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	log.SetLevel(logrus.ErrorLevel)
	return log
}
