package testutil

import (
	"flag"
	"io"

	"github.com/sirupsen/logrus"
)

// Tests log everything, but output is only kept when running verbosely
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	if v := flag.Lookup("test.v"); v == nil || v.Value.String() != "true" {
		logrus.StandardLogger().Out = io.Discard
	}
}
