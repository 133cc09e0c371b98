//go:build !tinygo

package mc13192

import (
	"github.com/golang/glog"
)

func init() {
	globalLogger = &glogLogger{}
}

// glogLogger sends driver messages to glog. Debug output needs -v=2.
type glogLogger struct{}

func (l *glogLogger) Debug(msg string) {
	glog.V(2).Info("mc13192: " + msg)
}

func (l *glogLogger) Info(msg string) {
	glog.Info("mc13192: " + msg)
}

func (l *glogLogger) Warn(msg string) {
	glog.Warning("mc13192: " + msg)
}

func (l *glogLogger) Error(msg string) {
	glog.Error("mc13192: " + msg)
}
