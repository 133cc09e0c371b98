//go:build tinygo

package mc13192

import (
	"machine"
)

func init() {
	globalLogger = uartLogger{}
}

// uartLogger prints one line per message on the board's default UART.
type uartLogger struct{}

func (uartLogger) line(tag, msg string) {
	machine.Serial.Write([]byte("mc13192 " + tag + ": " + msg + "\r\n"))
}

func (l uartLogger) Debug(msg string) { l.line("D", msg) }
func (l uartLogger) Info(msg string)  { l.line("I", msg) }
func (l uartLogger) Warn(msg string)  { l.line("W", msg) }
func (l uartLogger) Error(msg string) { l.line("E", msg) }
