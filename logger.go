package mc13192

// Logger receives the driver's diagnostics. Messages are preformatted
// strings; the driver builds them by concatenation so TinyGo images stay free
// of fmt.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// globalLogger is replaced by the build's default backend in init.
var globalLogger Logger = discard{}

// SetLogger routes driver diagnostics to l. A nil l silences them.
func SetLogger(l Logger) {
	if l == nil {
		l = discard{}
	}
	globalLogger = l
}

type discard struct{}

func (discard) Debug(string) {}
func (discard) Info(string)  {}
func (discard) Warn(string)  {}
func (discard) Error(string) {}
