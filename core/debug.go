package core

// DebugWriter receives one debug line.
type DebugWriter func(string)

var (
	debugPrintln DebugWriter = func(string) {}

	// off by default; set_debug enable=1 turns it on
	debugEnabled bool
)

// SetDebugWriter redirects debug output (UART, USB, stderr).
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes msg when debug output is enabled.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}
