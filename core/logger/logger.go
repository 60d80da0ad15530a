package logger

// Logger exposes logging methods for common severity levels. The *w variants
// attach structured fields to the entry.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Infow(msg string, fields map[string]any)
	Warnf(format string, args ...any)
	Warnw(msg string, fields map[string]any)
	Errorf(format string, args ...any)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Debugf(string, ...any)         {}
func (Nop) Debugw(string, map[string]any) {}
func (Nop) Infof(string, ...any)          {}
func (Nop) Infow(string, map[string]any)  {}
func (Nop) Warnf(string, ...any)          {}
func (Nop) Warnw(string, map[string]any)  {}
func (Nop) Errorf(string, ...any)         {}
