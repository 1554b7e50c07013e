package domain

import "fmt"

// ConfigError reports a malformed list line. A list that produced one must
// not be activated.
type ConfigError struct {
	File string
	Line int
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// CacheFormatError reports a cache file that cannot be trusted. It is
// recovered by rebuilding from source.
type CacheFormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CacheFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cache %s: %s", e.Path, e.Reason)
}

func (e *CacheFormatError) Unwrap() error { return e.Err }

// IOError reports an unreadable source or unwritable cache location.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
