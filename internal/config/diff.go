package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only the log level is applied live; every other change is reported so the
// operator knows a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the top-level sections whose changes only take
	// effect after a restart (e.g. "script", "stt").
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldSrv, newSrv := old.Server, new.Server
	oldSrv.LogLevel, newSrv.LogLevel = "", ""
	if !serverEqual(oldSrv, newSrv) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Script != new.Script {
		d.RestartRequired = append(d.RestartRequired, "script")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Match != new.Match {
		d.RestartRequired = append(d.RestartRequired, "match")
	}
	if !sttEqual(old.STT, new.STT) {
		d.RestartRequired = append(d.RestartRequired, "stt")
	}
	if old.Observe != new.Observe {
		d.RestartRequired = append(d.RestartRequired, "observe")
	}
	return d
}

func serverEqual(a, b ServerConfig) bool {
	ta, tb := a.TLS, b.TLS
	a.TLS, b.TLS = nil, nil
	if a != b {
		return false
	}
	switch {
	case ta == nil && tb == nil:
		return true
	case ta == nil || tb == nil:
		return false
	}
	return *ta == *tb
}

func sttEqual(a, b STTConfig) bool {
	return a.ProviderEntry == b.ProviderEntry &&
		a.Timeout == b.Timeout &&
		a.ConnectTimeout == b.ConnectTimeout &&
		a.MaxMessageBytes == b.MaxMessageBytes &&
		a.MaxUploadBytes == b.MaxUploadBytes &&
		a.WSURL == b.WSURL &&
		a.Breaker == b.Breaker &&
		slices.Equal(a.Fallbacks, b.Fallbacks)
}
