package engine

// Stats contains engine statistics
type Stats struct {
	SessionID       string `json:"session_id"`
	Cycles          uint64 `json:"cycles"`
	Voices          int    `json:"voices"`
	VoicesCreated   uint64 `json:"voices_created"`
	VoicesDestroyed uint64 `json:"voices_destroyed"`
	BeepsPlayed     uint64 `json:"beeps_played"`
	BeepsSkipped    uint64 `json:"beeps_skipped"`
	DeviceFailures  uint64 `json:"device_failures"`
	RegisterErrors  uint64 `json:"register_errors"`
	ListenerUpdates uint64 `json:"listener_updates"`
	DeviceRunning   bool   `json:"device_running"`
	Interrupted     bool   `json:"interrupted"`
	Device          string `json:"device"`
	PitchMode       string `json:"pitch_mode"`
	CacheHits       uint64 `json:"cache_hits"`
	CacheMisses     uint64 `json:"cache_misses"`
}

// Stats returns engine statistics
func (e *Engine) Stats() Stats {
	cache := e.cache.Stats()

	return Stats{
		SessionID:       e.sessionID,
		Cycles:          e.cycles.Load(),
		Voices:          len(*e.published.Load()),
		VoicesCreated:   e.created.Load(),
		VoicesDestroyed: e.destroyed.Load(),
		BeepsPlayed:     e.beepsPlayed.Load(),
		BeepsSkipped:    e.beepsSkipped.Load(),
		DeviceFailures:  e.deviceFailures.Load(),
		RegisterErrors:  e.registerErrors.Load(),
		ListenerUpdates: e.listenerUpdates.Load(),
		DeviceRunning:   e.device.Running(),
		Interrupted:     e.interrupted.Load(),
		Device:          e.device.Name(),
		PitchMode:       string(e.cfg.PitchMode),
		CacheHits:       cache.Hits,
		CacheMisses:     cache.Misses,
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}
