package session

import "time"

// watchdog supervises module boot. It is a one-shot supervisor: once
// the module signals readiness it exits for good, and after exhausting
// its reboot budget it stops the session — the module is presumed
// non-functional or absent.
func (s *Session) watchdog() {
	if s.waitReady(s.cfg.Watchdog.BootGrace) {
		return
	}

	for attempt := 1; attempt <= s.cfg.Watchdog.MaxRetries; attempt++ {
		s.log.WithField("attempt", attempt).Warn("module not ready, rebooting")
		if err := s.client.SystemReboot(); err != nil {
			s.log.WithError(err).Error("reboot command failed")
		}
		if s.waitReady(s.cfg.Watchdog.RebootWait) {
			return
		}
	}

	s.log.Error("module never signaled readiness, stopping session")
	s.Stop()
}

// waitReady blocks until the Boot event arrives, the timeout elapses,
// or the session stops. A stopping session counts as done — the
// watchdog has nothing left to supervise.
func (s *Session) waitReady(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		return true
	case <-s.stop:
		return true
	case <-timer.C:
		return false
	}
}
