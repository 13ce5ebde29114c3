package confirmation

import "time"

// NextAttemptAt applies the resend rule. With d = now - token.Modified a
// resend is allowed when
//
//	(AttemptCount < MaxAttempts || d > Cooldown) && d > MinInterval
//
// Otherwise the returned time is Modified+MinInterval while under the attempt
// cap, and Modified+Cooldown once the cap is reached. The check is advisory:
// UpdateToken does not re-validate it.
func (m *Manager) NextAttemptAt(token Token) (time.Time, bool) {
	delta := m.now().Sub(token.Modified)
	underCap := token.AttemptCount < m.config.MaxAttempts

	if (underCap || delta > m.config.Cooldown) && delta > m.config.MinInterval {
		return time.Time{}, true
	}
	if underCap {
		return token.Modified.Add(m.config.MinInterval), false
	}
	return token.Modified.Add(m.config.Cooldown), false
}

// GetNextAttemptTime returns "" when a resend is allowed now, otherwise the
// RFC 3339 UTC time at which the next attempt becomes legal. Fractional
// seconds are kept so the advertised time is never earlier than the limit.
func (m *Manager) GetNextAttemptTime(token Token) string {
	at, ok := m.NextAttemptAt(token)
	if ok {
		return ""
	}
	return at.UTC().Format(time.RFC3339Nano)
}
