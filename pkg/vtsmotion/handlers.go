package vtsmotion

// CreateConnectionLogger returns a handler that logs every connection
// state change.
func CreateConnectionLogger(logger *MotionLogger) ConnectionHandler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	l := logger.WithComponent("connection")
	return func(state ConnectionState) {
		l.LogConnectionEvent("state_change", state, nil)
	}
}

// CreateErrorLogger returns a handler that logs transport errors and
// flags the ones worth retrying.
func CreateErrorLogger(logger *MotionLogger) ErrorHandler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	l := logger.WithComponent("transport")
	return func(err *MotionError) {
		if IsRetryableError(err) {
			l.Warnf("Recoverable transport error: %s (%s)", err.Message, err.Code)
			return
		}
		l.LogError(err)
	}
}

// CreateEventLogger returns a handler that logs unsolicited host
// envelopes, useful when debugging protocol traffic.
func CreateEventLogger(logger *MotionLogger) EventHandler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	l := logger.WithComponent("events")
	return func(env *Envelope) {
		l.LogEnvelopeEvent("in", env.MessageType, env.RequestID)
	}
}
