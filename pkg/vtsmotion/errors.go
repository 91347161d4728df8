package vtsmotion

import "fmt"

// Error codes as constants
const (
	ErrCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrCodeReconnectFailed   = "RECONNECT_FAILED"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeSendFailed        = "SEND_FAILED"
	ErrCodeRecvTimeout       = "RECV_TIMEOUT"
	ErrCodeParameterNotFound = "PARAMETER_NOT_FOUND"
	ErrCodeMalformedResponse = "MALFORMED_RESPONSE"
	ErrCodeModelNotLoaded    = "MODEL_NOT_LOADED"
	ErrCodeHostAPI           = "HOST_API_ERROR"
	ErrCodeAudioDecode       = "AUDIO_DECODE_ERROR"
	ErrCodeAudioDevice       = "AUDIO_DEVICE_ERROR"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeUnknown           = "UNKNOWN_ERROR"
)

// Specific error creators with common codes
func NewConnectionError(message string) *MotionError {
	return NewMotionError(message, ErrCodeConnectionFailed)
}

func NewReconnectError(message string, attempts int) *MotionError {
	return NewMotionError(message, ErrCodeReconnectFailed).AddDetail("attempts", attempts)
}

func NewAuthError(message string) *MotionError {
	return NewMotionError(message, ErrCodeAuthFailed)
}

func NewSendError(message string) *MotionError {
	return NewMotionError(message, ErrCodeSendFailed)
}

func NewTimeoutError(message string) *MotionError {
	return NewMotionError(message, ErrCodeRecvTimeout)
}

func NewParameterError(axis Axis) *MotionError {
	return NewMotionError(fmt.Sprintf("no host parameter mapped for axis %s", axis), ErrCodeParameterNotFound).
		AddDetail("axis", string(axis))
}

func NewMalformedResponseError(message string) *MotionError {
	return NewMotionError(message, ErrCodeMalformedResponse)
}

func NewHostAPIError(errorID int, message string) *MotionError {
	return NewMotionError(message, ErrCodeHostAPI).AddDetail("error_id", errorID)
}

func NewAudioDecodeError(message string) *MotionError {
	return NewMotionError(message, ErrCodeAudioDecode)
}

func NewAudioDeviceError(message string) *MotionError {
	return NewMotionError(message, ErrCodeAudioDevice).AddDetail("device", "default")
}

func NewConfigError(message string) *MotionError {
	return NewMotionError(message, ErrCodeConfigInvalid)
}

// Helper to wrap any error as MotionError
func WrapError(err error, code string) *MotionError {
	if err == nil {
		return nil
	}
	mErr := NewMotionError(err.Error(), code)
	mErr.AddDetail("original_error", err.Error())
	return mErr
}

// Helper to check if error has specific code
func IsErrorCode(err *MotionError, code string) bool {
	if err == nil {
		return false
	}
	return err.Code == code
}

// Helper to add details to existing MotionError
func (e *MotionError) AddDetail(key string, value interface{}) *MotionError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Helper to get error details
func (e *MotionError) GetDetail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	value, exists := e.Details[key]
	return value, exists
}

// Helper to check if error is retryable
func IsRetryableError(err *MotionError) bool {
	if err == nil {
		return false
	}
	retryableCodes := []string{
		ErrCodeConnectionFailed,
		ErrCodeReconnectFailed,
		ErrCodeSendFailed,
		ErrCodeRecvTimeout,
	}
	for _, code := range retryableCodes {
		if err.Code == code {
			return true
		}
	}
	return false
}

// Helper to check if error is critical
func IsCriticalError(err *MotionError) bool {
	if err == nil {
		return false
	}
	criticalCodes := []string{
		ErrCodeAuthFailed,
		ErrCodeConfigInvalid,
	}
	for _, code := range criticalCodes {
		if err.Code == code {
			return true
		}
	}
	return false
}
