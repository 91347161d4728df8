package vtsmotion

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"
)

// Wire message types
const (
	MsgAuthTokenRequest   = "AuthenticationTokenRequest"
	MsgAuthTokenResponse  = "AuthenticationTokenResponse"
	MsgAuthRequest        = "AuthenticationRequest"
	MsgAuthResponse       = "AuthenticationResponse"
	MsgParamListRequest   = "InputParameterListRequest"
	MsgParamListResponse  = "InputParameterListResponse"
	MsgParamCreateRequest = "CreateCustomParameterRequest"
	MsgInjectRequest      = "InjectParameterDataRequest"
	MsgHotkeyTrigger      = "HotkeyTriggerRequest"
	MsgCurrentModel       = "CurrentModelRequest"
	MsgAvailableModels    = "AvailableModelsRequest"
	MsgModelLoad          = "ModelLoadRequest"
	MsgAPIError           = "APIError"
)

// Envelope is the framing every host message travels in, one JSON
// object per socket message.
type Envelope struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

var requestCounter atomic.Int64

func nextRequestID() string {
	return fmt.Sprintf("vtsmotion-%d", requestCounter.Add(1))
}

// NewEnvelope builds a request envelope with a fresh request ID.
func NewEnvelope(messageType string, data interface{}) (*Envelope, error) {
	env := &Envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   nextRequestID(),
		MessageType: messageType,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	} else {
		env.Data = json.RawMessage("{}")
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into dst.
func (e *Envelope) DecodeData(dst interface{}) error {
	if len(e.Data) == 0 {
		return NewMalformedResponseError(fmt.Sprintf("empty data in %s", e.MessageType))
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return NewMalformedResponseError(fmt.Sprintf("bad data in %s: %v", e.MessageType, err))
	}
	return nil
}

// APIErr returns the decoded host error when the envelope is an
// APIError response, nil otherwise.
func (e *Envelope) APIErr() *MotionError {
	if e.MessageType != MsgAPIError {
		return nil
	}
	var data APIErrorData
	if err := e.DecodeData(&data); err != nil {
		return NewMalformedResponseError("undecodable APIError payload")
	}
	return NewHostAPIError(data.ErrorID, data.Message)
}

// Payload structs

type AuthTokenRequestData struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type AuthTokenResponseData struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type AuthRequestData struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	AuthenticationToken string `json:"authenticationToken"`
}

type AuthResponseData struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason,omitempty"`
}

// HostParameter is one animatable parameter as reported by the host.
type HostParameter struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	DefaultValue float64 `json:"defaultValue"`
}

type ParamListResponseData struct {
	ModelLoaded       bool            `json:"modelLoaded"`
	ModelName         string          `json:"modelName,omitempty"`
	DefaultParameters []HostParameter `json:"defaultParameters"`
	CustomParameters  []HostParameter `json:"customParameters"`
}

type ParamCreateRequestData struct {
	ParameterName               string  `json:"parameterName"`
	Explanation                 string  `json:"explanation,omitempty"`
	Min                         float64 `json:"min"`
	Max                         float64 `json:"max"`
	DefaultValue                float64 `json:"defaultValue"`
	DeleteWhenPluginDisconnects bool    `json:"deleteWhenPluginDisconnects"`
}

// ParameterValue is one axis write inside an inject message.
type ParameterValue struct {
	ID     string  `json:"id"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight,omitempty"`
}

type InjectRequestData struct {
	Mode            string           `json:"mode,omitempty"`
	FaceFound       bool             `json:"faceFound"`
	ParameterValues []ParameterValue `json:"parameterValues"`
}

type HotkeyTriggerData struct {
	HotkeyID string `json:"hotkeyID"`
}

type CurrentModelData struct {
	ModelLoaded bool   `json:"modelLoaded"`
	ModelName   string `json:"modelName"`
	ModelID     string `json:"modelID"`
}

type ModelEntry struct {
	ModelLoaded bool   `json:"modelLoaded"`
	ModelName   string `json:"modelName"`
	ModelID     string `json:"modelID"`
}

type AvailableModelsData struct {
	AvailableModels []ModelEntry `json:"availableModels"`
}

type ModelLoadRequestData struct {
	ModelID string `json:"modelID"`
}

type APIErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

// isAlreadyExists reports whether a host error means the custom
// parameter was created in an earlier session. That case is a success
// for ensure-style creation.
func isAlreadyExists(err *MotionError) bool {
	if err == nil || err.Code != ErrCodeHostAPI {
		return false
	}
	return strings.Contains(strings.ToLower(err.Message), "already")
}
